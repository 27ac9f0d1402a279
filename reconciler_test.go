package presence_test

import (
	"log/slog"
	"testing"
	"time"

	presence "github.com/WelcomerTeam/Presence-Kit"
	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func musicSnapshot(start time.Time, length time.Duration, listening bool) *presence.Snapshot {
	return &presence.Snapshot{
		DiscordUser:            presence.User{ID: "94490510688792576", Username: "user"},
		DiscordStatus:          discordgo.StatusOnline,
		ActiveOnDiscordDesktop: true,
		ListeningToSpotify:     listening,
		Spotify: &presence.MusicSession{
			Song:   "Song",
			Artist: "Artist",
			Timestamps: presence.Timestamps{
				Start: start.UnixMilli(),
				End:   start.Add(length).UnixMilli(),
			},
		},
		Activities: []presence.ActivityRecord{
			{Kind: discordgo.ActivityTypeListening, Name: "Spotify"},
		},
	}
}

func newTestReconciler(t *testing.T, clock *manualClock) (*presence.Reconciler, chan presence.View) {
	t.Helper()

	updates := make(chan presence.View, 64)

	reconciler := presence.NewReconciler(slog.Default(), "94490510688792576",
		presence.WithClock(clock),
		presence.WithUpdateHandler(func(view presence.View) {
			updates <- view
		}),
	)

	t.Cleanup(reconciler.Stop)

	return reconciler, updates
}

func nextView(t *testing.T, updates <-chan presence.View) presence.View {
	t.Helper()

	select {
	case view := <-updates:
		return view
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no update received")

		return presence.View{}
	}
}

func assertNoView(t *testing.T, updates <-chan presence.View) {
	t.Helper()

	select {
	case view := <-updates:
		assert.Failf(t, "unexpected update", "revision %d", view.Revision)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReconcilerStartsLoading(t *testing.T) {
	t.Parallel()

	reconciler, updates := newTestReconciler(t, newManualClock(epoch))

	view := reconciler.View()
	assert.Equal(t, presence.ReconcilerStateLoading, view.State)
	assert.Nil(t, view.Snapshot)
	assert.Equal(t, presence.InitialPlaybackProgress(), view.Playback)

	reconciler.Apply(nil)
	assert.Equal(t, presence.ReconcilerStateLoading, reconciler.State())
	assertNoView(t, updates)
}

func TestReconcilerPlaybackProgress(t *testing.T) {
	t.Parallel()

	clock := newManualClock(epoch)
	reconciler, updates := newTestReconciler(t, clock)

	reconciler.Apply(musicSnapshot(epoch, 3*time.Minute, true))

	view := nextView(t, updates)
	assert.Equal(t, presence.ReconcilerStateReady, view.State)
	assert.Equal(t, presence.PlaybackProgress{Elapsed: "0:00", Total: "3:00", Ratio: 0}, view.Playback)
	assert.True(t, reconciler.Ticking())

	clock.TickAt(epoch.Add(90 * time.Second))

	view = nextView(t, updates)
	assert.Equal(t, "1:30", view.Playback.Elapsed)
	assert.Equal(t, "3:00", view.Playback.Total)
	assert.InDelta(t, 50.0, view.Playback.Ratio, 1e-9)

	// Past the end of the window the values freeze and the ticker is released.
	clock.TickAt(epoch.Add(181 * time.Second))

	require.Eventually(t, func() bool { return !reconciler.Ticking() }, 2*time.Second, 5*time.Millisecond)
	assertNoView(t, updates)

	frozen := reconciler.View()
	assert.Equal(t, "1:30", frozen.Playback.Elapsed)
	assert.InDelta(t, 50.0, frozen.Playback.Ratio, 1e-9)
}

func TestReconcilerNewSnapshotResetsWindow(t *testing.T) {
	t.Parallel()

	clock := newManualClock(epoch)
	reconciler, updates := newTestReconciler(t, clock)

	reconciler.Apply(musicSnapshot(epoch, 3*time.Minute, true))
	nextView(t, updates)

	clock.TickAt(epoch.Add(90 * time.Second))
	nextView(t, updates)

	// A new track starting now is computed immediately, not on the next tick.
	next := epoch.Add(90 * time.Second)
	reconciler.Apply(musicSnapshot(next, 4*time.Minute, true))

	view := nextView(t, updates)
	assert.Equal(t, presence.PlaybackProgress{Elapsed: "0:00", Total: "4:00", Ratio: 0}, view.Playback)
	assert.Equal(t, next.Add(4*time.Minute).UnixMilli(), view.Snapshot.Spotify.Timestamps.End)
	assert.True(t, reconciler.Ticking())
	assert.Equal(t, 1, clock.Tickers(), "the running ticker is reused")
}

func TestReconcilerSnapshotPastWindowKeepsInitialValues(t *testing.T) {
	t.Parallel()

	clock := newManualClock(epoch.Add(10 * time.Minute))
	reconciler, updates := newTestReconciler(t, clock)

	reconciler.Apply(musicSnapshot(epoch, 3*time.Minute, true))

	view := nextView(t, updates)
	assert.Equal(t, presence.InitialPlaybackProgress(), view.Playback)
	assert.False(t, reconciler.Ticking())
}

func TestReconcilerNotAudibleDoesNotTick(t *testing.T) {
	t.Parallel()

	clock := newManualClock(epoch)
	reconciler, updates := newTestReconciler(t, clock)

	reconciler.Apply(musicSnapshot(epoch, 3*time.Minute, true))
	nextView(t, updates)
	require.True(t, reconciler.Ticking())

	reconciler.Apply(musicSnapshot(epoch, 3*time.Minute, false))
	nextView(t, updates)
	assert.False(t, reconciler.Ticking())

	reconciler.Apply(&presence.Snapshot{DiscordStatus: discordgo.StatusIdle})
	view := nextView(t, updates)
	assert.False(t, reconciler.Ticking())
	assert.Equal(t, presence.InitialPlaybackProgress(), view.Playback)
}

func TestReconcilerAbsentSnapshotKeepsReady(t *testing.T) {
	t.Parallel()

	reconciler, updates := newTestReconciler(t, newManualClock(epoch))

	snapshot := &presence.Snapshot{DiscordStatus: discordgo.StatusOnline}
	reconciler.Apply(snapshot)
	nextView(t, updates)

	reconciler.Apply(nil)
	assertNoView(t, updates)

	view := reconciler.View()
	assert.Equal(t, presence.ReconcilerStateReady, view.State)
	assert.Same(t, snapshot, view.Snapshot)
}

func TestReconcilerStop(t *testing.T) {
	t.Parallel()

	clock := newManualClock(epoch)
	reconciler, updates := newTestReconciler(t, clock)

	reconciler.Apply(musicSnapshot(epoch, 3*time.Minute, true))
	nextView(t, updates)

	reconciler.Stop()
	reconciler.Stop()

	assert.False(t, reconciler.Ticking())

	clock.TickAt(epoch.Add(30 * time.Second))
	reconciler.Apply(musicSnapshot(epoch, time.Minute, true))

	assertNoView(t, updates)
	assert.Equal(t, "3:00", reconciler.View().Playback.Total)
}

func TestReconcilerRevisionsIncrease(t *testing.T) {
	t.Parallel()

	clock := newManualClock(epoch)
	reconciler, updates := newTestReconciler(t, clock)

	reconciler.Apply(musicSnapshot(epoch, 3*time.Minute, true))
	first := nextView(t, updates)

	clock.TickAt(epoch.Add(time.Second))
	second := nextView(t, updates)

	reconciler.Apply(musicSnapshot(epoch, 3*time.Minute, true))
	third := nextView(t, updates)

	assert.Less(t, first.Revision, second.Revision)
	assert.Less(t, second.Revision, third.Revision)
}
