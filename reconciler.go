package presence

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// View is an immutable render-ready copy of a reconciler's state.
type View struct {
	Now      time.Time        `json:"now"`
	Snapshot *Snapshot        `json:"snapshot"`
	Playback PlaybackProgress `json:"playback"`
	State    ReconcilerState  `json:"state"`
	// Revision increases every time the snapshot or playback changes.
	Revision uint64 `json:"revision"`
}

type UpdateHandler func(view View)

type ReconcilerOption func(*Reconciler)

func WithClock(clock Clock) ReconcilerOption {
	return func(r *Reconciler) {
		r.clock = clock
	}
}

func WithTickInterval(interval time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if interval > 0 {
			r.tickInterval = interval
		}
	}
}

// WithUpdateHandler registers a handler called after every change. The
// handler must not call Stop.
func WithUpdateHandler(handler UpdateHandler) ReconcilerOption {
	return func(r *Reconciler) {
		r.onUpdate = handler
	}
}

// Reconciler owns the latest snapshot of one user and the ticker that keeps
// playback progress moving while music is audible.
//
// Snapshots and ticks are serialised by a single lock. Each tick re-reads the
// latest snapshot, so a view never pairs one snapshot's window with progress
// computed for another. Every ticker run holds a generation token; releasing
// the ticker bumps the generation so a late tick is dropped.
type Reconciler struct {
	logger *slog.Logger
	clock  Clock

	userID       string
	tickInterval time.Duration
	onUpdate     UpdateHandler

	mu         sync.Mutex
	state      ReconcilerState
	snapshot   *Snapshot
	playback   PlaybackProgress
	revision   uint64
	generation uint64

	ticker     Ticker
	tickerStop chan struct{}
	tickerDone chan struct{}

	stopped *atomic.Bool

	notifyMu     sync.Mutex
	lastNotified uint64
}

func NewReconciler(logger *slog.Logger, userID string, opts ...ReconcilerOption) *Reconciler {
	reconciler := &Reconciler{
		logger: logger.With("user_id", userID),
		clock:  SystemClock{},

		userID:       userID,
		tickInterval: DefaultTickInterval,

		state:    ReconcilerStateLoading,
		playback: InitialPlaybackProgress(),

		stopped: &atomic.Bool{},
	}

	for _, opt := range opts {
		opt(reconciler)
	}

	UpdateReconcilerState(userID, ReconcilerStateLoading)

	return reconciler
}

// Apply replaces the current snapshot. An absent snapshot is ignored: once a
// user's presence is known the reconciler never goes back to Loading.
func (r *Reconciler) Apply(snapshot *Snapshot) {
	if snapshot == nil {
		r.logger.Debug("Ignoring absent snapshot")

		return
	}

	r.mu.Lock()

	if r.stopped.Load() {
		r.mu.Unlock()

		return
	}

	previousState := r.state

	r.snapshot = snapshot
	r.state = ReconcilerStateReady
	r.playback = InitialPlaybackProgress()

	now := r.clock.Now()
	windowOpen := r.recomputePlaybackLocked(now)

	var released chan struct{}

	if windowOpen && snapshot.Audible() {
		if r.ticker == nil {
			r.startTickerLocked()
		}
	} else {
		released = r.releaseTickerLocked()
	}

	r.revision++
	view := r.viewLocked(now)

	r.mu.Unlock()

	if released != nil {
		<-released
	}

	RecordSnapshot(r.userID)

	if previousState != ReconcilerStateReady {
		UpdateReconcilerState(r.userID, ReconcilerStateReady)
		r.logger.Info("Reconciler is ready")
	}

	r.logger.Debug("Applied snapshot",
		"status", snapshot.DiscordStatus,
		"activities", len(snapshot.Activities),
		"audible", snapshot.Audible(),
		"ticking", windowOpen && snapshot.Audible(),
	)

	r.notify(view)
}

// View returns the current state, with Now set to the clock's current time.
func (r *Reconciler) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.viewLocked(r.clock.Now())
}

func (r *Reconciler) UserID() string {
	return r.userID
}

func (r *Reconciler) State() ReconcilerState {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// Ticking reports whether the playback ticker is currently running.
func (r *Reconciler) Ticking() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.ticker != nil
}

// Stop releases the ticker and waits for its goroutine to exit. No update
// handler runs once Stop has returned. It must not be called from an update
// handler.
func (r *Reconciler) Stop() {
	r.mu.Lock()

	if r.stopped.Swap(true) {
		r.mu.Unlock()

		return
	}

	released := r.releaseTickerLocked()

	r.mu.Unlock()

	if released != nil {
		<-released
	}

	// Wait out any notification that started before stopped was set.
	r.notifyMu.Lock()
	r.notifyMu.Unlock() //nolint:staticcheck

	r.logger.Debug("Reconciler stopped")
}

func (r *Reconciler) viewLocked(now time.Time) View {
	return View{
		Now:      now,
		Snapshot: r.snapshot,
		Playback: r.playback,
		State:    r.state,
		Revision: r.revision,
	}
}

// recomputePlaybackLocked refreshes the playback values from the latest
// snapshot. It returns false, leaving the values untouched, when there is no
// session or now is past the end of its window.
func (r *Reconciler) recomputePlaybackLocked(now time.Time) bool {
	session, ok := r.snapshot.ActiveMusicSession()
	if !ok {
		return false
	}

	start, end := session.PlaybackWindow()

	labels, ok := FormatDurationPair(start, end, now)
	if !ok {
		return false
	}

	r.playback = PlaybackProgress{
		Elapsed: labels.Elapsed,
		Total:   labels.Total,
		Ratio:   math.Max(0, ProgressRatio(start, end, now)),
	}

	return true
}

func (r *Reconciler) startTickerLocked() {
	r.generation++

	ticker := r.clock.NewTicker(r.tickInterval)
	stop := make(chan struct{})
	done := make(chan struct{})

	r.ticker = ticker
	r.tickerStop = stop
	r.tickerDone = done

	UpdateActiveTickers(1)

	r.logger.Debug("Starting playback ticker", "interval", r.tickInterval, "generation", r.generation)

	go r.tickLoop(r.generation, ticker, stop, done)
}

// releaseTickerLocked invalidates the running ticker and returns a channel
// that closes once its goroutine has exited.
func (r *Reconciler) releaseTickerLocked() chan struct{} {
	if r.ticker == nil {
		return nil
	}

	r.generation++

	close(r.tickerStop)
	done := r.tickerDone

	r.ticker = nil
	r.tickerStop = nil
	r.tickerDone = nil

	UpdateActiveTickers(-1)

	return done
}

func (r *Reconciler) tickLoop(generation uint64, ticker Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			if !r.handleTick(generation) {
				return
			}
		}
	}
}

// handleTick recomputes playback for the ticker run identified by
// generation. It returns false when the run should end.
func (r *Reconciler) handleTick(generation uint64) bool {
	r.mu.Lock()

	if r.stopped.Load() || generation != r.generation {
		r.mu.Unlock()

		return false
	}

	now := r.clock.Now()

	if !r.snapshot.Audible() || !r.recomputePlaybackLocked(now) {
		// Past the end of the window: freeze the values until a new snapshot.
		r.generation++
		r.ticker = nil
		r.tickerStop = nil
		r.tickerDone = nil

		UpdateActiveTickers(-1)

		r.mu.Unlock()

		r.logger.Debug("Playback window ended, releasing ticker")

		return false
	}

	r.revision++
	view := r.viewLocked(now)

	r.mu.Unlock()

	RecordTick(r.userID)

	r.notify(view)

	return true
}

func (r *Reconciler) notify(view View) {
	if r.onUpdate == nil {
		return
	}

	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	if r.stopped.Load() || view.Revision <= r.lastNotified {
		return
	}

	r.lastNotified = view.Revision

	r.onUpdate(view)
}
