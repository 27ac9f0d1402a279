// Package feeds provides presence subscribers backed by message queues. Each
// feed registers itself with the presence package under its type name, so
// importing this package makes redis, nats and kafka available to
// presence.NewSubscriber.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	presence "github.com/WelcomerTeam/Presence-Kit"
)

var ErrMissingAddress = errors.New("missing address")

// deliver decodes a message and hands it to handler. Undecodable messages,
// and snapshots of a user other than the one subscribed in ctx, are logged
// and dropped. It reports whether the handler was called.
func deliver(ctx context.Context, logger *slog.Logger, feed string, data []byte, handler presence.SnapshotHandler) bool {
	snapshot, err := presence.DecodeSnapshot(data)
	if err != nil {
		presence.RecordFeedError(feed)
		logger.Warn("Dropping undecodable message", "error", err)

		return false
	}

	if !presence.MatchesContextUser(ctx, snapshot) {
		logger.Warn("Dropping snapshot of another user", "snapshot_user_id", snapshot.DiscordUser.ID)

		return false
	}

	handler(snapshot)

	return true
}

// latestGate orders the stored latest snapshot against live messages. Once
// a live message has been delivered, the stored value is older and skipped.
type latestGate struct {
	mu   sync.Mutex
	live bool
}

func (gate *latestGate) Live(deliver func() bool) {
	gate.mu.Lock()
	defer gate.mu.Unlock()

	if deliver() {
		gate.live = true
	}
}

// Latest runs deliver unless a live message already went through. It
// reports whether deliver ran.
func (gate *latestGate) Latest(deliver func() bool) bool {
	gate.mu.Lock()
	defer gate.mu.Unlock()

	if gate.live {
		return false
	}

	deliver()

	return true
}

func requireAddress(feed string, args map[string]any) (string, error) {
	address, ok := presence.GetEntry(args, "Address").(string)
	if !ok || address == "" {
		return "", fmt.Errorf("%s: %w", feed, ErrMissingAddress)
	}

	return address, nil
}

// subscription stops a background reader and waits for it.
type subscription struct {
	stop func()
	wg   sync.WaitGroup
	once sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.stop()
		s.wg.Wait()
	})
}
