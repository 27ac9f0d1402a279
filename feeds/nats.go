package feeds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	presence "github.com/WelcomerTeam/Presence-Kit"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const natsFeed = "nats"

func init() {
	presence.RegisterSubscriber(natsFeed, func(logger *slog.Logger, args map[string]any) (presence.Subscriber, error) {
		return NewNATSSubscriberFromArgs(context.Background(), logger, args)
	})
}

// NATSSubscriber receives snapshots published on "{channel}.{user id}". When
// a key-value bucket is configured, the entry keyed by user id is read once
// on subscribe as the latest snapshot.
type NATSSubscriber struct {
	logger *slog.Logger

	conn          *nats.Conn
	keyValueStore jetstream.KeyValue

	channel string
}

func NewNATSSubscriber(logger *slog.Logger, conn *nats.Conn, keyValueStore jetstream.KeyValue, channel string) *NATSSubscriber {
	if channel == "" {
		channel = "presence"
	}

	return &NATSSubscriber{
		logger:        logger,
		conn:          conn,
		keyValueStore: keyValueStore,
		channel:       channel,
	}
}

// NewNATSSubscriberFromArgs reads "Address", "Channel" and "Bucket".
func NewNATSSubscriberFromArgs(ctx context.Context, logger *slog.Logger, args map[string]any) (*NATSSubscriber, error) {
	address, err := requireAddress(natsFeed, args)
	if err != nil {
		return nil, err
	}

	conn, err := nats.Connect(address, nats.Name("presence-kit"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	var keyValueStore jetstream.KeyValue

	if bucket := presence.GetStringEntry(args, "Bucket", ""); bucket != "" {
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()

			return nil, fmt.Errorf("jetstream new: %w", err)
		}

		keyValueStore, err = js.KeyValue(ctx, bucket)
		if err != nil {
			conn.Close()

			return nil, fmt.Errorf("jetstream key value %s: %w", bucket, err)
		}
	}

	return NewNATSSubscriber(logger, conn, keyValueStore, presence.GetStringEntry(args, "Channel", "")), nil
}

func (natsSubscriber *NATSSubscriber) Subject(userID string) string {
	return natsSubscriber.channel + "." + userID
}

func (natsSubscriber *NATSSubscriber) Subscribe(ctx context.Context, userID string, handler presence.SnapshotHandler) (presence.Subscription, error) {
	subject := natsSubscriber.Subject(userID)
	logger := natsSubscriber.logger.With("user_id", userID, "subject", subject)

	ctx = presence.WithUserID(ctx, userID)

	gate := &latestGate{}

	natsSubscription, err := natsSubscriber.conn.Subscribe(subject, func(msg *nats.Msg) {
		gate.Live(func() bool {
			return deliver(ctx, logger, natsFeed, msg.Data, handler)
		})
	})
	if err != nil {
		presence.RecordFeedError(natsFeed)

		return nil, fmt.Errorf("nats subscribe: %w", err)
	}

	if err := natsSubscriber.conn.Flush(); err != nil {
		_ = natsSubscription.Unsubscribe()

		presence.RecordFeedError(natsFeed)

		return nil, fmt.Errorf("nats flush: %w", err)
	}

	if natsSubscriber.keyValueStore != nil {
		entry, err := natsSubscriber.keyValueStore.Get(ctx, userID)

		switch {
		case errors.Is(err, jetstream.ErrKeyNotFound):
		case err != nil:
			logger.Warn("Failed to read latest snapshot", "error", err)
		default:
			delivered := gate.Latest(func() bool {
				return deliver(ctx, logger, natsFeed, entry.Value(), handler)
			})
			if !delivered {
				logger.Debug("Skipping stored snapshot older than a live message", "revision", entry.Revision())
			}
		}
	}

	return presence.SubscriptionFunc(func() {
		err := natsSubscription.Unsubscribe()
		if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			logger.Warn("Failed to unsubscribe", "error", err)
		}
	}), nil
}

func (natsSubscriber *NATSSubscriber) Close() {
	natsSubscriber.conn.Close()
}
