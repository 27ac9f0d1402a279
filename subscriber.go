package presence

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// SnapshotHandler receives every snapshot a subscription delivers, latest
// last. A nil snapshot means the feed has nothing for the user.
type SnapshotHandler func(snapshot *Snapshot)

type Subscription interface {
	Unsubscribe()
}

// Subscriber delivers presence snapshots of one user.
type Subscriber interface {
	Subscribe(ctx context.Context, userID string, handler SnapshotHandler) (Subscription, error)
}

// SubscriptionFunc adapts a function into a Subscription.
type SubscriptionFunc func()

func (f SubscriptionFunc) Unsubscribe() {
	f()
}

// SubscriberConstructor builds a subscriber from the feed configuration map.
type SubscriberConstructor func(logger *slog.Logger, args map[string]any) (Subscriber, error)

var (
	subscribersMu sync.RWMutex
	subscribers   = make(map[string]SubscriberConstructor)
)

// RegisterSubscriber makes a feed type available to NewSubscriber.
func RegisterSubscriber(feedType string, constructor SubscriberConstructor) {
	subscribersMu.Lock()
	defer subscribersMu.Unlock()

	subscribers[strings.ToLower(feedType)] = constructor
}

// Subscribers lists the registered feed types.
func Subscribers() []string {
	subscribersMu.RLock()
	defer subscribersMu.RUnlock()

	feedTypes := make([]string, 0, len(subscribers))
	for feedType := range subscribers {
		feedTypes = append(feedTypes, feedType)
	}

	sort.Strings(feedTypes)

	return feedTypes
}

// NewSubscriber creates the subscriber registered for the feed type.
func NewSubscriber(logger *slog.Logger, feed FeedConfiguration) (Subscriber, error) {
	subscribersMu.RLock()
	constructor, ok := subscribers[strings.ToLower(feed.Type)]
	subscribersMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeed, feed.Type)
	}

	args := feed.Configuration
	if args == nil {
		args = map[string]any{}
	}

	subscriber, err := constructor(logger.With("feed", feed.Type), args)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s subscriber: %w", feed.Type, err)
	}

	return subscriber, nil
}

// GetEntry returns the first match from a map, comparing keys case insensitively.
func GetEntry(m map[string]any, key string) any {
	key = strings.ToLower(key)
	for k, v := range m {
		if strings.ToLower(k) == key {
			return v
		}
	}

	return nil
}

// GetStringEntry returns the entry as a string, or def when it is missing.
func GetStringEntry(m map[string]any, key, def string) string {
	if value, ok := GetEntry(m, key).(string); ok && value != "" {
		return value
	}

	return def
}

func init() {
	RegisterSubscriber("lanyard_socket", func(logger *slog.Logger, args map[string]any) (Subscriber, error) {
		return NewLanyardSocketFromArgs(logger, args)
	})

	RegisterSubscriber("lanyard_rest", func(logger *slog.Logger, args map[string]any) (Subscriber, error) {
		return NewLanyardRESTFromArgs(logger, args)
	})
}
