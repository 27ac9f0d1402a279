package feeds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	presence "github.com/WelcomerTeam/Presence-Kit"
	"github.com/go-redis/redis/v8"
)

const redisFeed = "redis"

func init() {
	presence.RegisterSubscriber(redisFeed, func(logger *slog.Logger, args map[string]any) (presence.Subscriber, error) {
		return NewRedisSubscriberFromArgs(context.Background(), logger, args)
	})
}

// RedisSubscriber receives snapshots published on "{channel}:{user id}". The
// key of the same name, when set, holds the latest snapshot and is read once
// on subscribe.
type RedisSubscriber struct {
	logger *slog.Logger

	redisClient *redis.Client

	channel string
}

func NewRedisSubscriber(logger *slog.Logger, client *redis.Client, channel string) *RedisSubscriber {
	if channel == "" {
		channel = "presence"
	}

	return &RedisSubscriber{
		logger:      logger,
		redisClient: client,
		channel:     channel,
	}
}

// NewRedisSubscriberFromArgs reads "Address", "Password", "DB" and "Channel".
func NewRedisSubscriberFromArgs(ctx context.Context, logger *slog.Logger, args map[string]any) (*RedisSubscriber, error) {
	address, err := requireAddress(redisFeed, args)
	if err != nil {
		return nil, err
	}

	password, _ := presence.GetEntry(args, "Password").(string)

	var db int

	switch value := presence.GetEntry(args, "DB").(type) {
	case string:
		db, err = strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("redis db atoi: %w", err)
		}
	case int:
		db = value
	case float64:
		db = int(value)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("redis connect ping: %w", err)
	}

	return NewRedisSubscriber(logger, client, presence.GetStringEntry(args, "Channel", "")), nil
}

func (redisSubscriber *RedisSubscriber) Channel(userID string) string {
	return redisSubscriber.channel + ":" + userID
}

func (redisSubscriber *RedisSubscriber) Subscribe(ctx context.Context, userID string, handler presence.SnapshotHandler) (presence.Subscription, error) {
	channel := redisSubscriber.Channel(userID)
	logger := redisSubscriber.logger.With("user_id", userID, "channel", channel)

	ctx = presence.WithUserID(ctx, userID)

	pubsub := redisSubscriber.redisClient.Subscribe(ctx, channel)

	// Wait for the subscription to be confirmed so no publish is missed
	// between reading the key and listening.
	_, err := pubsub.Receive(ctx)
	if err != nil {
		_ = pubsub.Close()
		presence.RecordFeedError(redisFeed)

		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	latest, err := redisSubscriber.redisClient.Get(ctx, channel).Bytes()

	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		logger.Warn("Failed to read latest snapshot", "error", err)
	default:
		deliver(ctx, logger, redisFeed, latest, handler)
	}

	sub := &subscription{
		stop: func() {
			_ = pubsub.Close()
		},
	}

	messages := pubsub.Channel()

	sub.wg.Add(1)

	go func() {
		defer sub.wg.Done()

		for message := range messages {
			deliver(ctx, logger, redisFeed, []byte(message.Payload), handler)
		}

		logger.Debug("Redis subscription closed")
	}()

	return sub, nil
}
