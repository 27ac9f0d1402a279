package feeds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	presence "github.com/WelcomerTeam/Presence-Kit"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const kafkaFeed = "kafka"

func init() {
	presence.RegisterSubscriber(kafkaFeed, func(logger *slog.Logger, args map[string]any) (presence.Subscriber, error) {
		return NewKafkaSubscriberFromArgs(logger, args)
	})
}

// KafkaSubscriber reads snapshots from a topic, keyed by user id. Producers
// spread keys over partitions, so every subscription joins a consumer group
// of its own and is assigned all of them. Reading starts at the end of each
// partition; older messages are not replayed.
type KafkaSubscriber struct {
	logger *slog.Logger

	brokers     []string
	topic       string
	groupPrefix string
}

func NewKafkaSubscriber(logger *slog.Logger, brokers []string, topic, groupPrefix string) *KafkaSubscriber {
	if topic == "" {
		topic = "presence"
	}

	if groupPrefix == "" {
		groupPrefix = "presence-kit"
	}

	return &KafkaSubscriber{
		logger:      logger,
		brokers:     brokers,
		topic:       topic,
		groupPrefix: groupPrefix,
	}
}

// NewKafkaSubscriberFromArgs reads "Address" (comma separated brokers), "Topic" and "Group".
func NewKafkaSubscriberFromArgs(logger *slog.Logger, args map[string]any) (*KafkaSubscriber, error) {
	address, err := requireAddress(kafkaFeed, args)
	if err != nil {
		return nil, err
	}

	brokers := strings.Split(address, ",")
	for i, broker := range brokers {
		brokers[i] = strings.TrimSpace(broker)
	}

	return NewKafkaSubscriber(logger, brokers,
		presence.GetStringEntry(args, "Topic", ""),
		presence.GetStringEntry(args, "Group", ""),
	), nil
}

// ReaderConfig returns the configuration of a new subscription's reader.
func (kafkaSubscriber *KafkaSubscriber) ReaderConfig() kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:     kafkaSubscriber.brokers,
		Topic:       kafkaSubscriber.topic,
		GroupID:     kafkaSubscriber.groupPrefix + "-" + uuid.NewString(),
		StartOffset: kafka.LastOffset,
	}
}

func (kafkaSubscriber *KafkaSubscriber) Subscribe(ctx context.Context, userID string, handler presence.SnapshotHandler) (presence.Subscription, error) {
	logger := kafkaSubscriber.logger.With("user_id", userID, "topic", kafkaSubscriber.topic)

	config := kafkaSubscriber.ReaderConfig()

	err := config.Validate()
	if err != nil {
		presence.RecordFeedError(kafkaFeed)

		return nil, fmt.Errorf("kafka reader config: %w", err)
	}

	reader := kafka.NewReader(config)

	logger.Debug("Joining consumer group", "group_id", config.GroupID)

	readCtx, cancel := context.WithCancel(presence.WithUserID(context.WithoutCancel(ctx), userID))

	sub := &subscription{
		stop: cancel,
	}

	sub.wg.Add(1)

	go func() {
		defer sub.wg.Done()
		defer reader.Close()

		for {
			message, err := reader.ReadMessage(readCtx)
			if err != nil {
				if readCtx.Err() != nil || errors.Is(err, context.Canceled) {
					return
				}

				presence.RecordFeedError(kafkaFeed)
				logger.Error("Failed to read message", "error", err)

				return
			}

			if string(message.Key) != userID {
				continue
			}

			deliver(readCtx, logger, kafkaFeed, message.Value, handler)
		}
	}()

	return sub, nil
}
