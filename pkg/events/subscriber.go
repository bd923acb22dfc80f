package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	awspkg "github.com/yashrajoria/vm-marketplace/pkg/aws"
)

// Handler processes a decoded event. Returning an error leaves the message
// for redelivery.
type Handler func(ctx context.Context, env Envelope) error

// Subscriber consumes events until its context is cancelled.
type Subscriber interface {
	Run(ctx context.Context, handler Handler) error
	Close() error
}

// SQSSubscriber adapts the SQS long-poll consumer.
type SQSSubscriber struct {
	consumer *awspkg.SQSConsumer
	logger   *zap.Logger
}

func NewSQSSubscriber(consumer *awspkg.SQSConsumer, logger *zap.Logger) *SQSSubscriber {
	return &SQSSubscriber{consumer: consumer, logger: logger}
}

func (s *SQSSubscriber) Run(ctx context.Context, handler Handler) error {
	return s.consumer.StartPolling(ctx, func(ctx context.Context, body string) error {
		env, err := Decode([]byte(body))
		if err != nil {
			// Undecodable messages are dropped instead of poisoning the queue.
			s.logger.Error("dropping malformed message", zap.Error(err))
			return nil
		}
		return handler(ctx, env)
	})
}

func (s *SQSSubscriber) Close() error { return nil }

type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSubscriber reads a topic as part of a consumer group. A message is
// retried until its handler succeeds, and only then is its offset committed.
type KafkaSubscriber struct {
	reader     kafkaReader
	logger     *zap.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewKafkaSubscriber(brokers []string, topic, groupID string, logger *zap.Logger) *KafkaSubscriber {
	return newKafkaSubscriber(kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	}), logger)
}

func newKafkaSubscriber(reader kafkaReader, logger *zap.Logger) *KafkaSubscriber {
	return &KafkaSubscriber{
		reader:     reader,
		logger:     logger,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

func (s *KafkaSubscriber) Run(ctx context.Context, handler Handler) error {
	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka fetch: %w", err)
		}

		if err := s.process(ctx, msg, handler); err != nil {
			// Uncommitted, so the group resumes at this message.
			return nil
		}
		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			s.logger.Warn("failed to commit offset", zap.Error(err), zap.Int64("offset", msg.Offset))
		}
	}
}

// process returns only once the handler accepted msg, or with the context
// error on shutdown.
func (s *KafkaSubscriber) process(ctx context.Context, msg kafka.Message, handler Handler) error {
	env, err := Decode(msg.Value)
	if err != nil {
		s.logger.Error("dropping malformed message", zap.Error(err), zap.Int64("offset", msg.Offset))
		return nil
	}

	backoff := s.minBackoff
	for attempt := 1; ; attempt++ {
		err := handler(ctx, env)
		if err == nil {
			return nil
		}
		s.logger.Warn("failed to process message, retrying",
			zap.Error(err),
			zap.String("event_type", env.Type),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
		)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		backoff = min(backoff*2, s.maxBackoff)
	}
}

func (s *KafkaSubscriber) Close() error { return s.reader.Close() }

// NewSubscriber builds the subscriber for queue on the configured bus.
func NewSubscriber(ctx context.Context, cfg Config, queue string, logger *zap.Logger) (Subscriber, error) {
	if queue == "" {
		return nil, fmt.Errorf("no queue configured")
	}
	if cfg.Bus == BusKafka {
		return NewKafkaSubscriber(cfg.KafkaBrokers, queue, cfg.KafkaGroupID, logger), nil
	}
	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	queueURL, err := awspkg.ResolveQueueURL(ctx, awsCfg, queue)
	if err != nil {
		return nil, err
	}
	return NewSQSSubscriber(awspkg.NewSQSConsumer(awsCfg, queueURL, logger), logger), nil
}
