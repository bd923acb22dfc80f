package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	awspkg "github.com/yashrajoria/vm-marketplace/pkg/aws"
)

const (
	BusSNS   = "sns"
	BusKafka = "kafka"
)

// Config selects the transport. With the sns bus, topics are SNS topic ARNs and
// queues are SQS queue URLs. With the kafka bus both are Kafka topic names.
type Config struct {
	Bus          string
	Source       string
	KafkaBrokers []string
	KafkaGroupID string
}

// ParseBrokers splits a comma separated broker list.
func ParseBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Publisher sends typed events to a single destination.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data any) error
	Close() error
}

// QueueSender is satisfied by *awspkg.SQSConsumer.
type QueueSender interface {
	SendMessage(ctx context.Context, body string) error
}

// SNSPublisher publishes envelopes to an SNS topic.
type SNSPublisher struct {
	client   awspkg.SNSPublisher
	topicArn string
	source   string
}

func NewSNSPublisher(client awspkg.SNSPublisher, topicArn, source string) *SNSPublisher {
	return &SNSPublisher{client: client, topicArn: topicArn, source: source}
}

func (p *SNSPublisher) Publish(ctx context.Context, eventType string, data any) error {
	env, err := NewEnvelope(eventType, p.source, data)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return p.client.Publish(ctx, p.topicArn, body, map[string]string{"event_type": eventType})
}

func (p *SNSPublisher) Close() error { return nil }

// QueuePublisher sends envelopes straight to an SQS queue.
type QueuePublisher struct {
	sender QueueSender
	source string
}

func NewQueuePublisher(sender QueueSender, source string) *QueuePublisher {
	return &QueuePublisher{sender: sender, source: source}
}

func (p *QueuePublisher) Publish(ctx context.Context, eventType string, data any) error {
	env, err := NewEnvelope(eventType, p.source, data)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return p.sender.SendMessage(ctx, string(body))
}

func (p *QueuePublisher) Close() error { return nil }

// KafkaPublisher writes envelopes to a Kafka topic keyed by event id.
type KafkaPublisher struct {
	writer *kafka.Writer
	source string
}

func NewKafkaPublisher(brokers []string, topic, source string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
		source: source,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, data any) error {
	env, err := NewEnvelope(eventType, p.source, data)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(env.ID),
		Value:   body,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(eventType)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", eventType, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// NopPublisher drops events. It is used when no destination is configured.
type NopPublisher struct {
	logger *zap.Logger
}

func (p NopPublisher) Publish(_ context.Context, eventType string, _ any) error {
	if p.logger != nil {
		p.logger.Debug("event destination not configured, dropping event", zap.String("event_type", eventType))
	}
	return nil
}

func (p NopPublisher) Close() error { return nil }

// NewTopicPublisher returns a fan-out publisher for topic.
func NewTopicPublisher(ctx context.Context, cfg Config, topic string, logger *zap.Logger) (Publisher, error) {
	if topic == "" {
		logger.Warn("no event topic configured, events will be dropped", zap.String("source", cfg.Source))
		return NopPublisher{logger: logger}, nil
	}
	if cfg.Bus == BusKafka {
		return NewKafkaPublisher(cfg.KafkaBrokers, topic, cfg.Source), nil
	}
	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return NewSNSPublisher(awspkg.NewSNSClient(awsCfg), topic, cfg.Source), nil
}

// NewQueuePublisherFor returns a point-to-point publisher for queue.
func NewQueuePublisherFor(ctx context.Context, cfg Config, queue string, logger *zap.Logger) (Publisher, error) {
	if queue == "" {
		logger.Warn("no queue configured, messages will be dropped", zap.String("source", cfg.Source))
		return NopPublisher{logger: logger}, nil
	}
	if cfg.Bus == BusKafka {
		return NewKafkaPublisher(cfg.KafkaBrokers, queue, cfg.Source), nil
	}
	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	queueURL, err := awspkg.ResolveQueueURL(ctx, awsCfg, queue)
	if err != nil {
		return nil, err
	}
	return NewQueuePublisher(awspkg.NewSQSConsumer(awsCfg, queueURL, logger), cfg.Source), nil
}
