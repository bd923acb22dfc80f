package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type queueURLAPI interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
}

// defaultVisibilityTimeout hides a received message from other consumers.
// It is extended while the handler still runs.
const defaultVisibilityTimeout = 60 * time.Second

// SQSConsumer provides methods for consuming messages from SQS queues
type SQSConsumer struct {
	client     sqsAPI
	queueURL   string
	visibility time.Duration
	logger     *zap.Logger
}

// NewSQSConsumer creates a new SQS consumer for the given queue URL
func NewSQSConsumer(cfg aws.Config, queueURL string, logger *zap.Logger) *SQSConsumer {
	return newSQSConsumer(sqs.NewFromConfig(cfg), queueURL, logger)
}

func newSQSConsumer(client sqsAPI, queueURL string, logger *zap.Logger) *SQSConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQSConsumer{client: client, queueURL: queueURL, visibility: defaultVisibilityTimeout, logger: logger}
}

// MessageHandler is a function that processes an SQS message
type MessageHandler func(ctx context.Context, body string) error

// StartPolling polls SQS for messages and processes them with the handler.
// It blocks until ctx is cancelled and returns nil in that case.
func (c *SQSConsumer) StartPolling(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Starting SQS polling", zap.String("queue", c.queueURL))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("SQS polling stopped", zap.String("queue", c.queueURL))
			return nil
		default:
		}

		if err := c.pollOnce(ctx, handler); err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			c.logger.Warn("Error polling SQS", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
		}
	}
}

func (c *SQSConsumer) visibilitySeconds() int32 {
	return max(1, int32(c.visibility/time.Second))
}

func (c *SQSConsumer) pollOnce(ctx context.Context, handler MessageHandler) error {
	result, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &c.queueURL,
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   c.visibilitySeconds(),
	})
	if err != nil {
		return fmt.Errorf("failed to receive messages: %w", err)
	}
	if len(result.Messages) == 0 {
		return nil
	}

	// Messages at or after current are still owed a handler run.
	var current atomic.Int64
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.heartbeat(ctx, result.Messages, &current, stop)
	}()
	defer func() {
		close(stop)
		wg.Wait()
	}()

	for i, msg := range result.Messages {
		current.Store(int64(i))
		if msg.Body == nil {
			continue
		}

		// A failed message becomes visible again after the visibility timeout.
		if err := handler(ctx, *msg.Body); err != nil {
			c.logger.Warn("Failed to process message", zap.Error(err), zap.String("message_id", aws.ToString(msg.MessageId)))
			continue
		}

		if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      &c.queueURL,
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			c.logger.Warn("Failed to delete message", zap.Error(err))
		}
	}

	return nil
}

// heartbeat keeps unfinished messages of a batch invisible until stop closes.
func (c *SQSConsumer) heartbeat(ctx context.Context, msgs []types.Message, current *atomic.Int64, stop <-chan struct{}) {
	ticker := time.NewTicker(c.visibility / 2)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, msg := range msgs[current.Load():] {
			if _, err := c.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
				QueueUrl:          &c.queueURL,
				ReceiptHandle:     msg.ReceiptHandle,
				VisibilityTimeout: c.visibilitySeconds(),
			}); err != nil {
				c.logger.Warn("Failed to extend message visibility",
					zap.Error(err),
					zap.String("message_id", aws.ToString(msg.MessageId)),
				)
			}
		}
	}
}

// ResolveQueueURL accepts either a queue URL or a queue name. Names are looked
// up with GetQueueUrl.
func ResolveQueueURL(ctx context.Context, cfg aws.Config, queue string) (string, error) {
	return resolveQueueURL(ctx, sqs.NewFromConfig(cfg), queue)
}

func isQueueURL(queue string) bool {
	return strings.HasPrefix(queue, "https://") || strings.HasPrefix(queue, "http://")
}

func resolveQueueURL(ctx context.Context, client queueURLAPI, queue string) (string, error) {
	if isQueueURL(queue) {
		return queue, nil
	}
	result, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: &queue,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get queue URL for %s: %w", queue, err)
	}
	return aws.ToString(result.QueueUrl), nil
}

// SendMessage sends a single message to the queue
func (c *SQSConsumer) SendMessage(ctx context.Context, body string) error {
	_, err := c.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &c.queueURL,
		MessageBody: &body,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
