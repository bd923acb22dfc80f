package consumers

import (
	"context"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/yashrajoria/vm-marketplace/pkg/events"
)

// HandleSQSBatch processes an SQS batch delivered to Lambda. Records whose
// handler fails are reported as batch item failures so only they are retried.
func (c *EventConsumer) HandleSQSBatch(ctx context.Context, batch lambdaevents.SQSEvent) (lambdaevents.SQSEventResponse, error) {
	var resp lambdaevents.SQSEventResponse
	for _, record := range batch.Records {
		env, err := events.Decode([]byte(record.Body))
		if err != nil {
			c.logger.Error("dropping malformed message", zap.String("message_id", record.MessageId), zap.Error(err))
			continue
		}
		if err := c.Handle(ctx, env); err != nil {
			c.logger.Warn("message failed, leaving for retry",
				zap.String("message_id", record.MessageId),
				zap.String("event_type", env.Type),
				zap.Error(err),
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures, lambdaevents.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
		}
	}
	return resp, nil
}
