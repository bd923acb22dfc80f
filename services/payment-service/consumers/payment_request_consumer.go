package consumers

import (
	"context"

	"go.uber.org/zap"

	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/models"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/services"
)

// PaymentRequestConsumer turns order payment requests into Checkout Sessions.
type PaymentRequestConsumer struct {
	service services.PaymentService
	logger  *zap.Logger
}

func NewPaymentRequestConsumer(service services.PaymentService, logger *zap.Logger) *PaymentRequestConsumer {
	return &PaymentRequestConsumer{service: service, logger: logger}
}

func (pc *PaymentRequestConsumer) Handle(ctx context.Context, env events.Envelope) error {
	if env.Type != events.PaymentRequested {
		return nil
	}

	var req models.PaymentRequest
	if err := env.Bind(&req); err != nil {
		pc.logger.Error("dropping malformed payment request", zap.String("event_id", env.ID), zap.Error(err))
		return nil
	}

	pc.logger.Info("payment request received",
		zap.String("order_id", req.OrderID),
		zap.Int64("amount", req.Amount),
	)
	return pc.service.HandlePaymentRequest(ctx, req)
}

// Run consumes until ctx is cancelled.
func (pc *PaymentRequestConsumer) Run(ctx context.Context, sub events.Subscriber) {
	if err := sub.Run(ctx, pc.Handle); err != nil {
		pc.logger.Error("payment request consumer stopped", zap.Error(err))
	}
}
