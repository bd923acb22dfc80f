package consumers

import (
	"context"

	"go.uber.org/zap"

	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/models"
)

// OrderHandler is implemented by services.OrderService.
type OrderHandler interface {
	HandleCheckout(ctx context.Context, ev models.CheckoutEvent) error
	HandleCheckoutCreated(ctx context.Context, ev models.CheckoutCreatedEvent) error
	HandlePaymentSucceeded(ctx context.Context, ev models.PaymentEvent) error
	HandlePaymentFailed(ctx context.Context, ev models.PaymentEvent) error
}

// EventConsumer routes cart and payment events to the order lifecycle. The
// same Handle serves the long-running subscriber and the Lambda entrypoint.
type EventConsumer struct {
	orders OrderHandler
	logger *zap.Logger
}

func NewEventConsumer(orders OrderHandler, logger *zap.Logger) *EventConsumer {
	return &EventConsumer{orders: orders, logger: logger}
}

// Handle is an events.Handler. Malformed payloads are dropped; handler errors
// are returned so the message is redelivered.
func (c *EventConsumer) Handle(ctx context.Context, env events.Envelope) error {
	log := c.logger.With(zap.String("event_id", env.ID), zap.String("event_type", env.Type))

	switch env.Type {
	case events.CartCheckedOut:
		var ev models.CheckoutEvent
		if err := env.Bind(&ev); err != nil {
			log.Error("dropping malformed event", zap.Error(err))
			return nil
		}
		return c.orders.HandleCheckout(ctx, ev)

	case events.PaymentCheckoutCreated:
		var ev models.CheckoutCreatedEvent
		if err := env.Bind(&ev); err != nil {
			log.Error("dropping malformed event", zap.Error(err))
			return nil
		}
		return c.orders.HandleCheckoutCreated(ctx, ev)

	case events.PaymentSucceeded, events.PaymentFailed:
		var ev models.PaymentEvent
		if err := env.Bind(&ev); err != nil {
			log.Error("dropping malformed event", zap.Error(err))
			return nil
		}
		if env.Type == events.PaymentSucceeded {
			return c.orders.HandlePaymentSucceeded(ctx, ev)
		}
		return c.orders.HandlePaymentFailed(ctx, ev)

	default:
		log.Debug("ignoring event")
		return nil
	}
}

// Run consumes until ctx is cancelled.
func (c *EventConsumer) Run(ctx context.Context, sub events.Subscriber) {
	if err := sub.Run(ctx, c.Handle); err != nil {
		c.logger.Error("instance event consumer stopped", zap.Error(err))
	}
}
