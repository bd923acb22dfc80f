package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/models"
)

// HandleWebhook verifies and applies a Stripe event. Events are processed at
// most once; a failed event is forgotten so Stripe's retry is applied.
func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.stripe.ConstructEvent(payload, signature)
	if err != nil {
		s.logger.Warn("webhook signature verification failed", zap.Error(err))
		return apperrors.BadRequest("Invalid webhook signature")
	}

	fresh, err := s.repo.MarkEventProcessed(ctx, ev.ID, ev.Type)
	if err != nil {
		return apperrors.Internal(err)
	}
	if !fresh {
		s.logger.Info("duplicate webhook event ignored", zap.String("event_id", ev.ID))
		return nil
	}

	if err := s.dispatch(ctx, ev.Type, ev.Raw); err != nil {
		if ferr := s.repo.ForgetEvent(ctx, ev.ID); ferr != nil {
			s.logger.Error("failed to release webhook event", zap.String("event_id", ev.ID), zap.Error(ferr))
		}
		s.logger.Error("webhook processing failed",
			zap.String("event_id", ev.ID),
			zap.String("event_type", ev.Type),
			zap.Error(err),
		)
		return apperrors.Internal(err)
	}
	return nil
}

func (s *paymentService) dispatch(ctx context.Context, eventType string, raw json.RawMessage) error {
	switch eventType {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(raw, &sess); err != nil {
			return err
		}
		if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			return nil
		}
		return s.applyOutcome(ctx, sess.ID, sess.Metadata, models.StatusSucceeded, raw)

	case "checkout.session.expired":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(raw, &sess); err != nil {
			return err
		}
		return s.applyOutcome(ctx, sess.ID, sess.Metadata, models.StatusFailed, raw)

	case "payment_intent.succeeded", "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(raw, &pi); err != nil {
			return err
		}
		status := models.StatusSucceeded
		if eventType == "payment_intent.canceled" {
			status = models.StatusCanceled
		}
		return s.applyOutcome(ctx, pi.ID, pi.Metadata, status, raw)

	case "payment_intent.payment_failed":
		// A declined attempt leaves the intent open for another payment method.
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(raw, &pi); err != nil {
			return err
		}
		payment, err := s.paymentFor(ctx, pi.ID, pi.Metadata)
		if err != nil || payment == nil || models.IsTerminal(payment.Status) {
			return err
		}
		message := "payment attempt failed"
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			message = pi.LastPaymentError.Msg
		}
		s.logger.Info("payment attempt declined",
			zap.String("payment_id", payment.ID.String()),
			zap.String("reason", message),
		)
		return s.repo.RecordAttemptFailure(ctx, payment.ID, message, raw)

	default:
		s.logger.Debug("unhandled webhook event", zap.String("event_type", eventType))
		return nil
	}
}

// paymentFor locates the payment by Stripe id, falling back to the payment_id
// metadata. Unknown payments resolve to nil.
func (s *paymentService) paymentFor(ctx context.Context, stripeID string, metadata map[string]string) (*models.Payment, error) {
	payment, err := s.repo.GetPaymentByStripeID(ctx, stripeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		id, perr := uuid.Parse(metadata["payment_id"])
		if perr != nil {
			s.logger.Warn("webhook for unknown payment", zap.String("stripe_id", stripeID))
			return nil, nil
		}
		payment, err = s.repo.GetPaymentByID(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("webhook for unknown payment", zap.String("stripe_id", stripeID))
			return nil, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// applyOutcome completes the payment an event refers to.
func (s *paymentService) applyOutcome(ctx context.Context, stripeID string, metadata map[string]string, status string, raw []byte) error {
	payment, err := s.paymentFor(ctx, stripeID, metadata)
	if err != nil || payment == nil || models.IsTerminal(payment.Status) {
		return err
	}
	return s.complete(ctx, payment, status, raw)
}
