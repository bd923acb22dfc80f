package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/gateway"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/models"
)

// HandlePaymentRequest opens a Checkout Session for an order and announces
// the URL. A repeated request for the same order re-announces the existing
// session instead of opening a new one. A returned error asks for redelivery.
func (s *paymentService) HandlePaymentRequest(ctx context.Context, req models.PaymentRequest) error {
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil || req.UserID == "" {
		s.logger.Warn("dropping malformed payment request", zap.String("order_id", req.OrderID))
		return nil
	}

	payment, err := s.repo.GetPaymentByOrderID(ctx, orderID)
	switch {
	case err == nil:
		if payment.CheckoutURL != "" {
			return s.announceCheckout(ctx, payment)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		payment, err = s.newOrderPayment(ctx, orderID, req)
		if err != nil {
			return err
		}
	default:
		return err
	}

	customerID, err := s.customerFor(ctx, Actor{UserID: req.UserID}, false)
	if err != nil {
		return err
	}
	sess, err := s.stripe.CreateCheckoutSession(ctx, gateway.SessionParams{
		Currency:   payment.Currency,
		Items:      orderLineItems(orderID, req, payment.Amount),
		CustomerID: customerID,
		SuccessURL: s.opts.FrontendURL + "/dashboard?success=true",
		CancelURL:  s.opts.FrontendURL + "/dashboard?canceled=true",
		Metadata: map[string]string{
			"order_id":   orderID.String(),
			"user_id":    req.UserID,
			"payment_id": payment.ID.String(),
		},
	})
	if err != nil {
		return fmt.Errorf("create checkout session for order %s: %w", orderID, err)
	}
	if err := s.repo.SetCheckout(ctx, payment.ID, sess.ID, sess.URL); err != nil {
		return err
	}
	payment.CheckoutURL = sess.URL
	return s.announceCheckout(ctx, payment)
}

func (s *paymentService) newOrderPayment(ctx context.Context, orderID uuid.UUID, req models.PaymentRequest) (*models.Payment, error) {
	amount := req.Amount
	if amount == 0 {
		for _, item := range req.Items {
			amount += toCents(item.Price) * int64(item.Quantity)
		}
	}
	currency := req.Currency
	if currency == "" {
		currency = s.opts.Currency
	}
	payment := &models.Payment{
		ID:       uuid.New(),
		OrderID:  &orderID,
		UserID:   req.UserID,
		Amount:   amount,
		Currency: currency,
		Status:   models.StatusProcessing,
		Method:   models.MethodCheckout,
	}
	if len(req.Items) == 1 {
		payment.VMID = req.Items[0].VMID
		payment.Quantity = req.Items[0].Quantity
		payment.Region = req.Items[0].Region
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

func orderLineItems(orderID uuid.UUID, req models.PaymentRequest, amount int64) []gateway.LineItem {
	if len(req.Items) == 0 {
		return []gateway.LineItem{{Name: "Order " + orderID.String(), UnitAmount: amount, Quantity: 1}}
	}
	items := make([]gateway.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		name := item.Name
		if name == "" {
			name = item.VMID
		}
		if item.Region != "" {
			name = fmt.Sprintf("%s (%s)", name, item.Region)
		}
		items = append(items, gateway.LineItem{
			Name:       name,
			UnitAmount: toCents(item.Price),
			Quantity:   int64(item.Quantity),
		})
	}
	return items
}

func (s *paymentService) announceCheckout(ctx context.Context, payment *models.Payment) error {
	ev := models.CheckoutCreatedEvent{
		OrderID:     payment.OrderID.String(),
		PaymentID:   payment.ID.String(),
		CheckoutURL: payment.CheckoutURL,
	}
	if err := s.publisher.Publish(ctx, events.PaymentCheckoutCreated, ev); err != nil {
		return fmt.Errorf("publish checkout created: %w", err)
	}
	s.logger.Info("checkout session announced", zap.String("order_id", ev.OrderID), zap.String("payment_id", ev.PaymentID))
	return nil
}
