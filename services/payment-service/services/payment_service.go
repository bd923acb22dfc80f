package services

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	awspkg "github.com/yashrajoria/vm-marketplace/pkg/aws"
	"github.com/yashrajoria/vm-marketplace/pkg/catalog"
	"github.com/yashrajoria/vm-marketplace/pkg/events"
	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/gateway"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/models"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/repository"
)

const (
	MaxQuantity      = 10
	confirmedMessage = "Payment confirmed and VM deployment initiated"
	listingAvailable = "available"
)

var (
	errPaymentNotFound = apperrors.NotFound("Payment not found")
	errMissingInfo     = apperrors.BadRequest("Missing payment information")
)

// Actor is the authenticated caller.
type Actor struct {
	UserID string
	Email  string
}

type IntentInput struct {
	VMID     string `json:"vm_id" binding:"required"`
	Quantity int    `json:"quantity"`
	Region   string `json:"region"`
}

type IntentResult struct {
	ClientSecret string `json:"client_secret"`
	PaymentID    string `json:"payment_id"`
}

type CheckoutInput struct {
	VMID     string `json:"vm_id" binding:"required"`
	Quantity int    `json:"quantity"`
	OrderID  string `json:"order_id"`
}

type CheckoutResult struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
	PaymentID string `json:"payment_id"`
}

type ConfirmResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	PaymentID string `json:"payment_id"`
}

type StatusResult struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Options struct {
	FrontendURL string
	Currency    string
}

type PaymentService interface {
	CreateIntent(ctx context.Context, actor Actor, in IntentInput) (*IntentResult, error)
	CreateCheckoutSession(ctx context.Context, actor Actor, in CheckoutInput) (*CheckoutResult, error)
	Confirm(ctx context.Context, actor Actor, intentID, clientSecret string) (*ConfirmResult, error)
	Status(ctx context.Context, actor Actor, id uuid.UUID) (*StatusResult, error)

	ListMethods(ctx context.Context, actor Actor) ([]MethodView, error)
	AddMethod(ctx context.Context, actor Actor, paymentMethodID string, setDefault bool) (*MethodView, error)
	RemoveMethod(ctx context.Context, actor Actor, paymentMethodID string) error
	SetDefaultMethod(ctx context.Context, actor Actor, paymentMethodID string) error

	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	HandlePaymentRequest(ctx context.Context, req models.PaymentRequest) error
}

type paymentService struct {
	repo      repository.PaymentRepository
	stripe    gateway.StripeGateway
	catalog   catalog.Client
	publisher events.Publisher
	metrics   *awspkg.MetricsClient
	opts      Options
	logger    *zap.Logger
}

func NewPaymentService(
	repo repository.PaymentRepository,
	stripe gateway.StripeGateway,
	listings catalog.Client,
	publisher events.Publisher,
	metrics *awspkg.MetricsClient,
	opts Options,
	logger *zap.Logger,
) PaymentService {
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	return &paymentService{
		repo:      repo,
		stripe:    stripe,
		catalog:   listings,
		publisher: publisher,
		metrics:   metrics,
		opts:      opts,
		logger:    logger,
	}
}

func providerError(err error) error {
	return apperrors.New(http.StatusBadGateway, "Payment provider error", err)
}

// toCents converts a listing price in dollars to cents.
func toCents(price float64) int64 {
	return int64(math.Round(price * 100))
}

func (s *paymentService) availableListing(ctx context.Context, vmID string) (*catalog.Listing, error) {
	listing, err := s.catalog.GetListing(ctx, vmID)
	if err != nil {
		if errors.Is(err, catalog.ErrListingNotFound) {
			return nil, apperrors.ErrListingNotFound
		}
		s.logger.Error("catalog lookup failed", zap.String("vm_id", vmID), zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	if listing.Status != listingAvailable {
		return nil, apperrors.ErrListingUnavailable
	}
	return listing, nil
}

// CreateIntent prices the listing server-side and opens a PaymentIntent for
// price × quantity.
func (s *paymentService) CreateIntent(ctx context.Context, actor Actor, in IntentInput) (*IntentResult, error) {
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity < 1 || in.Quantity > MaxQuantity {
		return nil, apperrors.BadRequest("Quantity must be between 1 and 10")
	}
	listing, err := s.availableListing(ctx, in.VMID)
	if err != nil {
		return nil, err
	}

	customerID, err := s.customerFor(ctx, actor, true)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:       uuid.New(),
		UserID:   actor.UserID,
		VMID:     listing.ID,
		Quantity: in.Quantity,
		Region:   in.Region,
		Amount:   toCents(listing.Price) * int64(in.Quantity),
		Currency: s.opts.Currency,
		Status:   models.StatusProcessing,
		Method:   models.MethodIntent,
	}

	intent, err := s.stripe.CreatePaymentIntent(ctx, gateway.IntentParams{
		Amount:     payment.Amount,
		Currency:   payment.Currency,
		CustomerID: customerID,
		Metadata: map[string]string{
			"vm_id":      payment.VMID,
			"quantity":   strconv.Itoa(payment.Quantity),
			"region":     payment.Region,
			"user_id":    payment.UserID,
			"payment_id": payment.ID.String(),
		},
	})
	if err != nil {
		s.logger.Error("failed to create payment intent", zap.String("vm_id", in.VMID), zap.Error(err))
		return nil, providerError(err)
	}
	payment.StripePaymentID = &intent.ID

	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		s.logger.Error("failed to store payment", zap.String("payment_intent", intent.ID), zap.Error(err))
		return nil, apperrors.Internal(err)
	}

	s.logger.Info("payment intent created",
		zap.String("payment_id", payment.ID.String()),
		zap.String("vm_id", payment.VMID),
		zap.Int64("amount", payment.Amount),
	)
	return &IntentResult{ClientSecret: intent.ClientSecret, PaymentID: payment.ID.String()}, nil
}

func (s *paymentService) CreateCheckoutSession(ctx context.Context, actor Actor, in CheckoutInput) (*CheckoutResult, error) {
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity < 1 || in.Quantity > MaxQuantity {
		return nil, apperrors.BadRequest("Quantity must be between 1 and 10")
	}
	var orderID *uuid.UUID
	if in.OrderID != "" {
		id, err := uuid.Parse(in.OrderID)
		if err != nil {
			return nil, apperrors.BadRequest("Invalid order id")
		}
		orderID = &id
	}

	listing, err := s.availableListing(ctx, in.VMID)
	if err != nil {
		return nil, err
	}
	customerID, err := s.customerFor(ctx, actor, true)
	if err != nil {
		return nil, err
	}

	unit := toCents(listing.Price)
	payment := &models.Payment{
		ID:       uuid.New(),
		OrderID:  orderID,
		UserID:   actor.UserID,
		VMID:     listing.ID,
		Quantity: in.Quantity,
		Amount:   unit * int64(in.Quantity),
		Currency: s.opts.Currency,
		Status:   models.StatusProcessing,
		Method:   models.MethodCheckout,
	}
	metadata := map[string]string{
		"vm_id":      payment.VMID,
		"quantity":   strconv.Itoa(payment.Quantity),
		"user_id":    payment.UserID,
		"payment_id": payment.ID.String(),
	}
	if orderID != nil {
		metadata["order_id"] = orderID.String()
	}

	sess, err := s.stripe.CreateCheckoutSession(ctx, gateway.SessionParams{
		Currency:   payment.Currency,
		Items:      []gateway.LineItem{{Name: "VM Instance - " + listing.Name, UnitAmount: unit, Quantity: int64(in.Quantity)}},
		CustomerID: customerID,
		SuccessURL: s.opts.FrontendURL + "/dashboard?success=true",
		CancelURL:  s.opts.FrontendURL + "/dashboard?canceled=true",
		Metadata:   metadata,
	})
	if err != nil {
		s.logger.Error("failed to create checkout session", zap.String("vm_id", in.VMID), zap.Error(err))
		return nil, providerError(err)
	}
	payment.StripePaymentID = &sess.ID
	payment.CheckoutURL = sess.URL

	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		s.logger.Error("failed to store payment", zap.String("session_id", sess.ID), zap.Error(err))
		return nil, apperrors.Internal(err)
	}
	return &CheckoutResult{URL: sess.URL, SessionID: sess.ID, PaymentID: payment.ID.String()}, nil
}

// Confirm checks a client-side confirmed PaymentIntent with Stripe. Confirming
// an already succeeded payment returns success again without re-publishing.
func (s *paymentService) Confirm(ctx context.Context, actor Actor, intentID, clientSecret string) (*ConfirmResult, error) {
	if intentID == "" || clientSecret == "" {
		return nil, errMissingInfo
	}

	payment, err := s.repo.GetPaymentByStripeID(ctx, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errPaymentNotFound
		}
		return nil, apperrors.Internal(err)
	}
	if payment.UserID != actor.UserID {
		return nil, errPaymentNotFound
	}

	ok := &ConfirmResult{Success: true, Message: confirmedMessage, PaymentID: payment.ID.String()}
	if payment.Status == models.StatusSucceeded {
		return ok, nil
	}

	intent, err := s.stripe.GetPaymentIntent(ctx, intentID)
	if err != nil {
		s.logger.Error("failed to retrieve payment intent", zap.String("payment_intent", intentID), zap.Error(err))
		return nil, providerError(err)
	}
	if intent.ClientSecret != clientSecret {
		return nil, errMissingInfo
	}
	if intent.Status != "succeeded" {
		return nil, apperrors.ErrPaymentFailed
	}

	if err := s.complete(ctx, payment, models.StatusSucceeded, nil); err != nil {
		return nil, err
	}
	if payment.Status != models.StatusSucceeded {
		s.logger.Warn("payment settled without success",
			zap.String("payment_id", payment.ID.String()),
			zap.String("status", payment.Status),
		)
		return nil, apperrors.ErrPaymentFailed
	}
	return ok, nil
}

// Status reports a payment, refreshing non-terminal records from Stripe.
func (s *paymentService) Status(ctx context.Context, actor Actor, id uuid.UUID) (*StatusResult, error) {
	payment, err := s.repo.GetPaymentByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errPaymentNotFound
		}
		return nil, apperrors.Internal(err)
	}
	if payment.UserID != actor.UserID {
		return nil, errPaymentNotFound
	}

	if !models.IsTerminal(payment.Status) && payment.StripePaymentID != nil {
		s.refresh(ctx, payment)
	}

	status := payment.Status
	if status == models.StatusCanceled {
		status = models.StatusFailed
	}
	return &StatusResult{
		ID:       payment.ID.String(),
		Status:   status,
		Amount:   payment.Amount,
		Currency: payment.Currency,
	}, nil
}

func (s *paymentService) refresh(ctx context.Context, payment *models.Payment) {
	stripeID := *payment.StripePaymentID
	var next string

	switch payment.Method {
	case models.MethodCheckout:
		sess, err := s.stripe.GetCheckoutSession(ctx, stripeID)
		if err != nil {
			s.logger.Warn("failed to refresh checkout session", zap.String("session_id", stripeID), zap.Error(err))
			return
		}
		switch {
		case sess.PaymentStatus == "paid":
			next = models.StatusSucceeded
		case sess.Status == "expired":
			next = models.StatusFailed
		}
	default:
		intent, err := s.stripe.GetPaymentIntent(ctx, stripeID)
		if err != nil {
			s.logger.Warn("failed to refresh payment intent", zap.String("payment_intent", stripeID), zap.Error(err))
			return
		}
		switch intent.Status {
		case "succeeded":
			next = models.StatusSucceeded
		case "canceled":
			next = models.StatusCanceled
		}
	}

	if next == "" {
		return
	}
	if err := s.complete(ctx, payment, next, nil); err != nil {
		s.logger.Warn("failed to record refreshed status", zap.String("payment_id", payment.ID.String()), zap.Error(err))
	}
}

// complete moves payment to a terminal status and publishes the outcome when
// this call made the transition. payment.Status is updated in place, so when
// another writer settled the payment first it holds that writer's status.
func (s *paymentService) complete(ctx context.Context, payment *models.Payment, status string, payload []byte) error {
	changed, err := s.repo.Transition(ctx, payment.ID, status, payload)
	if err != nil {
		s.logger.Error("failed to update payment status", zap.String("payment_id", payment.ID.String()), zap.Error(err))
		return apperrors.Internal(err)
	}
	if !changed {
		fresh, err := s.repo.GetPaymentByID(ctx, payment.ID)
		if err != nil {
			return apperrors.Internal(err)
		}
		payment.Status = fresh.Status
		return nil
	}
	payment.Status = status

	eventType, metric := events.PaymentSucceeded, awspkg.MetricPaymentSucceeded
	if status != models.StatusSucceeded {
		eventType, metric = events.PaymentFailed, awspkg.MetricPaymentFailed
	}
	_ = s.metrics.RecordCount(ctx, metric, nil)

	ev := models.PaymentEvent{
		PaymentID: payment.ID.String(),
		UserID:    payment.UserID,
		VMID:      payment.VMID,
		Quantity:  payment.Quantity,
		Region:    payment.Region,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Status:    status,
	}
	if payment.OrderID != nil {
		id := payment.OrderID.String()
		ev.OrderID = &id
	}
	if err := s.publisher.Publish(ctx, eventType, ev); err != nil {
		s.logger.Warn("failed to publish payment event",
			zap.String("event_type", eventType),
			zap.String("payment_id", ev.PaymentID),
			zap.Error(err),
		)
	}
	s.logger.Info("payment completed", zap.String("payment_id", ev.PaymentID), zap.String("status", status))
	return nil
}
