package services

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/models"
)

var (
	errMethodRequired = apperrors.BadRequest("Payment method ID is required")
	errMethodNotFound = apperrors.NotFound("Payment method not found")
)

// MethodView is a saved card as returned to the caller.
type MethodView struct {
	ID        string `json:"id"`
	Brand     string `json:"brand"`
	Last4     string `json:"last4"`
	ExpMonth  int64  `json:"exp_month"`
	ExpYear   int64  `json:"exp_year"`
	IsDefault bool   `json:"is_default"`
}

// customerFor returns the caller's Stripe customer id. When create is false
// and the user has none yet, it returns "".
func (s *paymentService) customerFor(ctx context.Context, actor Actor, create bool) (string, error) {
	existing, err := s.repo.GetCustomer(ctx, actor.UserID)
	if err == nil {
		return existing.CustomerID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", apperrors.Internal(err)
	}
	if !create {
		return "", nil
	}

	customerID, err := s.stripe.CreateCustomer(ctx, actor.Email, actor.UserID)
	if err != nil {
		s.logger.Error("failed to create stripe customer", zap.String("user_id", actor.UserID), zap.Error(err))
		return "", providerError(err)
	}
	err = s.repo.CreateCustomer(ctx, &models.StripeCustomer{
		UserID:     actor.UserID,
		CustomerID: customerID,
		Email:      actor.Email,
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost a race with a concurrent request for the same user.
		existing, err = s.repo.GetCustomer(ctx, actor.UserID)
		if err != nil {
			return "", apperrors.Internal(err)
		}
		return existing.CustomerID, nil
	}
	if err != nil {
		return "", apperrors.Internal(err)
	}
	return customerID, nil
}

func (s *paymentService) ListMethods(ctx context.Context, actor Actor) ([]MethodView, error) {
	customerID, err := s.customerFor(ctx, actor, false)
	if err != nil {
		return nil, err
	}
	methods := []MethodView{}
	if customerID == "" {
		return methods, nil
	}

	cards, err := s.stripe.ListCards(ctx, customerID)
	if err != nil {
		return nil, providerError(err)
	}
	defaultID, err := s.stripe.DefaultPaymentMethod(ctx, customerID)
	if err != nil {
		return nil, providerError(err)
	}
	for _, card := range cards {
		methods = append(methods, MethodView{
			ID:        card.ID,
			Brand:     card.Brand,
			Last4:     card.Last4,
			ExpMonth:  card.ExpMonth,
			ExpYear:   card.ExpYear,
			IsDefault: card.ID == defaultID,
		})
	}
	return methods, nil
}

// AddMethod attaches a card to the caller's customer. The first card saved
// becomes the default.
func (s *paymentService) AddMethod(ctx context.Context, actor Actor, paymentMethodID string, setDefault bool) (*MethodView, error) {
	if paymentMethodID == "" {
		return nil, errMethodRequired
	}
	customerID, err := s.customerFor(ctx, actor, true)
	if err != nil {
		return nil, err
	}

	existing, err := s.stripe.ListCards(ctx, customerID)
	if err != nil {
		return nil, providerError(err)
	}
	card, err := s.stripe.AttachPaymentMethod(ctx, paymentMethodID, customerID)
	if err != nil {
		s.logger.Warn("failed to attach payment method", zap.String("user_id", actor.UserID), zap.Error(err))
		return nil, providerError(err)
	}

	makeDefault := setDefault || len(existing) == 0
	if makeDefault {
		if err := s.stripe.SetDefaultPaymentMethod(ctx, customerID, card.ID); err != nil {
			return nil, providerError(err)
		}
	}
	return &MethodView{
		ID:        card.ID,
		Brand:     card.Brand,
		Last4:     card.Last4,
		ExpMonth:  card.ExpMonth,
		ExpYear:   card.ExpYear,
		IsDefault: makeDefault,
	}, nil
}

func (s *paymentService) ownedMethod(ctx context.Context, actor Actor, paymentMethodID string) (string, error) {
	if paymentMethodID == "" {
		return "", errMethodRequired
	}
	customerID, err := s.customerFor(ctx, actor, false)
	if err != nil {
		return "", err
	}
	if customerID == "" {
		return "", errMethodNotFound
	}
	card, err := s.stripe.GetPaymentMethod(ctx, paymentMethodID)
	if err != nil {
		return "", errMethodNotFound
	}
	if card.CustomerID != customerID {
		return "", errMethodNotFound
	}
	return customerID, nil
}

func (s *paymentService) RemoveMethod(ctx context.Context, actor Actor, paymentMethodID string) error {
	if _, err := s.ownedMethod(ctx, actor, paymentMethodID); err != nil {
		return err
	}
	if err := s.stripe.DetachPaymentMethod(ctx, paymentMethodID); err != nil {
		return providerError(err)
	}
	return nil
}

func (s *paymentService) SetDefaultMethod(ctx context.Context, actor Actor, paymentMethodID string) error {
	customerID, err := s.ownedMethod(ctx, actor, paymentMethodID)
	if err != nil {
		return err
	}
	if err := s.stripe.SetDefaultPaymentMethod(ctx, customerID, paymentMethodID); err != nil {
		return providerError(err)
	}
	return nil
}
