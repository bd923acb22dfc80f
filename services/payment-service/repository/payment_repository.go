package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yashrajoria/vm-marketplace/services/payment-service/models"
)

type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetPaymentByStripeID(ctx context.Context, stripeID string) (*models.Payment, error)
	GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	SetCheckout(ctx context.Context, id uuid.UUID, sessionID, url string) error
	// Transition moves a processing payment to a terminal status and reports
	// whether this call made the change.
	Transition(ctx context.Context, id uuid.UUID, status string, payload []byte) (bool, error)
	// RecordAttemptFailure notes a declined attempt on a payment that is still
	// processing. The payment stays open for a retry.
	RecordAttemptFailure(ctx context.Context, id uuid.UUID, message string, payload []byte) error

	GetCustomer(ctx context.Context, userID string) (*models.StripeCustomer, error)
	CreateCustomer(ctx context.Context, customer *models.StripeCustomer) error

	// MarkEventProcessed returns false when the event was already recorded.
	MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error)
	ForgetEvent(ctx context.Context, eventID string) error
}

type gormPaymentRepo struct {
	db *gorm.DB
}

func NewGormPaymentRepo(db *gorm.DB) PaymentRepository {
	return &gormPaymentRepo{db: db}
}

func (r *gormPaymentRepo) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *gormPaymentRepo) GetPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) GetPaymentByStripeID(ctx context.Context, stripeID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("stripe_payment_id = ?", stripeID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) SetCheckout(ctx context.Context, id uuid.UUID, sessionID, url string) error {
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stripe_payment_id": sessionID,
			"checkout_url":      url,
		}).Error
}

func (r *gormPaymentRepo) Transition(ctx context.Context, id uuid.UUID, status string, payload []byte) (bool, error) {
	now := time.Now()
	updates := map[string]interface{}{"status": status}
	switch status {
	case models.StatusSucceeded:
		updates["succeeded_at"] = &now
	case models.StatusFailed, models.StatusCanceled:
		updates["failed_at"] = &now
	}
	if len(payload) > 0 {
		updates["stripe_event_payload"] = datatypes.JSON(payload)
	}

	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.StatusProcessing).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormPaymentRepo) RecordAttemptFailure(ctx context.Context, id uuid.UUID, message string, payload []byte) error {
	if len(message) > 500 {
		message = message[:500]
	}
	updates := map[string]interface{}{"last_error": message}
	if len(payload) > 0 {
		updates["stripe_event_payload"] = datatypes.JSON(payload)
	}
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.StatusProcessing).
		Updates(updates).Error
}

func (r *gormPaymentRepo) GetCustomer(ctx context.Context, userID string) (*models.StripeCustomer, error) {
	var customer models.StripeCustomer
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *gormPaymentRepo) CreateCustomer(ctx context.Context, customer *models.StripeCustomer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *gormPaymentRepo) MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	err := r.db.WithContext(ctx).Create(&models.ProcessedEvent{EventID: eventID, Type: eventType}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *gormPaymentRepo) ForgetEvent(ctx context.Context, eventID string) error {
	return r.db.WithContext(ctx).Delete(&models.ProcessedEvent{}, "event_id = ?", eventID).Error
}
