package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"

	MethodIntent   = "intent"
	MethodCheckout = "checkout"
)

// IsTerminal reports whether status can no longer change.
func IsTerminal(status string) bool {
	return status == StatusSucceeded || status == StatusFailed || status == StatusCanceled
}

type Payment struct {
	ID                 uuid.UUID      `gorm:"size:36;primaryKey" json:"id"`
	OrderID            *uuid.UUID     `gorm:"size:36;index" json:"order_id,omitempty"`
	UserID             string         `gorm:"size:36;index;not null" json:"user_id"`
	VMID               string         `gorm:"size:36" json:"vm_id,omitempty"`
	Quantity           int            `json:"quantity,omitempty"`
	Region             string         `gorm:"size:50" json:"region,omitempty"`
	Amount             int64          `gorm:"not null" json:"amount"`
	Currency           string         `gorm:"size:10;not null" json:"currency"`
	Status             string         `gorm:"size:20;not null;index" json:"status"`
	Method             string         `gorm:"size:20;not null" json:"method"`
	StripePaymentID    *string        `gorm:"size:255;uniqueIndex" json:"-"`
	CheckoutURL        string         `gorm:"size:1024" json:"checkout_url,omitempty"`
	LastError          string         `gorm:"size:500" json:"last_error,omitempty"`
	StripeEventPayload datatypes.JSON `json:"-"`
	SucceededAt        *time.Time     `json:"succeeded_at,omitempty"`
	FailedAt           *time.Time     `json:"failed_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// StripeCustomer maps a marketplace user to their Stripe customer.
type StripeCustomer struct {
	UserID     string `gorm:"size:36;primaryKey"`
	CustomerID string `gorm:"size:255;uniqueIndex;not null"`
	Email      string `gorm:"size:255"`
	CreatedAt  time.Time
}

// ProcessedEvent records handled Stripe webhook events.
type ProcessedEvent struct {
	EventID   string `gorm:"size:255;primaryKey"`
	Type      string `gorm:"size:100"`
	CreatedAt time.Time
}

// PaymentEvent is the payload of payment.succeeded and payment.failed.
type PaymentEvent struct {
	PaymentID string  `json:"payment_id"`
	OrderID   *string `json:"order_id,omitempty"`
	UserID    string  `json:"user_id"`
	VMID      string  `json:"vm_id,omitempty"`
	Quantity  int     `json:"quantity,omitempty"`
	Region    string  `json:"region,omitempty"`
	Amount    int64   `json:"amount"`
	Currency  string  `json:"currency"`
	Status    string  `json:"status"`
}

// CheckoutCreatedEvent is the payload of payment.checkout_created.
type CheckoutCreatedEvent struct {
	OrderID     string `json:"order_id"`
	PaymentID   string `json:"payment_id"`
	CheckoutURL string `json:"checkout_url"`
}

type PaymentRequestItem struct {
	VMID     string  `json:"vm_id"`
	Name     string  `json:"name"`
	Region   string  `json:"region"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// PaymentRequest asks for a checkout session covering an order.
type PaymentRequest struct {
	OrderID  string               `json:"order_id"`
	UserID   string               `json:"user_id"`
	Amount   int64                `json:"amount"`
	Currency string               `json:"currency"`
	Items    []PaymentRequestItem `json:"items"`
}
