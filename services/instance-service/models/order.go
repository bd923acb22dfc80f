package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	OrderPendingPayment = "pending_payment"
	OrderPaid           = "paid"
	OrderProvisioning   = "provisioning"
	OrderCompleted      = "completed"
	OrderFailed         = "failed"
	OrderCanceled       = "canceled"
)

type Order struct {
	ID          uuid.UUID   `gorm:"size:36;primaryKey" json:"id"`
	UserID      string      `gorm:"size:36;not null;index" json:"user_id"`
	CheckoutID  string      `gorm:"size:100;uniqueIndex;not null" json:"checkout_id"`
	Status      string      `gorm:"size:20;not null;default:'pending_payment'" json:"status"`
	Amount      int64       `gorm:"not null" json:"amount"`
	Currency    string      `gorm:"size:10;not null" json:"currency"`
	PaymentID   string      `gorm:"size:36" json:"payment_id,omitempty"`
	CheckoutURL string      `gorm:"size:1024" json:"checkout_url,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
	Items       []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

type OrderItem struct {
	ID       uuid.UUID `gorm:"size:36;primaryKey" json:"-"`
	OrderID  uuid.UUID `gorm:"size:36;not null;index" json:"-"`
	VMID     string    `gorm:"size:36;not null" json:"vm_id"`
	Name     string    `gorm:"size:255" json:"name"`
	Region   string    `gorm:"size:50" json:"region"`
	Quantity int       `gorm:"not null" json:"quantity"`
	Price    float64   `gorm:"not null" json:"price"`
}

// IsFinal reports whether no further payment or deployment events apply.
func (o *Order) IsFinal() bool {
	switch o.Status {
	case OrderCompleted, OrderFailed, OrderCanceled:
		return true
	}
	return false
}
