package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ApplicationPending  = "pending"
	ApplicationApproved = "approved"
	ApplicationRejected = "rejected"
)

// ProviderApplication is a request to sell VMs on the marketplace.
type ProviderApplication struct {
	ID          uuid.UUID                   `gorm:"size:36;primaryKey" json:"id"`
	CompanyName string                      `gorm:"size:255;not null" json:"company_name"`
	Website     string                      `gorm:"size:255" json:"website"`
	ContactName string                      `gorm:"size:255;not null" json:"contact_name"`
	Email       string                      `gorm:"size:255;not null" json:"email"`
	Phone       string                      `gorm:"size:50" json:"phone"`
	Description string                      `gorm:"type:text" json:"description"`
	VMTypes     datatypes.JSONSlice[string] `json:"vm_types"`
	Regions     datatypes.JSONSlice[string] `json:"regions"`
	Status      string                      `gorm:"size:20;not null;index" json:"status"`
	UserID      string                      `gorm:"size:36;index" json:"user_id"`
	ReviewedBy  string                      `gorm:"size:36" json:"reviewed_by,omitempty"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}
