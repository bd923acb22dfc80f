package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	InstancePending      = "pending"
	InstanceProvisioning = "provisioning"
	InstanceRunning      = "running"
	InstanceStopped      = "stopped"
	InstanceFailed       = "failed"
	InstanceTerminated   = "terminated"
)

// Deployment steps, in pipeline order.
const (
	StepValidating         = "validating"
	StepProcessingPayment  = "processing_payment"
	StepProvisioning       = "provisioning"
	StepConfiguringNetwork = "configuring_network"
	StepRunning            = "running"
)

var DeploymentSteps = []string{
	StepValidating,
	StepProcessingPayment,
	StepProvisioning,
	StepConfiguringNetwork,
	StepRunning,
}

const (
	StepOK     = "ok"
	StepFailed = "failed"
)

type Instance struct {
	ID             uuid.UUID  `gorm:"size:36;primaryKey" json:"id"`
	UserID         string     `gorm:"size:36;not null;index" json:"user_id"`
	OrderID        uuid.UUID  `gorm:"size:36;not null;index" json:"order_id"`
	ListingID      string     `gorm:"size:36;not null" json:"listing_id"`
	Name           string     `gorm:"size:255" json:"name"`
	Image          string     `gorm:"size:100" json:"image"`
	Region         string     `gorm:"size:50" json:"region"`
	Status         string     `gorm:"size:20;not null;index" json:"status"`
	IPAddress      string     `gorm:"size:45" json:"ip_address,omitempty"`
	CPUCores       int        `json:"cpu_cores"`
	RAMGB          int        `json:"ram_gb"`
	StorageGB      int        `json:"storage_gb"`
	ExternalID     string     `gorm:"size:255" json:"external_id,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	DeploymentStep string     `gorm:"size:30" json:"deployment_step"`
	FailureReason  string     `gorm:"size:512" json:"failure_reason,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type DeploymentEvent struct {
	ID         uuid.UUID `gorm:"size:36;primaryKey" json:"-"`
	InstanceID uuid.UUID `gorm:"size:36;not null;index" json:"-"`
	Step       string    `gorm:"size:30;not null" json:"step"`
	Status     string    `gorm:"size:10;not null" json:"status"`
	Message    string    `gorm:"size:512" json:"message"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
