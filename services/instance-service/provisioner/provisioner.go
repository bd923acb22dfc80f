// Package provisioner creates and operates the machines behind instances.
package provisioner

import (
	"context"
	"errors"
)

// Power actions accepted by Power.
const (
	ActionStart   = "start"
	ActionStop    = "stop"
	ActionRestart = "restart"
)

var ErrUnknownAction = errors.New("unknown power action")

// ErrRejected marks a definitive refusal, such as an invalid spec or no
// capacity. Any other error is transient and the call may be repeated.
var ErrRejected = errors.New("rejected by provisioner")

// IsRejected reports whether err is a definitive refusal.
func IsRejected(err error) bool { return errors.Is(err, ErrRejected) }

// Spec describes the machine to create.
type Spec struct {
	InstanceID string `json:"instance_id"`
	ListingID  string `json:"listing_id"`
	Name       string `json:"name"`
	Image      string `json:"image"`
	Region     string `json:"region"`
	CPUCores   int    `json:"cpu_cores"`
	RAMGB      int    `json:"ram_gb"`
	StorageGB  int    `json:"storage_gb"`
}

// Usage is current utilisation in percent.
type Usage struct {
	CPU    int `json:"cpu"`
	Memory int `json:"memory"`
}

// Provision must be idempotent on Spec.InstanceID so a retried deployment
// gets the same machine back.
type Provisioner interface {
	Provision(ctx context.Context, spec Spec) (externalID string, err error)
	AssignNetwork(ctx context.Context, externalID string) (ip string, err error)
	Power(ctx context.Context, externalID, action string) error
	Deprovision(ctx context.Context, externalID string) error
	Usage(ctx context.Context, externalID string) (Usage, error)
}

func validAction(action string) bool {
	switch action {
	case ActionStart, ActionStop, ActionRestart:
		return true
	}
	return false
}
