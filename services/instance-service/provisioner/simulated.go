package provisioner

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// Simulated provisions nothing. Ids, addresses and usage are derived from
// the instance id so repeated calls agree.
type Simulated struct {
	// Delay is slept before each provisioning step.
	Delay time.Duration
}

func NewSimulated(delay time.Duration) *Simulated {
	return &Simulated{Delay: delay}
}

func hash32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

func (s *Simulated) wait(ctx context.Context) error {
	if s.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Simulated) Provision(ctx context.Context, spec Spec) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	if spec.InstanceID == "" {
		return "", fmt.Errorf("%w: instance id is required", ErrRejected)
	}
	id := strings.ReplaceAll(spec.InstanceID, "-", "")
	if len(id) > 12 {
		id = id[:12]
	}
	return "sim-" + id, nil
}

// AssignNetwork returns a stable address in 10.0.0.0/8, avoiding .0 and .1
// in the last octet.
func (s *Simulated) AssignNetwork(ctx context.Context, externalID string) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	h := hash32(externalID)
	return fmt.Sprintf("10.%d.%d.%d", (h>>16)&0xff, (h>>8)&0xff, 2+(h&0xff)%253), nil
}

func (s *Simulated) Power(ctx context.Context, _ string, action string) error {
	if !validAction(action) {
		return fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	return ctx.Err()
}

func (s *Simulated) Deprovision(ctx context.Context, _ string) error {
	return ctx.Err()
}

func (s *Simulated) Usage(_ context.Context, externalID string) (Usage, error) {
	h := hash32(externalID)
	return Usage{
		CPU:    5 + int(h%80),
		Memory: 10 + int((h>>8)%80),
	}, nil
}
