package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/models"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/provisioner"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/repository"
)

var errInstanceNotFound = apperrors.NotFound("Instance not found")

type Specs struct {
	CPU     string `json:"cpu"`
	RAM     string `json:"ram"`
	Storage string `json:"storage"`
}

// InstanceView is a dashboard row.
type InstanceView struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Image  string            `json:"image"`
	Status string            `json:"status"`
	Region string            `json:"region"`
	IP     string            `json:"ip"`
	Specs  Specs             `json:"specs"`
	Uptime string            `json:"uptime"`
	Usage  provisioner.Usage `json:"usage"`
}

type StepView struct {
	Step      string     `json:"step"`
	Status    string     `json:"status"`
	Message   string     `json:"message,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type DeploymentView struct {
	InstanceID  string     `json:"instance_id"`
	Status      string     `json:"status"`
	CurrentStep string     `json:"current_step"`
	Progress    int        `json:"progress"`
	Steps       []StepView `json:"steps"`
}

type InstanceService interface {
	List(ctx context.Context, userID, status string) ([]InstanceView, error)
	Get(ctx context.Context, userID string, id uuid.UUID) (*InstanceView, error)
	Deployment(ctx context.Context, userID string, id uuid.UUID) (*DeploymentView, error)
	Start(ctx context.Context, userID string, id uuid.UUID) (*InstanceView, error)
	Stop(ctx context.Context, userID string, id uuid.UUID) (*InstanceView, error)
	Restart(ctx context.Context, userID string, id uuid.UUID) (*InstanceView, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) error
}

type instanceService struct {
	repo        repository.InstanceRepository
	provisioner provisioner.Provisioner
	logger      *zap.Logger
	now         func() time.Time
}

func NewInstanceService(repo repository.InstanceRepository, prov provisioner.Provisioner, logger *zap.Logger) InstanceService {
	return &instanceService{repo: repo, provisioner: prov, logger: logger, now: time.Now}
}

// transitions lists, per action, the statuses it may start from.
var transitions = map[string][]string{
	provisioner.ActionStart:   {models.InstanceStopped},
	provisioner.ActionStop:    {models.InstanceRunning},
	provisioner.ActionRestart: {models.InstanceRunning},
	"delete": {
		models.InstancePending,
		models.InstanceProvisioning,
		models.InstanceRunning,
		models.InstanceStopped,
		models.InstanceFailed,
	},
}

func illegalTransition(action, status string) error {
	return apperrors.Conflict(fmt.Sprintf("cannot %s instance in status %s", action, status))
}

func (s *instanceService) owned(ctx context.Context, userID string, id uuid.UUID) (*models.Instance, error) {
	inst, err := s.repo.FindByIDAndUserID(ctx, id, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errInstanceNotFound
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return inst, nil
}

func (s *instanceService) view(ctx context.Context, inst *models.Instance) InstanceView {
	v := InstanceView{
		ID:     inst.ID.String(),
		Name:   inst.Name,
		Image:  inst.Image,
		Status: inst.Status,
		Region: inst.Region,
		IP:     inst.IPAddress,
		Specs: Specs{
			CPU:     fmt.Sprintf("%d vCPU", inst.CPUCores),
			RAM:     fmt.Sprintf("%d GB", inst.RAMGB),
			Storage: fmt.Sprintf("%d GB SSD", inst.StorageGB),
		},
		Uptime: noUptime,
	}
	if inst.Status != models.InstanceRunning {
		return v
	}
	if inst.StartedAt != nil {
		v.Uptime = FormatUptime(s.now().Sub(*inst.StartedAt))
	}
	if inst.ExternalID != "" {
		usage, err := s.provisioner.Usage(ctx, inst.ExternalID)
		if err != nil {
			s.logger.Warn("usage lookup failed", zap.String("instance_id", v.ID), zap.Error(err))
		} else {
			v.Usage = usage
		}
	}
	return v
}

func (s *instanceService) List(ctx context.Context, userID, status string) ([]InstanceView, error) {
	instances, err := s.repo.ListByUser(ctx, userID, status)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	views := make([]InstanceView, 0, len(instances))
	for i := range instances {
		views = append(views, s.view(ctx, &instances[i]))
	}
	return views, nil
}

func (s *instanceService) Get(ctx context.Context, userID string, id uuid.UUID) (*InstanceView, error) {
	inst, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	v := s.view(ctx, inst)
	return &v, nil
}

// Deployment reports every pipeline step. Progress is the share of steps
// completed, in percent.
func (s *instanceService) Deployment(ctx context.Context, userID string, id uuid.UUID) (*DeploymentView, error) {
	inst, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	evs, err := s.repo.ListEvents(ctx, inst.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	latest := make(map[string]models.DeploymentEvent, len(evs))
	for _, ev := range evs {
		latest[ev.Step] = ev
	}

	view := &DeploymentView{
		InstanceID:  inst.ID.String(),
		Status:      inst.Status,
		CurrentStep: inst.DeploymentStep,
		Steps:       make([]StepView, 0, len(models.DeploymentSteps)),
	}
	done := 0
	for _, step := range models.DeploymentSteps {
		sv := StepView{Step: step, Status: "pending"}
		if ev, ok := latest[step]; ok {
			at := ev.CreatedAt
			sv.Status = ev.Status
			sv.Message = ev.Message
			sv.UpdatedAt = &at
			if ev.Status == models.StepOK {
				done++
			}
		}
		view.Steps = append(view.Steps, sv)
	}
	view.Progress = done * 100 / len(models.DeploymentSteps)
	return view, nil
}

// power applies a start, stop or restart. The status guard in the update
// keeps concurrent requests from both succeeding.
func (s *instanceService) power(ctx context.Context, userID string, id uuid.UUID, action, next string) (*InstanceView, error) {
	inst, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	from := transitions[action]
	if !slices.Contains(from, inst.Status) {
		return nil, illegalTransition(action, inst.Status)
	}

	if inst.ExternalID != "" {
		if err := s.provisioner.Power(ctx, inst.ExternalID, action); err != nil {
			s.logger.Error("power action failed", zap.String("instance_id", id.String()), zap.String("action", action), zap.Error(err))
			return nil, apperrors.New(http.StatusBadGateway, "Provisioner error", err)
		}
	}

	fields := map[string]interface{}{"status": next}
	switch next {
	case models.InstanceRunning:
		now := s.now()
		fields["started_at"] = &now
		inst.StartedAt = &now
	case models.InstanceStopped:
		fields["started_at"] = nil
		inst.StartedAt = nil
	}
	changed, err := s.repo.Transition(ctx, id, from, fields)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !changed {
		current, err := s.owned(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		return nil, illegalTransition(action, current.Status)
	}
	inst.Status = next

	s.logger.Info("instance power action", zap.String("instance_id", id.String()), zap.String("action", action))
	v := s.view(ctx, inst)
	return &v, nil
}

func (s *instanceService) Start(ctx context.Context, userID string, id uuid.UUID) (*InstanceView, error) {
	return s.power(ctx, userID, id, provisioner.ActionStart, models.InstanceRunning)
}

func (s *instanceService) Stop(ctx context.Context, userID string, id uuid.UUID) (*InstanceView, error) {
	return s.power(ctx, userID, id, provisioner.ActionStop, models.InstanceStopped)
}

// Restart keeps the instance running and resets its uptime.
func (s *instanceService) Restart(ctx context.Context, userID string, id uuid.UUID) (*InstanceView, error) {
	return s.power(ctx, userID, id, provisioner.ActionRestart, models.InstanceRunning)
}

// Delete deprovisions the machine and terminates the instance.
func (s *instanceService) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	inst, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	from := transitions["delete"]
	if !slices.Contains(from, inst.Status) {
		return illegalTransition("delete", inst.Status)
	}

	if inst.ExternalID != "" {
		if err := s.provisioner.Deprovision(ctx, inst.ExternalID); err != nil {
			s.logger.Error("deprovision failed", zap.String("instance_id", id.String()), zap.Error(err))
			return apperrors.New(http.StatusBadGateway, "Provisioner error", err)
		}
	}

	changed, err := s.repo.Transition(ctx, id, from, map[string]interface{}{
		"status":     models.InstanceTerminated,
		"started_at": nil,
	})
	if err != nil {
		return apperrors.Internal(err)
	}
	if !changed {
		return illegalTransition("delete", models.InstanceTerminated)
	}
	s.logger.Info("instance terminated", zap.String("instance_id", id.String()))
	return nil
}
