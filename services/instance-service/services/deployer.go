package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	awspkg "github.com/yashrajoria/vm-marketplace/pkg/aws"
	"github.com/yashrajoria/vm-marketplace/pkg/catalog"
	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/models"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/provisioner"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/repository"
)

const (
	listingAvailable = "available"
	// defaultLease is how long a provisioning claim survives without progress
	// before another delivery may take the instance over.
	defaultLease   = 10 * time.Minute
	releaseTimeout = 5 * time.Second
)

// errDeploymentInProgress asks for redelivery while another worker still
// holds instances of the order.
var errDeploymentInProgress = errors.New("deployment in progress")

// stepError fails the instance at the current step. Any other error from a
// step hands the instance back to pending so the triggering message is
// redelivered.
type stepError struct {
	msg string
}

func (e *stepError) Error() string { return e.msg }

func failStep(format string, args ...any) error {
	return &stepError{msg: fmt.Sprintf(format, args...)}
}

// provisionerError keeps transient provisioner failures retryable.
func provisionerError(what string, err error) error {
	if provisioner.IsRejected(err) {
		return failStep("%s failed: %v", what, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// Deployer runs the staged deployment pipeline for one instance. Every write
// is guarded by the instance status, so a concurrent delete or another
// worker's claim stops the pipeline instead of being overwritten.
type Deployer struct {
	instances   repository.InstanceRepository
	catalog     catalog.Client
	provisioner provisioner.Provisioner
	publisher   events.Publisher
	metrics     *awspkg.MetricsClient
	logger      *zap.Logger
	lease       time.Duration
	now         func() time.Time
}

func NewDeployer(
	instances repository.InstanceRepository,
	listings catalog.Client,
	prov provisioner.Provisioner,
	publisher events.Publisher,
	metrics *awspkg.MetricsClient,
	logger *zap.Logger,
) *Deployer {
	return &Deployer{
		instances:   instances,
		catalog:     listings,
		provisioner: prov,
		publisher:   publisher,
		metrics:     metrics,
		logger:      logger,
		lease:       defaultLease,
		now:         time.Now,
	}
}

// Deployable reports whether inst should be handed to Deploy: it is pending,
// or its provisioning claim went stale.
func (d *Deployer) Deployable(inst *models.Instance) bool {
	switch inst.Status {
	case models.InstancePending:
		return true
	case models.InstanceProvisioning:
		return d.stale(inst)
	}
	return false
}

func (d *Deployer) stale(inst *models.Instance) bool {
	return inst.UpdatedAt.Before(d.now().Add(-d.lease))
}

type stepFunc func(context.Context, *models.Instance) (msg string, fields map[string]interface{}, err error)

// Deploy walks inst through validating, processing_payment, provisioning,
// configuring_network and running, appending a DeploymentEvent per step.
// A step failure marks the instance failed and returns nil. A transient error
// returns the instance to pending and is returned for redelivery. inst is
// updated in place with the stored outcome.
func (d *Deployer) Deploy(ctx context.Context, inst *models.Instance, paymentID string) error {
	started := d.now()
	log := d.logger.With(zap.String("instance_id", inst.ID.String()), zap.String("order_id", inst.OrderID.String()))

	claimed, err := d.claim(ctx, inst)
	if err != nil {
		return err
	}
	if !claimed {
		log.Info("instance no longer deployable, skipping")
		return d.reload(ctx, inst)
	}

	steps := []struct {
		name string
		run  stepFunc
	}{
		{models.StepValidating, d.validate},
		{models.StepProcessingPayment, func(context.Context, *models.Instance) (string, map[string]interface{}, error) {
			if paymentID == "" {
				return "", nil, failStep("payment not confirmed")
			}
			return "payment " + paymentID + " confirmed", nil, nil
		}},
		{models.StepProvisioning, d.provision},
		{models.StepConfiguringNetwork, d.configureNetwork},
		{models.StepRunning, d.start},
	}

	for _, step := range steps {
		msg, fields, err := step.run(ctx, inst)
		if err != nil {
			var se *stepError
			if !errors.As(err, &se) {
				return d.release(ctx, inst, step.name, err)
			}
			log.Warn("deployment step failed", zap.String("step", step.name), zap.String("reason", se.msg))
			return d.fail(ctx, inst, step.name, se.msg)
		}

		if fields == nil {
			fields = map[string]interface{}{}
		}
		fields["deployment_step"] = step.name
		changed, err := d.instances.Transition(ctx, inst.ID, []string{models.InstanceProvisioning}, fields)
		if err != nil {
			return d.release(ctx, inst, step.name, err)
		}
		if !changed {
			return d.abort(ctx, inst, log)
		}
		inst.DeploymentStep = step.name

		if err := d.record(ctx, inst, step.name, models.StepOK, msg); err != nil {
			return d.release(ctx, inst, step.name, err)
		}
	}

	_ = d.metrics.RecordCount(ctx, awspkg.MetricInstancesDeployed, map[string]string{"Region": inst.Region})
	_ = d.metrics.RecordLatency(ctx, awspkg.MetricDeploymentLatency, d.now().Sub(started), nil)
	d.announce(ctx, events.InstanceDeployed, inst)
	log.Info("instance deployed", zap.String("ip", inst.IPAddress))
	return nil
}

// claim moves inst to provisioning. Only one delivery wins a pending instance;
// a stale claim is taken over only while it stays stale.
func (d *Deployer) claim(ctx context.Context, inst *models.Instance) (bool, error) {
	fields := map[string]interface{}{
		"status":          models.InstanceProvisioning,
		"deployment_step": models.StepValidating,
		"failure_reason":  "",
	}

	var (
		changed bool
		err     error
	)
	switch {
	case inst.Status == models.InstancePending:
		changed, err = d.instances.Transition(ctx, inst.ID, []string{models.InstancePending}, fields)
	case inst.Status == models.InstanceProvisioning && d.stale(inst):
		changed, err = d.instances.Reclaim(ctx, inst.ID, d.now().Add(-d.lease), fields)
		if changed {
			d.logger.Warn("taking over stale deployment", zap.String("instance_id", inst.ID.String()))
		}
	}
	if err != nil {
		return false, fmt.Errorf("claim instance %s: %w", inst.ID, err)
	}
	if changed {
		inst.Status = models.InstanceProvisioning
		inst.DeploymentStep = models.StepValidating
	}
	return changed, nil
}

func (d *Deployer) reload(ctx context.Context, inst *models.Instance) error {
	fresh, err := d.instances.FindByID(ctx, inst.ID)
	if err != nil {
		return err
	}
	*inst = *fresh
	return nil
}

// release hands a claimed instance back to pending after a transient error.
// A release that cannot be written is recovered once the claim goes stale.
func (d *Deployer) release(ctx context.Context, inst *models.Instance, step string, cause error) error {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	d.logger.Warn("deployment interrupted, releasing instance",
		zap.String("instance_id", inst.ID.String()),
		zap.String("step", step),
		zap.Error(cause),
	)
	if _, err := d.instances.Transition(rctx, inst.ID, []string{models.InstanceProvisioning},
		map[string]interface{}{"status": models.InstancePending}); err != nil {
		d.logger.Error("failed to release instance", zap.String("instance_id", inst.ID.String()), zap.Error(err))
	} else {
		inst.Status = models.InstancePending
	}
	return fmt.Errorf("%s: %w", step, cause)
}

// abort stops a pipeline whose instance changed underneath it. A machine
// created for an instance that was deleted meanwhile is deprovisioned.
func (d *Deployer) abort(ctx context.Context, inst *models.Instance, log *zap.Logger) error {
	externalID := inst.ExternalID
	if err := d.reload(ctx, inst); err != nil {
		return err
	}
	log.Info("deployment stopped, instance changed concurrently", zap.String("status", inst.Status))

	if inst.Status == models.InstanceTerminated && externalID != "" {
		if err := d.provisioner.Deprovision(ctx, externalID); err != nil {
			log.Error("failed to deprovision machine of deleted instance", zap.String("external_id", externalID), zap.Error(err))
			return fmt.Errorf("deprovision %s: %w", externalID, err)
		}
	}
	return nil
}

func (d *Deployer) validate(ctx context.Context, inst *models.Instance) (string, map[string]interface{}, error) {
	listing, err := d.catalog.GetListing(ctx, inst.ListingID)
	if errors.Is(err, catalog.ErrListingNotFound) {
		return "", nil, failStep("listing %s not found", inst.ListingID)
	}
	if err != nil {
		return "", nil, fmt.Errorf("catalog lookup: %w", err)
	}
	if listing.Status != listingAvailable {
		return "", nil, failStep("listing %s is not available", inst.ListingID)
	}
	if len(listing.Regions) > 0 && inst.Region == "" {
		inst.Region = listing.Regions[0]
	}

	if inst.Name == "" {
		inst.Name = listing.Name
	}
	inst.Image = listing.Specifications.OSType
	if inst.Image == "" {
		inst.Image = listing.ImageType
	}
	inst.CPUCores = listing.Specifications.CPUCores
	inst.RAMGB = listing.Specifications.RAMGB
	inst.StorageGB = listing.Specifications.StorageGB
	return "listing " + listing.ID + " available", map[string]interface{}{
		"name":       inst.Name,
		"image":      inst.Image,
		"region":     inst.Region,
		"cpu_cores":  inst.CPUCores,
		"ram_gb":     inst.RAMGB,
		"storage_gb": inst.StorageGB,
	}, nil
}

// provision reuses a machine recorded by an earlier interrupted attempt.
func (d *Deployer) provision(ctx context.Context, inst *models.Instance) (string, map[string]interface{}, error) {
	if inst.ExternalID != "" {
		return "reusing " + inst.ExternalID, nil, nil
	}
	externalID, err := d.provisioner.Provision(ctx, provisioner.Spec{
		InstanceID: inst.ID.String(),
		ListingID:  inst.ListingID,
		Name:       inst.Name,
		Image:      inst.Image,
		Region:     inst.Region,
		CPUCores:   inst.CPUCores,
		RAMGB:      inst.RAMGB,
		StorageGB:  inst.StorageGB,
	})
	if err != nil {
		return "", nil, provisionerError("provisioning", err)
	}
	inst.ExternalID = externalID
	return "provisioned " + externalID, map[string]interface{}{"external_id": externalID}, nil
}

func (d *Deployer) configureNetwork(ctx context.Context, inst *models.Instance) (string, map[string]interface{}, error) {
	ip, err := d.provisioner.AssignNetwork(ctx, inst.ExternalID)
	if err != nil {
		return "", nil, provisionerError("network configuration", err)
	}
	inst.IPAddress = ip
	return "assigned " + ip, map[string]interface{}{"ip_address": ip}, nil
}

func (d *Deployer) start(_ context.Context, inst *models.Instance) (string, map[string]interface{}, error) {
	now := d.now()
	inst.Status = models.InstanceRunning
	inst.StartedAt = &now
	return "instance running", map[string]interface{}{
		"status":     models.InstanceRunning,
		"started_at": &now,
	}, nil
}

// fail marks the claimed instance failed and releases any machine it got.
func (d *Deployer) fail(ctx context.Context, inst *models.Instance, step, reason string) error {
	changed, err := d.instances.Transition(ctx, inst.ID, []string{models.InstanceProvisioning}, map[string]interface{}{
		"status":          models.InstanceFailed,
		"deployment_step": step,
		"failure_reason":  reason,
	})
	if err != nil {
		return d.release(ctx, inst, step, err)
	}
	if !changed {
		return d.abort(ctx, inst, d.logger.With(zap.String("instance_id", inst.ID.String())))
	}
	inst.Status = models.InstanceFailed
	inst.DeploymentStep = step
	inst.FailureReason = reason

	if err := d.record(ctx, inst, step, models.StepFailed, reason); err != nil {
		return err
	}
	if inst.ExternalID != "" {
		if err := d.provisioner.Deprovision(ctx, inst.ExternalID); err != nil {
			d.logger.Warn("failed to deprovision failed instance",
				zap.String("instance_id", inst.ID.String()),
				zap.String("external_id", inst.ExternalID),
				zap.Error(err),
			)
		}
	}
	_ = d.metrics.RecordCount(ctx, awspkg.MetricDeploymentFailed, map[string]string{"Step": step})
	d.announce(ctx, events.InstanceFailed, inst)
	return nil
}
func (d *Deployer) record(ctx context.Context, inst *models.Instance, step, status, msg string) error {
	return d.instances.AddEvent(ctx, &models.DeploymentEvent{
		InstanceID: inst.ID,
		Step:       step,
		Status:     status,
		Message:    msg,
		CreatedAt:  d.now(),
	})
}

func (d *Deployer) announce(ctx context.Context, eventType string, inst *models.Instance) {
	ev := models.InstanceEvent{
		InstanceID: inst.ID.String(),
		OrderID:    inst.OrderID.String(),
		UserID:     inst.UserID,
		ListingID:  inst.ListingID,
		Status:     inst.Status,
		IPAddress:  inst.IPAddress,
		Reason:     inst.FailureReason,
	}
	if err := d.publisher.Publish(ctx, eventType, ev); err != nil {
		d.logger.Warn("failed to publish instance event", zap.String("event_type", eventType), zap.Error(err))
	}
}
