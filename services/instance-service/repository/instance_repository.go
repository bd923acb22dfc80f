package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yashrajoria/vm-marketplace/services/instance-service/models"
)

type InstanceRepository interface {
	CreateBatch(ctx context.Context, instances []models.Instance) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Instance, error)
	FindByIDAndUserID(ctx context.Context, id uuid.UUID, userID string) (*models.Instance, error)
	// ListByUser returns the user's instances, newest first. An empty status
	// lists every instance except terminated ones.
	ListByUser(ctx context.Context, userID, status string) ([]models.Instance, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Instance, error)
	// Transition applies fields when the instance is in one of from.
	Transition(ctx context.Context, id uuid.UUID, from []string, fields map[string]interface{}) (bool, error)
	// Reclaim applies fields to a provisioning instance last updated before
	// staleBefore.
	Reclaim(ctx context.Context, id uuid.UUID, staleBefore time.Time, fields map[string]interface{}) (bool, error)

	AddEvent(ctx context.Context, event *models.DeploymentEvent) error
	ListEvents(ctx context.Context, instanceID uuid.UUID) ([]models.DeploymentEvent, error)
}

type GormInstanceRepository struct {
	db *gorm.DB
}

func NewGormInstanceRepository(db *gorm.DB) InstanceRepository {
	return &GormInstanceRepository{db: db}
}

func (r *GormInstanceRepository) CreateBatch(ctx context.Context, instances []models.Instance) error {
	return r.db.WithContext(ctx).Create(&instances).Error
}

func (r *GormInstanceRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Instance, error) {
	var inst models.Instance
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&inst).Error; err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *GormInstanceRepository) FindByIDAndUserID(ctx context.Context, id uuid.UUID, userID string) (*models.Instance, error) {
	var inst models.Instance
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&inst).Error; err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *GormInstanceRepository) ListByUser(ctx context.Context, userID, status string) ([]models.Instance, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	} else {
		query = query.Where("status <> ?", models.InstanceTerminated)
	}

	var instances []models.Instance
	if err := query.Order("created_at DESC").Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

func (r *GormInstanceRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Instance, error) {
	var instances []models.Instance
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at ASC").Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

func (r *GormInstanceRepository) Transition(ctx context.Context, id uuid.UUID, from []string, fields map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Instance{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormInstanceRepository) Reclaim(ctx context.Context, id uuid.UUID, staleBefore time.Time, fields map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Instance{}).
		Where("id = ? AND status = ? AND updated_at < ?", id, models.InstanceProvisioning, staleBefore).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormInstanceRepository) AddEvent(ctx context.Context, event *models.DeploymentEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *GormInstanceRepository) ListEvents(ctx context.Context, instanceID uuid.UUID) ([]models.DeploymentEvent, error) {
	var evs []models.DeploymentEvent
	if err := r.db.WithContext(ctx).
		Where("instance_id = ?", instanceID).
		Order("created_at ASC").
		Find(&evs).Error; err != nil {
		return nil, err
	}
	return evs, nil
}
