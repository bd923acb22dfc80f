package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yashrajoria/vm-marketplace/services/catalog-service/models"
)

type GormProviderRepository struct {
	db *gorm.DB
}

func NewProviderRepository(db *gorm.DB) *GormProviderRepository {
	return &GormProviderRepository{db: db}
}

func (r *GormProviderRepository) Create(ctx context.Context, app *models.ProviderApplication) error {
	return r.db.WithContext(ctx).Create(app).Error
}

func (r *GormProviderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ProviderApplication, error) {
	var app models.ProviderApplication
	if err := r.db.WithContext(ctx).First(&app, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *GormProviderRepository) List(ctx context.Context, status string) ([]models.ProviderApplication, error) {
	apps := []models.ProviderApplication{}
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

// TransitionStatus is a compare-and-set on status so concurrent reviews of the
// same application cannot both succeed.
func (r *GormProviderRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to, reviewer string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ProviderApplication{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "reviewed_by": reviewer})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
