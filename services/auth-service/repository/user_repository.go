package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yashrajoria/vm-marketplace/services/auth-service/models"
)

// UserRepository persists users and their refresh tokens.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, user *models.User) error

	CreateRefreshToken(ctx context.Context, rt *models.RefreshToken) error
	GetRefreshToken(ctx context.Context, tokenID string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenID string) error

	// PromoteToProvider upgrades a plain user, matched by id or else by email,
	// to the provider role and reports how many rows changed.
	PromoteToProvider(ctx context.Context, userID uuid.UUID, email string) (int64, error)

	// Transaction runs fn against a repository bound to a single transaction.
	Transaction(ctx context.Context, fn func(repo UserRepository) error) error
}

type GormUserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *GormUserRepository) CreateRefreshToken(ctx context.Context, rt *models.RefreshToken) error {
	return r.db.WithContext(ctx).Create(rt).Error
}

func (r *GormUserRepository) GetRefreshToken(ctx context.Context, tokenID string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	if err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

// RevokeRefreshToken marks the token revoked. Revoking an unknown or already
// revoked token returns gorm.ErrRecordNotFound so rotation can detect replays.
func (r *GormUserRepository) RevokeRefreshToken(ctx context.Context, tokenID string) error {
	res := r.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_id = ? AND revoked = ?", tokenID, false).
		Update("revoked", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormUserRepository) PromoteToProvider(ctx context.Context, userID uuid.UUID, email string) (int64, error) {
	q := r.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", models.RoleUser)
	if userID != uuid.Nil {
		q = q.Where("id = ?", userID)
	} else {
		q = q.Where("email = ?", email)
	}
	res := q.Update("role", models.RoleProvider)
	return res.RowsAffected, res.Error
}

func (r *GormUserRepository) Transaction(ctx context.Context, fn func(repo UserRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormUserRepository{db: tx})
	})
}

// PurgeExpiredRefreshTokens deletes tokens that expired before cutoff.
func (r *GormUserRepository) PurgeExpiredRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", cutoff).Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}
