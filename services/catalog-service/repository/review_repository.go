package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yashrajoria/vm-marketplace/services/catalog-service/models"
)

type GormReviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) *GormReviewRepository {
	return &GormReviewRepository{db: db}
}

func (r *GormReviewRepository) Create(ctx context.Context, review *models.Review) error {
	err := r.db.WithContext(ctx).Create(review).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateReview
	}
	return err
}

func (r *GormReviewRepository) ListByListing(ctx context.Context, listingID string, skip, limit int) ([]models.Review, int64, error) {
	var total int64
	q := r.db.WithContext(ctx).Model(&models.Review{}).Where("listing_id = ?", listingID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}

	reviews := []models.Review{}
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("created_at DESC").
		Offset(skip).
		Limit(limit).
		Find(&reviews).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, total, nil
}

type reviewStats struct {
	Avg   float64
	Count int64
}

func (r *GormReviewRepository) Stats(ctx context.Context, listingID string) (float64, int64, error) {
	var stats reviewStats
	err := r.db.WithContext(ctx).Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS count").
		Where("listing_id = ?", listingID).
		Scan(&stats).Error
	if err != nil {
		return 0, 0, fmt.Errorf("review stats: %w", err)
	}
	return stats.Avg, stats.Count, nil
}
