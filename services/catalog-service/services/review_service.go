package services

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yashrajoria/vm-marketplace/services/catalog-service/models"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/repository"
	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
)

type ReviewService interface {
	List(ctx context.Context, listingID string, skip, limit int) ([]models.Review, int64, error)
	Create(ctx context.Context, actor Actor, listingID string, rating int, comment string) (*models.Review, error)
}

type reviewService struct {
	reviews  repository.ReviewRepository
	listings repository.ListingRepository
	logger   *zap.Logger
}

func NewReviewService(reviews repository.ReviewRepository, listings repository.ListingRepository, logger *zap.Logger) ReviewService {
	return &reviewService{reviews: reviews, listings: listings, logger: logger}
}

func (s *reviewService) List(ctx context.Context, listingID string, skip, limit int) ([]models.Review, int64, error) {
	reviews, total, err := s.reviews.ListByListing(ctx, listingID, skip, limit)
	if err != nil {
		return nil, 0, apperrors.Internal(err)
	}
	return reviews, total, nil
}

// Create stores the review and recomputes the listing's average rating,
// rounded to one decimal.
func (s *reviewService) Create(ctx context.Context, actor Actor, listingID string, rating int, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, apperrors.BadRequest("Rating must be between 1 and 5")
	}
	if _, err := s.listings.FindByID(ctx, listingID); err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, apperrors.ErrListingNotFound
		}
		return nil, apperrors.Internal(err)
	}

	review := &models.Review{
		ID:        uuid.New(),
		ListingID: listingID,
		UserID:    actor.UserID,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicateReview) {
			return nil, apperrors.Conflict("You have already reviewed this VM")
		}
		return nil, apperrors.Internal(err)
	}

	avg, count, err := s.reviews.Stats(ctx, listingID)
	if err != nil {
		s.logger.Warn("failed to compute review stats", zap.String("vm_id", listingID), zap.Error(err))
		return review, nil
	}
	if err := s.listings.UpdateRating(ctx, listingID, math.Round(avg*10)/10, int(count)); err != nil {
		s.logger.Warn("failed to update listing rating", zap.String("vm_id", listingID), zap.Error(err))
	}
	return review, nil
}
