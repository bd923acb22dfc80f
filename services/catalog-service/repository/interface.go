package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/yashrajoria/vm-marketplace/services/catalog-service/models"
)

var (
	ErrListingNotFound = errors.New("listing not found")
	ErrDuplicateReview = errors.New("review already exists")
)

const (
	SortFeatured  = "featured"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortNewest    = "newest"
)

// ListingFilter narrows a listing query. Zero values mean "no constraint".
type ListingFilter struct {
	MinPrice *float64
	MaxPrice *float64
	OS       string
	Provider string
	MinCPU   int
	MinRAM   int
	Status   string
	Search   string
	OwnerID  string
}

// ListingQuery is a filtered, sorted page of listings.
type ListingQuery struct {
	Filter ListingFilter
	Sort   string
	Skip   int
	Limit  int
}

// ListingRepository stores listings. Implementations never return soft-deleted
// listings and report missing ones as ErrListingNotFound.
type ListingRepository interface {
	FindByID(ctx context.Context, id string) (*models.Listing, error)
	Find(ctx context.Context, q ListingQuery) ([]*models.Listing, int64, error)
	Create(ctx context.Context, listing *models.Listing) error
	CreateMany(ctx context.Context, listings []*models.Listing) error
	Update(ctx context.Context, listing *models.Listing) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	UpdateRating(ctx context.Context, id string, rating float64, count int) error
	EnsureIndexes(ctx context.Context) error
}

// ReviewRepository stores listing reviews.
type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	ListByListing(ctx context.Context, listingID string, skip, limit int) ([]models.Review, int64, error)
	Stats(ctx context.Context, listingID string) (avg float64, count int64, err error)
}

// ProviderRepository stores provider applications.
type ProviderRepository interface {
	Create(ctx context.Context, app *models.ProviderApplication) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ProviderApplication, error)
	List(ctx context.Context, status string) ([]models.ProviderApplication, error)
	// TransitionStatus moves an application out of "from" and reports false
	// when it was not in that status.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to, reviewer string) (bool, error)
}
