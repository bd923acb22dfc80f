package services

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yashrajoria/vm-marketplace/services/catalog-service/models"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/repository"
)

type memListingRepo struct {
	mu       sync.Mutex
	listings map[string]*models.Listing
}

func newMemListingRepo(ls ...*models.Listing) *memListingRepo {
	r := &memListingRepo{listings: map[string]*models.Listing{}}
	for _, l := range ls {
		r.listings[l.ID] = l
	}
	return r
}

func (r *memListingRepo) FindByID(_ context.Context, id string) (*models.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok || l.DeletedAt != nil {
		return nil, repository.ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *memListingRepo) Find(_ context.Context, q repository.ListingQuery) ([]*models.Listing, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Listing
	for _, l := range r.listings {
		if q.Filter.Matches(l) {
			out = append(out, l)
		}
	}
	repository.SortListings(out, q.Sort)
	return repository.Page(out, q.Skip, q.Limit), int64(len(out)), nil
}

func (r *memListingRepo) Create(_ context.Context, l *models.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[l.ID] = l
	return nil
}

func (r *memListingRepo) CreateMany(ctx context.Context, ls []*models.Listing) error {
	for _, l := range ls {
		_ = r.Create(ctx, l)
	}
	return nil
}

func (r *memListingRepo) Update(_ context.Context, l *models.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listings[l.ID]; !ok {
		return repository.ErrListingNotFound
	}
	r.listings[l.ID] = l
	return nil
}

func (r *memListingRepo) SoftDelete(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok || l.DeletedAt != nil {
		return repository.ErrListingNotFound
	}
	l.DeletedAt = &at
	return nil
}

func (r *memListingRepo) UpdateRating(_ context.Context, id string, rating float64, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return repository.ErrListingNotFound
	}
	l.Rating, l.ReviewCount = rating, count
	return nil
}

func (r *memListingRepo) EnsureIndexes(context.Context) error { return nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	data   []any
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	p.data = append(p.data, data)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fakePresigner struct{}

func (fakePresigner) PresignPut(_ context.Context, key, _ string, _ time.Duration) (string, map[string]string, error) {
	return "https://upload.test/" + key + "?sig=1", map[string]string{"Content-Type": "image/png"}, nil
}

func (fakePresigner) ObjectURL(key string) string { return "https://cdn.test/" + key }

type fakeUploader struct{ publicID string }

func (f *fakeUploader) Upload(_ context.Context, _ io.Reader, publicID string) (string, error) {
	f.publicID = publicID
	return "https://res.cloudinary.test/" + publicID + ".png", nil
}

type memReviewRepo struct {
	reviews []models.Review
}

func (r *memReviewRepo) Create(_ context.Context, review *models.Review) error {
	for _, existing := range r.reviews {
		if existing.ListingID == review.ListingID && existing.UserID == review.UserID {
			return repository.ErrDuplicateReview
		}
	}
	r.reviews = append(r.reviews, *review)
	return nil
}

func (r *memReviewRepo) ListByListing(_ context.Context, listingID string, skip, limit int) ([]models.Review, int64, error) {
	var out []models.Review
	for _, rv := range r.reviews {
		if rv.ListingID == listingID {
			out = append(out, rv)
		}
	}
	total := int64(len(out))
	if skip >= len(out) {
		return []models.Review{}, total, nil
	}
	end := min(skip+limit, len(out))
	return out[skip:end], total, nil
}

func (r *memReviewRepo) Stats(_ context.Context, listingID string) (float64, int64, error) {
	var sum, n int
	for _, rv := range r.reviews {
		if rv.ListingID == listingID {
			sum += rv.Rating
			n++
		}
	}
	if n == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(n), int64(n), nil
}

type memProviderRepo struct {
	apps map[uuid.UUID]*models.ProviderApplication
}

func newMemProviderRepo() *memProviderRepo {
	return &memProviderRepo{apps: map[uuid.UUID]*models.ProviderApplication{}}
}

func (r *memProviderRepo) Create(_ context.Context, app *models.ProviderApplication) error {
	cp := *app
	r.apps[app.ID] = &cp
	return nil
}

func (r *memProviderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.ProviderApplication, error) {
	app, ok := r.apps[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *app
	return &cp, nil
}

func (r *memProviderRepo) List(_ context.Context, status string) ([]models.ProviderApplication, error) {
	var out []models.ProviderApplication
	for _, app := range r.apps {
		if status == "" || app.Status == status {
			out = append(out, *app)
		}
	}
	return out, nil
}

func (r *memProviderRepo) TransitionStatus(_ context.Context, id uuid.UUID, from, to, reviewer string) (bool, error) {
	app, ok := r.apps[id]
	if !ok || app.Status != from {
		return false, nil
	}
	app.Status, app.ReviewedBy = to, reviewer
	return true, nil
}
