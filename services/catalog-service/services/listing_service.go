package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	awspkg "github.com/yashrajoria/vm-marketplace/pkg/aws"
	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/models"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/pricing"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/repository"
	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
)

const (
	PresignExpiry    = 15 * time.Minute
	CustomProvider   = "Custom"
	CustomVMTag      = "custom-vm"
	listingKeyPrefix = "listings/"
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ListingService implements listing CRUD, configurator-created listings and
// listing images.
type ListingService interface {
	List(ctx context.Context, q repository.ListingQuery) ([]*models.Listing, int64, error)
	Get(ctx context.Context, id string) (*models.Listing, error)
	Create(ctx context.Context, actor Actor, in CreateListingInput) (*models.Listing, error)
	Update(ctx context.Context, actor Actor, id string, in UpdateListingInput) (*models.Listing, error)
	Delete(ctx context.Context, actor Actor, id string) error
	Quote(ctx context.Context, cfg pricing.Configuration) (*pricing.Quote, error)
	CreateFromConfiguration(ctx context.Context, actor Actor, name string, cfg pricing.Configuration) (*models.Listing, *pricing.Quote, error)
	PresignImage(ctx context.Context, actor Actor, id, filename, contentType string) (*PresignedUpload, error)
	UploadImage(ctx context.Context, actor Actor, id string, file io.Reader, filename string) (*models.Listing, error)
}

type listingService struct {
	repo      repository.ListingRepository
	publisher events.Publisher
	presigner Presigner
	uploader  ImageUploader
	metrics   *awspkg.MetricsClient
	logger    *zap.Logger
	now       func() time.Time
}

// NewListingService wires the listing use cases. presigner and uploader may be
// nil, in which case the matching image endpoint reports 503.
func NewListingService(
	repo repository.ListingRepository,
	publisher events.Publisher,
	presigner Presigner,
	uploader ImageUploader,
	metrics *awspkg.MetricsClient,
	logger *zap.Logger,
) ListingService {
	return &listingService{
		repo:      repo,
		publisher: publisher,
		presigner: presigner,
		uploader:  uploader,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *listingService) List(ctx context.Context, q repository.ListingQuery) ([]*models.Listing, int64, error) {
	listings, total, err := s.repo.Find(ctx, q)
	if err != nil {
		s.logger.Error("failed to list listings", zap.Error(err))
		return nil, 0, apperrors.Internal(err)
	}
	return listings, total, nil
}

func (s *listingService) Get(ctx context.Context, id string) (*models.Listing, error) {
	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeError(err)
	}
	return listing, nil
}

func (s *listingService) Create(ctx context.Context, actor Actor, in CreateListingInput) (*models.Listing, error) {
	status := in.Status
	if status == "" {
		status = models.StatusAvailable
	}
	listing := &models.Listing{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(in.Name),
		Description:     in.Description,
		LongDescription: in.LongDescription,
		Specifications: models.Specifications{
			CPUCores:  in.Specifications.CPUCores,
			RAMGB:     in.Specifications.RAMGB,
			StorageGB: in.Specifications.StorageGB,
			OSType:    in.Specifications.OSType,
		},
		Price:     in.Price,
		ImageType: in.ImageType,
		Status:    status,
		Tags:      nonNil(in.Tags),
		Features:  nonNil(in.Features),
		Regions:   nonNil(in.Regions),
		Provider:  in.Provider,
		OwnerID:   actor.UserID,
		Featured:  in.Featured && actor.IsAdmin(),
		CreatedAt: s.now(),
	}
	if err := s.insert(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *listingService) insert(ctx context.Context, listing *models.Listing) error {
	if err := s.repo.Create(ctx, listing); err != nil {
		s.logger.Error("failed to create listing", zap.Error(err))
		return apperrors.Internal(err)
	}
	if err := s.publisher.Publish(ctx, events.ListingCreated, map[string]interface{}{
		"vm_id":    listing.ID,
		"name":     listing.Name,
		"price":    listing.Price,
		"owner_id": listing.OwnerID,
	}); err != nil {
		s.logger.Warn("failed to publish listing event", zap.String("vm_id", listing.ID), zap.Error(err))
	}
	_ = s.metrics.RecordCount(ctx, awspkg.MetricListingsCreated, nil)
	return nil
}

func (s *listingService) Update(ctx context.Context, actor Actor, id string, in UpdateListingInput) (*models.Listing, error) {
	listing, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		listing.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		listing.Description = *in.Description
	}
	if in.LongDescription != nil {
		listing.LongDescription = *in.LongDescription
	}
	if in.Specifications != nil {
		listing.Specifications = models.Specifications{
			CPUCores:  in.Specifications.CPUCores,
			RAMGB:     in.Specifications.RAMGB,
			StorageGB: in.Specifications.StorageGB,
			OSType:    in.Specifications.OSType,
		}
	}
	if in.Price != nil {
		listing.Price = *in.Price
	}
	if in.ImageType != nil {
		listing.ImageType = *in.ImageType
	}
	if in.Status != nil {
		if !models.ValidStatus(*in.Status) {
			return nil, apperrors.BadRequest("Invalid status")
		}
		listing.Status = *in.Status
	}
	if in.Tags != nil {
		listing.Tags = nonNil(*in.Tags)
	}
	if in.Features != nil {
		listing.Features = nonNil(*in.Features)
	}
	if in.Regions != nil {
		listing.Regions = nonNil(*in.Regions)
	}
	if in.Provider != nil {
		listing.Provider = *in.Provider
	}
	if in.Featured != nil {
		if !actor.IsAdmin() {
			return nil, apperrors.Forbidden("Only admins can feature listings")
		}
		listing.Featured = *in.Featured
	}

	now := s.now()
	listing.UpdatedAt = &now
	if err := s.repo.Update(ctx, listing); err != nil {
		return nil, s.storeError(err)
	}
	return listing, nil
}

func (s *listingService) Delete(ctx context.Context, actor Actor, id string) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id, s.now()); err != nil {
		return s.storeError(err)
	}
	return nil
}

func (s *listingService) Quote(ctx context.Context, cfg pricing.Configuration) (*pricing.Quote, error) {
	q, err := pricing.Calculate(cfg)
	if err != nil {
		return nil, pricingError(err)
	}
	_ = s.metrics.RecordCount(ctx, awspkg.MetricConfiguratorQuotes, nil)
	return q, nil
}

func (s *listingService) CreateFromConfiguration(ctx context.Context, actor Actor, name string, cfg pricing.Configuration) (*models.Listing, *pricing.Quote, error) {
	q, err := pricing.Calculate(cfg)
	if err != nil {
		return nil, nil, pricingError(err)
	}
	os, _ := pricing.LookupOS(cfg.OS)

	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Custom VM (%d vCPU, %d GB)", cfg.CPU, cfg.RAM)
	}

	features := []string{
		fmt.Sprintf("%s storage", cfg.Storage.Type),
		fmt.Sprintf("%d Gbps %s network", cfg.Network.Bandwidth, cfg.Network.Type),
	}
	features = append(features, cfg.Addons...)

	listing := &models.Listing{
		ID:          uuid.NewString(),
		Name:        name,
		Description: fmt.Sprintf("Custom VM with %d vCPU, %d GB RAM", cfg.CPU, cfg.RAM),
		Specifications: models.Specifications{
			CPUCores:  cfg.CPU,
			RAMGB:     cfg.RAM,
			StorageGB: cfg.Storage.Size,
			OSType:    os.Name,
		},
		Price:     q.Total,
		ImageType: os.Type,
		Status:    models.StatusAvailable,
		Tags:      []string{CustomVMTag, os.Type},
		Features:  features,
		Regions:   []string{cfg.Region},
		Provider:  CustomProvider,
		OwnerID:   actor.UserID,
		CreatedAt: s.now(),
	}
	if err := s.insert(ctx, listing); err != nil {
		return nil, nil, err
	}
	return listing, q, nil
}

func (s *listingService) PresignImage(ctx context.Context, actor Actor, id, filename, contentType string) (*PresignedUpload, error) {
	if s.presigner == nil {
		return nil, apperrors.Unavailable("Image uploads are not configured")
	}
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return nil, apperrors.BadRequest("Invalid content type. Allowed: image/jpeg, image/png, image/webp")
	}
	if _, err := s.owned(ctx, actor, id); err != nil {
		return nil, err
	}
	if e := strings.ToLower(filepath.Ext(filename)); e != "" {
		ext = e
	}

	key := listingKeyPrefix + id + "/" + uuid.NewString() + ext
	url, headers, err := s.presigner.PresignPut(ctx, key, contentType, PresignExpiry)
	if err != nil {
		s.logger.Error("failed to presign upload", zap.String("vm_id", id), zap.Error(err))
		return nil, apperrors.Internal(err)
	}
	return &PresignedUpload{
		UploadURL: url,
		Method:    "PUT",
		Headers:   headers,
		Key:       key,
		ImageURL:  s.presigner.ObjectURL(key),
		ExpiresIn: int64(PresignExpiry.Seconds()),
	}, nil
}

func (s *listingService) UploadImage(ctx context.Context, actor Actor, id string, file io.Reader, filename string) (*models.Listing, error) {
	if s.uploader == nil {
		return nil, apperrors.Unavailable("Image uploads are not configured")
	}
	listing, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	publicID := id + "-" + strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	url, err := s.uploader.Upload(ctx, file, publicID)
	if err != nil {
		s.logger.Error("image upload failed", zap.String("vm_id", id), zap.Error(err))
		return nil, apperrors.New(http.StatusBadGateway, "Image upload failed", err)
	}

	now := s.now()
	listing.ImageURL = url
	listing.UpdatedAt = &now
	if err := s.repo.Update(ctx, listing); err != nil {
		return nil, s.storeError(err)
	}
	return listing, nil
}

// owned loads a listing and checks the caller may modify it.
func (s *listingService) owned(ctx context.Context, actor Actor, id string) (*models.Listing, error) {
	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeError(err)
	}
	if !actor.canModify(listing) {
		return nil, apperrors.Forbidden("You do not own this VM")
	}
	return listing, nil
}

func (s *listingService) storeError(err error) error {
	if errors.Is(err, repository.ErrListingNotFound) {
		return apperrors.ErrListingNotFound
	}
	s.logger.Error("listing store error", zap.Error(err))
	return apperrors.Internal(err)
}

func pricingError(err error) error {
	var fieldErr *pricing.FieldError
	if errors.As(err, &fieldErr) {
		return apperrors.BadRequest(fieldErr.Error())
	}
	return apperrors.Internal(err)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
