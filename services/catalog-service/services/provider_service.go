package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/models"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/repository"
	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
)

// ProviderApplicationInput is the body of POST /providers/register.
type ProviderApplicationInput struct {
	CompanyName string   `json:"company_name" validate:"required,max=255"`
	Website     string   `json:"website" validate:"omitempty,url"`
	ContactName string   `json:"contact_name" validate:"required,max=255"`
	Email       string   `json:"email" validate:"required,email"`
	Phone       string   `json:"phone" validate:"max=50"`
	Description string   `json:"description"`
	VMTypes     []string `json:"vm_types" validate:"required,min=1"`
	Regions     []string `json:"regions" validate:"required,min=1"`
}

type ProviderService interface {
	Register(ctx context.Context, userID string, in ProviderApplicationInput) (*models.ProviderApplication, error)
	List(ctx context.Context, status string) ([]models.ProviderApplication, error)
	Approve(ctx context.Context, reviewerID string, id uuid.UUID) (*models.ProviderApplication, error)
	Reject(ctx context.Context, reviewerID string, id uuid.UUID) (*models.ProviderApplication, error)
}

type providerService struct {
	repo      repository.ProviderRepository
	publisher events.Publisher
	logger    *zap.Logger
}

func NewProviderService(repo repository.ProviderRepository, publisher events.Publisher, logger *zap.Logger) ProviderService {
	return &providerService{repo: repo, publisher: publisher, logger: logger}
}

func (s *providerService) Register(ctx context.Context, userID string, in ProviderApplicationInput) (*models.ProviderApplication, error) {
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, apperrors.BadRequest("Invalid email address")
	}
	if len(in.VMTypes) == 0 || len(in.Regions) == 0 {
		return nil, apperrors.BadRequest("At least one VM type and one region are required")
	}

	app := &models.ProviderApplication{
		ID:          uuid.New(),
		CompanyName: strings.TrimSpace(in.CompanyName),
		Website:     in.Website,
		ContactName: strings.TrimSpace(in.ContactName),
		Email:       strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:       in.Phone,
		Description: in.Description,
		VMTypes:     datatypes.JSONSlice[string](in.VMTypes),
		Regions:     datatypes.JSONSlice[string](in.Regions),
		Status:      models.ApplicationPending,
		UserID:      userID,
	}
	if err := s.repo.Create(ctx, app); err != nil {
		s.logger.Error("failed to store provider application", zap.Error(err))
		return nil, apperrors.Internal(err)
	}
	return app, nil
}

func (s *providerService) List(ctx context.Context, status string) ([]models.ProviderApplication, error) {
	switch status {
	case "", models.ApplicationPending, models.ApplicationApproved, models.ApplicationRejected:
	default:
		return nil, apperrors.BadRequest("Invalid status filter")
	}
	apps, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return apps, nil
}

func (s *providerService) Approve(ctx context.Context, reviewerID string, id uuid.UUID) (*models.ProviderApplication, error) {
	app, err := s.transition(ctx, reviewerID, id, models.ApplicationApproved)
	if err != nil {
		return nil, err
	}
	if err := s.publisher.Publish(ctx, events.ProviderApproved, map[string]string{
		"application_id": app.ID.String(),
		"user_id":        app.UserID,
		"email":          app.Email,
		"company_name":   app.CompanyName,
	}); err != nil {
		s.logger.Warn("failed to publish provider approval", zap.String("application_id", app.ID.String()), zap.Error(err))
	}
	return app, nil
}

func (s *providerService) Reject(ctx context.Context, reviewerID string, id uuid.UUID) (*models.ProviderApplication, error) {
	return s.transition(ctx, reviewerID, id, models.ApplicationRejected)
}

func (s *providerService) transition(ctx context.Context, reviewerID string, id uuid.UUID, to string) (*models.ProviderApplication, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Application not found")
		}
		return nil, apperrors.Internal(err)
	}
	if app.Status != models.ApplicationPending {
		return nil, apperrors.Conflict("Application is already " + app.Status)
	}

	ok, err := s.repo.TransitionStatus(ctx, id, models.ApplicationPending, to, reviewerID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !ok {
		return nil, apperrors.Conflict("Application is no longer pending")
	}
	app.Status = to
	app.ReviewedBy = reviewerID
	return app, nil
}
