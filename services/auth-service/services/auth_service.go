package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	awspkg "github.com/yashrajoria/vm-marketplace/pkg/aws"
	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/auth-service/models"
	"github.com/yashrajoria/vm-marketplace/services/auth-service/repository"
	"github.com/yashrajoria/vm-marketplace/services/common/auth"
	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
)

// RegisterInput is the payload for creating an account.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// AuthResult is returned by every operation that issues tokens.
type AuthResult struct {
	User             *models.User
	AccessToken      string
	RefreshToken     string
	ExpiresIn        int64
	RefreshExpiresAt time.Time
}

// AuthService defines the authentication use cases.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

type authServiceImpl struct {
	repo      repository.UserRepository
	tokens    *auth.TokenManager
	passwords *PasswordValidator
	publisher events.Publisher
	metrics   *awspkg.MetricsClient
	logger    *zap.Logger
}

func NewAuthService(
	repo repository.UserRepository,
	tokens *auth.TokenManager,
	publisher events.Publisher,
	metrics *awspkg.MetricsClient,
	logger *zap.Logger,
) AuthService {
	return &authServiceImpl{
		repo:      repo,
		tokens:    tokens,
		passwords: NewPasswordValidator(),
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authServiceImpl) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.BadRequest("Invalid email address")
	}
	if failed := s.passwords.Validate(in.Password); len(failed) > 0 {
		return nil, apperrors.BadRequest(strings.Join(failed, "; "))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	user := &models.User{
		ID:       uuid.New(),
		Email:    email,
		Name:     strings.TrimSpace(in.Name),
		Password: string(hashed),
		Role:     models.RoleUser,
	}

	err = s.repo.Transaction(ctx, func(tx repository.UserRepository) error {
		if _, err := tx.FindByEmail(ctx, email); err == nil {
			return apperrors.Conflict("Email already exists")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(ctx, user)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent registration took the email after the lookup.
		return nil, apperrors.Conflict("Email already exists")
	}
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		s.logger.Error("failed to create account", zap.Error(err))
		return nil, apperrors.Internal(err)
	}

	s.publish(ctx, events.UserRegistered, map[string]string{
		"user_id": user.ID.String(),
		"email":   user.Email,
		"name":    user.Name,
	})
	_ = s.metrics.RecordCount(ctx, awspkg.MetricUsersRegistered, nil)

	return s.issue(ctx, user)
}

func (s *authServiceImpl) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.Internal(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	return s.issue(ctx, user)
}

// Refresh rotates a refresh token: the presented jti is revoked and a new
// pair is issued. A replayed (already revoked) token is rejected.
func (s *authServiceImpl) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.tokens.Parse(refreshToken, auth.TypeRefresh)
	if err != nil || claims.ID == "" {
		return nil, apperrors.ErrInvalidToken
	}

	stored, err := s.repo.GetRefreshToken(ctx, claims.ID)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	if stored.Revoked || time.Now().After(stored.ExpiresAt) || stored.UserID.String() != claims.Subject {
		return nil, apperrors.ErrInvalidToken
	}

	user, err := s.repo.FindByID(ctx, stored.UserID)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}

	if err := s.repo.RevokeRefreshToken(ctx, claims.ID); err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	return s.issue(ctx, user)
}

func (s *authServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.tokens.Parse(refreshToken, auth.TypeRefresh)
	if err != nil || claims.ID == "" {
		return nil
	}
	if err := s.repo.RevokeRefreshToken(ctx, claims.ID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn("failed to revoke refresh token", zap.Error(err))
	}
	return nil
}

func (s *authServiceImpl) GetUser(ctx context.Context, userID string) (*models.User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperrors.NotFound("User not found")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.Internal(err)
	}
	return user, nil
}

func (s *authServiceImpl) issue(ctx context.Context, user *models.User) (*AuthResult, error) {
	uid := user.ID.String()
	access, err := s.tokens.IssueAccess(uid, user.Email, user.Role)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	refresh, err := s.tokens.IssueRefresh(uid, user.Email, user.Role)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if err := s.repo.CreateRefreshToken(ctx, &models.RefreshToken{
		ID:        uuid.New(),
		TokenID:   refresh.ID,
		UserID:    user.ID,
		ExpiresAt: refresh.ExpiresAt,
	}); err != nil {
		return nil, apperrors.Internal(err)
	}

	return &AuthResult{
		User:             user,
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		ExpiresIn:        int64(s.tokens.AccessTTL().Seconds()),
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

func (s *authServiceImpl) publish(ctx context.Context, eventType string, data any) {
	if err := s.publisher.Publish(ctx, eventType, data); err != nil {
		s.logger.Warn("failed to publish event", zap.String("event_type", eventType), zap.Error(err))
	}
}
