package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/auth-service/models"
	"github.com/yashrajoria/vm-marketplace/services/auth-service/repository"
	"github.com/yashrajoria/vm-marketplace/services/common/auth"
	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) CreateRefreshToken(ctx context.Context, rt *models.RefreshToken) error {
	return m.Called(ctx, rt).Error(0)
}

func (m *MockUserRepository) GetRefreshToken(ctx context.Context, tokenID string) (*models.RefreshToken, error) {
	args := m.Called(ctx, tokenID)
	if rt := args.Get(0); rt != nil {
		return rt.(*models.RefreshToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) RevokeRefreshToken(ctx context.Context, tokenID string) error {
	return m.Called(ctx, tokenID).Error(0)
}

func (m *MockUserRepository) PromoteToProvider(ctx context.Context, userID uuid.UUID, email string) (int64, error) {
	args := m.Called(ctx, userID, email)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) Transaction(ctx context.Context, fn func(repo repository.UserRepository) error) error {
	return fn(m)
}

type recordingPublisher struct {
	types []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ any) error {
	p.types = append(p.types, eventType)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func newTestService(t *testing.T, repo *MockUserRepository, pub events.Publisher) (AuthService, *auth.TokenManager) {
	t.Helper()
	tokens, err := auth.NewTokenManager("test-secret", 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	return NewAuthService(repo, tokens, pub, nil, zap.NewNop()), tokens
}

func statusOf(err error) int {
	return apperrors.From(err).Code
}

func TestRegister_Success(t *testing.T) {
	repo := new(MockUserRepository)
	pub := &recordingPublisher{}
	svc, _ := newTestService(t, repo, pub)

	repo.On("FindByEmail", mock.Anything, "new@example.com").Return(nil, gorm.ErrRecordNotFound)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.User")).Return(nil)
	repo.On("CreateRefreshToken", mock.Anything, mock.AnythingOfType("*models.RefreshToken")).Return(nil)

	result, err := svc.Register(context.Background(), RegisterInput{
		Email:    "  New@Example.com ",
		Password: "Str0ngPass",
		Name:     "New User",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", result.User.Email)
	assert.Equal(t, models.RoleUser, result.User.Role)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, int64(900), result.ExpiresIn)
	assert.Equal(t, []string{events.UserRegistered}, pub.types)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(result.User.Password), []byte("Str0ngPass")))
	repo.AssertExpectations(t)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := new(MockUserRepository)
	svc, _ := newTestService(t, repo, events.NopPublisher{})

	repo.On("FindByEmail", mock.Anything, "dup@example.com").Return(&models.User{Email: "dup@example.com"}, nil)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "dup@example.com", Password: "Str0ngPass"})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, statusOf(err))
	assert.Equal(t, "Email already exists", apperrors.From(err).Message)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_ConcurrentDuplicateIsConflict(t *testing.T) {
	repo := new(MockUserRepository)
	pub := &recordingPublisher{}
	svc, _ := newTestService(t, repo, pub)

	// Another registration inserts the email between the lookup and the insert.
	repo.On("FindByEmail", mock.Anything, "race@example.com").Return(nil, gorm.ErrRecordNotFound)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.User")).Return(gorm.ErrDuplicatedKey)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "race@example.com", Password: "Str0ngPass"})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, statusOf(err))
	assert.Equal(t, "Email already exists", apperrors.From(err).Message)
	assert.Empty(t, pub.types)
	repo.AssertNotCalled(t, "CreateRefreshToken", mock.Anything, mock.Anything)
}

func TestRegister_WeakPassword(t *testing.T) {
	repo := new(MockUserRepository)
	svc, _ := newTestService(t, repo, events.NopPublisher{})

	_, err := svc.Register(context.Background(), RegisterInput{Email: "a@example.com", Password: "short"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
	assert.Contains(t, err.Error(), "at least 8 characters")
}

func TestRegister_InvalidEmail(t *testing.T) {
	svc, _ := newTestService(t, new(MockUserRepository), events.NopPublisher{})

	_, err := svc.Register(context.Background(), RegisterInput{Email: "not-an-email", Password: "Str0ngPass"})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := new(MockUserRepository)
	svc, _ := newTestService(t, repo, events.NopPublisher{})

	hash, _ := bcrypt.GenerateFromPassword([]byte("Str0ngPass"), bcrypt.MinCost)
	repo.On("FindByEmail", mock.Anything, "user@example.com").Return(&models.User{
		ID: uuid.New(), Email: "user@example.com", Password: string(hash), Role: models.RoleUser,
	}, nil)

	_, err := svc.Login(context.Background(), "user@example.com", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestLogin_UnknownUser(t *testing.T) {
	repo := new(MockUserRepository)
	svc, _ := newTestService(t, repo, events.NopPublisher{})

	repo.On("FindByEmail", mock.Anything, "ghost@example.com").Return(nil, gorm.ErrRecordNotFound)

	_, err := svc.Login(context.Background(), "ghost@example.com", "whatever")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestRefresh_RotatesToken(t *testing.T) {
	repo := new(MockUserRepository)
	svc, tokens := newTestService(t, repo, events.NopPublisher{})

	user := &models.User{ID: uuid.New(), Email: "user@example.com", Role: models.RoleUser}
	old, err := tokens.IssueRefresh(user.ID.String(), user.Email, user.Role)
	require.NoError(t, err)

	repo.On("GetRefreshToken", mock.Anything, old.ID).Return(&models.RefreshToken{
		TokenID: old.ID, UserID: user.ID, ExpiresAt: old.ExpiresAt,
	}, nil)
	repo.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	repo.On("RevokeRefreshToken", mock.Anything, old.ID).Return(nil)
	repo.On("CreateRefreshToken", mock.Anything, mock.AnythingOfType("*models.RefreshToken")).Return(nil)

	result, err := svc.Refresh(context.Background(), old.Token)
	require.NoError(t, err)
	assert.NotEqual(t, old.Token, result.RefreshToken)
	repo.AssertExpectations(t)
}

func TestRefresh_RejectsRevokedToken(t *testing.T) {
	repo := new(MockUserRepository)
	svc, tokens := newTestService(t, repo, events.NopPublisher{})

	userID := uuid.New()
	old, err := tokens.IssueRefresh(userID.String(), "user@example.com", models.RoleUser)
	require.NoError(t, err)

	repo.On("GetRefreshToken", mock.Anything, old.ID).Return(&models.RefreshToken{
		TokenID: old.ID, UserID: userID, Revoked: true, ExpiresAt: old.ExpiresAt,
	}, nil)

	_, err = svc.Refresh(context.Background(), old.Token)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	svc, tokens := newTestService(t, new(MockUserRepository), events.NopPublisher{})

	access, err := tokens.IssueAccess(uuid.NewString(), "user@example.com", models.RoleUser)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), access.Token)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestLogout_IgnoresGarbage(t *testing.T) {
	svc, _ := newTestService(t, new(MockUserRepository), events.NopPublisher{})
	assert.NoError(t, svc.Logout(context.Background(), "garbage"))
	assert.NoError(t, svc.Logout(context.Background(), ""))
}

func TestPasswordValidator(t *testing.T) {
	v := NewPasswordValidator()
	assert.Empty(t, v.Validate("Str0ngPass"))
	assert.NotEmpty(t, v.Validate("alllowercase1"))
	assert.NotEmpty(t, v.Validate("NoDigitsHere"))
}
