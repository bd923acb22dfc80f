package services

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/models"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/pricing"
	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
)

var (
	owner    = Actor{UserID: "owner-1", Role: "provider"}
	stranger = Actor{UserID: "user-2", Role: "user"}
	admin    = Actor{UserID: "admin-1", Role: "admin"}
)

func statusOf(err error) int { return apperrors.From(err).Code }

func newListingSvc(repo *memListingRepo, pub *recordingPublisher, presigner Presigner, uploader ImageUploader) ListingService {
	return NewListingService(repo, pub, presigner, uploader, nil, zap.NewNop())
}

func validInput() CreateListingInput {
	return CreateListingInput{
		Name:           "Dev Box",
		Price:          25,
		Specifications: SpecificationsInput{CPUCores: 2, RAMGB: 4, StorageGB: 80, OSType: "Ubuntu 22.04 LTS"},
		Featured:       true,
	}
}

func TestCreate_DefaultsAndOwnership(t *testing.T) {
	repo := newMemListingRepo()
	pub := &recordingPublisher{}
	svc := newListingSvc(repo, pub, nil, nil)

	l, err := svc.Create(context.Background(), owner, validInput())
	require.NoError(t, err)

	assert.Equal(t, models.StatusAvailable, l.Status)
	assert.Equal(t, owner.UserID, l.OwnerID)
	assert.False(t, l.Featured, "only admins can feature")
	assert.NotNil(t, l.Tags)
	assert.Equal(t, []string{events.ListingCreated}, pub.events)

	stored, err := svc.Get(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dev Box", stored.Name)
}

func TestUpdate_RequiresOwnerOrAdmin(t *testing.T) {
	repo := newMemListingRepo()
	svc := newListingSvc(repo, &recordingPublisher{}, nil, nil)
	l, err := svc.Create(context.Background(), owner, validInput())
	require.NoError(t, err)

	sold := models.StatusSold
	_, err = svc.Update(context.Background(), stranger, l.ID, UpdateListingInput{Status: &sold})
	assert.Equal(t, http.StatusForbidden, statusOf(err))

	updated, err := svc.Update(context.Background(), admin, l.ID, UpdateListingInput{Status: &sold})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSold, updated.Status)
	assert.NotNil(t, updated.UpdatedAt)

	bogus := "broken"
	_, err = svc.Update(context.Background(), owner, l.ID, UpdateListingInput{Status: &bogus})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
}

func TestDelete_SoftDeletes(t *testing.T) {
	repo := newMemListingRepo()
	svc := newListingSvc(repo, &recordingPublisher{}, nil, nil)
	l, err := svc.Create(context.Background(), owner, validInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), owner, l.ID))

	_, err = svc.Get(context.Background(), l.ID)
	assert.ErrorIs(t, err, apperrors.ErrListingNotFound)
	assert.NotNil(t, repo.listings[l.ID].DeletedAt)

	err = svc.Delete(context.Background(), owner, l.ID)
	assert.Equal(t, http.StatusNotFound, statusOf(err))
}

func TestCreateFromConfiguration(t *testing.T) {
	repo := newMemListingRepo()
	svc := newListingSvc(repo, &recordingPublisher{}, nil, nil)

	cfg := pricing.DefaultConfiguration()
	cfg.OS = "Windows Server 2019"
	cfg.Region = "eu-west-1"

	l, q, err := svc.CreateFromConfiguration(context.Background(), stranger, "", cfg)
	require.NoError(t, err)

	assert.Equal(t, "Custom VM (2 vCPU, 4 GB)", l.Name)
	assert.Equal(t, "Custom VM with 2 vCPU, 4 GB RAM", l.Description)
	assert.Equal(t, []string{"custom-vm", "windows"}, l.Tags)
	assert.Equal(t, "windows", l.ImageType)
	assert.Equal(t, "Custom", l.Provider)
	assert.Equal(t, []string{"eu-west-1"}, l.Regions)
	assert.Equal(t, stranger.UserID, l.OwnerID)
	assert.Equal(t, models.StatusAvailable, l.Status)
	assert.Equal(t, 60.0, q.Total)
	assert.Equal(t, q.Total, l.Price)
}

func TestCreateFromConfiguration_InvalidField(t *testing.T) {
	svc := newListingSvc(newMemListingRepo(), &recordingPublisher{}, nil, nil)

	cfg := pricing.DefaultConfiguration()
	cfg.RAM = 3
	_, _, err := svc.CreateFromConfiguration(context.Background(), owner, "x", cfg)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
	assert.Contains(t, err.Error(), "ram")
}

func TestPresignImage(t *testing.T) {
	repo := newMemListingRepo()
	svc := newListingSvc(repo, &recordingPublisher{}, fakePresigner{}, nil)
	l, err := svc.Create(context.Background(), owner, validInput())
	require.NoError(t, err)

	_, err = svc.PresignImage(context.Background(), owner, l.ID, "a.gif", "image/gif")
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	up, err := svc.PresignImage(context.Background(), owner, l.ID, "Photo.PNG", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "PUT", up.Method)
	assert.True(t, strings.HasPrefix(up.Key, "listings/"+l.ID+"/"))
	assert.True(t, strings.HasSuffix(up.Key, ".png"))
	assert.Equal(t, "https://cdn.test/"+up.Key, up.ImageURL)
	assert.Equal(t, int64(900), up.ExpiresIn)
}

func TestImageEndpointsUnavailableWithoutBackends(t *testing.T) {
	repo := newMemListingRepo()
	svc := newListingSvc(repo, &recordingPublisher{}, nil, nil)
	l, err := svc.Create(context.Background(), owner, validInput())
	require.NoError(t, err)

	_, err = svc.PresignImage(context.Background(), owner, l.ID, "a.png", "image/png")
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(err))

	_, err = svc.UploadImage(context.Background(), owner, l.ID, strings.NewReader("img"), "a.png")
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(err))
}

func TestUploadImage_StoresURL(t *testing.T) {
	repo := newMemListingRepo()
	up := &fakeUploader{}
	svc := newListingSvc(repo, &recordingPublisher{}, nil, up)
	l, err := svc.Create(context.Background(), owner, validInput())
	require.NoError(t, err)

	updated, err := svc.UploadImage(context.Background(), owner, l.ID, strings.NewReader("img"), "shot.png")
	require.NoError(t, err)
	assert.Equal(t, l.ID+"-shot", up.publicID)
	assert.Equal(t, "https://res.cloudinary.test/"+l.ID+"-shot.png", updated.ImageURL)
}
