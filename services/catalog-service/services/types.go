package services

import (
	"context"
	"io"
	"time"

	"github.com/yashrajoria/vm-marketplace/services/catalog-service/models"
)

// Actor is the authenticated caller as injected by the gateway.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsAdmin() bool { return a.Role == "admin" }

func (a Actor) canModify(l *models.Listing) bool {
	return a.IsAdmin() || (a.UserID != "" && a.UserID == l.OwnerID)
}

type SpecificationsInput struct {
	CPUCores  int    `json:"cpu_cores" validate:"required,min=1"`
	RAMGB     int    `json:"ram_gb" validate:"required,min=1"`
	StorageGB int    `json:"storage_gb" validate:"required,min=1"`
	OSType    string `json:"os_type" validate:"required"`
}

// CreateListingInput is the body of POST /vms.
type CreateListingInput struct {
	Name            string              `json:"name" validate:"required,max=200"`
	Description     string              `json:"description" validate:"max=2000"`
	LongDescription string              `json:"long_description" validate:"max=10000"`
	Specifications  SpecificationsInput `json:"specifications" validate:"required"`
	Price           float64             `json:"price" validate:"required,gt=0"`
	ImageType       string              `json:"image_type"`
	Status          string              `json:"status" validate:"omitempty,oneof=available sold reserved maintenance"`
	Tags            []string            `json:"tags" validate:"dive,max=50"`
	Features        []string            `json:"features"`
	Regions         []string            `json:"regions"`
	Provider        string              `json:"provider"`
	Featured        bool                `json:"featured"`
}

// UpdateListingInput is the body of PUT /vms/:id; nil fields are left unchanged.
type UpdateListingInput struct {
	Name            *string              `json:"name" validate:"omitempty,min=1,max=200"`
	Description     *string              `json:"description" validate:"omitempty,max=2000"`
	LongDescription *string              `json:"long_description" validate:"omitempty,max=10000"`
	Specifications  *SpecificationsInput `json:"specifications" validate:"omitempty"`
	Price           *float64             `json:"price" validate:"omitempty,gt=0"`
	ImageType       *string              `json:"image_type"`
	Status          *string              `json:"status" validate:"omitempty,oneof=available sold reserved maintenance"`
	Tags            *[]string            `json:"tags"`
	Features        *[]string            `json:"features"`
	Regions         *[]string            `json:"regions"`
	Provider        *string              `json:"provider"`
	Featured        *bool                `json:"featured"`
}

// PresignedUpload tells the client where to PUT an image.
type PresignedUpload struct {
	UploadURL string            `json:"upload_url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	Key       string            `json:"key"`
	ImageURL  string            `json:"image_url"`
	ExpiresIn int64             `json:"expires_in"`
}

// Presigner issues presigned object uploads; *aws.ObjectPresigner implements it.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, map[string]string, error)
	ObjectURL(key string) string
}

// ImageUploader stores an image and returns its public URL.
type ImageUploader interface {
	Upload(ctx context.Context, file io.Reader, publicID string) (string, error)
}
