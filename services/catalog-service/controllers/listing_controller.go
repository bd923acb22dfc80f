package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yashrajoria/vm-marketplace/services/catalog-service/services"
	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
)

type ListingController struct {
	service   services.ListingService
	cache     *CacheManager
	validator *RequestValidator
	logger    *zap.Logger
}

func NewListingController(service services.ListingService, cache *CacheManager, logger *zap.Logger) *ListingController {
	return &ListingController{
		service:   service,
		cache:     cache,
		validator: NewRequestValidator(),
		logger:    logger,
	}
}

func actorFrom(c *gin.Context) services.Actor {
	return services.Actor{UserID: middleware.UserID(c), Role: middleware.Role(c)}
}

// ListVMs handles GET /vms.
func (ctrl *ListingController) ListVMs(c *gin.Context) {
	q, err := ctrl.validator.ParseListingQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	version, verr := ctrl.cache.ListVersion(ctx)
	if verr == nil {
		if page, ok := ctrl.cache.GetListingPage(ctx, version, q); ok {
			c.JSON(http.StatusOK, page)
			return
		}
	}

	listings, total, err := ctrl.service.List(ctx, q)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	page := &ListingPage{VMs: listings, Total: total, Skip: q.Skip, Limit: q.Limit}
	if verr == nil {
		ctrl.cache.SetListingPageAsync(version, q, page)
	}
	c.JSON(http.StatusOK, page)
}

// GetVM handles GET /vms/:id.
func (ctrl *ListingController) GetVM(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid VM id"})
		return
	}

	ctx := c.Request.Context()
	version, verr := ctrl.cache.ListingVersion(ctx, id)
	if verr == nil {
		if listing, ok := ctrl.cache.GetListing(ctx, version, id); ok {
			c.JSON(http.StatusOK, listing)
			return
		}
	}

	listing, err := ctrl.service.Get(ctx, id)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	if verr == nil {
		ctrl.cache.SetListingAsync(version, listing)
	}
	c.JSON(http.StatusOK, listing)
}

// CreateVM handles POST /vms.
func (ctrl *ListingController) CreateVM(c *gin.Context) {
	var in services.CreateListingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := ctrl.validator.Struct(in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	listing, err := ctrl.service.Create(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	ctrl.cache.InvalidateListing(c.Request.Context(), "")
	c.JSON(http.StatusCreated, listing)
}

// UpdateVM handles PUT /vms/:id.
func (ctrl *ListingController) UpdateVM(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid VM id"})
		return
	}

	var in services.UpdateListingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := ctrl.validator.Struct(in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	listing, err := ctrl.service.Update(c.Request.Context(), actorFrom(c), id, in)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	ctrl.cache.InvalidateListing(c.Request.Context(), id)
	c.JSON(http.StatusOK, listing)
}

// DeleteVM handles DELETE /vms/:id.
func (ctrl *ListingController) DeleteVM(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid VM id"})
		return
	}

	if err := ctrl.service.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		apperrors.Respond(c, err)
		return
	}
	ctrl.cache.InvalidateListing(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"message": "VM deleted"})
}

type presignRequest struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"required"`
}

// PresignImage handles POST /vms/:id/image/presign.
func (ctrl *ListingController) PresignImage(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid VM id"})
		return
	}

	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := ctrl.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	upload, err := ctrl.service.PresignImage(c.Request.Context(), actorFrom(c), id, req.Filename, strings.ToLower(req.ContentType))
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, upload)
}

// UploadImage handles POST /vms/:id/image (multipart field "image").
func (ctrl *ListingController) UploadImage(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid VM id"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize)
	header, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image file is required"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read image"})
		return
	}
	defer file.Close()

	listing, err := ctrl.service.UploadImage(c.Request.Context(), actorFrom(c), id, file, header.Filename)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	ctrl.cache.InvalidateListing(c.Request.Context(), id)
	c.JSON(http.StatusOK, listing)
}
