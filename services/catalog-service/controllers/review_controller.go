package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/vm-marketplace/services/catalog-service/services"
	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
)

type ReviewController struct {
	service   services.ReviewService
	cache     *CacheManager
	validator *RequestValidator
}

func NewReviewController(service services.ReviewService, cache *CacheManager) *ReviewController {
	return &ReviewController{service: service, cache: cache, validator: NewRequestValidator()}
}

type createReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment" validate:"max=2000"`
}

// ListReviews handles GET /vms/:id/reviews.
func (ctrl *ReviewController) ListReviews(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid VM id"})
		return
	}
	skip, limit, err := ctrl.validator.ParsePage(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reviews, total, err := ctrl.service.List(c.Request.Context(), id, skip, limit)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews, "total": total, "skip": skip, "limit": limit})
}

// CreateReview handles POST /vms/:id/reviews.
func (ctrl *ReviewController) CreateReview(c *gin.Context) {
	id, ok := ParseID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid VM id"})
		return
	}

	var req createReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := ctrl.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	review, err := ctrl.service.Create(c.Request.Context(), actorFrom(c), id, req.Rating, req.Comment)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	ctrl.cache.InvalidateListing(c.Request.Context(), id)
	c.JSON(http.StatusCreated, review)
}
