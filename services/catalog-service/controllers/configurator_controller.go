package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/vm-marketplace/services/catalog-service/pricing"
	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
)

type createCustomVMRequest struct {
	Name          string                 `json:"name"`
	Configuration *pricing.Configuration `json:"configuration"`
}

// ConfiguratorOptions handles GET /configurator/options.
func (ctrl *ListingController) ConfiguratorOptions(c *gin.Context) {
	c.JSON(http.StatusOK, pricing.Options())
}

// Quote handles POST /configurator/quote.
func (ctrl *ListingController) Quote(c *gin.Context) {
	var cfg pricing.Configuration
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid configuration"})
		return
	}

	q, err := ctrl.service.Quote(c.Request.Context(), cfg)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// CreateCustomVM handles POST /configurator/vms.
func (ctrl *ListingController) CreateCustomVM(c *gin.Context) {
	var req createCustomVMRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Configuration == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "configuration is required"})
		return
	}

	listing, quote, err := ctrl.service.CreateFromConfiguration(c.Request.Context(), actorFrom(c), req.Name, *req.Configuration)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	ctrl.cache.InvalidateListing(c.Request.Context(), "")
	c.JSON(http.StatusCreated, gin.H{"vm": listing, "quote": quote})
}
