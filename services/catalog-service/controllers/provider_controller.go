package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yashrajoria/vm-marketplace/services/catalog-service/models"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/services"
	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
)

type ProviderController struct {
	service   services.ProviderService
	validator *RequestValidator
}

func NewProviderController(service services.ProviderService) *ProviderController {
	return &ProviderController{service: service, validator: NewRequestValidator()}
}

// Register handles POST /providers/register.
func (ctrl *ProviderController) Register(c *gin.Context) {
	var in services.ProviderApplicationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := ctrl.validator.Struct(in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	app, err := ctrl.service.Register(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

// List handles GET /providers.
func (ctrl *ProviderController) List(c *gin.Context) {
	apps, err := ctrl.service.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps, "total": len(apps)})
}

// Approve handles POST /providers/:id/approve.
func (ctrl *ProviderController) Approve(c *gin.Context) {
	ctrl.review(c, models.ApplicationApproved)
}

// Reject handles POST /providers/:id/reject.
func (ctrl *ProviderController) Reject(c *gin.Context) {
	ctrl.review(c, models.ApplicationRejected)
}

func (ctrl *ProviderController) review(c *gin.Context, decision string) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid application id"})
		return
	}

	var app *models.ProviderApplication
	if decision == models.ApplicationApproved {
		app, err = ctrl.service.Approve(c.Request.Context(), middleware.UserID(c), id)
	} else {
		app, err = ctrl.service.Reject(c.Request.Context(), middleware.UserID(c), id)
	}
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}
