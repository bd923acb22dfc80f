package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/models"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/services"
)

var validStatusFilter = map[string]bool{
	"":                          true,
	models.InstancePending:      true,
	models.InstanceProvisioning: true,
	models.InstanceRunning:      true,
	models.InstanceStopped:      true,
	models.InstanceFailed:       true,
	models.InstanceTerminated:   true,
}

type InstanceController struct {
	service services.InstanceService
}

func NewInstanceController(service services.InstanceService) *InstanceController {
	return &InstanceController{service: service}
}

func instanceID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Instance not found"})
		return uuid.Nil, false
	}
	return id, true
}

// ListInstances returns the caller's dashboard, optionally filtered by status
func (ic *InstanceController) ListInstances(c *gin.Context) {
	status := c.Query("status")
	if !validStatusFilter[status] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
		return
	}

	views, err := ic.service.List(c.Request.Context(), middleware.UserID(c), status)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (ic *InstanceController) GetInstance(c *gin.Context) {
	id, ok := instanceID(c)
	if !ok {
		return
	}
	view, err := ic.service.Get(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (ic *InstanceController) GetDeployment(c *gin.Context) {
	id, ok := instanceID(c)
	if !ok {
		return
	}
	view, err := ic.service.Deployment(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type powerFunc func(ctx context.Context, userID string, id uuid.UUID) (*services.InstanceView, error)

func (ic *InstanceController) power(fn powerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := instanceID(c)
		if !ok {
			return
		}
		view, err := fn(c.Request.Context(), middleware.UserID(c), id)
		if err != nil {
			apperrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func (ic *InstanceController) StartInstance() gin.HandlerFunc   { return ic.power(ic.service.Start) }
func (ic *InstanceController) StopInstance() gin.HandlerFunc    { return ic.power(ic.service.Stop) }
func (ic *InstanceController) RestartInstance() gin.HandlerFunc { return ic.power(ic.service.Restart) }

func (ic *InstanceController) DeleteInstance(c *gin.Context) {
	id, ok := instanceID(c)
	if !ok {
		return
	}
	if err := ic.service.Delete(c.Request.Context(), middleware.UserID(c), id); err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Instance terminated"})
}
