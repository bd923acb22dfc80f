package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
	"github.com/yashrajoria/vm-marketplace/services/notification-service/models"
)

// LogReader is the read side of services.NotificationService.
type LogReader interface {
	GetLogs(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationLog, int64, error)
}

type NotificationController struct {
	logs   LogReader
	logger *zap.Logger
}

func NewNotificationController(logs LogReader, logger *zap.Logger) *NotificationController {
	return &NotificationController{logs: logs, logger: logger}
}

const (
	maxLimit     = 100
	defaultLimit = 20
)

func parsePaginationParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

// GetMyNotifications lists notifications sent to the authenticated user.
func (nc *NotificationController) GetMyNotifications(c *gin.Context) {
	nc.list(c, middleware.UserID(c))
}

// GetNotificationLogs lists every notification, optionally for one user.
// Admin only.
func (nc *NotificationController) GetNotificationLogs(c *gin.Context) {
	nc.list(c, c.Query("user_id"))
}

func (nc *NotificationController) list(c *gin.Context, userID string) {
	page, limit := parsePaginationParams(c)

	status := c.Query("status")
	switch status {
	case "", models.StatusSent, models.StatusFailed, models.StatusSkipped:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	filter := models.NotificationFilter{
		UserID: userID,
		Status: status,
		Type:   c.Query("type"),
		Page:   page,
		Limit:  limit,
	}
	logs, total, err := nc.logs.GetLogs(c.Request.Context(), filter)
	if err != nil {
		nc.logger.Error("failed to get notification logs",
			zap.Error(err),
			zap.String("requested_by", middleware.UserID(c)),
		)
		apperrors.Respond(c, apperrors.Internal(err))
		return
	}
	if logs == nil {
		logs = []models.NotificationLog{}
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	c.JSON(http.StatusOK, gin.H{
		"notifications": logs,
		"pagination": gin.H{
			"total":       total,
			"page":        page,
			"limit":       limit,
			"total_pages": totalPages,
		},
	})
}
