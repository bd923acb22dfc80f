package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/models"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/services"
)

// OrderReader is the read side of services.OrderService.
type OrderReader interface {
	GetUserOrders(ctx context.Context, userID string, page, limit int) (*services.OrderResponse, error)
	GetOrderByID(ctx context.Context, userID string, orderID uuid.UUID) (*models.Order, error)
}

type OrderController struct {
	orders OrderReader
}

func NewOrderController(orders OrderReader) *OrderController {
	return &OrderController{orders: orders}
}

// GetOrders returns paginated orders for the authenticated user
func (oc *OrderController) GetOrders(c *gin.Context) {
	page, limit := parsePaginationParams(c)

	result, err := oc.orders.GetUserOrders(c.Request.Context(), middleware.UserID(c), page, limit)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetOrderByID returns a specific order for the authenticated user
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID format"})
		return
	}

	order, err := oc.orders.GetOrderByID(c.Request.Context(), middleware.UserID(c), orderID)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// parsePaginationParams extracts and validates pagination parameters
func parsePaginationParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
