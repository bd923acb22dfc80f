package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yashrajoria/vm-marketplace/services/cart-service/services"
	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type CartController struct {
	service services.CartService
	logger  *zap.Logger
}

func NewCartController(service services.CartService, logger *zap.Logger) *CartController {
	return &CartController{service: service, logger: logger}
}

// GetCart returns the current cart for a user
func (cc *CartController) GetCart(c *gin.Context) {
	cart, err := cc.service.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// AddItem adds a listing to the cart, merging with an existing line
func (cc *CartController) AddItem(c *gin.Context) {
	var in services.AddItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vm_id is required"})
		return
	}

	cart, err := cc.service.AddItem(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// UpdateItem sets a line's quantity; zero removes it
func (cc *CartController) UpdateItem(c *gin.Context) {
	var in services.UpdateItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity is required"})
		return
	}

	cart, err := cc.service.UpdateItem(c.Request.Context(), middleware.UserID(c), c.Param("vm_id"), in)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// RemoveItem removes a specific item from the cart
func (cc *CartController) RemoveItem(c *gin.Context) {
	cart, err := cc.service.RemoveItem(c.Request.Context(), middleware.UserID(c), c.Param("vm_id"), c.Query("region"))
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// ClearCart removes all items from the cart
func (cc *CartController) ClearCart(c *gin.Context) {
	if err := cc.service.Clear(c.Request.Context(), middleware.UserID(c)); err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}

// Checkout publishes the cart and clears it
func (cc *CartController) Checkout(c *gin.Context) {
	key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if len(key) > 255 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key is too long"})
		return
	}

	res, err := cc.service.Checkout(c.Request.Context(), middleware.UserID(c), key)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	if res.Replayed {
		c.Header("Idempotent-Replayed", "true")
	}
	c.JSON(http.StatusAccepted, res)
}
