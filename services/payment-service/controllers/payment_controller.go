package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/services"
)

type PaymentController struct {
	service services.PaymentService
	logger  *zap.Logger
}

func NewPaymentController(service services.PaymentService, logger *zap.Logger) *PaymentController {
	return &PaymentController{service: service, logger: logger}
}

func actor(c *gin.Context) services.Actor {
	return services.Actor{
		UserID: middleware.UserID(c),
		Email:  c.GetString(middleware.ContextEmail),
	}
}

// CreateIntent opens a PaymentIntent for a listing
func (pc *PaymentController) CreateIntent(c *gin.Context) {
	var in services.IntentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vm_id is required"})
		return
	}

	res, err := pc.service.CreateIntent(c.Request.Context(), actor(c), in)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CreateCheckoutSession opens a hosted Stripe Checkout page
func (pc *PaymentController) CreateCheckoutSession(c *gin.Context) {
	var in services.CheckoutInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vm_id is required"})
		return
	}

	res, err := pc.service.CreateCheckoutSession(c.Request.Context(), actor(c), in)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (pc *PaymentController) Confirm(c *gin.Context) {
	var req struct {
		PaymentIntent string `json:"payment_intent"`
		ClientSecret  string `json:"client_secret"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing payment information"})
		return
	}

	res, err := pc.service.Confirm(c.Request.Context(), actor(c), req.PaymentIntent, req.ClientSecret)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (pc *PaymentController) Status(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}

	res, err := pc.service.Status(c.Request.Context(), actor(c), id)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (pc *PaymentController) ListMethods(c *gin.Context) {
	methods, err := pc.service.ListMethods(c.Request.Context(), actor(c))
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, methods)
}

func (pc *PaymentController) AddMethod(c *gin.Context) {
	var req struct {
		PaymentMethodID string `json:"payment_method_id"`
		SetDefault      bool   `json:"set_default"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment method ID is required"})
		return
	}

	method, err := pc.service.AddMethod(c.Request.Context(), actor(c), req.PaymentMethodID, req.SetDefault)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, method)
}

// RemoveMethod detaches the card named by the id query parameter
func (pc *PaymentController) RemoveMethod(c *gin.Context) {
	if err := pc.service.RemoveMethod(c.Request.Context(), actor(c), c.Query("id")); err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (pc *PaymentController) SetDefaultMethod(c *gin.Context) {
	if err := pc.service.SetDefaultMethod(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
