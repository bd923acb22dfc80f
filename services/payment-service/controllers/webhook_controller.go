package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/services"
)

const maxWebhookBody = int64(65536)

type WebhookController struct {
	service services.PaymentService
	logger  *zap.Logger
}

func NewWebhookController(service services.PaymentService, logger *zap.Logger) *WebhookController {
	return &WebhookController{service: service, logger: logger}
}

// StripeWebhook verifies the Stripe-Signature header against the raw body.
func (wc *WebhookController) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		wc.logger.Warn("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to read body"})
		return
	}

	if err := wc.service.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
