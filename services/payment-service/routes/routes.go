package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/controllers"
)

func RegisterPaymentRoutes(r *gin.Engine, pc *controllers.PaymentController, wc *controllers.WebhookController) {
	// Stripe webhook (no auth, signature verified)
	r.POST("/payments/webhook", wc.StripeWebhook)

	payments := r.Group("/payments")
	payments.Use(middleware.AuthMiddleware())
	{
		payments.POST("/intent", pc.CreateIntent)
		payments.POST("/checkout-session", pc.CreateCheckoutSession)
		payments.POST("/confirm", pc.Confirm)
		payments.GET("/status/:id", pc.Status)

		payments.GET("/methods", pc.ListMethods)
		payments.POST("/methods", pc.AddMethod)
		payments.DELETE("/methods", pc.RemoveMethod)
		payments.POST("/methods/:id/default", pc.SetDefaultMethod)
	}
}
