package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/vm-marketplace/services/cart-service/controllers"
	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
)

func RegisterCartRoutes(r *gin.Engine, controller *controllers.CartController) {
	api := r.Group("/cart")
	api.Use(middleware.AuthMiddleware())
	{
		api.GET("", controller.GetCart)
		api.DELETE("", controller.ClearCart)
		api.POST("/items", controller.AddItem)
		api.PUT("/items/:vm_id", controller.UpdateItem)
		api.DELETE("/items/:vm_id", controller.RemoveItem)
		api.POST("/checkout", controller.Checkout)
	}
}
