package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/controllers"
)

func RegisterRoutes(r *gin.Engine, oc *controllers.OrderController, ic *controllers.InstanceController) {
	orderRoutes := r.Group("/orders")
	orderRoutes.Use(middleware.AuthMiddleware())
	orderRoutes.GET("", oc.GetOrders)
	orderRoutes.GET("/:id", oc.GetOrderByID)

	instanceRoutes := r.Group("/instances")
	instanceRoutes.Use(middleware.AuthMiddleware())
	{
		instanceRoutes.GET("", ic.ListInstances)
		instanceRoutes.GET("/:id", ic.GetInstance)
		instanceRoutes.GET("/:id/deployment", ic.GetDeployment)
		instanceRoutes.POST("/:id/start", ic.StartInstance())
		instanceRoutes.POST("/:id/stop", ic.StopInstance())
		instanceRoutes.POST("/:id/restart", ic.RestartInstance())
		instanceRoutes.DELETE("/:id", ic.DeleteInstance)
	}
}
