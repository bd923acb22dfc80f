package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/vm-marketplace/services/bff-service/controllers"
	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
)

func RegisterRoutes(r *gin.Engine, ctrl *controllers.BFFController) {
	bff := r.Group("/bff")
	{
		// Public pages; signed-in callers get their personal sections too.
		bff.GET("/marketplace", ctrl.Marketplace)
		bff.GET("/vms/:id", ctrl.VMDetail)

		bff.GET("/dashboard", middleware.AuthMiddleware(), ctrl.Dashboard)
	}

	// Everything else goes straight to the gateway.
	r.NoRoute(ctrl.Proxy)
}
