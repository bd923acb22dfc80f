package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/vm-marketplace/services/auth-service/controllers"
	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
)

func RegisterAuthRoutes(r *gin.Engine, ctrl *controllers.AuthController) {
	auth := r.Group("/auth")
	{
		auth.POST("/register", ctrl.Register)
		auth.POST("/login", ctrl.Login)
		auth.POST("/token", ctrl.Token)
		auth.POST("/refresh", ctrl.Refresh)
		auth.POST("/logout", ctrl.Logout)
		auth.GET("/me", middleware.AuthMiddleware(), ctrl.Me)
	}
}
