package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
	"github.com/yashrajoria/vm-marketplace/services/notification-service/controllers"
)

func RegisterRoutes(router *gin.Engine, controller *controllers.NotificationController) {
	notifications := router.Group("/notifications", middleware.AuthMiddleware())
	{
		notifications.GET("", controller.GetMyNotifications)
		notifications.GET("/log", middleware.RequireRole(middleware.RoleAdmin), controller.GetNotificationLogs)
	}
}
