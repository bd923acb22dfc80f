package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/vm-marketplace/services/catalog-service/controllers"
	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
)

func RegisterRoutes(
	r *gin.Engine,
	listings *controllers.ListingController,
	reviews *controllers.ReviewController,
	providers *controllers.ProviderController,
) {
	authed := middleware.AuthMiddleware()
	sellers := middleware.RequireRole(middleware.RoleProvider, middleware.RoleAdmin)
	admins := middleware.RequireRole(middleware.RoleAdmin)

	vms := r.Group("/vms")
	{
		vms.GET("", listings.ListVMs)
		vms.GET("/:id", listings.GetVM)
		vms.POST("", authed, sellers, listings.CreateVM)
		vms.PUT("/:id", authed, listings.UpdateVM)
		vms.DELETE("/:id", authed, listings.DeleteVM)
		vms.POST("/:id/image/presign", authed, listings.PresignImage)
		vms.POST("/:id/image", authed, listings.UploadImage)

		vms.GET("/:id/reviews", reviews.ListReviews)
		vms.POST("/:id/reviews", authed, reviews.CreateReview)
	}

	configurator := r.Group("/configurator")
	{
		configurator.GET("/options", listings.ConfiguratorOptions)
		configurator.POST("/quote", listings.Quote)
		configurator.POST("/vms", authed, listings.CreateCustomVM)
	}

	prov := r.Group("/providers")
	{
		prov.POST("/register", providers.Register)
		prov.GET("", authed, admins, providers.List)
		prov.POST("/:id/approve", authed, admins, providers.Approve)
		prov.POST("/:id/reject", authed, admins, providers.Reject)
	}
}
