package routes

import (
	"github.com/xturavaina/nacento-connector/controllers"
	"github.com/xturavaina/nacento-connector/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterGalleryRoutes sets up the gallery and diagnostics routes.
func RegisterGalleryRoutes(r *gin.Engine, gc *controllers.GalleryController, hc *controllers.HealthController) {
	galleries := r.Group("/galleries")
	galleries.Use(middleware.AuthMiddleware())

	galleries.POST("/bulk", gc.ProcessBulk)
	galleries.POST("/bulk/async", gc.SubmitBulkAsync)

	// Diagnostics, gated to operators.
	r.GET("/doctor", middleware.AuthMiddleware(), middleware.AdminOnly(), hc.Doctor)
}
