package controllers

import (
	"net/http"

	"github.com/xturavaina/nacento-connector/services"

	"github.com/gin-gonic/gin"
)

// HealthController exposes the doctor diagnostics.
type HealthController struct {
	health *services.HealthService
}

// NewHealthController creates a new HealthController.
func NewHealthController(health *services.HealthService) *HealthController {
	return &HealthController{health: health}
}

// Doctor handles GET /doctor: runs every diagnostic check and returns 503
// when any of them fails.
func (hc *HealthController) Doctor(ctx *gin.Context) {
	report := hc.health.Run(ctx.Request.Context())
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	ctx.JSON(status, report)
}
