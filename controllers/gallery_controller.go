package controllers

import (
	"net/http"

	"github.com/xturavaina/nacento-connector/models"
	"github.com/xturavaina/nacento-connector/services"

	"github.com/gin-gonic/gin"
)

// GalleryController handles HTTP requests for gallery reconciliation.
type GalleryController struct {
	bulk  services.BulkProcessor
	async services.AsyncPlanner
}

// NewGalleryController creates a new GalleryController.
func NewGalleryController(bulk services.BulkProcessor, async services.AsyncPlanner) *GalleryController {
	return &GalleryController{bulk: bulk, async: async}
}

// ProcessBulk handles POST /galleries/bulk. Partial failures never surface as
// an HTTP error; they are reported inside the result.
func (gc *GalleryController) ProcessBulk(ctx *gin.Context) {
	var req models.BulkRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	result, err := gc.bulk.Process(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Bulk processing aborted", "details": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// SubmitBulkAsync handles POST /galleries/bulk/async.
func (gc *GalleryController) SubmitBulkAsync(ctx *gin.Context) {
	var req models.BulkRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	resp, err := gc.async.Submit(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "Could not schedule batch", "details": err.Error()})
		return
	}

	ctx.JSON(http.StatusAccepted, resp)
}
