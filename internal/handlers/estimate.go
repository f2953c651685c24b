package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geoscraper/tile-service/internal/tiles"
)

// EstimateRequest is the body of POST /api/tiles/estimate
type EstimateRequest struct {
	Bounds     *BoundsRequest `json:"bounds" binding:"required" jsonschema:"required"`
	ZoomLevels []int          `json:"zoomLevels" binding:"required,min=1,max=23,unique,dive,min=0,max=22" jsonschema:"required,minItems=1,maxItems=23,uniqueItems=true"`
}

// Estimate sizes an acquisition without creating a task
// @Summary Estimate tile count and disk usage
// @Tags tiles
// @Accept json
// @Produce json
// @Param request body EstimateRequest true "Area and zoom levels"
// @Success 200 {object} tiles.Estimate
// @Failure 400 {object} ErrorResponse
// @Router /api/tiles/estimate [post]
func (h *Handler) Estimate(c *gin.Context) {
	var req EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	if fields := req.Bounds.check(); len(fields) > 0 {
		respondFields(c, fields...)
		return
	}
	c.JSON(http.StatusOK, tiles.EstimateFor(req.Bounds.bounds(), req.ZoomLevels, h.config.AvgTileKB))
}
