package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	tilehttp "github.com/geoscraper/tile-service/internal/http"
	"github.com/geoscraper/tile-service/internal/providers"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string `json:"status" jsonschema:"required"`
	Database   string `json:"database" jsonschema:"required"`
	ActiveRuns int    `json:"activeRuns"`
}

// Health handles the health check endpoint
// @Summary Service health
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:     "ok",
		Database:   "connected",
		ActiveRuns: h.jobs.Active(),
	}

	if err := h.machine.Store().Ping(c.Request.Context()); err != nil {
		response.Status = "degraded"
		response.Database = "disconnected"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ProxyHealth probes the outbound tile proxy
// @Summary Proxy health
// @Description Sends one HEAD request through the configured proxy without retries
// @Tags health
// @Produce json
// @Success 200 {object} tilehttp.ProxyStatus
// @Failure 503 {object} tilehttp.ProxyStatus
// @Router /api/health/proxy [get]
func (h *Handler) ProxyHealth(c *gin.Context) {
	status := tilehttp.CheckProxy(c.Request.Context(), h.config.ProxyURL, h.config.ProxyProbeURL)
	if !status.OK() {
		h.logger.Warn().Str("proxy", status.Proxy).Str("error", status.Error).Msg("Proxy probe failed")
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ListProvidersResponse lists the available map types
type ListProvidersResponse struct {
	Providers []providers.Provider `json:"providers" jsonschema:"required"`
}

// ListProviders returns the supported map types
// @Summary List tile providers
// @Tags tiles
// @Produce json
// @Success 200 {object} ListProvidersResponse
// @Router /api/providers [get]
func (h *Handler) ListProviders(c *gin.Context) {
	c.JSON(http.StatusOK, ListProvidersResponse{Providers: h.providers.List()})
}
