// Package handlers exposes the tile service over HTTP
package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/geoscraper/tile-service/internal/broadcast"
	tilehttp "github.com/geoscraper/tile-service/internal/http"
	"github.com/geoscraper/tile-service/internal/jobs"
	"github.com/geoscraper/tile-service/internal/providers"
	"github.com/geoscraper/tile-service/internal/tasks"
	"github.com/geoscraper/tile-service/internal/tiles"
)

// Config holds handler settings
type Config struct {
	// ProxyURL is the outbound tile proxy; empty disables the proxy probe
	ProxyURL string
	// ProxyProbeURL overrides the probe target
	ProxyProbeURL string
	// AvgTileKB is the assumed tile size for estimates
	AvgTileKB float64
	// MaxTaskTiles caps the tiles a created task may cover
	MaxTaskTiles int
}

// Handler serves the HTTP API
type Handler struct {
	machine   *tasks.Machine
	ledger    tasks.Ledger
	jobs      *jobs.Manager
	hub       *broadcast.Hub
	providers *providers.Registry
	config    Config
	logger    zerolog.Logger
}

// New creates a handler
func New(
	machine *tasks.Machine,
	ledger tasks.Ledger,
	manager *jobs.Manager,
	hub *broadcast.Hub,
	registry *providers.Registry,
	cfg Config,
	logger zerolog.Logger,
) *Handler {
	registerTagNames()
	if cfg.AvgTileKB <= 0 {
		cfg.AvgTileKB = tiles.DefaultAvgTileKB
	}
	if cfg.MaxTaskTiles <= 0 {
		cfg.MaxTaskTiles = tiles.DefaultMaxTaskTiles
	}
	if cfg.ProxyProbeURL == "" {
		cfg.ProxyProbeURL = tilehttp.ProxyProbeURL
	}
	return &Handler{
		machine:   machine,
		ledger:    ledger,
		jobs:      manager,
		hub:       hub,
		providers: registry,
		config:    cfg,
		logger:    logger.With().Str("component", "handlers").Logger(),
	}
}

// Register mounts the API routes on r
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	{
		api.GET("/health/proxy", h.ProxyHealth)
		api.GET("/providers", h.ListProviders)
		api.POST("/tiles/estimate", h.Estimate)

		api.GET("/tasks", h.ListTasks)
		api.POST("/tasks", h.CreateTask)
		api.GET("/tasks/events", h.Events)
		api.GET("/tasks/:id", h.GetTask)
		api.PATCH("/tasks/:id", h.UpdateTask)
		api.DELETE("/tasks/:id", h.DeleteTask)
		api.GET("/tasks/:id/tiles", h.ListTaskTiles)

		api.POST("/tasks/:id/start", h.StartTask)
		api.POST("/tasks/:id/retry", h.RetryTask)
		api.POST("/tasks/:id/verify", h.VerifyTask)
		api.POST("/tasks/:id/redownload", h.RedownloadTask)
		api.POST("/tasks/:id/mark-non-existent", h.MarkNonExistent)
	}
}

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Error  string       `json:"error" jsonschema:"required"`
	Fields []FieldError `json:"fields,omitempty"`
}

// FieldError is one field-level validation complaint
type FieldError struct {
	Field   string `json:"field" jsonschema:"required"`
	Message string `json:"message" jsonschema:"required"`
}

// ConflictResponse reports an operation the task's state forbids
type ConflictResponse struct {
	Error              string `json:"error" jsonschema:"required"`
	Op                 string `json:"op" jsonschema:"required"`
	Status             string `json:"status" jsonschema:"required"`
	VerificationStatus string `json:"verificationStatus" jsonschema:"required"`
	MissingTiles       int    `json:"missingTiles"`
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var conflict *tasks.ConflictError
	switch {
	case errors.Is(err, tasks.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "task not found"})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, ConflictResponse{
			Error:              conflict.Error(),
			Op:                 string(conflict.Op),
			Status:             string(conflict.Status),
			VerificationStatus: string(conflict.VerificationStatus),
			MissingTiles:       conflict.MissingTiles,
		})
	case errors.Is(err, jobs.ErrShuttingDown):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	default:
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func respondValidation(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fieldPath(fe), Message: fieldMessage(fe)})
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: fields})
}

func respondFields(c *gin.Context, fields ...FieldError) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: fields})
}

func taskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondFields(c, FieldError{Field: "id", Message: "must be a positive integer"})
		return 0, false
	}
	return id, true
}

// fieldPath drops the top-level struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + unit(fe)
	case "max":
		return "must be at most " + fe.Param() + unit(fe)
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "unique":
		return "must not contain duplicates"
	}
	return "failed " + fe.Tag() + " validation"
}

func unit(fe validator.FieldError) string {
	switch fe.Kind() {
	case reflect.String:
		return " characters long"
	case reflect.Slice:
		return " items long"
	}
	return ""
}

var tagNamesOnce sync.Once

// registerTagNames reports validation errors under JSON field names
func registerTagNames() {
	tagNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}
