package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geoscraper/tile-service/internal/tiles"
	"github.com/geoscraper/tile-service/internal/types"
)

// Task defaults applied when the request omits them
const (
	DefaultConcurrency   = 5
	DefaultDownloadDelay = 0.2
)

// LatLngRequest is a point inside the Web Mercator latitude band
type LatLngRequest struct {
	Lat float64 `json:"lat" binding:"min=-85.0511,max=85.0511" jsonschema:"minimum=-85.0511,maximum=85.0511"`
	Lng float64 `json:"lng" binding:"min=-180,max=180" jsonschema:"minimum=-180,maximum=180"`
}

// BoundsRequest is a southwest/northeast bounding box
type BoundsRequest struct {
	SW LatLngRequest `json:"sw" binding:"required" jsonschema:"required"`
	NE LatLngRequest `json:"ne" binding:"required" jsonschema:"required"`
}

func (b *BoundsRequest) bounds() types.Bounds {
	return types.Bounds{
		SW: types.LatLng{Lat: b.SW.Lat, Lng: b.SW.Lng},
		NE: types.LatLng{Lat: b.NE.Lat, Lng: b.NE.Lng},
	}
}

// check reports the cross-field constraint the tags cannot express
func (b *BoundsRequest) check() []FieldError {
	if b.SW.Lat > b.NE.Lat {
		return []FieldError{{Field: "bounds.sw.lat", Message: "must not exceed bounds.ne.lat"}}
	}
	return nil
}

// CreateTaskRequest is the body of POST /api/tasks
type CreateTaskRequest struct {
	Name          string         `json:"name" binding:"required,min=3,max=255" jsonschema:"required,minLength=3,maxLength=255"`
	Description   string         `json:"description" binding:"max=2000" jsonschema:"maxLength=2000"`
	MapType       string         `json:"mapType" binding:"required,oneof=google-satellite osm-standard osm-topo" jsonschema:"required,enum=google-satellite,enum=osm-standard,enum=osm-topo"`
	Bounds        *BoundsRequest `json:"bounds" binding:"required" jsonschema:"required"`
	ZoomLevels    []int          `json:"zoomLevels" binding:"required,min=1,max=23,unique,dive,min=0,max=22" jsonschema:"required,minItems=1,maxItems=23,uniqueItems=true"`
	Concurrency   *int           `json:"concurrency" binding:"omitempty,min=1,max=20" jsonschema:"minimum=1,maximum=20,default=5"`
	DownloadDelay *float64       `json:"downloadDelay" binding:"omitempty,min=0,max=5" jsonschema:"minimum=0,maximum=5,default=0.2"`
	Start         bool           `json:"start"`
}

// UpdateTaskRequest is the body of PATCH /api/tasks/:id
type UpdateTaskRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=3,max=255" jsonschema:"minLength=3,maxLength=255"`
	Description *string `json:"description" binding:"omitempty,max=2000" jsonschema:"maxLength=2000"`
}

// ListTasksResponse lists every task
type ListTasksResponse struct {
	Tasks []*types.Task `json:"tasks" jsonschema:"required"`
	Total int           `json:"total" jsonschema:"required"`
}

// Ledger page sizes for GET /api/tasks/:id/tiles
const (
	DefaultTilesLimit = 1000
	MaxTilesLimit     = 10000
)

// ListTaskTilesQuery is the query of GET /api/tasks/:id/tiles
type ListTaskTilesQuery struct {
	Kind   string `form:"kind" json:"kind" binding:"omitempty,oneof=missing non-existent"`
	Offset int    `form:"offset" json:"offset" binding:"min=0"`
	Limit  int    `form:"limit" json:"limit" binding:"omitempty,min=1,max=10000"`
}

// TaskTilesResponse is one page of a task's ledger rows of one kind
type TaskTilesResponse struct {
	TaskID int64             `json:"taskId" jsonschema:"required"`
	Kind   types.TileKind    `json:"kind" jsonschema:"required,enum=missing,enum=non-existent"`
	Tiles  []types.TileCoord `json:"tiles" jsonschema:"required"`
	// Count is the number of tiles in this page
	Count int `json:"count" jsonschema:"required"`
	// Total is the number of ledger rows of kind
	Total  int `json:"total" jsonschema:"required"`
	Offset int `json:"offset" jsonschema:"required"`
	Limit  int `json:"limit" jsonschema:"required"`
}

// ListTasks returns every task, newest first
// @Summary List tasks
// @Tags tasks
// @Produce json
// @Success 200 {object} ListTasksResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/tasks [get]
func (h *Handler) ListTasks(c *gin.Context) {
	list, err := h.machine.Store().ListTasks(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if list == nil {
		list = []*types.Task{}
	}
	c.JSON(http.StatusOK, ListTasksResponse{Tasks: list, Total: len(list)})
}

// CreateTask creates a queued task, optionally starting it
// @Summary Create a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body CreateTaskRequest true "Task definition"
// @Success 201 {object} types.Task
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/tasks [post]
func (h *Handler) CreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	if fields := req.Bounds.check(); len(fields) > 0 {
		respondFields(c, fields...)
		return
	}
	if n := tiles.Count(req.Bounds.bounds(), req.ZoomLevels); n > h.config.MaxTaskTiles {
		respondFields(c, FieldError{
			Field:   "zoomLevels",
			Message: fmt.Sprintf("area covers %d tiles; at most %d are allowed per task", n, h.config.MaxTaskTiles),
		})
		return
	}

	nt := types.NewTask{
		Name:          req.Name,
		Description:   req.Description,
		MapType:       req.MapType,
		Bounds:        req.Bounds.bounds(),
		ZoomLevels:    req.ZoomLevels,
		Concurrency:   DefaultConcurrency,
		DownloadDelay: DefaultDownloadDelay,
	}
	if req.Concurrency != nil {
		nt.Concurrency = *req.Concurrency
	}
	if req.DownloadDelay != nil {
		nt.DownloadDelay = *req.DownloadDelay
	}

	ctx := c.Request.Context()
	task, err := h.machine.Store().CreateTask(ctx, nt)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.machine.Publish(ctx, task)

	h.logger.Info().
		Int64("task_id", task.ID).
		Str("map_type", task.MapType).
		Int("expected_tiles", tiles.Count(task.Bounds, task.ZoomLevels)).
		Msg("Task created")

	if req.Start {
		if _, err := h.jobs.StartAcquisition(ctx, task.ID); err != nil {
			h.respondError(c, err)
			return
		}
		if task, err = h.machine.Get(ctx, task.ID); err != nil {
			h.respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusCreated, task)
}

// GetTask returns one task
// @Summary Get a task
// @Tags tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} types.Task
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/tasks/{id} [get]
func (h *Handler) GetTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	task, err := h.machine.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// UpdateTask edits a task's name and description
// @Summary Update a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param request body UpdateTaskRequest true "Fields to change"
// @Success 200 {object} types.Task
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/tasks/{id} [patch]
func (h *Handler) UpdateTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	patch := types.TaskPatch{Name: req.Name, Description: req.Description}
	if patch.IsEmpty() {
		respondFields(c, FieldError{Field: "body", Message: "must change name or description"})
		return
	}

	task, err := h.machine.Update(c.Request.Context(), id, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// DeleteTask deletes a task and its ledger, cancelling a run that has not
// started yet. Cached tiles are kept.
// @Summary Delete a task
// @Tags tasks
// @Param id path int true "Task ID"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/tasks/{id} [delete]
func (h *Handler) DeleteTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	if err := h.jobs.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	h.logger.Info().Int64("task_id", id).Msg("Task deleted")
	c.Status(http.StatusNoContent)
}

// ListTaskTiles lists one page of a task's ledger rows of one kind
// @Summary List ledgered tiles
// @Tags tasks
// @Produce json
// @Param id path int true "Task ID"
// @Param kind query string false "Ledger kind" Enums(missing, non-existent) default(missing)
// @Param offset query int false "Rows to skip" minimum(0) default(0)
// @Param limit query int false "Page size" minimum(1) maximum(10000) default(1000)
// @Success 200 {object} TaskTilesResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/tasks/{id}/tiles [get]
func (h *Handler) ListTaskTiles(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var q ListTaskTilesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondValidation(c, err)
		return
	}
	kind := types.TileMissing
	if q.Kind != "" {
		kind = types.TileKind(q.Kind)
	}
	if q.Limit == 0 {
		q.Limit = DefaultTilesLimit
	}

	ctx := c.Request.Context()
	if _, err := h.machine.Get(ctx, id); err != nil {
		h.respondError(c, err)
		return
	}

	total, err := h.ledger.CountTiles(ctx, id, kind)
	if err != nil {
		h.respondError(c, err)
		return
	}
	coords, err := h.ledger.PageTiles(ctx, id, kind, q.Offset, q.Limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if coords == nil {
		coords = []types.TileCoord{}
	}
	c.JSON(http.StatusOK, TaskTilesResponse{
		TaskID: id,
		Kind:   kind,
		Tiles:  coords,
		Count:  len(coords),
		Total:  total,
		Offset: q.Offset,
		Limit:  q.Limit,
	})
}
