package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geoscraper/tile-service/internal/jobs"
	"github.com/geoscraper/tile-service/internal/types"
)

// MaxTilesToMark bounds one mark-non-existent request
const MaxTilesToMark = 100000

// ActionResponse acknowledges a task action
type ActionResponse struct {
	Message string      `json:"message" jsonschema:"required"`
	RunID   string      `json:"runId,omitempty"`
	Task    *types.Task `json:"task,omitempty"`
}

// MarkNonExistentRequest is the body of POST /api/tasks/:id/mark-non-existent
type MarkNonExistentRequest struct {
	TilesToMark []types.TileCoord `json:"tilesToMark" binding:"required,max=100000,dive" jsonschema:"required,maxItems=100000"`
}

type launcher func(*jobs.Manager, *gin.Context, int64) (*jobs.Run, error)

func (h *Handler) launch(c *gin.Context, verb string, start launcher) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	run, err := start(h.jobs, c, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	task, err := h.machine.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, ActionResponse{
		Message: fmt.Sprintf("Task %d %s has been started.", id, verb),
		RunID:   run.ID.String(),
		Task:    task,
	})
}

// StartTask starts the acquisition of a queued task
// @Summary Start acquisition
// @Tags actions
// @Produce json
// @Param id path int true "Task ID"
// @Success 202 {object} ActionResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ConflictResponse
// @Router /api/tasks/{id}/start [post]
func (h *Handler) StartTask(c *gin.Context) {
	h.launch(c, "acquisition", func(m *jobs.Manager, c *gin.Context, id int64) (*jobs.Run, error) {
		return m.StartAcquisition(c.Request.Context(), id)
	})
}

// VerifyTask starts the verification of a completed task
// @Summary Start verification
// @Tags actions
// @Produce json
// @Param id path int true "Task ID"
// @Success 202 {object} ActionResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ConflictResponse
// @Router /api/tasks/{id}/verify [post]
func (h *Handler) VerifyTask(c *gin.Context) {
	h.launch(c, "verification", func(m *jobs.Manager, c *gin.Context, id int64) (*jobs.Run, error) {
		return m.StartVerification(c.Request.Context(), id)
	})
}

// RedownloadTask starts the redownload of a task's missing tiles
// @Summary Start redownload
// @Tags actions
// @Produce json
// @Param id path int true "Task ID"
// @Success 202 {object} ActionResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ConflictResponse
// @Router /api/tasks/{id}/redownload [post]
func (h *Handler) RedownloadTask(c *gin.Context) {
	h.launch(c, "redownload", func(m *jobs.Manager, c *gin.Context, id int64) (*jobs.Run, error) {
		return m.StartRedownload(c.Request.Context(), id)
	})
}

// RetryTask resets a failed task to queued
// @Summary Retry a failed task
// @Tags actions
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} ActionResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ConflictResponse
// @Router /api/tasks/{id}/retry [post]
func (h *Handler) RetryTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	task, err := h.jobs.Retry(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ActionResponse{
		Message: fmt.Sprintf("Task %d has been reset to queued state.", id),
		Task:    task,
	})
}

// MarkNonExistent reclassifies ledgered tiles as non-existent
// @Summary Mark tiles non-existent
// @Tags actions
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param request body MarkNonExistentRequest true "Tiles to mark"
// @Success 200 {object} ActionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ConflictResponse
// @Router /api/tasks/{id}/mark-non-existent [post]
func (h *Handler) MarkNonExistent(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req MarkNonExistentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	var fields []FieldError
	for i, tc := range req.TilesToMark {
		if n := 1 << tc.Z; tc.X >= n || tc.Y >= n {
			fields = append(fields, FieldError{
				Field:   fmt.Sprintf("tilesToMark[%d]", i),
				Message: fmt.Sprintf("x and y must be below %d at zoom %d", n, tc.Z),
			})
		}
	}
	if len(fields) > 0 {
		respondFields(c, fields...)
		return
	}

	task, err := h.jobs.MarkNonExistent(c.Request.Context(), id, req.TilesToMark)
	if err != nil {
		h.respondError(c, err)
		return
	}

	msg := fmt.Sprintf("%d tiles marked as non-existent.", len(req.TilesToMark))
	if len(req.TilesToMark) == 0 {
		msg = "No tiles to mark."
	}
	c.JSON(http.StatusOK, ActionResponse{Message: msg, Task: task})
}
