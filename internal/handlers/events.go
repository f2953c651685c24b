package handlers

import (
	"encoding/json"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geoscraper/tile-service/internal/types"
)

// subscriberBuffer is the number of updates a slow SSE client may lag behind
const subscriberBuffer = 64

var keepAliveInterval = 25 * time.Second

// Events streams task updates as Server-Sent Events. The first event,
// initial-load, carries every task; each task-update carries one snapshot.
// @Summary Stream task updates
// @Tags tasks
// @Produce text/event-stream
// @Success 200 {array} types.Task
// @Router /api/tasks/events [get]
func (h *Handler) Events(c *gin.Context) {
	ctx := c.Request.Context()

	// subscribe before loading so no update falls between the two
	updates, cancel := h.hub.Subscribe(subscriberBuffer)
	defer cancel()

	list, err := h.machine.Store().ListTasks(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if list == nil {
		list = []*types.Task{}
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("initial-load", list)
	c.Writer.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("task-update", json.RawMessage(msg))
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}
