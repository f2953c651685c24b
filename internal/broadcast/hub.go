// Package broadcast fans task snapshots out to observers.
//
// Publishers serialize the full task row. In a Postgres deployment the row is
// sent with pg_notify on a well-known channel and a Relay listening on that
// channel feeds the process-local Hub that SSE clients subscribe to, so runs
// started from the CLI reach the server's observers too. Delivery is
// best-effort: a slow subscriber drops messages rather than blocking runs.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/geoscraper/tile-service/internal/types"
)

// DefaultChannel is the notification channel for task updates
const DefaultChannel = "task_updates"

// Encode serializes a task snapshot
func Encode(t *types.Task) ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task %d: %w", t.ID, err)
	}
	return data, nil
}

// Hub is an in-process fan-out of encoded snapshots
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan []byte
	closed bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan []byte)}
}

// Publish encodes t and broadcasts it to local subscribers
func (h *Hub) Publish(ctx context.Context, t *types.Task) error {
	data, err := Encode(t)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// Broadcast delivers payload to every subscriber with room in its buffer
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan []byte, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan []byte, buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
}

// Subscribers returns the number of active subscribers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}
