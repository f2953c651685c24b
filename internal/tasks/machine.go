package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/geoscraper/tile-service/internal/metrics"
	"github.com/geoscraper/tile-service/internal/types"
)

// Machine applies task mutations to the store and broadcasts every updated row.
// The store write is the durability point; the broadcast is best-effort.
type Machine struct {
	store   Store
	pub     Publisher
	logger  zerolog.Logger
	metrics *metrics.Recorder
}

// NewMachine creates a state machine over store publishing through pub
func NewMachine(store Store, pub Publisher, logger zerolog.Logger, m *metrics.Recorder) *Machine {
	return &Machine{
		store:   store,
		pub:     pub,
		logger:  logger.With().Str("component", "tasks").Logger(),
		metrics: m,
	}
}

// Store returns the underlying store
func (m *Machine) Store() Store {
	return m.store
}

// Get reads a task
func (m *Machine) Get(ctx context.Context, id int64) (*types.Task, error) {
	return m.store.GetTask(ctx, id)
}

// Update writes patch to the task and broadcasts the result
func (m *Machine) Update(ctx context.Context, id int64, patch types.TaskPatch) (*types.Task, error) {
	t, err := m.store.UpdateTask(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update task %d: %w", id, err)
	}
	m.Publish(ctx, t)
	return t, nil
}

// Transition applies the op's guarded patch atomically. When the guard does
// not hold the row is left unchanged and a *ConflictError is returned.
func (m *Machine) Transition(ctx context.Context, id int64, op Op) (*types.Task, error) {
	tr, err := For(op)
	if err != nil {
		return nil, err
	}

	if tr.Patch.IsEmpty() {
		t, err := m.store.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		if !tr.Guard.Allows(t) {
			return nil, NewConflictError(op, t)
		}
		return t, nil
	}

	t, err := m.store.UpdateTaskIf(ctx, id, tr.Guard, tr.Patch)
	if errors.Is(err, ErrPreconditionFailed) {
		current, getErr := m.store.GetTask(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, NewConflictError(op, current)
	}
	if err != nil {
		return nil, err
	}

	m.logger.Info().
		Int64("task_id", id).
		Str("op", string(op)).
		Str("status", string(t.Status)).
		Str("verification_status", string(t.VerificationStatus)).
		Msg("Task transition")

	m.Publish(ctx, t)
	return t, nil
}

// Publish broadcasts t, logging failures
func (m *Machine) Publish(ctx context.Context, t *types.Task) {
	if m.pub == nil {
		return
	}
	if err := m.pub.Publish(ctx, t); err != nil {
		m.metrics.RecordBroadcastFailure()
		m.logger.Warn().Err(err).Int64("task_id", t.ID).Msg("Failed to broadcast task update")
	}
}
