package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/geoscraper/tile-service/internal/pipeline"
	"github.com/geoscraper/tile-service/internal/types"
)

// Run is the handle of one detached task run
type Run struct {
	ID         uuid.UUID
	TaskID     int64
	Kind       pipeline.Kind
	EnqueuedAt time.Time

	cancel  context.CancelFunc
	started bool
	done    chan struct{}
	err     error
}

func newRun(kind pipeline.Kind, t *types.Task, cancel context.CancelFunc) *Run {
	return &Run{
		ID:         uuid.New(),
		TaskID:     t.ID,
		Kind:       kind,
		EnqueuedAt: time.Now(),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Done is closed when the run has finished or was cancelled before starting
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Err returns the run-fatal error, valid after Done is closed
func (r *Run) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Wait blocks until the run finishes or ctx is done
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// safeRun runs the pipeline and turns a panic into an error
func safeRun(ctx context.Context, p *pipeline.Pipeline, kind pipeline.Kind, t *types.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s run panicked: %v\n%s", kind, r, debug.Stack())
		}
	}()
	return p.Run(ctx, kind, t)
}
