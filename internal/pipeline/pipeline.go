// Package pipeline runs the three kinds of task work: full acquisition,
// verification of the cache against the expected tile set, and redownload of
// the tiles the last verification found missing.
//
// Run methods assume the caller already claimed the task's start transition
// (see tasks.For). They return an error only for run-fatal conditions; per-tile
// failures are classified and counted. Callers turn a returned error into the
// kind's failure state with Fail.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/geoscraper/tile-service/internal/fetcher"
	"github.com/geoscraper/tile-service/internal/metrics"
	"github.com/geoscraper/tile-service/internal/progress"
	"github.com/geoscraper/tile-service/internal/providers"
	"github.com/geoscraper/tile-service/internal/storage"
	"github.com/geoscraper/tile-service/internal/tasks"
	"github.com/geoscraper/tile-service/internal/telemetry"
	"github.com/geoscraper/tile-service/internal/tiles"
	"github.com/geoscraper/tile-service/internal/types"
)

// Kind names a run kind
type Kind string

const (
	KindAcquire    Kind = "acquire"
	KindVerify     Kind = "verify"
	KindRedownload Kind = "redownload"
)

// ErrTooManyTiles is returned by runs whose task covers more tiles than allowed
var ErrTooManyTiles = errors.New("task covers too many tiles")

// FailurePatch is the state a run of kind leaves behind when it dies
func FailurePatch(kind Kind) types.TaskPatch {
	if kind == KindVerify {
		return types.TaskPatch{VerificationStatus: types.Ptr(types.VerificationFailed)}
	}
	return types.TaskPatch{Status: types.Ptr(types.StatusFailed)}
}

// Options tunes run behaviour
type Options struct {
	// ProgressInterval throttles acquisition and verification progress writes.
	// Default: 1s
	ProgressInterval time.Duration

	// RedownloadInterval throttles redownload progress writes.
	// Default: 500ms
	RedownloadInterval time.Duration

	// VerifyWorkers bounds concurrent cache stats during verification.
	// Default: 16
	VerifyWorkers int

	// MaxTiles fails a run whose task covers more tiles than this.
	// Default: tiles.DefaultMaxTaskTiles
	MaxTiles int

	// Now overrides the clock used for throttling
	Now func() time.Time
}

// DefaultOptions returns the default run options
func DefaultOptions() Options {
	return Options{
		ProgressInterval:   progress.DefaultInterval,
		RedownloadInterval: progress.DefaultRedownloadInterval,
		VerifyWorkers:      16,
		MaxTiles:           tiles.DefaultMaxTaskTiles,
	}
}

// Pipeline executes task runs
type Pipeline struct {
	machine   *tasks.Machine
	ledger    tasks.Ledger
	fetcher   *fetcher.Fetcher
	cache     storage.TileStore
	providers *providers.Registry
	logger    zerolog.Logger
	metrics   *metrics.Recorder
	tracer    trace.Tracer
	opts      Options
}

// New creates a pipeline
func New(
	machine *tasks.Machine,
	ledger tasks.Ledger,
	f *fetcher.Fetcher,
	cache storage.TileStore,
	registry *providers.Registry,
	logger zerolog.Logger,
	m *metrics.Recorder,
	opts Options,
) *Pipeline {
	defaults := DefaultOptions()
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = defaults.ProgressInterval
	}
	if opts.RedownloadInterval <= 0 {
		opts.RedownloadInterval = defaults.RedownloadInterval
	}
	if opts.VerifyWorkers <= 0 {
		opts.VerifyWorkers = defaults.VerifyWorkers
	}
	if opts.MaxTiles <= 0 {
		opts.MaxTiles = defaults.MaxTiles
	}
	return &Pipeline{
		machine:   machine,
		ledger:    ledger,
		fetcher:   f,
		cache:     cache,
		providers: registry,
		logger:    logger.With().Str("component", "pipeline").Logger(),
		metrics:   m,
		tracer:    telemetry.Tracer(),
		opts:      opts,
	}
}

// Machine returns the task state machine the pipeline writes through
func (p *Pipeline) Machine() *tasks.Machine {
	return p.machine
}

// Ledger returns the tile ledger
func (p *Pipeline) Ledger() tasks.Ledger {
	return p.ledger
}

// Run dispatches to the run method for kind
func (p *Pipeline) Run(ctx context.Context, kind Kind, t *types.Task) error {
	switch kind {
	case KindAcquire:
		return p.Acquire(ctx, t)
	case KindVerify:
		return p.Verify(ctx, t)
	case KindRedownload:
		return p.Redownload(ctx, t)
	}
	return fmt.Errorf("unknown run kind: %s", kind)
}

// Fail writes the kind's failure state. It runs detached from ctx's
// cancellation so a shutdown still records the failure.
func (p *Pipeline) Fail(ctx context.Context, kind Kind, taskID int64, cause error) error {
	p.logger.Error().Err(cause).Int64("task_id", taskID).Str("kind", string(kind)).Msg("Task run failed")

	if _, err := p.machine.Update(context.WithoutCancel(ctx), taskID, FailurePatch(kind)); err != nil {
		return fmt.Errorf("failed to record %s failure for task %d: %w", kind, taskID, err)
	}
	return nil
}

// progressWriter returns an emitter that writes throttled snapshots as
// best-effort task updates
func (p *Pipeline) progressWriter(taskID int64, toPatch func(progress.Snapshot) types.TaskPatch) progress.Emitter {
	return func(ctx context.Context, s progress.Snapshot) {
		if _, err := p.machine.Update(context.WithoutCancel(ctx), taskID, toPatch(s)); err != nil {
			p.logger.Warn().Err(err).Int64("task_id", taskID).Msg("Failed to write progress")
		}
	}
}

func (p *Pipeline) job(t *types.Task) (fetcher.Job, error) {
	provider, err := p.providers.Get(t.MapType)
	if err != nil {
		return fetcher.Job{}, err
	}
	return fetcher.Job{TaskID: t.ID, Provider: provider, Delay: t.Delay()}, nil
}

func markFor(o fetcher.Outcome) progress.Mark {
	if o.Processed() {
		return progress.Completed
	}
	return progress.Failed
}

// expected materializes the task's tile set once its size is known to fit
func (p *Pipeline) expected(t *types.Task) ([]types.TileCoord, error) {
	if n := tiles.Count(t.Bounds, t.ZoomLevels); n > p.opts.MaxTiles {
		return nil, fmt.Errorf("%w: %d tiles, limit %d", ErrTooManyTiles, n, p.opts.MaxTiles)
	}
	return tiles.Coordinates(t.Bounds, t.ZoomLevels), nil
}
