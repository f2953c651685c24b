package pipeline

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/geoscraper/tile-service/internal/fetcher"
	"github.com/geoscraper/tile-service/internal/progress"
	"github.com/geoscraper/tile-service/internal/types"
	"github.com/geoscraper/tile-service/internal/workers"
)

// Acquire fetches every tile covering the task's bounds and zoom levels
func (p *Pipeline) Acquire(ctx context.Context, t *types.Task) (err error) {
	ctx, span := p.startSpan(ctx, KindAcquire, t)
	defer func() { endSpan(span, err) }()

	job, err := p.job(t)
	if err != nil {
		return err
	}

	coords, err := p.expected(t)
	if err != nil {
		return err
	}
	total := len(coords)
	span.SetAttributes(attribute.Int("tiles.total", total))

	if _, err := p.machine.Update(ctx, t.ID, types.TaskPatch{
		TotalTiles:     types.Ptr(total),
		Progress:       types.Ptr(0),
		CompletedTiles: types.Ptr(0),
	}); err != nil {
		return fmt.Errorf("failed to record tile total: %w", err)
	}

	p.logger.Info().
		Int64("task_id", t.ID).
		Str("map_type", t.MapType).
		Int("total_tiles", total).
		Int("concurrency", t.Concurrency).
		Msg("Acquisition started")

	if total == 0 {
		_, err := p.machine.Update(ctx, t.ID, types.TaskPatch{
			Status:   types.Ptr(types.StatusCompleted),
			Progress: types.Ptr(100),
		})
		return err
	}

	tracker := progress.NewTracker(total,
		progress.Options{Interval: p.opts.ProgressInterval, Now: p.opts.Now},
		p.progressWriter(t.ID, func(s progress.Snapshot) types.TaskPatch {
			return types.TaskPatch{Progress: types.Ptr(s.Percent), CompletedTiles: types.Ptr(s.Completed)}
		}),
	)

	results := workers.Run(ctx, coords, t.Concurrency, p.fetchInto(job, tracker))
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("acquisition interrupted: %w", err)
	}

	counts := tally(results)
	p.logger.Info().
		Int64("task_id", t.ID).
		Int("downloaded", counts[fetcher.Downloaded]).
		Int("skipped_exists", counts[fetcher.SkippedExists]).
		Int("skipped_404", counts[fetcher.Skipped404]).
		Int("failed", counts[fetcher.Failed]).
		Msg("Acquisition finished")

	s := tracker.Snapshot()
	if _, err := p.machine.Update(ctx, t.ID, types.TaskPatch{
		Status:         types.Ptr(types.StatusCompleted),
		Progress:       types.Ptr(s.Percent),
		CompletedTiles: types.Ptr(s.Completed),
	}); err != nil {
		return fmt.Errorf("failed to complete acquisition: %w", err)
	}
	return nil
}

// fetchInto returns the per-tile unit of work for the concurrency controller.
// Every tile is observed exactly once, even when the fetch panics.
func (p *Pipeline) fetchInto(job fetcher.Job, tracker *progress.Tracker) func(context.Context, types.TileCoord) (fetcher.Outcome, error) {
	return func(ctx context.Context, c types.TileCoord) (fetcher.Outcome, error) {
		outcome := fetcher.Failed
		defer func() { tracker.Observe(ctx, markFor(outcome)) }()

		outcome = p.fetcher.Fetch(ctx, job, c)
		return outcome, nil
	}
}

func tally(results []workers.Result[fetcher.Outcome]) map[fetcher.Outcome]int {
	counts := make(map[fetcher.Outcome]int)
	for _, r := range results {
		if r.Err != nil {
			counts[fetcher.Failed]++
			continue
		}
		counts[r.Value]++
	}
	return counts
}

func (p *Pipeline) startSpan(ctx context.Context, kind Kind, t *types.Task) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "pipeline."+string(kind), trace.WithAttributes(
		attribute.Int64("task.id", t.ID),
		attribute.String("task.map_type", t.MapType),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
