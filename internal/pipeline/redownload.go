package pipeline

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/geoscraper/tile-service/internal/fetcher"
	"github.com/geoscraper/tile-service/internal/progress"
	"github.com/geoscraper/tile-service/internal/types"
	"github.com/geoscraper/tile-service/internal/workers"
)

// reconciled is the state after a redownload: main status back to completed
// and verification cleared so the next redownload needs a fresh verification
func reconciled() types.TaskPatch {
	return types.TaskPatch{
		Status:               types.Ptr(types.StatusCompleted),
		VerificationStatus:   types.Ptr(types.VerificationNone),
		VerificationProgress: types.Ptr(0),
		VerifiedTiles:        types.Ptr(0),
		MissingTiles:         types.Ptr(0),
	}
}

// Redownload fetches the tiles currently ledgered missing and clears them
func (p *Pipeline) Redownload(ctx context.Context, t *types.Task) (err error) {
	ctx, span := p.startSpan(ctx, KindRedownload, t)
	defer func() { endSpan(span, err) }()

	job, err := p.job(t)
	if err != nil {
		return err
	}

	coords, err := p.ledger.ListTiles(ctx, t.ID, types.TileMissing)
	if err != nil {
		return err
	}
	total := len(coords)
	span.SetAttributes(attribute.Int("tiles.total", total))

	if total == 0 {
		p.logger.Info().Int64("task_id", t.ID).Msg("No missing tiles to redownload")
		_, err := p.machine.Update(ctx, t.ID, reconciled())
		return err
	}

	// progress now counts against the missing subset
	if _, err := p.machine.Update(ctx, t.ID, types.TaskPatch{
		TotalTiles:     types.Ptr(total),
		Progress:       types.Ptr(0),
		CompletedTiles: types.Ptr(0),
	}); err != nil {
		return fmt.Errorf("failed to record redownload total: %w", err)
	}

	p.logger.Info().Int64("task_id", t.ID).Int("missing", total).Msg("Redownload started")

	tracker := progress.NewTracker(total,
		progress.Options{Interval: p.opts.RedownloadInterval, Now: p.opts.Now},
		p.progressWriter(t.ID, func(s progress.Snapshot) types.TaskPatch {
			return types.TaskPatch{Progress: types.Ptr(s.Percent), CompletedTiles: types.Ptr(s.Completed)}
		}),
	)

	results := workers.Run(ctx, coords, t.Concurrency, p.fetchInto(job, tracker))
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("redownload interrupted: %w", err)
	}

	if _, err := p.ledger.DeleteTileSet(ctx, t.ID, types.TileMissing, coords); err != nil {
		return fmt.Errorf("failed to clear redownloaded tiles: %w", err)
	}

	counts := tally(results)
	p.logger.Info().
		Int64("task_id", t.ID).
		Int("downloaded", counts[fetcher.Downloaded]).
		Int("skipped_exists", counts[fetcher.SkippedExists]).
		Int("skipped_404", counts[fetcher.Skipped404]).
		Int("failed", counts[fetcher.Failed]).
		Msg("Redownload finished")

	s := tracker.Snapshot()
	patch := reconciled()
	patch.Progress = types.Ptr(s.Percent)
	patch.CompletedTiles = types.Ptr(s.Completed)
	if _, err := p.machine.Update(ctx, t.ID, patch); err != nil {
		return fmt.Errorf("failed to complete redownload: %w", err)
	}
	return nil
}
