package pipeline

import (
	"context"
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/geoscraper/tile-service/internal/progress"
	"github.com/geoscraper/tile-service/internal/storage"
	"github.com/geoscraper/tile-service/internal/types"
	"github.com/geoscraper/tile-service/internal/workers"
)

// Verify reconciles the expected tile set against the cache. Tiles ledgered
// non-existent count as verified without a stat; absent or zero-byte tiles are
// recorded as missing.
func (p *Pipeline) Verify(ctx context.Context, t *types.Task) (err error) {
	ctx, span := p.startSpan(ctx, KindVerify, t)
	defer func() { endSpan(span, err) }()

	coords, err := p.expected(t)
	if err != nil {
		return err
	}

	known, err := p.ledger.ListTiles(ctx, t.ID, types.TileNonExistent)
	if err != nil {
		return err
	}
	// read-only while workers run
	nonExistent := mapset.NewThreadUnsafeSet(known...)

	if _, err := p.ledger.DeleteTiles(ctx, t.ID, types.TileMissing); err != nil {
		return fmt.Errorf("failed to clear missing tiles: %w", err)
	}

	total := len(coords)
	span.SetAttributes(attribute.Int("tiles.total", total))

	p.logger.Info().
		Int64("task_id", t.ID).
		Int("total_tiles", total).
		Int("non_existent", nonExistent.Cardinality()).
		Msg("Verification started")

	if total == 0 {
		_, err := p.machine.Update(ctx, t.ID, types.TaskPatch{
			VerificationStatus:   types.Ptr(types.VerificationCompleted),
			VerificationProgress: types.Ptr(100),
			VerifiedTiles:        types.Ptr(0),
			MissingTiles:         types.Ptr(0),
		})
		return err
	}

	tracker := progress.NewTracker(total,
		progress.Options{Interval: p.opts.ProgressInterval, PercentOfSeen: true, Now: p.opts.Now},
		p.progressWriter(t.ID, func(s progress.Snapshot) types.TaskPatch {
			return types.TaskPatch{
				VerificationProgress: types.Ptr(s.Percent),
				VerifiedTiles:        types.Ptr(s.Completed),
				MissingTiles:         types.Ptr(s.Missing),
			}
		}),
	)

	results := workers.Run(ctx, coords, p.opts.VerifyWorkers, func(ctx context.Context, c types.TileCoord) (bool, error) {
		if nonExistent.Contains(c) {
			p.metrics.RecordVerification("non_existent")
			tracker.Observe(ctx, progress.Completed)
			return true, nil
		}
		present := p.present(ctx, t, c)
		if present {
			p.metrics.RecordVerification("verified")
			tracker.Observe(ctx, progress.Completed)
		} else {
			p.metrics.RecordVerification("missing")
			tracker.Observe(ctx, progress.Missing)
		}
		return present, nil
	})
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("verification interrupted: %w", err)
	}
	if errs := workers.Errors(results); len(errs) > 0 {
		return errors.Join(errs...)
	}

	var missing []types.TileCoord
	for i, r := range results {
		if !r.Value {
			missing = append(missing, coords[i])
		}
	}
	if err := p.ledger.InsertTiles(ctx, t.ID, types.TileMissing, missing); err != nil {
		return fmt.Errorf("failed to record missing tiles: %w", err)
	}

	missingCount, err := p.ledger.CountTiles(ctx, t.ID, types.TileMissing)
	if err != nil {
		return err
	}

	s := tracker.Snapshot()
	if _, err := p.machine.Update(ctx, t.ID, types.TaskPatch{
		VerificationStatus:   types.Ptr(types.VerificationCompleted),
		VerificationProgress: types.Ptr(100),
		VerifiedTiles:        types.Ptr(s.Completed),
		MissingTiles:         types.Ptr(missingCount),
	}); err != nil {
		return fmt.Errorf("failed to complete verification: %w", err)
	}

	p.logger.Info().
		Int64("task_id", t.ID).
		Int("verified", s.Completed).
		Int("missing", missingCount).
		Msg("Verification finished")
	return nil
}

// present reports whether the tile is cached with a non-zero size. Stat
// errors other than not-exist are logged and count as missing.
func (p *Pipeline) present(ctx context.Context, t *types.Task, c types.TileCoord) bool {
	key := storage.TileKey(t.MapType, c)
	size, err := p.cache.Stat(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotExist) {
			p.logger.Warn().Err(err).Int64("task_id", t.ID).Str("key", key).Msg("Failed to check cached tile")
		}
		return false
	}
	return size > 0
}
