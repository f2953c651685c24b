package pipeline

import (
	"context"
	"fmt"

	"github.com/geoscraper/tile-service/internal/tasks"
	"github.com/geoscraper/tile-service/internal/tiles"
	"github.com/geoscraper/tile-service/internal/types"
)

// MarkNonExistent reclassifies coords as non-existent, recomputes the task's
// missing count from the ledger and broadcasts the task. Marking the same
// coordinates again changes nothing.
func (p *Pipeline) MarkNonExistent(ctx context.Context, taskID int64, coords []types.TileCoord) (*types.Task, error) {
	t, err := p.machine.Transition(ctx, taskID, tasks.OpMarkNonExistent)
	if err != nil {
		return nil, err
	}
	coords = tiles.Unique(coords)
	if len(coords) == 0 {
		return t, nil
	}

	if err := p.ledger.UpsertTiles(ctx, taskID, types.TileNonExistent, coords); err != nil {
		return nil, fmt.Errorf("failed to mark tiles non-existent: %w", err)
	}

	missing, err := p.ledger.CountTiles(ctx, taskID, types.TileMissing)
	if err != nil {
		return nil, err
	}

	t, err = p.machine.Update(ctx, taskID, types.TaskPatch{MissingTiles: types.Ptr(missing)})
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Int64("task_id", taskID).
		Int("marked", len(coords)).
		Int("missing", missing).
		Msg("Tiles marked non-existent")
	return t, nil
}
