package database

import (
	"context"
	"fmt"

	"github.com/geoscraper/tile-service/internal/tiles"
	"github.com/geoscraper/tile-service/internal/types"
)

// ledgerBatchSize is the default bound on rows sent in one bulk statement
const ledgerBatchSize = 5000

// ListTiles returns the task's coordinates of kind ordered by z, x, y
func (db *DB) ListTiles(ctx context.Context, taskID int64, kind types.TileKind) ([]types.TileCoord, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT z, x, y FROM geoscraper.task_tiles
		WHERE task_id = $1 AND type = $2
		ORDER BY z, x, y`, taskID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s tiles for task %d: %w", kind, taskID, err)
	}
	defer rows.Close()

	var out []types.TileCoord
	for rows.Next() {
		var c types.TileCoord
		if err := rows.Scan(&c.Z, &c.X, &c.Y); err != nil {
			return nil, fmt.Errorf("failed to scan tile: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PageTiles returns one page of the task's coordinates of kind ordered by z, x, y
func (db *DB) PageTiles(ctx context.Context, taskID int64, kind types.TileKind, offset, limit int) ([]types.TileCoord, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT z, x, y FROM geoscraper.task_tiles
		WHERE task_id = $1 AND type = $2
		ORDER BY z, x, y
		LIMIT $3 OFFSET $4`, taskID, string(kind), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to page %s tiles for task %d: %w", kind, taskID, err)
	}
	defer rows.Close()

	out := make([]types.TileCoord, 0, limit)
	for rows.Next() {
		var c types.TileCoord
		if err := rows.Scan(&c.Z, &c.X, &c.Y); err != nil {
			return nil, fmt.Errorf("failed to scan tile: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountTiles counts the task's rows of kind
func (db *DB) CountTiles(ctx context.Context, taskID int64, kind types.TileKind) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT count(*) FROM geoscraper.task_tiles WHERE task_id = $1 AND type = $2`,
		taskID, string(kind),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s tiles for task %d: %w", kind, taskID, err)
	}
	return n, nil
}

// DeleteTiles removes every row of kind
func (db *DB) DeleteTiles(ctx context.Context, taskID int64, kind types.TileKind) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM geoscraper.task_tiles WHERE task_id = $1 AND type = $2`,
		taskID, string(kind),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s tiles for task %d: %w", kind, taskID, err)
	}
	return tag.RowsAffected(), nil
}

// DeleteTileSet removes rows of kind at coords
func (db *DB) DeleteTileSet(ctx context.Context, taskID int64, kind types.TileKind, coords []types.TileCoord) (int64, error) {
	var total int64
	for start := 0; start < len(coords); start += db.batchSize {
		zs, xs, ys := columns(coords[start:min(start+db.batchSize, len(coords))])
		tag, err := db.pool.Exec(ctx, `
			DELETE FROM geoscraper.task_tiles t
			USING unnest($3::int[], $4::int[], $5::int[]) AS c(z, x, y)
			WHERE t.task_id = $1 AND t.type = $2
				AND t.z = c.z AND t.x = c.x AND t.y = c.y`,
			taskID, string(kind), zs, xs, ys,
		)
		if err != nil {
			return total, fmt.Errorf("failed to delete %s tiles for task %d: %w", kind, taskID, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

// InsertTiles adds rows, keeping existing ones
func (db *DB) InsertTiles(ctx context.Context, taskID int64, kind types.TileKind, coords []types.TileCoord) error {
	return db.writeTiles(ctx, taskID, kind, coords, `ON CONFLICT (task_id, z, x, y) DO NOTHING`)
}

// UpsertTiles adds rows, overwriting the kind of existing ones
func (db *DB) UpsertTiles(ctx context.Context, taskID int64, kind types.TileKind, coords []types.TileCoord) error {
	return db.writeTiles(ctx, taskID, kind, coords, `ON CONFLICT (task_id, z, x, y) DO UPDATE SET type = EXCLUDED.type`)
}

func (db *DB) writeTiles(ctx context.Context, taskID int64, kind types.TileKind, coords []types.TileCoord, onConflict string) error {
	if len(coords) == 0 {
		return nil
	}
	// DO UPDATE rejects a statement that touches the same row twice
	coords = tiles.Unique(coords)
	if _, err := db.GetTask(ctx, taskID); err != nil {
		return err
	}

	query := `
		INSERT INTO geoscraper.task_tiles (task_id, z, x, y, type)
		SELECT $1, c.z, c.x, c.y, $2
		FROM unnest($3::int[], $4::int[], $5::int[]) AS c(z, x, y)
		` + onConflict

	for start := 0; start < len(coords); start += db.batchSize {
		zs, xs, ys := columns(coords[start:min(start+db.batchSize, len(coords))])
		if _, err := db.pool.Exec(ctx, query, taskID, string(kind), zs, xs, ys); err != nil {
			return fmt.Errorf("failed to write %s tiles for task %d: %w", kind, taskID, err)
		}
	}
	return nil
}

func columns(coords []types.TileCoord) (zs, xs, ys []int32) {
	zs = make([]int32, len(coords))
	xs = make([]int32, len(coords))
	ys = make([]int32, len(coords))
	for i, c := range coords {
		zs[i], xs[i], ys[i] = int32(c.Z), int32(c.X), int32(c.Y)
	}
	return zs, xs, ys
}

