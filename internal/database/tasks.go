package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/geoscraper/tile-service/internal/tasks"
	"github.com/geoscraper/tile-service/internal/types"
)

var (
	_ tasks.Store  = (*DB)(nil)
	_ tasks.Ledger = (*DB)(nil)
)

const taskColumns = `id, name, description, map_type, bounds, zoom_levels, concurrency,
	download_delay, status, progress, total_tiles, completed_tiles,
	verification_status, verification_progress, verified_tiles, missing_tiles,
	created_at, updated_at`

func scanTask(row pgx.Row) (*types.Task, error) {
	var t types.Task
	var status, verification string
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.MapType, &t.Bounds, &t.ZoomLevels, &t.Concurrency,
		&t.DownloadDelay, &status, &t.Progress, &t.TotalTiles, &t.CompletedTiles,
		&verification, &t.VerificationProgress, &t.VerifiedTiles, &t.MissingTiles,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = types.TaskStatus(status)
	t.VerificationStatus = types.VerificationStatus(verification)
	return &t, nil
}

// CreateTask inserts a queued task
func (db *DB) CreateTask(ctx context.Context, nt types.NewTask) (*types.Task, error) {
	query := `
		INSERT INTO geoscraper.tasks (
			name, description, map_type, bounds, zoom_levels, concurrency, download_delay
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + taskColumns

	t, err := scanTask(db.pool.QueryRow(ctx, query,
		nt.Name, nt.Description, nt.MapType, nt.Bounds, nt.ZoomLevels, nt.Concurrency, nt.DownloadDelay,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return t, nil
}

// GetTask reads one task
func (db *DB) GetTask(ctx context.Context, id int64) (*types.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM geoscraper.tasks WHERE id = $1`

	t, err := scanTask(db.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tasks.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", id, err)
	}
	return t, nil
}

// ListTasks returns every task, newest first
func (db *DB) ListTasks(ctx context.Context) ([]*types.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM geoscraper.tasks ORDER BY created_at DESC, id DESC`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var out []*types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return out, nil
}

// UpdateTask applies patch unconditionally
func (db *DB) UpdateTask(ctx context.Context, id int64, patch types.TaskPatch) (*types.Task, error) {
	return db.UpdateTaskIf(ctx, id, types.Guard{}, patch)
}

// UpdateTaskIf applies patch in a single statement whose WHERE clause carries the guard
func (db *DB) UpdateTaskIf(ctx context.Context, id int64, guard types.Guard, patch types.TaskPatch) (*types.Task, error) {
	q := &updateBuilder{args: []any{id}}
	q.set("name", patch.Name)
	q.set("description", patch.Description)
	if patch.Status != nil {
		q.set("status", types.Ptr(string(*patch.Status)))
	}
	q.set("progress", patch.Progress)
	q.set("total_tiles", patch.TotalTiles)
	q.set("completed_tiles", patch.CompletedTiles)
	if patch.VerificationStatus != nil {
		q.set("verification_status", types.Ptr(string(*patch.VerificationStatus)))
	}
	q.set("verification_progress", patch.VerificationProgress)
	q.set("verified_tiles", patch.VerifiedTiles)
	q.set("missing_tiles", patch.MissingTiles)
	q.sets = append(q.sets, "updated_at = now()")

	where := []string{"id = $1"}
	if len(guard.Status) > 0 {
		where = append(where, "status = ANY("+q.arg(statusStrings(guard.Status))+")")
	}
	if len(guard.VerificationStatus) > 0 {
		where = append(where, "verification_status = ANY("+q.arg(verificationStrings(guard.VerificationStatus))+")")
	}
	if len(guard.NotVerificationStatus) > 0 {
		where = append(where, "NOT (verification_status = ANY("+q.arg(verificationStrings(guard.NotVerificationStatus))+"))")
	}
	if guard.MinMissingTiles > 0 {
		where = append(where, "missing_tiles >= "+q.arg(guard.MinMissingTiles))
	}

	query := `UPDATE geoscraper.tasks SET ` + strings.Join(q.sets, ", ") +
		` WHERE ` + strings.Join(where, " AND ") +
		` RETURNING ` + taskColumns

	t, err := scanTask(db.pool.QueryRow(ctx, query, q.args...))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := db.GetTask(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, tasks.ErrPreconditionFailed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update task %d: %w", id, err)
	}
	return t, nil
}

// DeleteTask removes the task; its ledger rows cascade
func (db *DB) DeleteTask(ctx context.Context, id int64) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM geoscraper.tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return tasks.ErrNotFound
	}
	return nil
}

// RecoverInterrupted fails every task and verification left running by a previous process
func (db *DB) RecoverInterrupted(ctx context.Context) ([]*types.Task, error) {
	query := `
		UPDATE geoscraper.tasks SET
			status = CASE WHEN status = 'running' THEN 'failed' ELSE status END,
			verification_status = CASE WHEN verification_status = 'running' THEN 'failed' ELSE verification_status END,
			updated_at = now()
		WHERE status = 'running' OR verification_status = 'running'
		RETURNING ` + taskColumns

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to recover interrupted tasks: %w", err)
	}
	defer rows.Close()

	var out []*types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type updateBuilder struct {
	sets []string
	args []any
}

func (b *updateBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *updateBuilder) set(column string, v any) {
	switch p := v.(type) {
	case *string:
		if p == nil {
			return
		}
		b.sets = append(b.sets, column+" = "+b.arg(*p))
	case *int:
		if p == nil {
			return
		}
		b.sets = append(b.sets, column+" = "+b.arg(*p))
	}
}

func statusStrings(in []types.TaskStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func verificationStrings(in []types.VerificationStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
