package database

import (
	"context"
	"fmt"
)

// Schema is the Postgres schema holding every table
const Schema = "geoscraper"

var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS geoscraper`,
	`CREATE TABLE IF NOT EXISTS geoscraper.tasks (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		map_type TEXT NOT NULL,
		bounds JSONB NOT NULL,
		zoom_levels INTEGER[] NOT NULL,
		concurrency INTEGER NOT NULL DEFAULT 5,
		download_delay DOUBLE PRECISION NOT NULL DEFAULT 0.2,
		status TEXT NOT NULL DEFAULT 'queued'
			CHECK (status IN ('queued', 'running', 'completed', 'failed')),
		progress INTEGER NOT NULL DEFAULT 0,
		total_tiles INTEGER NOT NULL DEFAULT 0,
		completed_tiles INTEGER NOT NULL DEFAULT 0,
		verification_status TEXT NOT NULL DEFAULT 'none'
			CHECK (verification_status IN ('none', 'running', 'completed', 'failed')),
		verification_progress INTEGER NOT NULL DEFAULT 0,
		verified_tiles INTEGER NOT NULL DEFAULT 0,
		missing_tiles INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS tasks_status_idx ON geoscraper.tasks (status)`,
	`CREATE TABLE IF NOT EXISTS geoscraper.task_tiles (
		id BIGSERIAL PRIMARY KEY,
		task_id BIGINT NOT NULL REFERENCES geoscraper.tasks (id) ON DELETE CASCADE,
		z INTEGER NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('missing', 'non-existent')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (task_id, z, x, y)
	)`,
	`CREATE INDEX IF NOT EXISTS task_tiles_task_type_idx ON geoscraper.task_tiles (task_id, type)`,
}

// EnsureSchema creates the schema and tables when they do not exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
