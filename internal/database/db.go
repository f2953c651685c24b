// Package database is the Postgres task store and tile ledger.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig holds connection pool settings
type PoolConfig struct {
	MaxConns    int
	MinConns    int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// DB wraps a pgx connection pool
type DB struct {
	pool      *pgxpool.Pool
	batchSize int
}

// Connect creates a connection pool and verifies it with a ping
func Connect(ctx context.Context, connString string, cfg PoolConfig) (*DB, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("error parsing database config: %w", err)
	}

	if cfg.MaxConns > 0 {
		config.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		config.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxLifetime > 0 {
		config.MaxConnLifetime = cfg.MaxLifetime
	}
	if cfg.MaxIdleTime > 0 {
		config.MaxConnIdleTime = cfg.MaxIdleTime
	}
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	return New(pool), nil
}

// New wraps an existing pool
func New(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool, batchSize: ledgerBatchSize}
}

// SetLedgerBatchSize bounds the rows sent in one bulk ledger statement.
// Non-positive values restore the default.
func (db *DB) SetLedgerBatchSize(n int) {
	if n <= 0 {
		n = ledgerBatchSize
	}
	db.batchSize = n
}

// Pool returns the connection pool
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping checks the connection
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Stats returns connection pool statistics
func (db *DB) Stats() *pgxpool.Stat {
	return db.pool.Stat()
}

// Close closes the connection pool
func (db *DB) Close() {
	db.pool.Close()
}
