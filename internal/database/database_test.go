package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/geoscraper/tile-service/internal/tasks"
	"github.com/geoscraper/tile-service/internal/types"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("tiles"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Connect(ctx, connStr, PoolConfig{MaxConns: 5})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))
	// idempotent
	require.NoError(t, db.EnsureSchema(ctx))
	return db
}

func newTask(name string) types.NewTask {
	return types.NewTask{
		Name:    name,
		MapType: "osm-standard",
		Bounds: types.Bounds{
			SW: types.LatLng{Lat: 52.3, Lng: 13.0},
			NE: types.LatLng{Lat: 52.7, Lng: 13.8},
		},
		ZoomLevels:    []int{10, 11},
		Concurrency:   5,
		DownloadDelay: 0.2,
	}
}

func TestPostgresStore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		created, err := db.CreateTask(ctx, newTask("berlin"))
		require.NoError(t, err)
		assert.Equal(t, types.StatusQueued, created.Status)
		assert.Equal(t, types.VerificationNone, created.VerificationStatus)

		got, err := db.GetTask(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "berlin", got.Name)
		assert.Equal(t, []int{10, 11}, got.ZoomLevels)
		assert.Equal(t, 52.7, got.Bounds.NE.Lat)

		_, err = db.GetTask(ctx, 999999)
		assert.ErrorIs(t, err, tasks.ErrNotFound)
	})

	t.Run("GuardedUpdate", func(t *testing.T) {
		created, err := db.CreateTask(ctx, newTask("guarded"))
		require.NoError(t, err)

		tr, err := tasks.For(tasks.OpStart)
		require.NoError(t, err)

		started, err := db.UpdateTaskIf(ctx, created.ID, tr.Guard, tr.Patch)
		require.NoError(t, err)
		assert.Equal(t, types.StatusRunning, started.Status)

		// second claim must fail and leave the row alone
		_, err = db.UpdateTaskIf(ctx, created.ID, tr.Guard, tr.Patch)
		assert.ErrorIs(t, err, tasks.ErrPreconditionFailed)

		_, err = db.UpdateTaskIf(ctx, 999999, tr.Guard, tr.Patch)
		assert.ErrorIs(t, err, tasks.ErrNotFound)

		updated, err := db.UpdateTask(ctx, created.ID, types.TaskPatch{Progress: types.Ptr(42), CompletedTiles: types.Ptr(7)})
		require.NoError(t, err)
		assert.Equal(t, 42, updated.Progress)
		assert.Equal(t, 7, updated.CompletedTiles)
		assert.Equal(t, types.StatusRunning, updated.Status)
	})

	t.Run("RecoverInterrupted", func(t *testing.T) {
		created, err := db.CreateTask(ctx, newTask("crashed"))
		require.NoError(t, err)
		_, err = db.UpdateTask(ctx, created.ID, types.TaskPatch{
			Status:             types.Ptr(types.StatusCompleted),
			VerificationStatus: types.Ptr(types.VerificationRunning),
		})
		require.NoError(t, err)

		recovered, err := db.RecoverInterrupted(ctx)
		require.NoError(t, err)

		var found *types.Task
		for _, r := range recovered {
			if r.ID == created.ID {
				found = r
			}
		}
		require.NotNil(t, found)
		assert.Equal(t, types.StatusCompleted, found.Status)
		assert.Equal(t, types.VerificationFailed, found.VerificationStatus)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		list, err := db.ListTasks(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(list), 3)
		for i := 1; i < len(list); i++ {
			assert.False(t, list[i].CreatedAt.After(list[i-1].CreatedAt))
		}
	})
}

func TestPostgresLedger(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task, err := db.CreateTask(ctx, newTask("ledger"))
	require.NoError(t, err)
	db.SetLedgerBatchSize(2)
	defer db.SetLedgerBatchSize(0)

	missing := []types.TileCoord{{Z: 3, X: 1, Y: 2}, {Z: 3, X: 0, Y: 0}, {Z: 2, X: 1, Y: 1}}
	require.NoError(t, db.InsertTiles(ctx, task.ID, types.TileMissing, missing))
	// duplicates are ignored
	require.NoError(t, db.InsertTiles(ctx, task.ID, types.TileMissing, missing[:1]))

	listed, err := db.ListTiles(ctx, task.ID, types.TileMissing)
	require.NoError(t, err)
	assert.Equal(t, []types.TileCoord{{Z: 2, X: 1, Y: 1}, {Z: 3, X: 0, Y: 0}, {Z: 3, X: 1, Y: 2}}, listed)

	// insert never overwrites the kind; upsert does
	require.NoError(t, db.InsertTiles(ctx, task.ID, types.TileNonExistent, missing[:1]))
	n, err := db.CountTiles(ctx, task.ID, types.TileNonExistent)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, db.UpsertTiles(ctx, task.ID, types.TileNonExistent, missing[:1]))
	n, err = db.CountTiles(ctx, task.ID, types.TileNonExistent)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// a repeated coordinate inside one batch upserts once
	require.NoError(t, db.UpsertTiles(ctx, task.ID, types.TileNonExistent, []types.TileCoord{missing[1], missing[1]}))
	n, err = db.CountTiles(ctx, task.ID, types.TileNonExistent)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = db.CountTiles(ctx, task.ID, types.TileMissing)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	removed, err := db.DeleteTileSet(ctx, task.ID, types.TileMissing, missing)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = db.DeleteTiles(ctx, task.ID, types.TileNonExistent)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	assert.ErrorIs(t, db.InsertTiles(ctx, 999999, types.TileMissing, missing), tasks.ErrNotFound)

	// ledger rows go with the task
	require.NoError(t, db.InsertTiles(ctx, task.ID, types.TileMissing, missing))
	require.NoError(t, db.DeleteTask(ctx, task.ID))
	n, err = db.CountTiles(ctx, task.ID, types.TileMissing)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, db.DeleteTask(ctx, task.ID), tasks.ErrNotFound)
}
