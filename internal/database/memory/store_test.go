package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoscraper/tile-service/internal/tasks"
	"github.com/geoscraper/tile-service/internal/types"
)

func newTask(name string) types.NewTask {
	return types.NewTask{
		Name:    name,
		MapType: "osm-standard",
		Bounds: types.Bounds{
			SW: types.LatLng{Lat: 52.3, Lng: 13.0},
			NE: types.LatLng{Lat: 52.7, Lng: 13.8},
		},
		ZoomLevels:    []int{10},
		Concurrency:   5,
		DownloadDelay: 0.2,
	}
}

func TestStoreTasks(t *testing.T) {
	ctx := context.Background()
	s := New()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	first, err := s.CreateTask(ctx, newTask("first"))
	require.NoError(t, err)
	second, err := s.CreateTask(ctx, newTask("second"))
	require.NoError(t, err)
	assert.Equal(t, types.StatusQueued, first.Status)
	assert.Equal(t, types.VerificationNone, first.VerificationStatus)

	list, err := s.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	// returned rows are copies
	first.Name = "changed"
	got, err := s.GetTask(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Name)

	_, err = s.GetTask(ctx, 99)
	assert.ErrorIs(t, err, tasks.ErrNotFound)

	t.Run("guarded update", func(t *testing.T) {
		guard := types.Guard{Status: []types.TaskStatus{types.StatusQueued}}
		patch := types.TaskPatch{Status: types.Ptr(types.StatusRunning)}

		updated, err := s.UpdateTaskIf(ctx, first.ID, guard, patch)
		require.NoError(t, err)
		assert.Equal(t, types.StatusRunning, updated.Status)

		_, err = s.UpdateTaskIf(ctx, first.ID, guard, patch)
		assert.ErrorIs(t, err, tasks.ErrPreconditionFailed)

		_, err = s.UpdateTaskIf(ctx, 99, guard, patch)
		assert.ErrorIs(t, err, tasks.ErrNotFound)
	})

	t.Run("recover interrupted", func(t *testing.T) {
		_, err := s.UpdateTask(ctx, second.ID, types.TaskPatch{
			Status:             types.Ptr(types.StatusCompleted),
			VerificationStatus: types.Ptr(types.VerificationRunning),
		})
		require.NoError(t, err)

		changed, err := s.RecoverInterrupted(ctx)
		require.NoError(t, err)
		require.Len(t, changed, 2)
		assert.Equal(t, types.StatusFailed, changed[0].Status)
		assert.Equal(t, types.StatusCompleted, changed[1].Status)
		assert.Equal(t, types.VerificationFailed, changed[1].VerificationStatus)

		changed, err = s.RecoverInterrupted(ctx)
		require.NoError(t, err)
		assert.Empty(t, changed)
	})

	require.NoError(t, s.DeleteTask(ctx, first.ID))
	assert.ErrorIs(t, s.DeleteTask(ctx, first.ID), tasks.ErrNotFound)
}

func TestStoreLedger(t *testing.T) {
	ctx := context.Background()
	s := New()
	task, err := s.CreateTask(ctx, newTask("ledger"))
	require.NoError(t, err)

	a := types.TileCoord{Z: 1, X: 1, Y: 0}
	b := types.TileCoord{Z: 1, X: 0, Y: 1}
	c := types.TileCoord{Z: 0, X: 0, Y: 0}

	require.NoError(t, s.InsertTiles(ctx, task.ID, types.TileMissing, []types.TileCoord{a, b, c}))

	tiles, err := s.ListTiles(ctx, task.ID, types.TileMissing)
	require.NoError(t, err)
	assert.Equal(t, []types.TileCoord{c, b, a}, tiles)

	require.NoError(t, s.UpsertTiles(ctx, task.ID, types.TileNonExistent, []types.TileCoord{a}))
	// insert keeps the non-existent classification
	require.NoError(t, s.InsertTiles(ctx, task.ID, types.TileMissing, []types.TileCoord{a}))

	n, err := s.CountTiles(ctx, task.ID, types.TileNonExistent)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.CountTiles(ctx, task.ID, types.TileMissing)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	removed, err := s.DeleteTileSet(ctx, task.ID, types.TileMissing, []types.TileCoord{a, b})
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	removed, err = s.DeleteTiles(ctx, task.ID, types.TileMissing)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	assert.ErrorIs(t, s.InsertTiles(ctx, 99, types.TileMissing, []types.TileCoord{a}), tasks.ErrNotFound)

	require.NoError(t, s.DeleteTask(ctx, task.ID))
	n, err = s.CountTiles(ctx, task.ID, types.TileNonExistent)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStorePageTiles(t *testing.T) {
	ctx := context.Background()
	s := New()
	task, err := s.CreateTask(ctx, newTask("pages"))
	require.NoError(t, err)

	coords := []types.TileCoord{{Z: 2, X: 0, Y: 0}, {Z: 2, X: 0, Y: 1}, {Z: 2, X: 1, Y: 0}}
	require.NoError(t, s.InsertTiles(ctx, task.ID, types.TileMissing, coords))

	page, err := s.PageTiles(ctx, task.ID, types.TileMissing, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, coords[1:], page)

	page, err = s.PageTiles(ctx, task.ID, types.TileMissing, 3, 5)
	require.NoError(t, err)
	assert.Empty(t, page)
}
