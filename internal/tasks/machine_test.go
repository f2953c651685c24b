package tasks_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoscraper/tile-service/internal/database/memory"
	"github.com/geoscraper/tile-service/internal/tasks"
	"github.com/geoscraper/tile-service/internal/types"
)

type capture struct {
	mu    sync.Mutex
	tasks []*types.Task
}

func (c *capture) Publish(_ context.Context, t *types.Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append(c.tasks, t.Clone())
	return nil
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}

func seed(t *testing.T, store *memory.Store, patch types.TaskPatch) *types.Task {
	t.Helper()
	ctx := context.Background()
	task, err := store.CreateTask(ctx, types.NewTask{
		Name:        "seed",
		MapType:     "osm-standard",
		ZoomLevels:  []int{1},
		Concurrency: 2,
	})
	require.NoError(t, err)
	if !patch.IsEmpty() {
		task, err = store.UpdateTask(ctx, task.ID, patch)
		require.NoError(t, err)
	}
	return task
}

func state(status types.TaskStatus, vs types.VerificationStatus, missing int) types.TaskPatch {
	return types.TaskPatch{
		Status:             types.Ptr(status),
		VerificationStatus: types.Ptr(vs),
		MissingTiles:       types.Ptr(missing),
	}
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		op      tasks.Op
		status  types.TaskStatus
		vs      types.VerificationStatus
		missing int
		allowed bool
	}{
		{tasks.OpStart, types.StatusQueued, types.VerificationNone, 0, true},
		{tasks.OpStart, types.StatusRunning, types.VerificationNone, 0, false},
		{tasks.OpStart, types.StatusFailed, types.VerificationNone, 0, false},
		{tasks.OpStart, types.StatusCompleted, types.VerificationNone, 0, false},

		{tasks.OpRetry, types.StatusFailed, types.VerificationNone, 0, true},
		{tasks.OpRetry, types.StatusQueued, types.VerificationNone, 0, false},
		{tasks.OpRetry, types.StatusRunning, types.VerificationNone, 0, false},
		{tasks.OpRetry, types.StatusCompleted, types.VerificationNone, 0, false},

		{tasks.OpVerify, types.StatusCompleted, types.VerificationNone, 0, true},
		{tasks.OpVerify, types.StatusCompleted, types.VerificationCompleted, 3, true},
		{tasks.OpVerify, types.StatusCompleted, types.VerificationFailed, 0, true},
		{tasks.OpVerify, types.StatusCompleted, types.VerificationRunning, 0, false},
		{tasks.OpVerify, types.StatusRunning, types.VerificationNone, 0, false},
		{tasks.OpVerify, types.StatusFailed, types.VerificationNone, 0, false},

		{tasks.OpRedownload, types.StatusCompleted, types.VerificationCompleted, 1, true},
		{tasks.OpRedownload, types.StatusCompleted, types.VerificationCompleted, 0, false},
		{tasks.OpRedownload, types.StatusCompleted, types.VerificationNone, 5, false},
		{tasks.OpRedownload, types.StatusCompleted, types.VerificationRunning, 5, false},
		{tasks.OpRedownload, types.StatusRunning, types.VerificationCompleted, 5, false},

		{tasks.OpMarkNonExistent, types.StatusCompleted, types.VerificationCompleted, 5, true},
		{tasks.OpMarkNonExistent, types.StatusCompleted, types.VerificationRunning, 5, false},
	}

	for _, tt := range tests {
		task := &types.Task{Status: tt.status, VerificationStatus: tt.vs, MissingTiles: tt.missing}
		assert.Equal(t, tt.allowed, tasks.Allowed(tt.op, task),
			"%s with status=%s verification=%s missing=%d", tt.op, tt.status, tt.vs, tt.missing)
	}
}

func TestAvailableOps(t *testing.T) {
	task := &types.Task{Status: types.StatusCompleted, VerificationStatus: types.VerificationCompleted, MissingTiles: 2}
	assert.Equal(t, []tasks.Op{tasks.OpVerify, tasks.OpRedownload, tasks.OpMarkNonExistent}, tasks.AvailableOps(task))
}

func TestTransitionConflictLeavesRowUnchanged(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &capture{}
	m := tasks.NewMachine(store, pub, zerolog.Nop(), nil)

	tests := []struct {
		name  string
		op    tasks.Op
		patch types.TaskPatch
	}{
		{"retry from completed", tasks.OpRetry, state(types.StatusCompleted, types.VerificationNone, 0)},
		{"verify from running", tasks.OpVerify, state(types.StatusRunning, types.VerificationNone, 0)},
		{"redownload without verification", tasks.OpRedownload, state(types.StatusCompleted, types.VerificationNone, 4)},
		{"redownload with nothing missing", tasks.OpRedownload, state(types.StatusCompleted, types.VerificationCompleted, 0)},
		{"start twice", tasks.OpStart, state(types.StatusRunning, types.VerificationNone, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := seed(t, store, tt.patch)
			published := pub.count()

			_, err := m.Transition(ctx, before.ID, tt.op)
			require.Error(t, err)
			assert.True(t, tasks.IsConflict(err))

			var ce *tasks.ConflictError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.op, ce.Op)
			assert.Equal(t, before.ID, ce.TaskID)

			after, err := store.GetTask(ctx, before.ID)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.Equal(t, published, pub.count())
		})
	}
}

func TestTransitionAppliesAndBroadcasts(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &capture{}
	m := tasks.NewMachine(store, pub, zerolog.Nop(), nil)

	failed := seed(t, store, types.TaskPatch{
		Status:         types.Ptr(types.StatusFailed),
		Progress:       types.Ptr(40),
		TotalTiles:     types.Ptr(10),
		CompletedTiles: types.Ptr(4),
	})

	task, err := m.Transition(ctx, failed.ID, tasks.OpRetry)
	require.NoError(t, err)
	assert.Equal(t, types.StatusQueued, task.Status)
	assert.Zero(t, task.Progress)
	assert.Zero(t, task.TotalTiles)
	assert.Zero(t, task.CompletedTiles)

	task, err = m.Transition(ctx, failed.ID, tasks.OpStart)
	require.NoError(t, err)
	assert.Equal(t, types.StatusRunning, task.Status)

	require.Equal(t, 2, pub.count())
	assert.Equal(t, types.StatusRunning, pub.tasks[1].Status)
}

func TestTransitionNotFound(t *testing.T) {
	m := tasks.NewMachine(memory.New(), nil, zerolog.Nop(), nil)

	_, err := m.Transition(context.Background(), 42, tasks.OpStart)
	assert.ErrorIs(t, err, tasks.ErrNotFound)

	_, err = m.Transition(context.Background(), 42, tasks.OpMarkNonExistent)
	assert.ErrorIs(t, err, tasks.ErrNotFound)
}

func TestUpdateSurvivesBroadcastFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := tasks.PublisherFunc(func(context.Context, *types.Task) error {
		return errors.New("broker down")
	})
	m := tasks.NewMachine(store, pub, zerolog.Nop(), nil)

	task := seed(t, store, types.TaskPatch{})
	updated, err := m.Update(ctx, task.ID, types.TaskPatch{Progress: types.Ptr(10)})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Progress)
}
