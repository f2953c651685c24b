package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoscraper/tile-service/internal/database/memory"
	"github.com/geoscraper/tile-service/internal/fetcher"
	tilehttp "github.com/geoscraper/tile-service/internal/http"
	"github.com/geoscraper/tile-service/internal/pipeline"
	"github.com/geoscraper/tile-service/internal/providers"
	"github.com/geoscraper/tile-service/internal/storage"
	"github.com/geoscraper/tile-service/internal/tasks"
	"github.com/geoscraper/tile-service/internal/types"
)

type fixture struct {
	store   *memory.Store
	manager *Manager
	hits    atomic.Int32
	gate    chan struct{}
}

// newFixture builds a manager over a tile server that blocks every request
// until gate is closed when gated is set
func newFixture(t *testing.T, maxConcurrent int, gated bool, ledger tasks.Ledger) *fixture {
	fx := &fixture{store: memory.New(), gate: make(chan struct{})}
	if !gated {
		close(fx.gate)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fx.hits.Add(1)
		<-fx.gate
		fmt.Fprintf(w, "tile:%s", r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		select {
		case <-fx.gate:
		default:
			close(fx.gate)
		}
	})

	registry, err := providers.NewRegistry(map[string]string{
		string(providers.OSMStandard): srv.URL + "/{z}/{x}/{y}.png",
	})
	require.NoError(t, err)
	cache, err := storage.NewLocalStorageFs(afero.NewMemMapFs(), "/tiles")
	require.NoError(t, err)

	if ledger == nil {
		ledger = fx.store
	}
	machine := tasks.NewMachine(fx.store, nil, zerolog.Nop(), nil)
	f := fetcher.New(tilehttp.NewClient(tilehttp.DefaultOptions()), cache, zerolog.Nop(), nil)
	p := pipeline.New(machine, ledger, f, cache, registry, zerolog.Nop(), nil, pipeline.Options{})
	fx.manager = NewManager(p, zerolog.Nop(), nil, nil, maxConcurrent)
	return fx
}

func (fx *fixture) create(t *testing.T) *types.Task {
	task, err := fx.store.CreateTask(context.Background(), types.NewTask{
		Name:    "single tile",
		MapType: string(providers.OSMStandard),
		Bounds: types.Bounds{
			SW: types.LatLng{Lat: 1, Lng: 1},
			NE: types.LatLng{Lat: 2, Lng: 2},
		},
		ZoomLevels:  []int{5},
		Concurrency: 2,
	})
	require.NoError(t, err)
	return task
}

func wait(t *testing.T, run *Run) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return run.Wait(ctx)
}

func TestStartAcquisitionRunsToCompletion(t *testing.T) {
	fx := newFixture(t, 2, false, nil)
	task := fx.create(t)

	run, err := fx.manager.StartAcquisition(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.KindAcquire, run.Kind)
	require.NoError(t, wait(t, run))

	got, err := fx.store.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Zero(t, fx.manager.Active())

	_, err = fx.manager.StartAcquisition(context.Background(), task.ID)
	assert.True(t, tasks.IsConflict(err))
}

func TestConcurrentStartsClaimOnce(t *testing.T) {
	fx := newFixture(t, 2, false, nil)
	task := fx.create(t)

	var wg sync.WaitGroup
	var accepted atomic.Int32
	var conflicts atomic.Int32
	runs := make(chan *Run, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run, err := fx.manager.StartAcquisition(context.Background(), task.ID)
			switch {
			case err == nil:
				accepted.Add(1)
				runs <- run
			case tasks.IsConflict(err):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()
	close(runs)

	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int32(7), conflicts.Load())
	for run := range runs {
		require.NoError(t, wait(t, run))
	}
	assert.Equal(t, int32(1), fx.hits.Load())
}

func TestDeleteCancelsPendingRun(t *testing.T) {
	fx := newFixture(t, 1, true, nil)
	first := fx.create(t)
	second := fx.create(t)

	running, err := fx.manager.StartAcquisition(context.Background(), first.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return fx.hits.Load() == 1 }, 5*time.Second, 5*time.Millisecond)

	pending, err := fx.manager.StartAcquisition(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, fx.manager.Active())

	require.NoError(t, fx.manager.Delete(context.Background(), second.ID))
	assert.ErrorIs(t, wait(t, pending), context.Canceled)

	_, err = fx.store.GetTask(context.Background(), second.ID)
	assert.ErrorIs(t, err, tasks.ErrNotFound)

	close(fx.gate)
	require.NoError(t, wait(t, running))
	assert.Equal(t, int32(1), fx.hits.Load())

	assert.ErrorIs(t, fx.manager.Delete(context.Background(), second.ID), tasks.ErrNotFound)
}

type panickingLedger struct{ tasks.Ledger }

func (panickingLedger) ListTiles(context.Context, int64, types.TileKind) ([]types.TileCoord, error) {
	panic("ledger exploded")
}

func TestPanicBecomesFailureState(t *testing.T) {
	fx := newFixture(t, 1, false, panickingLedger{})
	task := fx.create(t)
	_, err := fx.store.UpdateTask(context.Background(), task.ID, types.TaskPatch{Status: types.Ptr(types.StatusCompleted)})
	require.NoError(t, err)

	run, err := fx.manager.StartVerification(context.Background(), task.ID)
	require.NoError(t, err)
	err = wait(t, run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger exploded")

	got, err := fx.store.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.VerificationFailed, got.VerificationStatus)
	assert.Equal(t, types.StatusCompleted, got.Status)

	// a failed verification may be started again
	assert.True(t, tasks.Allowed(tasks.OpVerify, got))
}

func TestRetryResetsFailedTask(t *testing.T) {
	fx := newFixture(t, 1, false, nil)
	task := fx.create(t)

	_, err := fx.manager.Retry(context.Background(), task.ID)
	assert.True(t, tasks.IsConflict(err))

	_, err = fx.store.UpdateTask(context.Background(), task.ID, types.TaskPatch{
		Status:         types.Ptr(types.StatusFailed),
		Progress:       types.Ptr(40),
		CompletedTiles: types.Ptr(4),
		TotalTiles:     types.Ptr(10),
	})
	require.NoError(t, err)

	got, err := fx.manager.Retry(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusQueued, got.Status)
	assert.Zero(t, got.Progress)
	assert.Zero(t, got.CompletedTiles)
	assert.Zero(t, got.TotalTiles)
	assert.Zero(t, fx.manager.Active())
}

func TestRecoverInterrupted(t *testing.T) {
	fx := newFixture(t, 1, false, nil)
	running := fx.create(t)
	verifying := fx.create(t)
	idle := fx.create(t)

	_, err := fx.store.UpdateTask(context.Background(), running.ID, types.TaskPatch{Status: types.Ptr(types.StatusRunning)})
	require.NoError(t, err)
	_, err = fx.store.UpdateTask(context.Background(), verifying.ID, types.TaskPatch{
		Status:             types.Ptr(types.StatusCompleted),
		VerificationStatus: types.Ptr(types.VerificationRunning),
	})
	require.NoError(t, err)

	n, err := fx.manager.RecoverInterrupted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, _ := fx.store.GetTask(context.Background(), running.ID)
	assert.Equal(t, types.StatusFailed, got.Status)
	got, _ = fx.store.GetTask(context.Background(), verifying.ID)
	assert.Equal(t, types.VerificationFailed, got.VerificationStatus)
	got, _ = fx.store.GetTask(context.Background(), idle.ID)
	assert.Equal(t, types.StatusQueued, got.Status)
}

func TestShutdownRejectsNewRuns(t *testing.T) {
	fx := newFixture(t, 1, false, nil)
	task := fx.create(t)

	require.NoError(t, fx.manager.Shutdown(context.Background()))
	_, err := fx.manager.StartAcquisition(context.Background(), task.ID)
	assert.True(t, errors.Is(err, ErrShuttingDown))

	got, err := fx.store.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusQueued, got.Status)
}

func TestShutdownTimeoutFailsRunningRuns(t *testing.T) {
	fx := newFixture(t, 1, true, nil)
	task := fx.create(t)

	run, err := fx.manager.StartAcquisition(context.Background(), task.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return fx.hits.Load() == 1 }, 5*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, fx.manager.Shutdown(ctx), context.DeadlineExceeded)

	<-run.Done()
	got, err := fx.store.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, got.Status)
}

func TestShutdownWaitsForRunsAcceptedDuringTeardown(t *testing.T) {
	fx := newFixture(t, 4, false, nil)
	const n = 20
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = fx.create(t).ID
	}

	ready := make(chan struct{})
	accepted := make([]bool, n)
	var wg sync.WaitGroup
	for i, id := range ids {
		i, id := i, id
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ready
			_, err := fx.manager.StartAcquisition(context.Background(), id)
			if err == nil {
				accepted[i] = true
				return
			}
			assert.ErrorIs(t, err, ErrShuttingDown)
		}()
	}

	close(ready)
	require.NoError(t, fx.manager.Shutdown(context.Background()))
	wg.Wait()

	// once Shutdown returns no accepted run may still hold its task
	for i, id := range ids {
		got, err := fx.store.GetTask(context.Background(), id)
		require.NoError(t, err)
		if accepted[i] {
			assert.Equal(t, types.StatusCompleted, got.Status, "task %d", id)
		} else {
			assert.Equal(t, types.StatusQueued, got.Status, "task %d", id)
		}
	}
	assert.Zero(t, fx.manager.Active())
}
