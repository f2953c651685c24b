// Package jobs is the job-trigger surface. Each entry point claims its state
// transition atomically and returns at once; the run itself executes on a
// detached goroutine bounded by a process-wide run limit.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/geoscraper/tile-service/internal/metrics"
	"github.com/geoscraper/tile-service/internal/pipeline"
	"github.com/geoscraper/tile-service/internal/tasks"
	"github.com/geoscraper/tile-service/internal/telemetry"
	"github.com/geoscraper/tile-service/internal/types"
)

// DefaultMaxConcurrent is the default number of runs executing at once
const DefaultMaxConcurrent = 10

// ErrShuttingDown is returned by entry points after Shutdown
var ErrShuttingDown = errors.New("job manager is shutting down")

// Manager launches and tracks task runs
type Manager struct {
	pipe        *pipeline.Pipeline
	machine     *tasks.Machine
	logger      zerolog.Logger
	metrics     *metrics.Recorder
	instruments *telemetry.RunInstruments
	slots       *semaphore.Weighted

	base   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	runs     map[int64]*Run
	stopping bool
	wg       sync.WaitGroup
}

// NewManager creates a manager allowing maxConcurrent runs at once
func NewManager(p *pipeline.Pipeline, logger zerolog.Logger, m *metrics.Recorder, inst *telemetry.RunInstruments, maxConcurrent int) *Manager {
	if maxConcurrent < 1 {
		maxConcurrent = DefaultMaxConcurrent
	}
	base, cancel := context.WithCancel(context.Background())
	return &Manager{
		pipe:        p,
		machine:     p.Machine(),
		logger:      logger.With().Str("component", "jobs").Logger(),
		metrics:     m,
		instruments: inst,
		slots:       semaphore.NewWeighted(int64(maxConcurrent)),
		base:        base,
		cancel:      cancel,
		runs:        make(map[int64]*Run),
	}
}

// StartAcquisition claims queued -> running and launches the acquisition
func (m *Manager) StartAcquisition(ctx context.Context, taskID int64) (*Run, error) {
	return m.start(ctx, taskID, tasks.OpStart, pipeline.KindAcquire)
}

// StartVerification claims the verification and launches it
func (m *Manager) StartVerification(ctx context.Context, taskID int64) (*Run, error) {
	return m.start(ctx, taskID, tasks.OpVerify, pipeline.KindVerify)
}

// StartRedownload claims completed -> running and launches the redownload
func (m *Manager) StartRedownload(ctx context.Context, taskID int64) (*Run, error) {
	return m.start(ctx, taskID, tasks.OpRedownload, pipeline.KindRedownload)
}

// Retry moves a failed task back to queued with its counters reset. It does
// not start a run.
func (m *Manager) Retry(ctx context.Context, taskID int64) (*types.Task, error) {
	return m.machine.Transition(ctx, taskID, tasks.OpRetry)
}

// MarkNonExistent reclassifies tiles as non-existent
func (m *Manager) MarkNonExistent(ctx context.Context, taskID int64, coords []types.TileCoord) (*types.Task, error) {
	return m.pipe.MarkNonExistent(ctx, taskID, coords)
}

// Delete cancels the task's run if it has not started yet, then deletes the
// task and its ledger. Cached tiles are shared and stay.
func (m *Manager) Delete(ctx context.Context, taskID int64) error {
	m.mu.Lock()
	if run, ok := m.runs[taskID]; ok && !run.started {
		run.cancel()
		delete(m.runs, taskID)
		m.logger.Info().Int64("task_id", taskID).Str("run_id", run.ID.String()).Msg("Cancelled pending run")
	}
	m.mu.Unlock()

	return m.machine.Store().DeleteTask(ctx, taskID)
}

// RecoverInterrupted fails runs a previous process left running and
// broadcasts each recovered task
func (m *Manager) RecoverInterrupted(ctx context.Context) (int, error) {
	recovered, err := m.machine.Store().RecoverInterrupted(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to recover interrupted runs: %w", err)
	}
	for _, t := range recovered {
		m.logger.Warn().
			Int64("task_id", t.ID).
			Str("status", string(t.Status)).
			Str("verification_status", string(t.VerificationStatus)).
			Msg("Recovered interrupted run")
		m.machine.Publish(ctx, t)
	}
	return len(recovered), nil
}

// Active returns the number of pending and running runs
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

// Shutdown stops accepting runs and waits for running ones. When ctx expires
// first, remaining runs are cancelled and recorded as failed.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.stopping = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		<-done
		return ctx.Err()
	}
}

func (m *Manager) start(ctx context.Context, taskID int64, op tasks.Op, kind pipeline.Kind) (*Run, error) {
	// The wait group slot is reserved under mu together with the stopping
	// check, so Shutdown's Wait never races an Add.
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil, ErrShuttingDown
	}
	m.wg.Add(1)
	m.mu.Unlock()

	t, err := m.machine.Transition(ctx, taskID, op)
	if err != nil {
		m.wg.Done()
		return nil, err
	}
	return m.launch(kind, t), nil
}

// launch starts the run on the wait group slot reserved by start
func (m *Manager) launch(kind pipeline.Kind, t *types.Task) *Run {
	runCtx, cancel := context.WithCancel(m.base)
	run := newRun(kind, t, cancel)

	m.mu.Lock()
	m.runs[t.ID] = run
	m.mu.Unlock()

	m.logger.Info().
		Int64("task_id", t.ID).
		Str("run_id", run.ID.String()).
		Str("kind", string(kind)).
		Msg("Run accepted")

	go m.execute(runCtx, run, t)
	return run
}

func (m *Manager) execute(ctx context.Context, run *Run, t *types.Task) {
	defer m.wg.Done()
	defer close(run.done)
	defer run.cancel()

	if err := m.slots.Acquire(ctx, 1); err != nil {
		run.err = err
		m.forget(run)
		m.fail(ctx, run, err)
		return
	}
	defer m.slots.Release(1)

	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		run.err = ctx.Err()
		m.fail(ctx, run, run.err)
		return
	}
	run.started = true
	m.mu.Unlock()
	defer m.forget(run)

	kind := string(run.Kind)
	start := time.Now()
	m.metrics.RunStarted(kind)

	err := safeRun(ctx, m.pipe, run.Kind, t)

	elapsed := time.Since(start)
	m.metrics.RunFinished(kind, err == nil, elapsed)
	m.instruments.RecordRun(ctx, kind, err == nil, m.processed(ctx, run), elapsed)

	if err != nil {
		run.err = err
		m.fail(ctx, run, err)
		return
	}

	m.logger.Info().
		Int64("task_id", run.TaskID).
		Str("run_id", run.ID.String()).
		Str("kind", kind).
		Dur("duration", elapsed).
		Msg("Run finished")
}

// fail records the run's failure state unless the task is gone
func (m *Manager) fail(ctx context.Context, run *Run, cause error) {
	err := m.pipe.Fail(ctx, run.Kind, run.TaskID, cause)
	if err == nil || errors.Is(err, tasks.ErrNotFound) {
		return
	}
	m.logger.Error().Err(err).Int64("task_id", run.TaskID).Str("run_id", run.ID.String()).Msg("Failed to record run failure")
}

// processed reads the tile count the run reached, for run instruments
func (m *Manager) processed(ctx context.Context, run *Run) int {
	t, err := m.machine.Get(context.WithoutCancel(ctx), run.TaskID)
	if err != nil {
		return 0
	}
	if run.Kind == pipeline.KindVerify {
		return t.VerifiedTiles + t.MissingTiles
	}
	return t.CompletedTiles
}

func (m *Manager) forget(run *Run) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runs[run.TaskID] == run {
		delete(m.runs, run.TaskID)
	}
}
