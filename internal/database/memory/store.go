// Package memory is an in-process task store and ledger with the same
// semantics as the Postgres store. It backs tests and single-process dev runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geoscraper/tile-service/internal/tasks"
	"github.com/geoscraper/tile-service/internal/types"
)

// Store implements tasks.Store and tasks.Ledger
type Store struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]*types.Task
	ledger map[int64]map[types.TileCoord]types.TileKind
	now    func() time.Time
}

var (
	_ tasks.Store  = (*Store)(nil)
	_ tasks.Ledger = (*Store)(nil)
)

// New creates an empty store
func New() *Store {
	return &Store{
		tasks:  make(map[int64]*types.Task),
		ledger: make(map[int64]map[types.TileCoord]types.TileKind),
		now:    time.Now,
	}
}

// CreateTask inserts a queued task
func (s *Store) CreateTask(ctx context.Context, nt types.NewTask) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := s.now()
	t := &types.Task{
		ID:                 s.nextID,
		Name:               nt.Name,
		Description:        nt.Description,
		MapType:            nt.MapType,
		Bounds:             nt.Bounds,
		ZoomLevels:         append([]int(nil), nt.ZoomLevels...),
		Concurrency:        nt.Concurrency,
		DownloadDelay:      nt.DownloadDelay,
		Status:             types.StatusQueued,
		VerificationStatus: types.VerificationNone,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	s.tasks[t.ID] = t
	return t.Clone(), nil
}

// GetTask returns a copy of the task
func (s *Store) GetTask(ctx context.Context, id int64) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, tasks.ErrNotFound
	}
	return t.Clone(), nil
}

// ListTasks returns all tasks, newest first
func (s *Store) ListTasks(ctx context.Context) ([]*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*types.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateTask applies patch unconditionally
func (s *Store) UpdateTask(ctx context.Context, id int64, patch types.TaskPatch) (*types.Task, error) {
	return s.UpdateTaskIf(ctx, id, types.Guard{}, patch)
}

// UpdateTaskIf applies patch when guard holds
func (s *Store) UpdateTaskIf(ctx context.Context, id int64, guard types.Guard, patch types.TaskPatch) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, tasks.ErrNotFound
	}
	if !guard.Allows(t) {
		return nil, tasks.ErrPreconditionFailed
	}
	patch.Apply(t)
	t.UpdatedAt = s.now()
	return t.Clone(), nil
}

// DeleteTask removes the task and its ledger
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return tasks.ErrNotFound
	}
	delete(s.tasks, id)
	delete(s.ledger, id)
	return nil
}

// RecoverInterrupted fails running tasks and verifications
func (s *Store) RecoverInterrupted(ctx context.Context) ([]*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []*types.Task
	for _, t := range s.tasks {
		dirty := false
		if t.Status == types.StatusRunning {
			t.Status = types.StatusFailed
			dirty = true
		}
		if t.VerificationStatus == types.VerificationRunning {
			t.VerificationStatus = types.VerificationFailed
			dirty = true
		}
		if dirty {
			t.UpdatedAt = s.now()
			changed = append(changed, t.Clone())
		}
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i].ID < changed[j].ID })
	return changed, nil
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// ListTiles returns the task's coordinates of kind ordered by z, x, y
func (s *Store) ListTiles(ctx context.Context, taskID int64, kind types.TileKind) ([]types.TileCoord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.TileCoord
	for c, k := range s.ledger[taskID] {
		if k == kind {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
	return out, nil
}

// PageTiles returns one page of ListTiles
func (s *Store) PageTiles(ctx context.Context, taskID int64, kind types.TileKind, offset, limit int) ([]types.TileCoord, error) {
	all, err := s.ListTiles(ctx, taskID, kind)
	if err != nil {
		return nil, err
	}
	if offset >= len(all) {
		return []types.TileCoord{}, nil
	}
	return all[offset:min(offset+limit, len(all))], nil
}

// CountTiles counts the task's rows of kind
func (s *Store) CountTiles(ctx context.Context, taskID int64, kind types.TileKind) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, k := range s.ledger[taskID] {
		if k == kind {
			n++
		}
	}
	return n, nil
}

// DeleteTiles removes every row of kind
func (s *Store) DeleteTiles(ctx context.Context, taskID int64, kind types.TileKind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for c, k := range s.ledger[taskID] {
		if k == kind {
			delete(s.ledger[taskID], c)
			n++
		}
	}
	return n, nil
}

// DeleteTileSet removes rows of kind at coords
func (s *Store) DeleteTileSet(ctx context.Context, taskID int64, kind types.TileKind, coords []types.TileCoord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	rows := s.ledger[taskID]
	for _, c := range coords {
		if k, ok := rows[c]; ok && k == kind {
			delete(rows, c)
			n++
		}
	}
	return n, nil
}

// InsertTiles adds rows, keeping existing ones
func (s *Store) InsertTiles(ctx context.Context, taskID int64, kind types.TileKind, coords []types.TileCoord) error {
	return s.write(taskID, kind, coords, false)
}

// UpsertTiles adds rows, overwriting the kind of existing ones
func (s *Store) UpsertTiles(ctx context.Context, taskID int64, kind types.TileKind, coords []types.TileCoord) error {
	return s.write(taskID, kind, coords, true)
}

func (s *Store) write(taskID int64, kind types.TileKind, coords []types.TileCoord, overwrite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[taskID]; !ok {
		return tasks.ErrNotFound
	}
	rows, ok := s.ledger[taskID]
	if !ok {
		rows = make(map[types.TileCoord]types.TileKind)
		s.ledger[taskID] = rows
	}
	for _, c := range coords {
		if _, exists := rows[c]; exists && !overwrite {
			continue
		}
		rows[c] = kind
	}
	return nil
}
