package tasks

import (
	"context"
	"errors"

	"github.com/geoscraper/tile-service/internal/types"
)

var (
	// ErrNotFound is returned when a task id does not exist
	ErrNotFound = errors.New("task not found")

	// ErrPreconditionFailed is returned by Store.UpdateTaskIf when the guard does not hold
	ErrPreconditionFailed = errors.New("task precondition failed")
)

// Store persists task rows. Every method is a single statement against the store.
type Store interface {
	CreateTask(ctx context.Context, t types.NewTask) (*types.Task, error)
	GetTask(ctx context.Context, id int64) (*types.Task, error)
	ListTasks(ctx context.Context) ([]*types.Task, error)
	UpdateTask(ctx context.Context, id int64, patch types.TaskPatch) (*types.Task, error)
	// UpdateTaskIf applies patch only when guard holds for the current row
	UpdateTaskIf(ctx context.Context, id int64, guard types.Guard, patch types.TaskPatch) (*types.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	// RecoverInterrupted fails every task and verification left running and returns the changed rows
	RecoverInterrupted(ctx context.Context) ([]*types.Task, error)
	Ping(ctx context.Context) error
}

// Ledger persists tile anomaly records keyed by (taskId, z, x, y)
type Ledger interface {
	ListTiles(ctx context.Context, taskID int64, kind types.TileKind) ([]types.TileCoord, error)
	// PageTiles returns at most limit rows of kind after skipping offset, in ListTiles order
	PageTiles(ctx context.Context, taskID int64, kind types.TileKind, offset, limit int) ([]types.TileCoord, error)
	CountTiles(ctx context.Context, taskID int64, kind types.TileKind) (int, error)
	// DeleteTiles removes every row of kind for the task
	DeleteTiles(ctx context.Context, taskID int64, kind types.TileKind) (int64, error)
	// DeleteTileSet removes the rows of kind matching coords
	DeleteTileSet(ctx context.Context, taskID int64, kind types.TileKind, coords []types.TileCoord) (int64, error)
	// InsertTiles adds rows, leaving existing rows for the same coordinate untouched
	InsertTiles(ctx context.Context, taskID int64, kind types.TileKind, coords []types.TileCoord) error
	// UpsertTiles adds rows, overwriting the kind of existing rows for the same coordinate
	UpsertTiles(ctx context.Context, taskID int64, kind types.TileKind, coords []types.TileCoord) error
}

// Publisher broadcasts task snapshots to observers
type Publisher interface {
	Publish(ctx context.Context, t *types.Task) error
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(ctx context.Context, t *types.Task) error

// Publish calls f
func (f PublisherFunc) Publish(ctx context.Context, t *types.Task) error {
	return f(ctx, t)
}
