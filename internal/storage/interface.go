package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/geoscraper/tile-service/internal/types"
)

// ErrNotExist is returned when a key is not present in the cache
var ErrNotExist = errors.New("tile not found in cache")

// TileStore is the shared tile cache. Keys are slash separated and never
// depend on a task, so tasks with the same map type share files.
// Implementations can be local filesystem, S3, GCS, etc.
type TileStore interface {
	// Stat returns the stored size of key, or ErrNotExist
	Stat(ctx context.Context, key string) (int64, error)

	// Put stores content at key as a whole; readers never observe a partial file
	Put(ctx context.Context, key string, content []byte) error

	// Get retrieves content from key
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Close releases the backend
	Close() error
}

// StorageType represents the type of storage backend
type StorageType string

const (
	StorageTypeLocal  StorageType = "local"
	StorageTypeBucket StorageType = "bucket"
)

// Options selects and configures a backend
type Options struct {
	Type      StorageType
	Root      string
	BucketURL string
}

// Open creates the backend described by opts
func Open(ctx context.Context, opts Options) (TileStore, error) {
	switch opts.Type {
	case StorageTypeLocal, "":
		return NewLocalStorage(opts.Root)
	case StorageTypeBucket:
		return OpenBucketStorage(ctx, opts.BucketURL)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", opts.Type)
	}
}

// TileKey builds the cache key {mapType}/{z}/{x}/{y}.png
func TileKey(mapType string, c types.TileCoord) string {
	return fmt.Sprintf("%s/%d/%d/%d.png", mapType, c.Z, c.X, c.Y)
}
