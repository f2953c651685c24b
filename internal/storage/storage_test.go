package storage

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoscraper/tile-service/internal/types"
)

func TestTileKey(t *testing.T) {
	assert.Equal(t, "osm-standard/5/16/15.png", TileKey("osm-standard", types.TileCoord{Z: 5, X: 16, Y: 15}))
}

func backends(t *testing.T) map[string]TileStore {
	local, err := NewLocalStorageFs(afero.NewMemMapFs(), "/tiles")
	require.NoError(t, err)

	bucket, err := OpenBucketStorage(context.Background(), "mem://")
	require.NoError(t, err)
	t.Cleanup(func() { bucket.Close() })

	return map[string]TileStore{"local": local, "bucket": bucket}
}

func TestTileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := "osm-topo/3/1/2.png"

			_, err := store.Stat(ctx, key)
			assert.ErrorIs(t, err, ErrNotExist)

			require.NoError(t, store.Put(ctx, key, []byte("abc")))
			size, err := store.Stat(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, int64(3), size)

			require.NoError(t, store.Put(ctx, key, []byte("abcdef")))
			data, err := store.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, "abcdef", string(data))

			require.NoError(t, store.Delete(ctx, key))
			require.NoError(t, store.Delete(ctx, key))
			_, err = store.Get(ctx, key)
			assert.ErrorIs(t, err, ErrNotExist)
		})
	}
}

func TestLocalStoragePutLeavesNoTempFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	store, err := NewLocalStorageFs(fs, "/tiles")
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "osm-topo/3/1/2.png", []byte("abc")))

	entries, err := afero.ReadDir(fs, "/tiles/osm-topo/3/1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2.png", entries[0].Name())
}

func TestLocalStorageZeroByteFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	store, err := NewLocalStorageFs(fs, "/tiles")
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fs, "/tiles/osm-topo/3/1/2.png", nil, 0644))
	size, err := store.Stat(context.Background(), "osm-topo/3/1/2.png")
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestLocalStorageKeyCannotEscapeRoot(t *testing.T) {
	store, err := NewLocalStorageFs(afero.NewMemMapFs(), "/tiles")
	require.NoError(t, err)

	assert.Equal(t, "/tiles/etc/passwd", store.Path("../../etc/passwd"))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Type: StorageTypeLocal, Root: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	s, err = Open(ctx, Options{Type: StorageTypeBucket, BucketURL: "mem://"})
	require.NoError(t, err)
	assert.IsType(t, &BucketStorage{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Options{Type: "ftp"})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Type: StorageTypeBucket})
	assert.Error(t, err)
}
