package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tilehttp "github.com/geoscraper/tile-service/internal/http"
	"github.com/geoscraper/tile-service/internal/providers"
	"github.com/geoscraper/tile-service/internal/storage"
	"github.com/geoscraper/tile-service/internal/types"
)

type tileServer struct {
	*httptest.Server
	hits atomic.Int32
}

// newTileServer answers /{z}/{x}/{y}.png with a body derived from the path,
// or with the given status for every request when status is non-zero.
func newTileServer(t *testing.T, status int) *tileServer {
	ts := &tileServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.hits.Add(1)
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		fmt.Fprintf(w, "tile:%s", r.URL.Path)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newFetcher(t *testing.T, srv *tileServer) (*Fetcher, Job, afero.Fs) {
	fs := afero.NewMemMapFs()
	store, err := storage.NewLocalStorageFs(fs, "/cache")
	require.NoError(t, err)

	opts := tilehttp.DefaultOptions()
	opts.Retry.InitialBackoffMs = 1
	opts.Retry.MaxBackoffMs = 1

	f := New(tilehttp.NewClient(opts), store, zerolog.Nop(), nil)
	job := Job{
		TaskID: 1,
		Provider: providers.Provider{
			MapType:     providers.OSMStandard,
			URLTemplate: srv.URL + "/{z}/{x}/{y}.png",
		},
	}
	return f, job, fs
}

var coord = types.TileCoord{Z: 5, X: 16, Y: 15}

const tilePath = "/cache/osm-standard/5/16/15.png"

func TestFetchIsIdempotent(t *testing.T) {
	srv := newTileServer(t, 0)
	f, job, fs := newFetcher(t, srv)
	ctx := context.Background()

	assert.Equal(t, Downloaded, f.Fetch(ctx, job, coord))
	first, err := afero.ReadFile(fs, tilePath)
	require.NoError(t, err)
	assert.Equal(t, "tile:/5/16/15.png", string(first))

	assert.Equal(t, SkippedExists, f.Fetch(ctx, job, coord))
	second, err := afero.ReadFile(fs, tilePath)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestFetchOverwritesZeroByteTile(t *testing.T) {
	srv := newTileServer(t, 0)
	f, job, fs := newFetcher(t, srv)

	require.NoError(t, afero.WriteFile(fs, tilePath, nil, 0644))

	assert.Equal(t, Downloaded, f.Fetch(context.Background(), job, coord))
	data, err := afero.ReadFile(fs, tilePath)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestFetchClassifiesRemoteFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		outcome  Outcome
		attempts int32
	}{
		{"missing tile", http.StatusNotFound, Skipped404, 1},
		{"forbidden", http.StatusForbidden, Failed, 1},
		{"exhausted retries", http.StatusBadGateway, Failed, 4},
		{"empty body", http.StatusOK, Failed, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTileServer(t, tt.status)
			f, job, fs := newFetcher(t, srv)

			assert.Equal(t, tt.outcome, f.Fetch(context.Background(), job, coord))
			assert.Equal(t, tt.attempts, srv.hits.Load())

			exists, err := afero.Exists(fs, tilePath)
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

type brokenStore struct {
	storage.TileStore
}

func (brokenStore) Stat(context.Context, string) (int64, error) {
	return 0, errors.New("permission denied")
}

func TestFetchStatErrorFails(t *testing.T) {
	srv := newTileServer(t, 0)
	f, job, _ := newFetcher(t, srv)
	f.store = brokenStore{}

	assert.Equal(t, Failed, f.Fetch(context.Background(), job, coord))
	assert.Zero(t, srv.hits.Load())
}

func TestFetchWaitsDelayFirst(t *testing.T) {
	srv := newTileServer(t, 0)
	f, job, _ := newFetcher(t, srv)

	var slept []time.Duration
	f.sleep = func(_ context.Context, d time.Duration) error {
		assert.Zero(t, srv.hits.Load(), "delay happens before the request")
		slept = append(slept, d)
		return nil
	}
	job.Delay = 200 * time.Millisecond

	assert.Equal(t, Downloaded, f.Fetch(context.Background(), job, coord))
	assert.Equal(t, []time.Duration{200 * time.Millisecond}, slept)
}

func TestFetchCancelledDuringDelay(t *testing.T) {
	srv := newTileServer(t, 0)
	f, job, _ := newFetcher(t, srv)
	job.Delay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, Failed, f.Fetch(ctx, job, coord))
	assert.Zero(t, srv.hits.Load())
}

func TestOutcomeProcessed(t *testing.T) {
	assert.True(t, Downloaded.Processed())
	assert.True(t, Skipped404.Processed())
	assert.True(t, SkippedExists.Processed())
	assert.False(t, Failed.Processed())
}
