// Package fetcher downloads single tiles into the shared cache.
package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	tilehttp "github.com/geoscraper/tile-service/internal/http"
	"github.com/geoscraper/tile-service/internal/http/ratelimit"
	"github.com/geoscraper/tile-service/internal/metrics"
	"github.com/geoscraper/tile-service/internal/providers"
	"github.com/geoscraper/tile-service/internal/storage"
	"github.com/geoscraper/tile-service/internal/types"
)

// Outcome is the terminal classification of one fetch
type Outcome string

const (
	Downloaded    Outcome = "downloaded"
	Skipped404    Outcome = "skipped_404"
	SkippedExists Outcome = "skipped_exists"
	Failed        Outcome = "failed"
)

// Processed reports whether the outcome counts toward progress
func (o Outcome) Processed() bool {
	return o != Failed
}

// Getter fetches a URL. *tilehttp.Client implements it.
type Getter interface {
	GetBytes(ctx context.Context, url string) ([]byte, error)
}

// Job carries the task context a fetch needs
type Job struct {
	TaskID   int64
	Provider providers.Provider
	Delay    time.Duration
}

// Fetcher fetches one tile at a time; it is safe for concurrent use
type Fetcher struct {
	client  Getter
	store   storage.TileStore
	logger  zerolog.Logger
	metrics *metrics.Recorder
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a fetcher writing into store
func New(client Getter, store storage.TileStore, logger zerolog.Logger, m *metrics.Recorder) *Fetcher {
	return &Fetcher{
		client:  client,
		store:   store,
		logger:  logger.With().Str("component", "fetcher").Logger(),
		metrics: m,
		sleep:   sleepCtx,
	}
}

// Fetch waits the job delay, skips tiles already cached with a non-zero size,
// and otherwise downloads the tile. Errors are logged and classified, never returned.
func (f *Fetcher) Fetch(ctx context.Context, job Job, c types.TileCoord) Outcome {
	start := time.Now()
	outcome := f.fetch(ctx, job, c)
	f.metrics.RecordTile(string(job.Provider.MapType), string(outcome), time.Since(start))
	return outcome
}

func (f *Fetcher) fetch(ctx context.Context, job Job, c types.TileCoord) Outcome {
	log := f.logger.With().
		Int64("task_id", job.TaskID).
		Str("map_type", string(job.Provider.MapType)).
		Int("z", c.Z).Int("x", c.X).Int("y", c.Y).
		Logger()

	if job.Delay > 0 {
		if err := f.sleep(ctx, job.Delay); err != nil {
			log.Warn().Err(err).Msg("Tile delay interrupted")
			return Failed
		}
	}

	key := storage.TileKey(string(job.Provider.MapType), c)

	size, err := f.store.Stat(ctx, key)
	switch {
	case err == nil && size > 0:
		return SkippedExists
	case err == nil:
		log.Debug().Str("key", key).Msg("Overwriting zero-byte tile")
	case errors.Is(err, storage.ErrNotExist):
	default:
		log.Warn().Err(err).Str("key", key).Msg("Failed to check cached tile")
		return Failed
	}

	url := job.Provider.TileURL(c)
	body, err := f.client.GetBytes(ctx, url)
	if err != nil {
		if tilehttp.IsNotFound(err) {
			return Skipped404
		}
		log.Warn().Err(err).Int("status", ratelimit.StatusOf(err)).Msg("Tile fetch failed")
		return Failed
	}
	if len(body) == 0 {
		log.Warn().Str("url", url).Msg("Tile server returned an empty body")
		return Failed
	}

	if err := f.store.Put(ctx, key, body); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to write tile")
		return Failed
	}
	f.metrics.RecordBytes(string(job.Provider.MapType), len(body))

	return Downloaded
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
