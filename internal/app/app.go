// Package app assembles the tile service from configuration. Both binaries
// build their object graph here.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/geoscraper/tile-service/config"
	"github.com/geoscraper/tile-service/internal/broadcast"
	"github.com/geoscraper/tile-service/internal/database"
	"github.com/geoscraper/tile-service/internal/database/memory"
	"github.com/geoscraper/tile-service/internal/fetcher"
	tilehttp "github.com/geoscraper/tile-service/internal/http"
	"github.com/geoscraper/tile-service/internal/http/ratelimit"
	"github.com/geoscraper/tile-service/internal/jobs"
	"github.com/geoscraper/tile-service/internal/metrics"
	"github.com/geoscraper/tile-service/internal/pipeline"
	"github.com/geoscraper/tile-service/internal/providers"
	"github.com/geoscraper/tile-service/internal/storage"
	"github.com/geoscraper/tile-service/internal/tasks"
	"github.com/geoscraper/tile-service/internal/telemetry"
)

// App is the assembled service
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	DB       *database.DB // nil with the memory driver
	Store    tasks.Store
	Ledger   tasks.Ledger
	Cache    storage.TileStore
	Client   *tilehttp.Client
	Registry *providers.Registry
	Hub      *broadcast.Hub
	Machine  *tasks.Machine
	Pipeline *pipeline.Pipeline
	Jobs     *jobs.Manager
	Metrics  *metrics.Recorder
}

// New connects the store and cache and wires every component. Task updates
// go to the Postgres channel when a database is configured, otherwise
// straight to the in-process hub; extra publishers receive every update too.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, extra ...tasks.Publisher) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Hub:     broadcast.NewHub(),
		Metrics: metrics.NewRecorder(),
	}

	registry, err := providers.NewRegistry(cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("invalid provider overrides: %w", err)
	}
	a.Registry = registry

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	cache, err := storage.Open(ctx, storage.Options{
		Type:      storage.StorageType(cfg.Storage.Type),
		Root:      cfg.Storage.Root,
		BucketURL: cfg.Storage.BucketURL,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open tile cache: %w", err)
	}
	a.Cache = cache

	var pub tasks.Publisher = a.Hub
	if a.DB != nil {
		pub = broadcast.NewPGNotifier(a.DB.Pool(), cfg.Broadcast.Channel)
	}
	if len(extra) > 0 {
		pub = append(broadcast.Multi{pub}, extra...)
	}

	a.Machine = tasks.NewMachine(a.Store, pub, logger, a.Metrics)
	a.Client = tilehttp.NewClient(ClientOptions(cfg.Fetch, logger))
	f := fetcher.New(a.Client, a.Cache, logger, a.Metrics)

	a.Pipeline = pipeline.New(a.Machine, a.Ledger, f, a.Cache, a.Registry, logger, a.Metrics, pipeline.Options{
		ProgressInterval:   cfg.Runs.ProgressInterval,
		RedownloadInterval: cfg.Runs.RedownloadProgressInterval,
		VerifyWorkers:      cfg.Runs.VerifyWorkers,
		MaxTiles:           cfg.Runs.MaxTaskTiles,
	})

	instruments, err := telemetry.NewRunInstruments()
	if err != nil {
		logger.Warn().Err(err).Msg("Run instruments unavailable")
	}
	a.Jobs = jobs.NewManager(a.Pipeline, logger, a.Metrics, instruments, cfg.Runs.MaxConcurrent)
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config.Database
	switch cfg.Driver {
	case "memory":
		s := memory.New()
		a.Store, a.Ledger = s, s
		a.Logger.Warn().Msg("Using the in-memory task store; tasks are lost on exit")
		return nil
	case "postgres", "":
	default:
		return fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}

	db, err := database.Connect(ctx, cfg.URL, database.PoolConfig{
		MaxConns:    cfg.MaxConnections,
		MinConns:    cfg.MinConnections,
		MaxLifetime: cfg.MaxConnLifetime,
		MaxIdleTime: cfg.MaxConnIdleTime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetLedgerBatchSize(a.Config.Runs.LedgerBatchSize)

	if cfg.EnsureSchema {
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	a.DB = db
	a.Store, a.Ledger = db, db
	a.Logger.Info().Msg("Database connected")
	return nil
}

// Relay returns the notification relay feeding the hub, or nil when task
// updates are already published to the hub directly
func (a *App) Relay() *broadcast.Relay {
	if a.DB == nil {
		return nil
	}
	return broadcast.NewRelay(a.Config.Database.URL, a.Config.Broadcast.Channel, a.Hub, a.Logger)
}

// Close releases the cache, the store and the hub
func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close tile cache")
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
	a.Hub.Close()
}

// ClientOptions maps fetch settings onto tile client options
func ClientOptions(cfg config.FetchConfig, logger zerolog.Logger) tilehttp.Options {
	opts := tilehttp.DefaultOptions()
	if cfg.Timeout > 0 {
		opts.Timeout = cfg.Timeout
	}
	if cfg.UserAgent != "" {
		opts.UserAgent = cfg.UserAgent
	}
	opts.ProxyURL = cfg.ProxyURL
	opts.Retry = ratelimit.Config{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		MaxRetries:        cfg.MaxRetries,
		InitialBackoffMs:  int(cfg.RetryWait / time.Millisecond),
		MaxBackoffMs:      int(cfg.MaxRetryWait / time.Millisecond),
	}
	opts.Logger = logger
	return opts
}

// TelemetryConfig maps telemetry settings, falling back to the standard
// OTEL_* variables when telemetry is not enabled in configuration
func TelemetryConfig(cfg config.TelemetryConfig) telemetry.Config {
	if !cfg.Enabled {
		return telemetry.GetConfigFromEnv()
	}
	return telemetry.Config{
		Enabled:        true,
		Endpoint:       cfg.Endpoint,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
		ExportInterval: cfg.ExportInterval,
	}
}

// NewLogger builds the root logger. Anything but the json format writes
// human-readable console output.
func NewLogger(cfg config.LoggingConfig, service string) zerolog.Logger {
	return newLogger(os.Stdout, cfg, service)
}

func newLogger(out io.Writer, cfg config.LoggingConfig, service string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, NoColor: cfg.NoColor}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("service", service).Logger()
}
