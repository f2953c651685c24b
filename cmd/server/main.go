// @title Tile Service API
// @version 1.0
// @description Map tile acquisition: tasks, verification, redownload and live progress.
// @BasePath /
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/geoscraper/tile-service/config"
	_ "github.com/geoscraper/tile-service/docs"
	"github.com/geoscraper/tile-service/internal/app"
	"github.com/geoscraper/tile-service/internal/handlers"
	"github.com/geoscraper/tile-service/internal/middleware"
	"github.com/geoscraper/tile-service/internal/telemetry"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg.Logging, "tile-service")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Server exited")
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	logger.Info().Msg("Starting tile service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, app.TelemetryConfig(cfg.Telemetry))
	if err != nil {
		logger.Warn().Err(err).Msg("Telemetry disabled")
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if n, err := a.Jobs.RecoverInterrupted(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to recover interrupted runs")
	} else if n > 0 {
		logger.Info().Int("count", n).Msg("Marked interrupted runs as failed")
	}

	if relay := a.Relay(); relay != nil {
		go func() {
			if err := relay.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("Notification relay stopped")
			}
		}()
	}

	limiter := middleware.NewIPRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		BurstSize:         cfg.API.Burst,
	})
	go limiter.RunCleanup(ctx, 5*time.Minute)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	h := handlers.New(a.Machine, a.Ledger, a.Jobs, a.Hub, a.Registry, handlers.Config{
		ProxyURL:      cfg.Fetch.ProxyURL,
		ProxyProbeURL: cfg.Fetch.ProxyProbeURL,
		AvgTileKB:     cfg.Estimate.AvgTileKB,
		MaxTaskTiles:  cfg.Runs.MaxTaskTiles,
	}, logger)
	api := router.Group("/", middleware.RateLimit(limiter))
	h.Register(api)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// SSE streams end when the hub closes
	a.Hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := a.Jobs.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Runs did not finish before the shutdown deadline")
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Failed to flush telemetry")
	}
	return nil
}
