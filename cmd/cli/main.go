package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/geoscraper/tile-service/config"
	"github.com/geoscraper/tile-service/internal/app"
	"github.com/geoscraper/tile-service/internal/tasks"
)

var (
	cfgFile string
	cfg     *config.Config
	cfgErr  error
	logger  zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tile-service",
	Short: "Tile Service CLI - map tile acquisition tool",
	Long: `A CLI for the map tile acquisition service. It estimates areas, inspects
tasks, and runs acquisitions, verifications and redownloads in-process against
the same task store and tile cache the server uses.`,
	SilenceUsage:      true,
	PersistentPreRunE: persistentPreRun,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml or ./config.yaml)")
}

func initConfig() {
	cfg, cfgErr = config.Load(cfgFile)
}

// persistentPreRun runs before each command and initializes the logger
func persistentPreRun(cmd *cobra.Command, args []string) error {
	logging := config.LoggingConfig{Level: "info", Format: "console"}
	if cfg != nil {
		logging = cfg.Logging
		// the CLI prints for humans unless json is asked for explicitly
		if logging.Format != "json" {
			logging.Format = "console"
		}
	}
	logger = app.NewLogger(logging, "tile-cli")
	return nil
}

// openApp builds the service graph for commands that touch tasks
func openApp(ctx context.Context, extra ...tasks.Publisher) (*app.App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required but not loaded: %w", cfgErr)
	}
	return app.New(ctx, cfg, logger, extra...)
}

// commandContext is cancelled on SIGINT or SIGTERM
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// shutdownTimeout bounds how long an interrupted command waits for its run
const shutdownTimeout = 30 * time.Second

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
