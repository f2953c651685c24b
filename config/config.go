// Package config loads tile service configuration from file, .env and environment.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every automatic environment override
const EnvPrefix = "TILE_SERVICE"

// Config holds the application configuration
type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	Database  DatabaseConfig    `mapstructure:"database"`
	Storage   StorageConfig     `mapstructure:"storage"`
	Fetch     FetchConfig       `mapstructure:"fetch"`
	Runs      RunsConfig        `mapstructure:"runs"`
	Broadcast BroadcastConfig   `mapstructure:"broadcast"`
	Estimate  EstimateConfig    `mapstructure:"estimate"`
	Providers map[string]string `mapstructure:"providers"`
	API       APIConfig         `mapstructure:"api"`
	Logging   LoggingConfig     `mapstructure:"logging"`
	Telemetry TelemetryConfig   `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds task store configuration
type DatabaseConfig struct {
	// Driver is postgres or memory
	Driver          string        `mapstructure:"driver"`
	URL             string        `mapstructure:"url"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// EnsureSchema creates the tables at startup
	EnsureSchema bool `mapstructure:"ensure_schema"`
}

// StorageConfig holds tile cache configuration
type StorageConfig struct {
	// Type is local or bucket
	Type      string `mapstructure:"type"`
	Root      string `mapstructure:"root"`
	BucketURL string `mapstructure:"bucket_url"`
}

// FetchConfig holds outbound tile request settings
type FetchConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryWait         time.Duration `mapstructure:"retry_wait"`
	MaxRetryWait      time.Duration `mapstructure:"max_retry_wait"`
	UserAgent         string        `mapstructure:"user_agent"`
	ProxyURL          string        `mapstructure:"proxy_url"`
	ProxyProbeURL     string        `mapstructure:"proxy_probe_url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// RunsConfig holds background run settings
type RunsConfig struct {
	MaxConcurrent              int           `mapstructure:"max_concurrent"`
	ProgressInterval           time.Duration `mapstructure:"progress_interval"`
	RedownloadProgressInterval time.Duration `mapstructure:"redownload_progress_interval"`
	VerifyWorkers              int           `mapstructure:"verify_workers"`
	LedgerBatchSize            int           `mapstructure:"ledger_batch_size"`
	// MaxTaskTiles rejects tasks covering more tiles than this
	MaxTaskTiles int `mapstructure:"max_task_tiles"`
}

// BroadcastConfig holds task update fan-out settings
type BroadcastConfig struct {
	Channel string `mapstructure:"channel"`
}

// EstimateConfig holds estimator settings
type EstimateConfig struct {
	AvgTileKB float64 `mapstructure:"avg_tile_kb"`
}

// APIConfig holds inbound request limiting
type APIConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

// TelemetryConfig holds OpenTelemetry settings
type TelemetryConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Endpoint       string        `mapstructure:"endpoint"`
	ServiceName    string        `mapstructure:"service_name"`
	ServiceVersion string        `mapstructure:"service_version"`
	Environment    string        `mapstructure:"environment"`
	ExportInterval time.Duration `mapstructure:"export_interval"`
}

// Load loads the configuration from file, .env, and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// .env is optional
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg(".env file not loaded")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no component can run with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url (DATABASE_URL) is required for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database driver %q (want postgres or memory)", c.Database.Driver)
	}

	switch c.Storage.Type {
	case "local":
		if c.Storage.Root == "" {
			return fmt.Errorf("storage.root is required for local storage")
		}
	case "bucket":
		if c.Storage.BucketURL == "" {
			return fmt.Errorf("storage.bucket_url is required for bucket storage")
		}
	default:
		return fmt.Errorf("unknown storage type %q (want local or bucket)", c.Storage.Type)
	}

	if c.Runs.MaxConcurrent < 1 {
		return fmt.Errorf("runs.max_concurrent must be at least 1")
	}
	if c.Runs.MaxTaskTiles < 1 {
		return fmt.Errorf("runs.max_task_tiles must be at least 1")
	}
	return nil
}

// loadEnvFile loads the first .env file found
func loadEnvFile() error {
	for _, dir := range []string{".", "./config"} {
		envFile := dir + "/.env"
		if _, err := os.Stat(envFile); err == nil {
			return loadDotEnvFile(envFile)
		}
	}
	return fmt.Errorf("no .env file found")
}

// loadDotEnvFile sets KEY=VALUE lines as environment variables without
// overriding variables already set
func loadDotEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = strings.Trim(strings.TrimSpace(value), "\"'")
		if _, set := os.LookupEnv(key); !set {
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

// bindEnvVars binds the unprefixed environment variables operators expect
func bindEnvVars(v *viper.Viper) {
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.host", "HOST")
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("storage.root", "STORAGE_ROOT")
	v.BindEnv("storage.bucket_url", "STORAGE_BUCKET_URL")
	v.BindEnv("fetch.proxy_url", "HTTP_PROXY_URL")
	v.BindEnv("telemetry.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	// SSE responses stay open, so writes are not bounded by default
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)
	v.SetDefault("database.ensure_schema", true)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.root", "/data/geoscraper-tiles")
	v.SetDefault("storage.bucket_url", "")

	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.retry_wait", time.Second)
	v.SetDefault("fetch.max_retry_wait", time.Second)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0")
	v.SetDefault("fetch.proxy_url", "")
	v.SetDefault("fetch.proxy_probe_url", "http://www.google.com/generate_204")
	v.SetDefault("fetch.requests_per_second", 0)
	v.SetDefault("fetch.burst", 1)

	v.SetDefault("runs.max_concurrent", 10)
	v.SetDefault("runs.progress_interval", time.Second)
	v.SetDefault("runs.redownload_progress_interval", 500*time.Millisecond)
	v.SetDefault("runs.verify_workers", 16)
	v.SetDefault("runs.ledger_batch_size", 5000)
	v.SetDefault("runs.max_task_tiles", 5_000_000)

	v.SetDefault("broadcast.channel", "task_updates")
	v.SetDefault("estimate.avg_tile_kb", 25)

	v.SetDefault("api.requests_per_second", 20)
	v.SetDefault("api.burst", 40)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.no_color", false)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.service_name", "tile-service")
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.export_interval", 15*time.Second)
}
