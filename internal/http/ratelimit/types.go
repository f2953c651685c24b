package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// Config holds retry and politeness settings for tile requests
type Config struct {
	RequestsPerSecond float64 `json:"requestsPerSecond" mapstructure:"requests_per_second"`
	Burst             int     `json:"burst" mapstructure:"burst"`
	MaxRetries        int     `json:"maxRetries" mapstructure:"max_retries"`
	InitialBackoffMs  int     `json:"initialBackoffMs" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int     `json:"maxBackoffMs" mapstructure:"max_backoff_ms"`
}

// DefaultConfig returns the default configuration: three retries one second
// apart and no request rate cap
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 0,
		Burst:             1,
		MaxRetries:        3,
		InitialBackoffMs:  1000,
		MaxBackoffMs:      1000,
	}
}

// InitialBackoff returns the first retry delay
func (c Config) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMs) * time.Millisecond
}

// MaxBackoff returns the retry delay cap
func (c Config) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMs) * time.Millisecond
}

// NewLimiter returns a token bucket for the configured request rate, or nil
// when requests are not rate capped
func NewLimiter(config Config) *rate.Limiter {
	if config.RequestsPerSecond <= 0 {
		return nil
	}
	burst := config.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
}
