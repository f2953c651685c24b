package ratelimit

import (
	"errors"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// FetchRetryError represents an error when all retry attempts are exhausted
// or the server answered with a non-retryable status
type FetchRetryError struct {
	URL        string
	Attempts   int
	LastStatus int
	LastError  error
}

func (e *FetchRetryError) Error() string {
	msg := "Failed to fetch " + e.URL + " after " + strconv.Itoa(e.Attempts) + " attempts"
	if e.LastStatus != 0 {
		msg += " (HTTP " + strconv.Itoa(e.LastStatus) + ")"
	}
	if e.LastError != nil {
		msg += ": " + e.LastError.Error()
	}
	return msg
}

func (e *FetchRetryError) Unwrap() error {
	return e.LastError
}

// StatusOf returns the last HTTP status carried by err, or 0
func StatusOf(err error) int {
	var fe *FetchRetryError
	if errors.As(err, &fe) {
		return fe.LastStatus
	}
	return 0
}

// IsRetryableStatus checks if an HTTP status code is transient.
// Retryable: 408, 429, 500, 502, 503, 504 and the Cloudflare timeouts 522, 524
func IsRetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		522, 524:
		return true
	}
	return false
}

// CalculateBackoff calculates exponential backoff delay for a given attempt
// (1-based), capped at MaxBackoffMs, with 0-25% jitter when the cap is not hit
func CalculateBackoff(attempt int, config Config) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	exponentialDelay := float64(config.InitialBackoffMs) * math.Pow(2.0, float64(attempt-1))
	cappedDelay := math.Min(exponentialDelay, float64(config.MaxBackoffMs))

	jitter := 0.0
	if cappedDelay < float64(config.MaxBackoffMs) {
		jitter = rand.Float64() * 0.25 * cappedDelay
		jitter = math.Min(jitter, float64(config.MaxBackoffMs)-cappedDelay)
	}

	return time.Duration(cappedDelay+jitter) * time.Millisecond
}

// CalculateRateLimitBackoff calculates backoff for HTTP 429 responses.
// A positive Retry-After header in seconds wins over the computed delay.
func CalculateRateLimitBackoff(attempt int, config Config, retryAfterHeader string) time.Duration {
	if retryAfterHeader != "" {
		if seconds, err := strconv.Atoi(retryAfterHeader); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return CalculateBackoff(attempt, config)
}
