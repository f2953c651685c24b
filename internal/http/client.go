package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/geoscraper/tile-service/internal/http/ratelimit"
)

// ErrNotFound is wrapped into the error returned for a 404 response
var ErrNotFound = errors.New("remote resource not found")

// DefaultUserAgent is sent with every tile request
const DefaultUserAgent = "Mozilla/5.0"

// Options configures a Client
type Options struct {
	Timeout   time.Duration
	UserAgent string
	ProxyURL  string
	Retry     ratelimit.Config
	Logger    zerolog.Logger
}

// DefaultOptions returns the default client options
func DefaultOptions() Options {
	return Options{
		Timeout:   30 * time.Second,
		UserAgent: DefaultUserAgent,
		Retry:     ratelimit.DefaultConfig(),
		Logger:    zerolog.Nop(),
	}
}

// Client fetches tiles with retry, an optional proxy and an optional request rate cap
type Client struct {
	rc      *resty.Client
	limiter *rate.Limiter
	config  ratelimit.Config
}

// NewClient creates a new HTTP client
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	c := &Client{
		limiter: ratelimit.NewLimiter(opts.Retry),
		config:  opts.Retry,
	}

	rc := resty.New().
		SetLogger(restyLogger{opts.Logger.With().Str("component", "http").Logger()}).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "image/*,*/*").
		SetRetryCount(opts.Retry.MaxRetries).
		SetRetryWaitTime(opts.Retry.InitialBackoff()).
		SetRetryMaxWaitTime(opts.Retry.MaxBackoff()).
		SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
			attempt := 1
			if resp.Request != nil {
				attempt = resp.Request.Attempt
			}
			if resp.StatusCode() == http.StatusTooManyRequests {
				return ratelimit.CalculateRateLimitBackoff(attempt, c.config, resp.Header().Get("Retry-After")), nil
			}
			return ratelimit.CalculateBackoff(attempt, c.config), nil
		}).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp != nil && ratelimit.IsRetryableStatus(resp.StatusCode())
		})

	if opts.ProxyURL != "" {
		rc.SetProxy(opts.ProxyURL)
	}

	if c.limiter != nil {
		// Runs before every attempt, retries included.
		rc.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return c.limiter.Wait(req.Context())
		})
	}

	c.rc = rc
	return c
}

// NewClientDefault creates a new HTTP client with default options
func NewClientDefault() *Client {
	return NewClient(DefaultOptions())
}

// GetBytes performs a GET request and returns the response body.
// A 404 yields an error wrapping ErrNotFound; other failures yield a *ratelimit.FetchRetryError.
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.rc.R().SetContext(ctx).Get(url)

	attempts := 1
	if resp != nil && resp.Request != nil && resp.Request.Attempt > 0 {
		attempts = resp.Request.Attempt
	}

	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode()
		}
		return nil, &ratelimit.FetchRetryError{
			URL:        url,
			Attempts:   attempts,
			LastStatus: status,
			LastError:  err,
		}
	}

	status := resp.StatusCode()
	switch {
	case status >= 200 && status < 300:
		return resp.Body(), nil
	case status == http.StatusNotFound:
		return nil, &ratelimit.FetchRetryError{
			URL:        url,
			Attempts:   attempts,
			LastStatus: status,
			LastError:  ErrNotFound,
		}
	default:
		return nil, &ratelimit.FetchRetryError{
			URL:        url,
			Attempts:   attempts,
			LastStatus: status,
			LastError:  fmt.Errorf("unexpected status %s", resp.Status()),
		}
	}
}

// IsNotFound reports whether err is a 404 from GetBytes
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// GetConfig returns the retry configuration
func (c *Client) GetConfig() ratelimit.Config {
	return c.config
}

// restyLogger routes resty's internal logging through zerolog. Resty errors are
// demoted to debug because the fetcher logs every classified failure itself.
type restyLogger struct {
	log zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.log.Debug().Msgf(format, v...)
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.log.Debug().Msgf(format, v...)
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.log.Trace().Msgf(format, v...)
}
