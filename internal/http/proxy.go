package http

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// ProxyProbeURL answers 204 when reachable
	ProxyProbeURL = "http://www.google.com/generate_204"

	// ProxyProbeTimeout bounds a single probe
	ProxyProbeTimeout = 5 * time.Second
)

// ProxyStatus is the result of a proxy health probe
type ProxyStatus struct {
	Status     string `json:"status" jsonschema:"required,enum=ok,enum=error,enum=disabled"`
	Proxy      string `json:"proxy,omitempty"`
	HTTPStatus int    `json:"httpStatus,omitempty"`
	LatencyMs  int64  `json:"latencyMs,omitempty"`
	Error      string `json:"error,omitempty"`
}

// OK reports whether the probe succeeded or no proxy is configured
func (s *ProxyStatus) OK() bool {
	return s.Status == "ok" || s.Status == "disabled"
}

// CheckProxy issues a single HEAD request to target through proxyURL.
// No retries are attempted. An empty proxyURL reports the proxy as disabled.
func CheckProxy(ctx context.Context, proxyURL, target string) *ProxyStatus {
	if proxyURL == "" {
		return &ProxyStatus{Status: "disabled"}
	}
	if target == "" {
		target = ProxyProbeURL
	}

	status := &ProxyStatus{Proxy: redact(proxyURL)}

	rc := resty.New().
		SetProxy(proxyURL).
		SetTimeout(ProxyProbeTimeout).
		SetRetryCount(0)

	start := time.Now()
	resp, err := rc.R().SetContext(ctx).Head(target)
	status.LatencyMs = time.Since(start).Milliseconds()

	if err != nil {
		status.Status = "error"
		status.Error = err.Error()
		return status
	}

	status.HTTPStatus = resp.StatusCode()
	if resp.StatusCode() >= 400 {
		status.Status = "error"
		status.Error = fmt.Sprintf("probe returned %s", resp.Status())
		return status
	}

	status.Status = "ok"
	return status
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid proxy url"
	}
	return u.Redacted()
}
