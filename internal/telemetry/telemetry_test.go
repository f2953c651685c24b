package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, span := Tracer().Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestGetConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_SERVICE_NAME", "")
	cfg := GetConfigFromEnv()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, DefaultServiceName, cfg.ServiceName)

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	cfg = GetConfigFromEnv()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "collector:4317", cfg.Endpoint)
}

func TestRunInstruments(t *testing.T) {
	inst, err := NewRunInstruments()
	require.NoError(t, err)
	inst.RecordRun(context.Background(), "acquire", true, 10, time.Second)

	var nilInst *RunInstruments
	nilInst.RecordRun(context.Background(), "verify", false, 0, 0)
}
