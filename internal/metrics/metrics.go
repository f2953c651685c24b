// Package metrics exposes prometheus instrumentation for tile acquisition.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// tilesFetched counts fetch outcomes per map type.
	tilesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiles_fetched_total",
		Help: "Total number of tile fetch outcomes by map type and outcome",
	}, []string{"map_type", "outcome"})

	// tileFetchDuration tracks the time spent on one tile, delay and retries included.
	tileFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tile_fetch_duration_seconds",
		Help:    "Time taken to fetch one tile by map type",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"map_type"})

	// tileBytes counts bytes written to the cache.
	tileBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tile_bytes_written_total",
		Help: "Total bytes of tile images written to the cache by map type",
	}, []string{"map_type"})

	// runsStarted counts background runs by kind.
	runsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "task_runs_started_total",
		Help: "Total number of task runs started by kind",
	}, []string{"kind"}) // kind: acquire, verify, redownload

	// runsFinished counts finished runs by kind and result.
	runsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "task_runs_finished_total",
		Help: "Total number of task runs finished by kind and result",
	}, []string{"kind", "result"})

	// runsActive tracks runs currently executing.
	runsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "task_runs_active",
		Help: "Number of task runs currently executing by kind",
	}, []string{"kind"})

	// runDuration tracks wall time of finished runs.
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "task_run_duration_seconds",
		Help:    "Wall time of task runs by kind",
		Buckets: []float64{1, 5, 30, 60, 300, 900, 3600, 14400},
	}, []string{"kind"})

	// tilesVerified counts verification classifications.
	tilesVerified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiles_verified_total",
		Help: "Total number of tiles checked by verification by result",
	}, []string{"result"}) // result: verified, missing, non_existent

	// broadcastFailures counts task snapshots that could not be published.
	broadcastFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "task_broadcast_failures_total",
		Help: "Total number of task updates that failed to broadcast",
	})
)

// Recorder provides methods to record pipeline metrics. A nil Recorder is valid.
type Recorder struct{}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordTile records one fetch outcome.
func (m *Recorder) RecordTile(mapType, outcome string, duration time.Duration) {
	tilesFetched.WithLabelValues(mapType, outcome).Inc()
	tileFetchDuration.WithLabelValues(mapType).Observe(duration.Seconds())
}

// RecordBytes records bytes written to the cache.
func (m *Recorder) RecordBytes(mapType string, n int) {
	tileBytes.WithLabelValues(mapType).Add(float64(n))
}

// RunStarted records the start of a run.
func (m *Recorder) RunStarted(kind string) {
	runsStarted.WithLabelValues(kind).Inc()
	runsActive.WithLabelValues(kind).Inc()
}

// RunFinished records the end of a run.
func (m *Recorder) RunFinished(kind string, success bool, duration time.Duration) {
	result := "completed"
	if !success {
		result = "failed"
	}
	runsFinished.WithLabelValues(kind, result).Inc()
	runsActive.WithLabelValues(kind).Dec()
	runDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordVerification records one verification classification.
func (m *Recorder) RecordVerification(result string) {
	tilesVerified.WithLabelValues(result).Inc()
}

// RecordBroadcastFailure records a failed publish.
func (m *Recorder) RecordBroadcastFailure() {
	broadcastFailures.Inc()
}
