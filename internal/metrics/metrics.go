package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline counters.
type Metrics struct {
	// Ingest
	FramesReceived atomic.Uint64
	FramesRejected atomic.Uint64
	CascadeOutputs atomic.Uint64

	// Segmentation
	InferencesStarted atomic.Uint64
	InferencesDropped atomic.Uint64 // frames that found an inference already in flight
	InferenceFailures atomic.Uint64
	InferenceInFlight atomic.Uint64 // 0 or 1

	// Composition
	CompositesProduced atomic.Uint64
	CompositeFailures  atomic.Uint64

	// Latency of the most recent run
	InferenceLatencyMs atomic.Uint64
	CompositeLatencyMs atomic.Uint64

	// Presentation
	ActiveViewers atomic.Uint64
	FramesSent    atomic.Uint64

	// Snapshots
	SnapshotsBuffered atomic.Uint64
	SnapshotsFlushed  atomic.Uint64

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	gauges := []struct {
		name  string
		help  string
		value *atomic.Uint64
	}{
		{"camouflage_frames_received_total", "Total frames handed to the pipeline", &m.FramesReceived},
		{"camouflage_frames_rejected_total", "Total frames rejected for bad geometry", &m.FramesRejected},
		{"camouflage_cascade_outputs_total", "Total background frames emitted by the median cascade", &m.CascadeOutputs},
		{"camouflage_inferences_started_total", "Total segmentation requests started", &m.InferencesStarted},
		{"camouflage_inferences_dropped_total", "Total frames not segmented because a request was in flight", &m.InferencesDropped},
		{"camouflage_inference_failures_total", "Total failed segmentation requests", &m.InferenceFailures},
		{"camouflage_inference_in_flight", "Segmentation request in flight (0 or 1)", &m.InferenceInFlight},
		{"camouflage_composites_produced_total", "Total camouflaged frames produced", &m.CompositesProduced},
		{"camouflage_composite_failures_total", "Total failed mask or composite runs", &m.CompositeFailures},
		{"camouflage_inference_latency_ms", "Latency of the last segmentation request in milliseconds", &m.InferenceLatencyMs},
		{"camouflage_composite_latency_ms", "Latency of the last mask and composite run in milliseconds", &m.CompositeLatencyMs},
		{"camouflage_active_viewers", "Number of connected viewers", &m.ActiveViewers},
		{"camouflage_frames_sent_total", "Total frames broadcast to viewers", &m.FramesSent},
		{"camouflage_snapshots_buffered_total", "Total snapshots accepted into the buffer", &m.SnapshotsBuffered},
		{"camouflage_snapshots_flushed_total", "Total snapshots written to disk", &m.SnapshotsFlushed},
	}

	for _, g := range gauges {
		value := g.value
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: g.name,
				Help: g.help,
			},
			func() float64 { return float64(value.Load()) },
		))
	}
}

// UpdateInferenceLatency records the duration of the last segmentation request.
func (m *Metrics) UpdateInferenceLatency(d time.Duration) {
	m.InferenceLatencyMs.Store(uint64(d.Milliseconds()))
}

// UpdateCompositeLatency records the duration of the last mask and composite run.
func (m *Metrics) UpdateCompositeLatency(d time.Duration) {
	m.CompositeLatencyMs.Store(uint64(d.Milliseconds()))
}

// SetInFlight mirrors the single-flight gate.
func (m *Metrics) SetInFlight(busy bool) {
	if busy {
		m.InferenceInFlight.Store(1)
		return
	}
	m.InferenceInFlight.Store(0)
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
