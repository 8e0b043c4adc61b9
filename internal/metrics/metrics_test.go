package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Gather(t *testing.T) {
	m := New()
	m.FramesReceived.Add(3)
	m.InferencesDropped.Add(2)
	m.SetInFlight(true)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, f := range families {
		values[f.GetName()] = f.GetMetric()[0].GetGauge().GetValue()
	}
	assert.Equal(t, 3.0, values["camouflage_frames_received_total"])
	assert.Equal(t, 2.0, values["camouflage_inferences_dropped_total"])
	assert.Equal(t, 1.0, values["camouflage_inference_in_flight"])

	m.SetInFlight(false)
	assert.Equal(t, uint64(0), m.InferenceInFlight.Load())
}

func TestMetrics_Latency(t *testing.T) {
	m := New()
	m.UpdateInferenceLatency(1500 * time.Millisecond)
	m.UpdateCompositeLatency(40 * time.Millisecond)
	assert.Equal(t, uint64(1500), m.InferenceLatencyMs.Load())
	assert.Equal(t, uint64(40), m.CompositeLatencyMs.Load())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.CompositesProduced.Add(7)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "camouflage_composites_produced_total 7"))
}
