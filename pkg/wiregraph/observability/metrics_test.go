package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupMetricsTest(t *testing.T) *sdkmetric.ManualReader {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	original := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)

	t.Cleanup(func() {
		otel.SetMeterProvider(original)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	})
	return reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", m.Data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewMetricsRecorder(t *testing.T) {
	setupMetricsTest(t)

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)
	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop)
}

func TestRecordConnection(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordConnection(ctx, true, "")
	m.RecordConnection(ctx, false, "cycle")
	m.RecordConnection(ctx, false, "cycle")

	metric := findMetric(collectMetrics(t, reader), "wiregraph.edge.attempts")
	assert.Equal(t, int64(3), sumValue(t, metric))

	sum := metric.Data.(metricdata.Sum[int64])
	var rejected int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key("reason")); ok && v.AsString() == "cycle" {
			rejected += dp.Value
		}
	}
	assert.Equal(t, int64(2), rejected)
}

func TestRecordLayout(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)

	m.RecordLayout(context.Background(), 42, 3*time.Millisecond)

	rm := collectMetrics(t, reader)
	latency := findMetric(rm, "wiregraph.layout.latency_ms")
	require.NotNil(t, latency)
	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.Equal(t, 3.0, hist.DataPoints[0].Sum)

	nodes := findMetric(rm, "wiregraph.layout.nodes")
	require.NotNil(t, nodes)
	nh := nodes.Data.(metricdata.Histogram[int64])
	assert.Equal(t, int64(42), nh.DataPoints[0].Sum)
}

func TestRecordRunMetrics(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordRunRequest(ctx, 3, 1, false)
	m.RecordRunResult(ctx, "completed", 10*time.Millisecond)
	m.RecordRunResult(ctx, "failed", 5*time.Millisecond)
	m.RecordStaleResponse(ctx)

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, "wiregraph.run.requests")))
	assert.Equal(t, int64(2), sumValue(t, findMetric(rm, "wiregraph.run.results")))
	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, "wiregraph.run.stale_responses")))

	anc := findMetric(rm, "wiregraph.run.ancestors")
	require.NotNil(t, anc)
	assert.Equal(t, int64(3), anc.Data.(metricdata.Histogram[int64]).DataPoints[0].Sum)

	cached := findMetric(rm, "wiregraph.run.cached")
	require.NotNil(t, cached)
	assert.Equal(t, int64(1), cached.Data.(metricdata.Histogram[int64]).DataPoints[0].Sum)
}

func TestNoopMetrics(t *testing.T) {
	var m MetricsRecorder = NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordConnection(ctx, false, "fan_in")
		m.RecordLayout(ctx, 1, time.Millisecond)
		m.RecordRunRequest(ctx, 1, 0, true)
		m.RecordRunResult(ctx, "completed", time.Millisecond)
		m.RecordStaleResponse(ctx)
	})
}
