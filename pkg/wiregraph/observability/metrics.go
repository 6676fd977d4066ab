package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records wiregraph metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordConnection records a connection attempt. reason is empty when accepted.
	RecordConnection(ctx context.Context, accepted bool, reason string)

	// RecordLayout records an auto-layout pass.
	RecordLayout(ctx context.Context, nodeCount int, duration time.Duration)

	// RecordRunRequest records a built run request and its resolved size.
	RecordRunRequest(ctx context.Context, ancestors, cached int, rerun bool)

	// RecordRunResult records how a dispatched run ended.
	RecordRunResult(ctx context.Context, status string, duration time.Duration)

	// RecordStaleResponse records a dropped out-of-order response.
	RecordStaleResponse(ctx context.Context)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	connections    metric.Int64Counter
	layoutLatency  metric.Float64Histogram
	layoutNodes    metric.Int64Histogram
	runRequests    metric.Int64Counter
	runAncestors   metric.Int64Histogram
	runCached      metric.Int64Histogram
	runResults     metric.Int64Counter
	runLatency     metric.Float64Histogram
	staleResponses metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("wiregraph")

	connections, err := meter.Int64Counter("wiregraph.edge.attempts",
		metric.WithDescription("Number of connection attempts"),
	)
	if err != nil {
		return nil, err
	}

	layoutLatency, err := meter.Float64Histogram("wiregraph.layout.latency_ms",
		metric.WithDescription("Auto-layout latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	layoutNodes, err := meter.Int64Histogram("wiregraph.layout.nodes",
		metric.WithDescription("Nodes placed per layout pass"),
	)
	if err != nil {
		return nil, err
	}

	runRequests, err := meter.Int64Counter("wiregraph.run.requests",
		metric.WithDescription("Number of run requests built"),
	)
	if err != nil {
		return nil, err
	}

	runAncestors, err := meter.Int64Histogram("wiregraph.run.ancestors",
		metric.WithDescription("Ancestors the backend must run per request"),
	)
	if err != nil {
		return nil, err
	}

	runCached, err := meter.Int64Histogram("wiregraph.run.cached",
		metric.WithDescription("Cached ancestor outputs spliced per request"),
	)
	if err != nil {
		return nil, err
	}

	runResults, err := meter.Int64Counter("wiregraph.run.results",
		metric.WithDescription("Number of run responses by outcome"),
	)
	if err != nil {
		return nil, err
	}

	runLatency, err := meter.Float64Histogram("wiregraph.run.latency_ms",
		metric.WithDescription("Run round-trip latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	staleResponses, err := meter.Int64Counter("wiregraph.run.stale_responses",
		metric.WithDescription("Number of run responses dropped as stale"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		connections:    connections,
		layoutLatency:  layoutLatency,
		layoutNodes:    layoutNodes,
		runRequests:    runRequests,
		runAncestors:   runAncestors,
		runCached:      runCached,
		runResults:     runResults,
		runLatency:     runLatency,
		staleResponses: staleResponses,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordConnection(ctx context.Context, accepted bool, reason string) {
	attrs := []attribute.KeyValue{
		attribute.Bool("accepted", accepted),
	}
	if reason != "" {
		attrs = append(attrs, attribute.String("reason", reason))
	}
	m.connections.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *otelMetrics) RecordLayout(ctx context.Context, nodeCount int, duration time.Duration) {
	m.layoutLatency.Record(ctx, float64(duration.Microseconds())/1000)
	m.layoutNodes.Record(ctx, int64(nodeCount))
}

func (m *otelMetrics) RecordRunRequest(ctx context.Context, ancestors, cached int, rerun bool) {
	attrs := metric.WithAttributes(attribute.Bool("rerun_predecessors", rerun))
	m.runRequests.Add(ctx, 1, attrs)
	m.runAncestors.Record(ctx, int64(ancestors), attrs)
	m.runCached.Record(ctx, int64(cached), attrs)
}

func (m *otelMetrics) RecordRunResult(ctx context.Context, status string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.runResults.Add(ctx, 1, attrs)
	m.runLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (m *otelMetrics) RecordStaleResponse(ctx context.Context) {
	m.staleResponses.Add(ctx, 1)
}
