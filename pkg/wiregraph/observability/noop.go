package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
type NoopMetrics struct{}

var _ MetricsRecorder = NoopMetrics{}

// RecordConnection does nothing.
func (NoopMetrics) RecordConnection(context.Context, bool, string) {}

// RecordLayout does nothing.
func (NoopMetrics) RecordLayout(context.Context, int, time.Duration) {}

// RecordRunRequest does nothing.
func (NoopMetrics) RecordRunRequest(context.Context, int, int, bool) {}

// RecordRunResult does nothing.
func (NoopMetrics) RecordRunResult(context.Context, string, time.Duration) {}

// RecordStaleResponse does nothing.
func (NoopMetrics) RecordStaleResponse(context.Context) {}

// NoopSpanManager is a SpanManager that does nothing.
type NoopSpanManager struct{}

var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

// StartLayoutSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartLayoutSpan(ctx context.Context, _ int) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartRunRequestSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartRunRequestSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartDispatchSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartDispatchSpan(ctx context.Context, _ string, _ uint64) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(trace.Span, error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(context.Context, string, ...attribute.KeyValue) {}
