package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("wiregraph")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartLayoutSpan starts a span for an auto-layout pass.
	StartLayoutSpan(ctx context.Context, nodeCount int) (context.Context, trace.Span)

	// StartRunRequestSpan starts a span for resolving a run request.
	StartRunRequestSpan(ctx context.Context, workflowID, targetID string) (context.Context, trace.Span)

	// StartDispatchSpan starts a span covering one backend round trip.
	StartDispatchSpan(ctx context.Context, targetID string, sequence uint64) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses the global OTel tracer provider.
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

func (m *otelSpanManager) StartLayoutSpan(ctx context.Context, nodeCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "wiregraph.layout",
		trace.WithAttributes(attribute.Int("layout.nodes", nodeCount)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) StartRunRequestSpan(ctx context.Context, workflowID, targetID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "wiregraph.run.request",
		trace.WithAttributes(
			attribute.String("workflow.id", workflowID),
			attribute.String("node.id", targetID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) StartDispatchSpan(ctx context.Context, targetID string, sequence uint64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "wiregraph.run.dispatch",
		trace.WithAttributes(
			attribute.String("node.id", targetID),
			attribute.Int64("run.sequence", int64(sequence)),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
