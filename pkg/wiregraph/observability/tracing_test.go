package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracingTest(t *testing.T) *tracetest.InMemoryExporter {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	tracer = otel.Tracer("wiregraph")

	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		tracer = otel.Tracer("wiregraph")
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	})
	return exporter
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestSpanManager_Layout(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	_, span := sm.StartLayoutSpan(context.Background(), 12)
	sm.EndSpanWithError(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "wiregraph.layout", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)

	v, ok := attrValue(spans[0].Attributes, "layout.nodes")
	require.True(t, ok)
	assert.Equal(t, int64(12), v.AsInt64())
}

func TestSpanManager_RunSpansNest(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	ctx, parent := sm.StartRunRequestSpan(context.Background(), "wf-1", "c")
	_, child := sm.StartDispatchSpan(ctx, "c", 4)
	sm.EndSpanWithError(child, errors.New("backend down"))
	sm.EndSpanWithError(parent, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	dispatch, request := spans[0], spans[1]
	assert.Equal(t, "wiregraph.run.dispatch", dispatch.Name)
	assert.Equal(t, "wiregraph.run.request", request.Name)
	assert.Equal(t, request.SpanContext.SpanID(), dispatch.Parent.SpanID())
	assert.Equal(t, codes.Error, dispatch.Status.Code)
	assert.Equal(t, "backend down", dispatch.Status.Description)
	require.Len(t, dispatch.Events, 1)
	assert.Equal(t, "exception", dispatch.Events[0].Name)

	v, ok := attrValue(dispatch.Attributes, "run.sequence")
	require.True(t, ok)
	assert.Equal(t, int64(4), v.AsInt64())
}

func TestAddSpanEvent(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	ctx, span := sm.StartRunRequestSpan(context.Background(), "wf", "n")
	sm.AddSpanEvent(ctx, "ancestors.resolved", attribute.Int("count", 2))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "ancestors.resolved", spans[0].Events[0].Name)
}

func TestAddSpanEvent_NoSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		AddSpanEvent(context.Background(), "nothing")
	})
}

func TestEndSpanWithError_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		EndSpanWithError(nil, errors.New("x"))
	})
}

func TestNoopSpanManager(t *testing.T) {
	var sm SpanManager = NoopSpanManager{}
	ctx := context.Background()

	got, span := sm.StartLayoutSpan(ctx, 1)
	assert.Equal(t, ctx, got)
	assert.False(t, span.IsRecording())

	got, _ = sm.StartRunRequestSpan(ctx, "wf", "n")
	assert.Equal(t, ctx, got)
	got, _ = sm.StartDispatchSpan(ctx, "n", 1)
	assert.Equal(t, ctx, got)

	assert.NotPanics(t, func() {
		sm.EndSpanWithError(span, errors.New("ignored"))
		sm.AddSpanEvent(ctx, "ignored")
	})
}
