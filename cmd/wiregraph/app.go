package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/randalmurphal/wiregraph/pkg/wiregraph"
	"github.com/randalmurphal/wiregraph/pkg/wiregraph/config"
	"github.com/randalmurphal/wiregraph/pkg/wiregraph/layout"
	"github.com/randalmurphal/wiregraph/pkg/wiregraph/observability"
	"github.com/randalmurphal/wiregraph/pkg/wiregraph/outputstore"
	"github.com/randalmurphal/wiregraph/pkg/wiregraph/schema"
)

// app holds what every subcommand needs: settings, logging, telemetry and
// the type registry.
type app struct {
	settings config.Settings
	logger   *slog.Logger
	registry *schema.Registry
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	out      io.Writer

	shutdown func(context.Context) error
}

func setup(ctx context.Context, cmd *cli.Command) (*app, error) {
	settings, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if v := cmd.String("log-level"); v != "" {
		settings.Log.Level = v
	}
	if v := cmd.String("log-format"); v != "" {
		settings.Log.Format = v
	}
	if v := cmd.String("otlp-endpoint"); v != "" {
		settings.Telemetry.OTLPEndpoint = v
	}

	logger, err := observability.NewLogger(settings.Log.Level, settings.Log.Format, os.Stderr)
	if err != nil {
		return nil, err
	}

	reg, err := schema.LoadFile(cmd.String("schemas"))
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}

	a := &app{
		settings: settings,
		logger:   logger.With("module", "wiregraph-cli", "command", cmd.Name),
		registry: reg,
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
		out:      cmd.Root().Writer,
		shutdown: func(context.Context) error { return nil },
	}
	if a.out == nil {
		a.out = os.Stdout
	}

	if settings.Telemetry.OTLPEndpoint != "" {
		tp, err := newTracerProvider(ctx, settings.Telemetry)
		if err != nil {
			return nil, fmt.Errorf("initialize tracer: %w", err)
		}
		a.shutdown = tp.Shutdown
		a.spans = observability.NewSpanManager()
		a.metrics = observability.NewMetricsRecorder()
	}

	a.logger.Debug("settings loaded", "types", reg.Len(), "tracing", settings.Telemetry.OTLPEndpoint != "")
	return a, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.shutdown(ctx); err != nil {
		a.logger.Error("failed to shutdown tracer provider", "error", err)
	}
}

func newTracerProvider(ctx context.Context, tel config.TelemetrySettings) (*sdktrace.TracerProvider, error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", tel.ServiceName)),
	)
	if err != nil {
		return nil, err
	}

	opts := []otlptracehttp.Option{}
	if strings.Contains(tel.OTLPEndpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpointURL(tel.OTLPEndpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(tel.OTLPEndpoint))
	}
	if tel.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}))
	return tp, nil
}

// editor opens a workflow document in an editor configured from settings.
func (a *app) editor(wf *wiregraph.Workflow) *wiregraph.Editor {
	s := a.settings
	return wiregraph.NewEditor(wf.Graph(), a.registry,
		wiregraph.WithLogger(observability.EnrichLogger(a.logger, wf.ID)),
		wiregraph.WithMetrics(a.metrics),
		wiregraph.WithSpans(a.spans),
		wiregraph.WithLayoutConfig(layout.Config{
			Direction:        layout.ParseDirection(s.Layout.Direction),
			RankSpacing:      s.Layout.RankSpacing,
			NodeSpacing:      s.Layout.NodeSpacing,
			ComponentSpacing: s.Layout.ComponentSpacing,
			GroupPadding:     s.Layout.GroupPadding,
			DefaultWidth:     s.Layout.DefaultWidth,
			DefaultHeight:    s.Layout.DefaultHeight,
		}),
		wiregraph.WithConnectOptions(wiregraph.WithCrossScope(s.Connect.CrossScope)),
		wiregraph.WithGroupPolicy(wiregraph.ParseGroupPolicy(s.Runs.GroupPolicy)),
	)
}

// store opens the output cache from settings. An sqlite path on the command
// line wins over the settings file.
func (a *app) store(path string) (outputstore.Store, error) {
	driver, p := a.settings.Store.Driver, a.settings.Store.Path
	if path != "" {
		driver, p = "sqlite", path
	}
	return outputstore.Open(driver, p)
}

// workflowID returns the id outputs are cached under.
func (a *app) workflowID(wf *wiregraph.Workflow) string {
	if a.settings.Runs.WorkflowID != "" {
		return a.settings.Runs.WorkflowID
	}
	return wf.ID
}

func (a *app) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}

// saveGraph writes g back into wf and saves it to path.
func saveGraph(path string, wf *wiregraph.Workflow, g *wiregraph.Graph) error {
	wf.Nodes, wf.Edges = g.Nodes, g.Edges
	return wiregraph.SaveWorkflow(path, wf)
}
