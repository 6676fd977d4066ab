// Package observability provides structured logging, metrics and tracing
// for wiregraph editors and run dispatch.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// NewLogger builds a logger for the given level ("debug", "info", "warn",
// "error") and format ("text" or "json").
func NewLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

// EnrichLogger adds workflow context to a logger.
func EnrichLogger(logger *slog.Logger, workflowID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("workflow_id", workflowID))
}

// LogEditRejected logs a graph edit that was refused. Rejections are part of
// normal editing, so they log at debug.
func LogEditRejected(logger *slog.Logger, op, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Debug("edit rejected",
		slog.String("op", op),
		slog.String("node_id", nodeID),
		slog.String("reason", err.Error()),
	)
}

// LogEdgeAdded logs a committed connection.
func LogEdgeAdded(logger *slog.Logger, edgeID, source, target, handle string) {
	if logger == nil {
		return
	}
	logger.Debug("edge added",
		slog.String("edge_id", edgeID),
		slog.String("source", source),
		slog.String("target", target),
		slog.String("target_handle", handle),
	)
}

// LogNodeRemoved logs a node deletion and how much went with it.
func LogNodeRemoved(logger *slog.Logger, nodeID string, edges, children int) {
	if logger == nil {
		return
	}
	logger.Debug("node removed",
		slog.String("node_id", nodeID),
		slog.Int("edges_removed", edges),
		slog.Int("children_affected", children),
	)
}

// LogLayout logs an auto-layout pass.
func LogLayout(logger *slog.Logger, nodeCount int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("layout applied",
		slog.Int("nodes", nodeCount),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogRunRequest logs a built run request.
func LogRunRequest(logger *slog.Logger, targetID string, ancestors, cached int, rerun bool) {
	if logger == nil {
		return
	}
	logger.Info("run requested",
		slog.String("node_id", targetID),
		slog.Int("ancestors", ancestors),
		slog.Int("cached", cached),
		slog.Bool("rerun_predecessors", rerun),
	)
}

// LogRunComplete logs a merged successful run response.
func LogRunComplete(logger *slog.Logger, targetID string, nodes int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("run completed",
		slog.String("node_id", targetID),
		slog.Int("nodes_updated", nodes),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogRunFailed logs a failed run.
func LogRunFailed(logger *slog.Logger, targetID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("run failed",
		slog.String("node_id", targetID),
		slog.String("error", err.Error()),
	)
}

// LogStaleResponse logs a run response dropped because a newer request exists.
func LogStaleResponse(logger *slog.Logger, targetID string, seq, latest uint64) {
	if logger == nil {
		return
	}
	logger.Warn("stale run response dropped",
		slog.String("node_id", targetID),
		slog.Uint64("sequence", seq),
		slog.Uint64("latest", latest),
	)
}

// LogStoreError logs an output cache failure (non-fatal).
func LogStoreError(logger *slog.Logger, nodeID, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("output store failed",
		slog.String("node_id", nodeID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
