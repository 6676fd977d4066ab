package wiregraph

import (
	"context"
	"maps"
	"slices"

	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/wiregraph/pkg/wiregraph/observability"
)

// BeginRun moves nodeID to pending. See (*Graph).BeginRun.
func (e *Editor) BeginRun(nodeID string) error {
	e.mu.Lock()
	err := e.graph.BeginRun(nodeID)
	e.mu.Unlock()

	if err != nil {
		return e.reject("begin_run", nodeID, err)
	}
	e.emit(Change{Kind: ChangeStatus, NodeIDs: []string{nodeID}})
	return nil
}

// ApplyNodeStatus records a backend-reported status.
func (e *Editor) ApplyNodeStatus(nodeID string, status Status, output map[string]any) error {
	e.mu.Lock()
	err := e.graph.ApplyNodeStatus(nodeID, status, output)
	e.mu.Unlock()

	if err != nil {
		return e.reject("apply_status", nodeID, err)
	}
	e.emit(Change{Kind: ChangeStatus, NodeIDs: []string{nodeID}})
	return nil
}

// MergeOutputs merges a successful run response. Ids not in the graph are
// skipped and logged.
func (e *Editor) MergeOutputs(outputs map[string]map[string]any) []string {
	e.mu.Lock()
	skipped := e.graph.MergeOutputs(outputs)
	e.mu.Unlock()

	for _, id := range skipped {
		e.logger.Warn("run output for unknown node ignored", "node_id", id)
	}

	e.emit(Change{Kind: ChangeOutputs, NodeIDs: slices.Sorted(maps.Keys(outputs))})
	return skipped
}

// FailRun marks nodeID failed with message stored verbatim.
func (e *Editor) FailRun(nodeID, message string) error {
	e.mu.Lock()
	err := e.graph.FailRun(nodeID, message)
	e.mu.Unlock()

	if err != nil {
		return e.reject("fail_run", nodeID, err)
	}
	e.emit(Change{Kind: ChangeStatus, NodeIDs: []string{nodeID}})
	return nil
}

// KnownOutputs returns the stored outputs of completed nodes.
func (e *Editor) KnownOutputs() map[string]map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()

	known := make(map[string]map[string]any)
	for _, n := range e.graph.Nodes {
		if n.Status == StatusCompleted && n.Output != nil {
			known[n.ID] = maps.Clone(n.Output)
		}
	}
	return known
}

// BuildRunRequest resolves a run request against the current graph and fills
// initial inputs from input-kind nodes. See BuildRunRequest.
func (e *Editor) BuildRunRequest(ctx context.Context, workflowID, targetID string, known map[string]map[string]any, rerunPredecessors bool) (*RunRequest, error) {
	ctx, span := e.spans.StartRunRequestSpan(ctx, workflowID, targetID)

	e.mu.RLock()
	req, err := BuildRunRequest(e.graph, workflowID, targetID, known, rerunPredecessors)
	e.mu.RUnlock()

	if err != nil {
		e.spans.EndSpanWithError(span, err)
		return nil, e.reject("build_run_request", targetID, err)
	}
	req.ResolveInitialInputs(e.reg)

	e.spans.AddSpanEvent(ctx, "ancestors.resolved",
		attribute.Int("ancestors", len(req.Ancestors)),
		attribute.Int("cached", len(req.KnownOutputs)),
	)
	e.spans.EndSpanWithError(span, nil)
	e.metrics.RecordRunRequest(ctx, len(req.Ancestors), len(req.KnownOutputs), rerunPredecessors)
	observability.LogRunRequest(e.logger, targetID, len(req.Ancestors), len(req.KnownOutputs), rerunPredecessors)
	return req, nil
}
