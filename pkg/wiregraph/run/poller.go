package run

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/randalmurphal/wiregraph/pkg/wiregraph"
)

// DefaultPollInterval is used when a Poller is given no positive interval.
const DefaultPollInterval = 2 * time.Second

// Poller checks an asynchronous run on a fixed interval and applies each
// reported node status to the editor.
type Poller struct {
	editor   *wiregraph.Editor
	exec     Executor
	interval time.Duration
	logger   *slog.Logger

	// accept filters reported nodes before they are applied; nil accepts all.
	accept func(nodeID string) bool
}

// NewPoller creates a poller. It logs through the editor's logger.
func NewPoller(editor *wiregraph.Editor, exec Executor, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		editor:   editor,
		exec:     exec,
		interval: interval,
		logger:   editor.Logger(),
	}
}

// Poll blocks until every reported node is terminal or ctx is done, and
// returns the last status report.
//
// A failed status check is logged and retried on the next tick. Nodes the
// editor no longer has are ignored.
func (p *Poller) Poll(ctx context.Context, runID string) (*StatusResponse, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var last *StatusResponse
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}

		st, err := p.exec.Status(ctx, runID)
		if err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			p.logger.Warn("run status check failed", "run_id", runID, "error", err)
			continue
		}
		last = st
		p.apply(runID, st)

		if st.Terminal() {
			return st, nil
		}
	}
}

func (p *Poller) apply(runID string, st *StatusResponse) {
	for _, id := range slices.Sorted(maps.Keys(st.Outputs)) {
		ns := st.Outputs[id]
		status, err := wiregraph.ParseStatus(ns.Status)
		if err != nil {
			p.logger.Warn("unknown run status ignored", "run_id", runID, "node_id", id, "status", ns.Status)
			continue
		}
		if p.accept != nil && !p.accept(id) {
			p.logger.Debug("run status superseded by a newer run", "run_id", runID, "node_id", id)
			continue
		}
		if err := p.editor.ApplyNodeStatus(id, status, ns.Output); err != nil {
			p.logger.Debug("run status not applied", "run_id", runID, "node_id", id, "error", err)
		}
	}
}
