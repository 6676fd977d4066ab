package wiregraph

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/randalmurphal/wiregraph/pkg/wiregraph/layout"
	"github.com/randalmurphal/wiregraph/pkg/wiregraph/observability"
	"github.com/randalmurphal/wiregraph/pkg/wiregraph/schema"
)

// GroupPolicy decides what happens to a group's children when it is removed.
type GroupPolicy int

const (
	// GroupDetach moves children up to the group's own parent, keeping their
	// absolute position.
	GroupDetach GroupPolicy = iota

	// GroupCascade removes children (and their descendants) with the group.
	GroupCascade
)

// ParseGroupPolicy converts a settings value. Unknown values yield GroupDetach.
func ParseGroupPolicy(s string) GroupPolicy {
	if s == "cascade" {
		return GroupCascade
	}
	return GroupDetach
}

// ChangeKind names a committed mutation.
type ChangeKind string

const (
	ChangeNodeAdded     ChangeKind = "node_added"
	ChangeNodeRemoved   ChangeKind = "node_removed"
	ChangeEdgeAdded     ChangeKind = "edge_added"
	ChangeEdgeRemoved   ChangeKind = "edge_removed"
	ChangeConfigUpdated ChangeKind = "config_updated"
	ChangeNodesMoved    ChangeKind = "nodes_moved"
	ChangeParentChanged ChangeKind = "parent_changed"
	ChangeLayout        ChangeKind = "layout_applied"
	ChangeStatus        ChangeKind = "status_changed"
	ChangeOutputs       ChangeKind = "outputs_merged"
)

// Change describes one committed mutation.
type Change struct {
	Kind    ChangeKind
	NodeIDs []string
	EdgeIDs []string
}

// Listener is called after each committed mutation.
type Listener func(Change)

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics recorder. Defaults to no-op.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(e *Editor) {
		e.metrics = m
	}
}

// WithSpans sets the span manager. Defaults to no-op.
func WithSpans(s observability.SpanManager) Option {
	return func(e *Editor) {
		e.spans = s
	}
}

// WithLayoutConfig sets the auto-layout configuration.
func WithLayoutConfig(cfg layout.Config) Option {
	return func(e *Editor) {
		e.layoutCfg = cfg
	}
}

// WithConnectOptions sets the options applied to every connection check.
func WithConnectOptions(opts ...ConnectOption) Option {
	return func(e *Editor) {
		e.connectOpts = append(e.connectOpts, opts...)
	}
}

// WithGroupPolicy sets how RemoveNode treats group children.
func WithGroupPolicy(p GroupPolicy) Option {
	return func(e *Editor) {
		e.groupPolicy = p
	}
}

// WithIDGenerator sets the id source for nodes and edges created without one.
func WithIDGenerator(fn func() string) Option {
	return func(e *Editor) {
		e.newID = fn
	}
}

// Editor owns one workflow graph and serializes every read and edit of it.
// Run responses arriving from other goroutines go through the same lock as
// user edits, so no caller ever sees a half-applied mutation.
type Editor struct {
	mu    sync.RWMutex
	graph *Graph
	reg   *schema.Registry

	logger      *slog.Logger
	metrics     observability.MetricsRecorder
	spans       observability.SpanManager
	layoutCfg   layout.Config
	connectOpts []ConnectOption
	groupPolicy GroupPolicy
	newID       func() string

	listenersMu  sync.Mutex
	listeners    []subscriber
	nextListener int
}

type subscriber struct {
	id int
	fn Listener
}

// NewEditor wraps a copy of g. A nil graph starts empty; a nil registry
// knows no types.
func NewEditor(g *Graph, reg *schema.Registry, opts ...Option) *Editor {
	e := &Editor{
		graph:     g.Clone(),
		reg:       reg,
		logger:    slog.Default(),
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
		layoutCfg: layout.DefaultConfig(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the type registry the editor resolves schemas against.
func (e *Editor) Registry() *schema.Registry {
	return e.reg
}

// Logger returns the editor's logger.
func (e *Editor) Logger() *slog.Logger {
	return e.logger
}

// Metrics returns the editor's metrics recorder.
func (e *Editor) Metrics() observability.MetricsRecorder {
	return e.metrics
}

// Spans returns the editor's span manager.
func (e *Editor) Spans() observability.SpanManager {
	return e.spans
}

// Snapshot returns a deep copy of the current graph.
func (e *Editor) Snapshot() *Graph {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.graph.Clone()
}

// Node returns a copy of the node with the given id.
func (e *Editor) Node(id string) (*Node, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := e.graph.Node(id)
	return n.Clone(), n != nil
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. Listeners run synchronously after the editor lock is
// released, so they may read from the editor.
func (e *Editor) Subscribe(fn Listener) (unsubscribe func()) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()

	id := e.nextListener
	e.nextListener++
	e.listeners = append(e.listeners, subscriber{id: id, fn: fn})

	return func() {
		e.listenersMu.Lock()
		defer e.listenersMu.Unlock()
		e.listeners = slices.DeleteFunc(e.listeners, func(s subscriber) bool {
			return s.id == id
		})
	}
}

func (e *Editor) emit(c Change) {
	e.listenersMu.Lock()
	subs := slices.Clone(e.listeners)
	e.listenersMu.Unlock()

	for _, s := range subs {
		s.fn(c)
	}
}

// Validate checks the graph's structural invariants under the editor's
// connect options.
func (e *Editor) Validate() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return ValidateGraph(e.graph, e.reg, e.connectOpts...)
}

// Ports resolves the ports of a node, including branch ports and an optional
// speculative port for a connection in progress.
func (e *Editor) Ports(nodeID string, pending *Connection) (Ports, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return ResolvePorts(e.graph, e.reg, nodeID, pending)
}

// CheckConnection reports why c may not be connected, or nil.
func (e *Editor) CheckConnection(ctx context.Context, c Connection) error {
	e.mu.RLock()
	err := CheckConnection(e.graph, c, e.connectOpts...)
	e.mu.RUnlock()

	e.metrics.RecordConnection(ctx, err == nil, rejectionReason(err))
	return err
}

// CanConnect reports whether c may be connected.
func (e *Editor) CanConnect(ctx context.Context, c Connection) bool {
	return e.CheckConnection(ctx, c) == nil
}

// AutoLayout computes a layered layout and applies positions and group sizes.
func (e *Editor) AutoLayout(ctx context.Context) layout.Result {
	e.mu.Lock()

	_, span := e.spans.StartLayoutSpan(ctx, len(e.graph.Nodes))
	start := time.Now()

	items := make([]layout.Item, 0, len(e.graph.Nodes))
	for _, n := range e.graph.Nodes {
		items = append(items, layout.Item{ID: n.ID, Parent: n.ParentID, Width: n.Size.Width, Height: n.Size.Height})
	}
	links := make([]layout.Link, 0, len(e.graph.Edges))
	for _, ed := range e.graph.Edges {
		links = append(links, layout.Link{Source: ed.Source, Target: ed.Target})
	}

	res := layout.Layout(items, links, e.layoutCfg)
	ids := make([]string, 0, len(e.graph.Nodes))
	for _, n := range e.graph.Nodes {
		if p, ok := res.Positions[n.ID]; ok {
			n.Position = Position{X: p.X, Y: p.Y}
		}
		if s, ok := res.Sizes[n.ID]; ok {
			n.Size = Size{Width: s.Width, Height: s.Height}
		}
		ids = append(ids, n.ID)
	}

	elapsed := time.Since(start)
	e.mu.Unlock()

	e.spans.EndSpanWithError(span, nil)
	e.metrics.RecordLayout(ctx, len(ids), elapsed)
	observability.LogLayout(e.logger, len(ids), float64(elapsed.Microseconds())/1000)

	e.emit(Change{Kind: ChangeLayout, NodeIDs: ids})
	return res
}

func rejectionReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNodeNotFound):
		return "node_not_found"
	case errors.Is(err, ErrSelfLoop):
		return "self_loop"
	case errors.Is(err, ErrDuplicateEdge):
		return "duplicate_edge"
	case errors.Is(err, ErrFanIn):
		return "fan_in"
	case errors.Is(err, ErrScopeMismatch):
		return "scope_mismatch"
	case errors.Is(err, ErrCycle):
		return "cycle"
	default:
		return "other"
	}
}
