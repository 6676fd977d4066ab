package wiregraph

import "strings"

// Connection is a proposed edge. Empty handles mean DefaultHandle.
type Connection struct {
	Source       string `json:"source"`
	SourceHandle string `json:"source_handle,omitempty"`
	Target       string `json:"target"`
	TargetHandle string `json:"target_handle,omitempty"`
}

func (c Connection) normalized() Connection {
	c.SourceHandle = handleOrDefault(c.SourceHandle)
	c.TargetHandle = handleOrDefault(c.TargetHandle)
	return c
}

// ConnectOption configures connection checks.
type ConnectOption func(*connectConfig)

type connectConfig struct {
	crossScope bool
}

// WithCrossScope permits connections between a top-level node and a node
// inside a group. Two nodes in different groups are never connectable.
func WithCrossScope(allow bool) ConnectOption {
	return func(c *connectConfig) {
		c.crossScope = allow
	}
}

// IsBranchHandle reports whether a target handle accepts multiple incoming edges.
func IsBranchHandle(handle string) bool {
	return strings.Contains(handle, HandleSeparator)
}

// sameScope reports whether an edge may join nodes under parents a and b.
// With crossScope, one endpoint may be top-level.
func (c connectConfig) sameScope(a, b string) bool {
	if a == b {
		return true
	}
	return c.crossScope && (a == "" || b == "")
}

// CanConnect reports whether c may be added to g.
func CanConnect(g *Graph, c Connection, opts ...ConnectOption) bool {
	return CheckConnection(g, c, opts...) == nil
}

// CheckConnection returns why c may not be added to g, or nil.
//
// Rules apply in order and the first violation wins:
//  1. both endpoints exist
//  2. no self loop
//  3. no identical edge
//  4. the target handle has no incoming edge, unless it is a branch handle
//  5. both endpoints share a parent scope
//  6. the target cannot already reach the source
//
// The returned error is a *ConnectionError wrapping the rule's sentinel.
func CheckConnection(g *Graph, c Connection, opts ...ConnectOption) error {
	cfg := connectConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	c = c.normalized()

	reject := func(err error) error {
		return &ConnectionError{Source: c.Source, Target: c.Target, Handle: c.TargetHandle, Err: err}
	}

	src, tgt := g.Node(c.Source), g.Node(c.Target)
	if src == nil || tgt == nil {
		return reject(ErrNodeNotFound)
	}

	if c.Source == c.Target {
		return reject(ErrSelfLoop)
	}

	for _, e := range g.Edges {
		if e.Source == c.Source && e.Target == c.Target &&
			handleOrDefault(e.SourceHandle) == c.SourceHandle &&
			handleOrDefault(e.TargetHandle) == c.TargetHandle {
			return reject(ErrDuplicateEdge)
		}
	}

	if !IsBranchHandle(c.TargetHandle) {
		for _, e := range g.Edges {
			if e.Target == c.Target && handleOrDefault(e.TargetHandle) == c.TargetHandle {
				return reject(ErrFanIn)
			}
		}
	}

	if !cfg.sameScope(src.ParentID, tgt.ParentID) {
		return reject(ErrScopeMismatch)
	}

	if newIndex(g).reachable(c.Target, c.Source) {
		return reject(ErrCycle)
	}

	return nil
}
