package wiregraph

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/randalmurphal/wiregraph/pkg/wiregraph/observability"
)

// Every mutation below either commits completely or leaves the graph
// untouched and returns the reason.

func (e *Editor) reject(op, nodeID string, err error) error {
	observability.LogEditRejected(e.logger, op, nodeID, err)
	return err
}

// AddNode adds n to the graph. An empty id is generated. Declared config
// defaults fill missing keys.
func (e *Editor) AddNode(n *Node) (*Node, error) {
	if n == nil {
		return nil, fmt.Errorf("add node: nil node")
	}
	n = n.Clone()

	e.mu.Lock()
	if n.ID == "" {
		n.ID = e.newID()
	}
	if e.graph.HasNode(n.ID) {
		e.mu.Unlock()
		return nil, e.reject("add_node", n.ID, &NodeError{NodeID: n.ID, Op: "add", Err: ErrDuplicateNode})
	}
	if err := e.checkParentLocked(n.ID, n.ParentID); err != nil {
		e.mu.Unlock()
		return nil, e.reject("add_node", n.ID, &NodeError{NodeID: n.ID, Op: "add", Err: err})
	}

	if ts, err := e.reg.Lookup(n.Type); err == nil {
		n.Config = ts.ApplyDefaults(n.Config)
	}
	n.Status = n.Status.orNone()
	e.graph.Nodes = append(e.graph.Nodes, n)
	out := n.Clone()
	e.mu.Unlock()

	e.emit(Change{Kind: ChangeNodeAdded, NodeIDs: []string{n.ID}})
	return out, nil
}

// RemoveNode deletes a node and every edge touching it. Children of a group
// are detached or removed according to the editor's GroupPolicy.
func (e *Editor) RemoveNode(id string) error {
	e.mu.Lock()
	target := e.graph.Node(id)
	if target == nil {
		e.mu.Unlock()
		return e.reject("remove_node", id, &NodeError{NodeID: id, Op: "remove", Err: ErrNodeNotFound})
	}

	removed := map[string]bool{id: true}
	children := e.graph.Children(id)
	if e.groupPolicy == GroupCascade {
		queue := []string{id}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			for _, c := range e.graph.Children(current) {
				if !removed[c.ID] {
					removed[c.ID] = true
					queue = append(queue, c.ID)
				}
			}
		}
	} else {
		for _, c := range children {
			c.ParentID = target.ParentID
			c.Position.X += target.Position.X
			c.Position.Y += target.Position.Y
		}
	}

	var edgeIDs []string
	e.graph.Edges = slices.DeleteFunc(e.graph.Edges, func(ed *Edge) bool {
		if removed[ed.Source] || removed[ed.Target] {
			edgeIDs = append(edgeIDs, ed.ID)
			return true
		}
		return false
	})

	var nodeIDs []string
	e.graph.Nodes = slices.DeleteFunc(e.graph.Nodes, func(n *Node) bool {
		if removed[n.ID] {
			nodeIDs = append(nodeIDs, n.ID)
			return true
		}
		return false
	})
	e.mu.Unlock()

	observability.LogNodeRemoved(e.logger, id, len(edgeIDs), len(children))
	e.emit(Change{Kind: ChangeNodeRemoved, NodeIDs: nodeIDs, EdgeIDs: edgeIDs})
	return nil
}

// Connect adds an edge for c if every connection rule passes.
func (e *Editor) Connect(ctx context.Context, c Connection) (*Edge, error) {
	e.mu.Lock()
	edge, err := e.connectLocked(c)
	e.mu.Unlock()

	e.metrics.RecordConnection(ctx, err == nil, rejectionReason(err))
	if err != nil {
		return nil, e.reject("connect", c.Target, err)
	}

	observability.LogEdgeAdded(e.logger, edge.ID, edge.Source, edge.Target, edge.TargetHandle)
	e.emit(Change{Kind: ChangeEdgeAdded, NodeIDs: []string{edge.Source, edge.Target}, EdgeIDs: []string{edge.ID}})
	return edge.Clone(), nil
}

func (e *Editor) connectLocked(c Connection) (*Edge, error) {
	if err := CheckConnection(e.graph, c, e.connectOpts...); err != nil {
		return nil, err
	}
	c = c.normalized()
	edge := &Edge{
		ID:           e.newID(),
		Source:       c.Source,
		SourceHandle: c.SourceHandle,
		Target:       c.Target,
		TargetHandle: c.TargetHandle,
	}
	e.graph.Edges = append(e.graph.Edges, edge)
	return edge, nil
}

// Disconnect removes an edge.
func (e *Editor) Disconnect(edgeID string) error {
	e.mu.Lock()
	ed := e.graph.Edge(edgeID)
	if ed == nil {
		e.mu.Unlock()
		return e.reject("disconnect", "", fmt.Errorf("%w: %s", ErrEdgeNotFound, edgeID))
	}
	e.graph.Edges = slices.DeleteFunc(e.graph.Edges, func(x *Edge) bool { return x == ed })
	e.mu.Unlock()

	e.emit(Change{Kind: ChangeEdgeRemoved, NodeIDs: []string{ed.Source, ed.Target}, EdgeIDs: []string{edgeID}})
	return nil
}

// InsertBetween replaces an edge A->B with A->n->B. The new node joins the
// edge's scope when it has no parent. n's first input and first output port
// carry the two new edges. If either connection is rejected nothing changes.
func (e *Editor) InsertBetween(ctx context.Context, edgeID string, n *Node) (*Node, []*Edge, error) {
	if n == nil {
		return nil, nil, fmt.Errorf("insert between: nil node")
	}
	n = n.Clone()

	e.mu.Lock()
	old := e.graph.Edge(edgeID)
	if old == nil {
		e.mu.Unlock()
		return nil, nil, e.reject("insert_between", n.ID, fmt.Errorf("%w: %s", ErrEdgeNotFound, edgeID))
	}

	if n.ID == "" {
		n.ID = e.newID()
	}
	if n.ParentID == "" {
		if src := e.graph.Node(old.Source); src != nil {
			n.ParentID = src.ParentID
		}
	}

	in, out := DefaultHandle, DefaultHandle
	if ts, err := e.reg.Lookup(n.Type); err == nil {
		n.Config = ts.ApplyDefaults(n.Config)
		ports := DerivePorts(n, ts)
		if len(ports.Inputs) > 0 {
			in = ports.Inputs[0].Name
		}
		if len(ports.Outputs) > 0 {
			out = ports.Outputs[0].Name
		}
	}
	n.Status = n.Status.orNone()

	// Stage on a copy so a rejected step leaves the live graph untouched.
	live := e.graph
	e.graph = live.Clone()
	rollback := func(err error) (*Node, []*Edge, error) {
		e.graph = live
		e.mu.Unlock()
		var ce *ConnectionError
		if errors.As(err, &ce) {
			e.metrics.RecordConnection(ctx, false, rejectionReason(err))
		}
		return nil, nil, e.reject("insert_between", n.ID, err)
	}

	if e.graph.HasNode(n.ID) {
		return rollback(&NodeError{NodeID: n.ID, Op: "insert", Err: ErrDuplicateNode})
	}
	if err := e.checkParentLocked(n.ID, n.ParentID); err != nil {
		return rollback(&NodeError{NodeID: n.ID, Op: "insert", Err: err})
	}

	e.graph.Edges = slices.DeleteFunc(e.graph.Edges, func(x *Edge) bool { return x.ID == edgeID })
	e.graph.Nodes = append(e.graph.Nodes, n)

	first, err := e.connectLocked(Connection{Source: old.Source, SourceHandle: old.SourceHandle, Target: n.ID, TargetHandle: in})
	if err != nil {
		return rollback(err)
	}
	second, err := e.connectLocked(Connection{Source: n.ID, SourceHandle: out, Target: old.Target, TargetHandle: old.TargetHandle})
	if err != nil {
		return rollback(err)
	}
	e.mu.Unlock()

	e.metrics.RecordConnection(ctx, true, "")
	e.metrics.RecordConnection(ctx, true, "")
	e.emit(Change{
		Kind:    ChangeEdgeAdded,
		NodeIDs: []string{old.Source, n.ID, old.Target},
		EdgeIDs: []string{edgeID, first.ID, second.ID},
	})
	return n.Clone(), []*Edge{first.Clone(), second.Clone()}, nil
}

// UpdateConfig merges patch into a node's config. A nil value deletes the
// key. For known types the merged config must satisfy the config schema.
func (e *Editor) UpdateConfig(nodeID string, patch map[string]any) error {
	e.mu.Lock()
	n := e.graph.Node(nodeID)
	if n == nil {
		e.mu.Unlock()
		return e.reject("update_config", nodeID, &NodeError{NodeID: nodeID, Op: "update_config", Err: ErrNodeNotFound})
	}

	merged := maps.Clone(n.Config)
	if merged == nil {
		merged = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}

	if ts, err := e.reg.Lookup(n.Type); err == nil {
		if err := ts.ValidateConfig(merged); err != nil {
			e.mu.Unlock()
			return e.reject("update_config", nodeID, &NodeError{NodeID: nodeID, Op: "update_config", Err: err})
		}
	}
	n.Config = merged
	e.mu.Unlock()

	e.emit(Change{Kind: ChangeConfigUpdated, NodeIDs: []string{nodeID}})
	return nil
}

// MoveNodes sets positions for several nodes at once. Unknown ids reject
// the whole move.
func (e *Editor) MoveNodes(positions map[string]Position) error {
	e.mu.Lock()
	for id := range positions {
		if !e.graph.HasNode(id) {
			e.mu.Unlock()
			return e.reject("move_nodes", id, &NodeError{NodeID: id, Op: "move", Err: ErrNodeNotFound})
		}
	}

	ids := make([]string, 0, len(positions))
	for _, n := range e.graph.Nodes {
		if p, ok := positions[n.ID]; ok {
			n.Position = p
			ids = append(ids, n.ID)
		}
	}
	e.mu.Unlock()

	e.emit(Change{Kind: ChangeNodesMoved, NodeIDs: ids})
	return nil
}

// SetParent moves a node into a group, or to the top level with an empty
// parentID. The node keeps its absolute position. The move is rejected if
// any of the node's edges would then cross scopes.
func (e *Editor) SetParent(nodeID, parentID string) error {
	e.mu.Lock()
	n := e.graph.Node(nodeID)
	if n == nil {
		e.mu.Unlock()
		return e.reject("set_parent", nodeID, &NodeError{NodeID: nodeID, Op: "set_parent", Err: ErrNodeNotFound})
	}
	if err := e.checkParentLocked(nodeID, parentID); err != nil {
		e.mu.Unlock()
		return e.reject("set_parent", nodeID, &NodeError{NodeID: nodeID, Op: "set_parent", Err: err})
	}

	cfg := connectConfig{}
	for _, opt := range e.connectOpts {
		opt(&cfg)
	}
	for _, ed := range e.graph.Edges {
		var other *Node
		switch nodeID {
		case ed.Source:
			other = e.graph.Node(ed.Target)
		case ed.Target:
			other = e.graph.Node(ed.Source)
		}
		if other == nil || cfg.sameScope(other.ParentID, parentID) {
			continue
		}
		e.mu.Unlock()
		return e.reject("set_parent", nodeID, &NodeError{NodeID: nodeID, Op: "set_parent", Err: fmt.Errorf("%w: edge %s", ErrScopeMismatch, ed.ID)})
	}

	if n.ParentID != parentID {
		from, to := e.graph.origin(n.ParentID), e.graph.origin(parentID)
		n.Position.X += from.X - to.X
		n.Position.Y += from.Y - to.Y
	}
	n.ParentID = parentID
	e.mu.Unlock()

	e.emit(Change{Kind: ChangeParentChanged, NodeIDs: []string{nodeID}})
	return nil
}

// checkParentLocked verifies parentID can hold nodeID.
func (e *Editor) checkParentLocked(nodeID, parentID string) error {
	if parentID == "" {
		return nil
	}
	parent := e.graph.Node(parentID)
	if parent == nil {
		return fmt.Errorf("%w: '%s' does not exist", ErrInvalidParent, parentID)
	}
	if !BehaviorFor(e.reg.KindOf(parent.Type)).AcceptsChildren() {
		return fmt.Errorf("%w: '%s' is not a group", ErrInvalidParent, parentID)
	}
	seen := make(map[string]bool)
	for p := parent; p != nil && !seen[p.ID]; p = e.graph.Node(p.ParentID) {
		if p.ID == nodeID {
			return fmt.Errorf("%w: '%s' is inside '%s'", ErrAncestorLoop, parentID, nodeID)
		}
		seen[p.ID] = true
	}
	return nil
}
