package wiregraph

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/wiregraph/pkg/wiregraph/schema"
)

// ValidateGraph checks the structural invariants of g. Multiple problems are
// joined together.
//
// Checks (in order):
//  1. node and edge ids are unique
//  2. edge endpoints exist and differ
//  3. edge endpoints share a parent scope, as CheckConnection requires
//  4. parents exist, accept children and never loop
//  5. non-branch target handles have at most one incoming edge
//  6. the edges are acyclic
//
// Unknown node types are not an error.
func ValidateGraph(g *Graph, reg *schema.Registry, opts ...ConnectOption) error {
	cfg := connectConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	var errs []error

	nodes := make(map[string]*Node, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, dup := nodes[n.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID))
			continue
		}
		nodes[n.ID] = n
	}

	edgeIDs := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		if edgeIDs[e.ID] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateEdgeID, e.ID))
		}
		edgeIDs[e.ID] = true

		src, srcOK := nodes[e.Source]
		if !srcOK {
			errs = append(errs, fmt.Errorf("%w: edge %s source '%s' does not exist", ErrNodeNotFound, e.ID, e.Source))
		}
		tgt, tgtOK := nodes[e.Target]
		if !tgtOK {
			errs = append(errs, fmt.Errorf("%w: edge %s target '%s' does not exist", ErrNodeNotFound, e.ID, e.Target))
		}
		if e.Source == e.Target {
			errs = append(errs, fmt.Errorf("%w: edge %s on '%s'", ErrSelfLoop, e.ID, e.Source))
		}
		if srcOK && tgtOK && !cfg.sameScope(src.ParentID, tgt.ParentID) {
			errs = append(errs, fmt.Errorf("%w: edge %s from '%s' to '%s'", ErrScopeMismatch, e.ID, e.Source, e.Target))
		}
	}

	for _, n := range g.Nodes {
		if err := checkParent(nodes, reg, n); err != nil {
			errs = append(errs, err)
		}
	}

	type slot struct{ node, handle string }
	taken := make(map[slot]string)
	for _, e := range g.Edges {
		h := handleOrDefault(e.TargetHandle)
		if IsBranchHandle(h) {
			continue
		}
		s := slot{e.Target, h}
		if first, ok := taken[s]; ok {
			errs = append(errs, fmt.Errorf("%w: %s.%s has edges %s and %s", ErrFanIn, e.Target, h, first, e.ID))
			continue
		}
		taken[s] = e.ID
	}

	if cyclic := cyclicNodes(g); len(cyclic) > 0 {
		errs = append(errs, fmt.Errorf("%w: nodes %v", ErrCycle, cyclic))
	}

	return errors.Join(errs...)
}

func checkParent(nodes map[string]*Node, reg *schema.Registry, n *Node) error {
	if n.ParentID == "" {
		return nil
	}
	parent, ok := nodes[n.ParentID]
	if !ok {
		return fmt.Errorf("%w: node %s parent '%s' does not exist", ErrInvalidParent, n.ID, n.ParentID)
	}
	if !BehaviorFor(reg.KindOf(parent.Type)).AcceptsChildren() {
		return fmt.Errorf("%w: node %s parent '%s' is not a group", ErrInvalidParent, n.ID, n.ParentID)
	}

	seen := map[string]bool{n.ID: true}
	for p := n.ParentID; p != ""; {
		if seen[p] {
			return fmt.Errorf("%w: node %s", ErrAncestorLoop, n.ID)
		}
		seen[p] = true
		next, ok := nodes[p]
		if !ok {
			break
		}
		p = next.ParentID
	}
	return nil
}

// cyclicNodes returns the ids left over by a Kahn pass, in node order.
func cyclicNodes(g *Graph) []string {
	idx := newIndex(g)
	indeg := make(map[string]int, len(idx.nodes))
	for _, e := range g.Edges {
		if _, ok := idx.nodes[e.Source]; !ok {
			continue
		}
		if _, ok := idx.nodes[e.Target]; ok {
			indeg[e.Target]++
		}
	}

	var queue []string
	for _, n := range g.Nodes {
		if indeg[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}
	done := make(map[string]bool, len(idx.nodes))
	for i := 0; i < len(queue); i++ {
		u := queue[i]
		if done[u] {
			continue
		}
		done[u] = true
		for _, v := range idx.successors[u] {
			if _, ok := idx.nodes[v]; !ok {
				continue
			}
			indeg[v]--
			if indeg[v] == 0 {
				queue = append(queue, v)
			}
		}
	}

	var left []string
	for _, n := range g.Nodes {
		if !done[n.ID] {
			left = append(left, n.ID)
		}
	}
	return left
}
