package wiregraph

import (
	"maps"

	"github.com/randalmurphal/wiregraph/pkg/wiregraph/schema"
)

// RunNode is a node as sent to the execution backend.
type RunNode struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	ParentID string         `json:"parent_id,omitempty"`
	Config   map[string]any `json:"config"`
}

// RunEdge is an edge as sent to the execution backend.
type RunEdge struct {
	Source       string `json:"source"`
	SourceHandle string `json:"source_handle"`
	Target       string `json:"target"`
	TargetHandle string `json:"target_handle"`
}

// RunRequest asks the backend to (re)run one target node.
// It is built fresh per request and never persisted.
type RunRequest struct {
	WorkflowID        string                    `json:"workflow_id"`
	TargetNodeID      string                    `json:"target_node_id"`
	InitialInputs     map[string]map[string]any `json:"initial_inputs"`
	KnownOutputs      map[string]map[string]any `json:"known_outputs"`
	RerunPredecessors bool                      `json:"rerun_predecessors"`

	// Ancestors are the upstream nodes the backend must run, in graph order.
	Ancestors []string `json:"ancestors"`

	// Nodes are the ancestors plus the target.
	Nodes []RunNode `json:"nodes"`

	// Edges are the edges into Nodes from Nodes or from cached ancestors.
	Edges []RunEdge `json:"edges"`
}

// BuildRunRequest resolves what must run to produce targetID.
//
// It walks backward from the target along incoming edges. When
// rerunPredecessors is false, an ancestor with an entry in known is a cached
// leaf: its output is passed through KnownOutputs and its own ancestors are
// not visited. When true, the whole ancestor closure is included and known is
// ignored. A visited set bounds the walk even on cyclic input.
func BuildRunRequest(g *Graph, workflowID, targetID string, known map[string]map[string]any, rerunPredecessors bool) (*RunRequest, error) {
	if !g.HasNode(targetID) {
		return nil, &NodeError{NodeID: targetID, Op: "build_run_request", Err: ErrNodeNotFound}
	}

	idx := newIndex(g)
	visited := map[string]bool{targetID: true}
	needed := map[string]bool{targetID: true}
	cached := make(map[string]bool)

	queue := []string{targetID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, pred := range idx.predecessors[current] {
			if visited[pred] {
				continue
			}
			if _, ok := idx.nodes[pred]; !ok {
				continue
			}
			visited[pred] = true

			if _, ok := known[pred]; ok && !rerunPredecessors {
				cached[pred] = true
				continue
			}
			needed[pred] = true
			queue = append(queue, pred)
		}
	}

	req := &RunRequest{
		WorkflowID:        workflowID,
		TargetNodeID:      targetID,
		InitialInputs:     make(map[string]map[string]any),
		KnownOutputs:      make(map[string]map[string]any),
		RerunPredecessors: rerunPredecessors,
		Ancestors:         []string{},
		Nodes:             []RunNode{},
		Edges:             []RunEdge{},
	}

	seen := make(map[string]bool, len(needed))
	for _, n := range g.Nodes {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true

		if cached[n.ID] {
			req.KnownOutputs[n.ID] = maps.Clone(known[n.ID])
			continue
		}
		if !needed[n.ID] {
			continue
		}
		if n.ID != targetID {
			req.Ancestors = append(req.Ancestors, n.ID)
		}
		req.Nodes = append(req.Nodes, RunNode{
			ID:       n.ID,
			Type:     n.Type,
			ParentID: n.ParentID,
			Config:   maps.Clone(n.Config),
		})
	}

	for _, e := range g.Edges {
		if !needed[e.Target] || (!needed[e.Source] && !cached[e.Source]) {
			continue
		}
		req.Edges = append(req.Edges, RunEdge{
			Source:       e.Source,
			SourceHandle: handleOrDefault(e.SourceHandle),
			Target:       e.Target,
			TargetHandle: handleOrDefault(e.TargetHandle),
		})
	}

	return req, nil
}

// ResolveInitialInputs fills InitialInputs from the request's input-kind nodes.
func (r *RunRequest) ResolveInitialInputs(reg *schema.Registry) {
	if r.InitialInputs == nil {
		r.InitialInputs = make(map[string]map[string]any)
	}
	for _, rn := range r.Nodes {
		n := &Node{ID: rn.ID, Type: rn.Type, Config: rn.Config}
		if in := BehaviorFor(reg.KindOf(rn.Type)).InitialInputs(n); in != nil {
			r.InitialInputs[rn.ID] = in
		}
	}
}
