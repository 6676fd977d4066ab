package wiregraph

import (
	"fmt"
	"maps"
	"slices"
)

// Status is a node's last-run status.
type Status string

const (
	StatusNone      Status = "none"
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus converts a backend-reported status string. Empty input is StatusNone.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if st == "" {
		return StatusNone, nil
	}
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, s)
	}
	return st, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNone, StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further backend transition is expected.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// InFlight reports whether a run is pending or running.
func (s Status) InFlight() bool {
	return s == StatusPending || s == StatusRunning
}

func (s Status) orNone() Status {
	if s == "" {
		return StatusNone
	}
	return s
}

// BeginRun moves a node to pending. Only none, completed and failed nodes can
// start a run; the previous error is cleared.
func (g *Graph) BeginRun(nodeID string) error {
	n := g.Node(nodeID)
	if n == nil {
		return &NodeError{NodeID: nodeID, Op: "begin_run", Err: ErrNodeNotFound}
	}

	switch st := n.Status.orNone(); st {
	case StatusNone, StatusCompleted, StatusFailed:
		n.Status = StatusPending
		n.Error = ""
		return nil
	case StatusPending, StatusRunning:
		return &NodeError{NodeID: nodeID, Op: "begin_run", Err: ErrRunInProgress}
	default:
		return &NodeError{NodeID: nodeID, Op: "begin_run", Err: fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, st, StatusPending)}
	}
}

// ApplyNodeStatus records a backend-reported status as reported.
// A non-nil output is merged into the stored output.
func (g *Graph) ApplyNodeStatus(nodeID string, status Status, output map[string]any) error {
	n := g.Node(nodeID)
	if n == nil {
		return &NodeError{NodeID: nodeID, Op: "apply_status", Err: ErrNodeNotFound}
	}
	if !status.orNone().Valid() {
		return &NodeError{NodeID: nodeID, Op: "apply_status", Err: fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)}
	}
	n.Status = status.orNone()
	if output != nil {
		mergeOutput(n, output)
	}
	return nil
}

// MergeOutputs merges each returned output key by key into the node's stored
// output and marks the node completed. Ids not in the graph are skipped and
// returned.
func (g *Graph) MergeOutputs(outputs map[string]map[string]any) (skipped []string) {
	// Apply in graph order so listeners see a stable sequence.
	seen := make(map[string]bool, len(outputs))
	for _, n := range g.Nodes {
		out, ok := outputs[n.ID]
		if !ok {
			continue
		}
		seen[n.ID] = true
		mergeOutput(n, out)
		n.Status = StatusCompleted
		n.Error = ""
	}
	for id := range outputs {
		if !seen[id] {
			skipped = append(skipped, id)
		}
	}
	slices.Sort(skipped)
	return skipped
}

// FailRun marks the node failed and stores message verbatim.
func (g *Graph) FailRun(nodeID, message string) error {
	n := g.Node(nodeID)
	if n == nil {
		return &NodeError{NodeID: nodeID, Op: "fail_run", Err: ErrNodeNotFound}
	}
	n.Status = StatusFailed
	n.Error = message
	return nil
}

func mergeOutput(n *Node, out map[string]any) {
	if n.Output == nil {
		n.Output = make(map[string]any, len(out))
	}
	maps.Copy(n.Output, out)
}
