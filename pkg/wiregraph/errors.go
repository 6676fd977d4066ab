package wiregraph

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/wiregraph/pkg/wiregraph/schema"
)

// Sentinel errors for connection checks. CheckConnection returns them in rule order.
var (
	// ErrNodeNotFound indicates an edge or operation references a non-existent node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrSelfLoop indicates a connection from a node to itself.
	ErrSelfLoop = errors.New("self loop")

	// ErrDuplicateEdge indicates an identical edge already exists.
	ErrDuplicateEdge = errors.New("duplicate edge")

	// ErrFanIn indicates the target handle already has an incoming edge.
	ErrFanIn = errors.New("target handle already connected")

	// ErrScopeMismatch indicates source and target live in different groups.
	ErrScopeMismatch = errors.New("source and target are in different scopes")

	// ErrCycle indicates the connection would close a cycle.
	ErrCycle = errors.New("connection would create a cycle")
)

// Sentinel errors for graph structure and edits.
var (
	// ErrEdgeNotFound indicates an operation references a non-existent edge.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrDuplicateNode indicates a node id is already in use.
	ErrDuplicateNode = errors.New("duplicate node id")

	// ErrDuplicateEdgeID indicates an edge id is already in use.
	ErrDuplicateEdgeID = errors.New("duplicate edge id")

	// ErrInvalidParent indicates a parent reference that is missing or not a group.
	ErrInvalidParent = errors.New("invalid parent")

	// ErrAncestorLoop indicates a node would become its own ancestor.
	ErrAncestorLoop = errors.New("parent chain loops")

	// ErrInvalidConfig indicates a node config failed schema validation.
	ErrInvalidConfig = schema.ErrInvalidConfig
)

// Sentinel errors for runs.
var (
	// ErrRunInProgress indicates a run is already pending or running for the node.
	ErrRunInProgress = errors.New("run already in progress")

	// ErrInvalidTransition indicates a status change the editor may not initiate.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStaleResponse indicates a run response older than the latest request.
	ErrStaleResponse = errors.New("stale run response")
)

// ConnectionError wraps a rejected connection with its endpoints.
type ConnectionError struct {
	// Source is the proposed source node.
	Source string
	// Target is the proposed target node.
	Target string
	// Handle is the proposed target handle.
	Handle string
	// Err is the rule that rejected the connection.
	Err error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s -> %s.%s: %v", e.Source, e.Target, e.Handle, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NodeError wraps an error with node context.
type NodeError struct {
	// NodeID is the node the operation targeted.
	NodeID string
	// Op is the operation that failed (e.g., "remove", "update_config").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// RunError is a failed or malformed run response.
type RunError struct {
	// NodeID is the run's target node.
	NodeID string
	// Message is shown to the user verbatim and stored on the node.
	Message string
	// Raw keeps the backend text when the response could not be interpreted.
	Raw string
	// Validation describes why the response's outputs were rejected.
	Validation string
	// Err is the transport or context error behind the failure, if any.
	Err error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Validation != "" {
		return fmt.Sprintf("run %s: malformed response: %s", e.NodeID, e.Validation)
	}
	return fmt.Sprintf("run %s: %s", e.NodeID, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RunError) Unwrap() error {
	return e.Err
}
