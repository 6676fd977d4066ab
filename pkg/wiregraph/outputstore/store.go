// Package outputstore caches the last-run output of each node so partial runs
// can pass them to the backend as known outputs.
package outputstore

import (
	"errors"
	"time"
)

// Store persists node outputs per workflow.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a node's output, replacing any previous one.
	Save(workflowID, nodeID string, output map[string]any) error

	// Load retrieves a node's output.
	// Returns ErrNotFound if none was saved.
	Load(workflowID, nodeID string) (map[string]any, error)

	// Known returns every saved output of a workflow keyed by node id.
	// Returns an empty map (not error) if nothing was saved.
	Known(workflowID string) (map[string]map[string]any, error)

	// List returns metadata for a workflow's outputs, ordered by save sequence.
	List(workflowID string) ([]Info, error)

	// Delete removes one output. Returns nil if it doesn't exist.
	Delete(workflowID, nodeID string) error

	// DeleteWorkflow removes all outputs of a workflow.
	DeleteWorkflow(workflowID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info describes a saved output without decoding it.
type Info struct {
	WorkflowID string    `json:"workflow_id"`
	NodeID     string    `json:"node_id"`
	Sequence   int       `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
	Size       int64     `json:"size"`
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates no output is saved for the node.
	ErrNotFound = errors.New("output not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("output store closed")
)
