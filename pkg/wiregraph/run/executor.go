package run

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/randalmurphal/wiregraph/pkg/wiregraph"
)

// Executor is the execution backend. Implementations own the transport.
type Executor interface {
	// Submit sends a run request and returns the backend's answer. A response
	// with a RunID and no outputs means the run continues asynchronously and
	// must be polled.
	Submit(ctx context.Context, req *wiregraph.RunRequest) (*Response, error)

	// Status reports per-node progress of an asynchronous run.
	Status(ctx context.Context, runID string) (*StatusResponse, error)
}

// Response is the backend's answer to a submitted run: either per-node
// outputs or an error.
type Response struct {
	RunID   string                    `json:"run_id,omitempty"`
	Outputs map[string]map[string]any `json:"outputs,omitempty"`

	Error string `json:"error,omitempty"`

	// RawResponse and ValidationError describe output that did not match its
	// declared schema.
	RawResponse     string `json:"raw_response,omitempty"`
	ValidationError string `json:"validation_error,omitempty"`
}

// Failed reports whether the response describes a failed run.
func (r *Response) Failed() bool {
	return r.Error != "" || r.ValidationError != ""
}

// Pending reports whether the run continues asynchronously under RunID.
func (r *Response) Pending() bool {
	return !r.Failed() && r.RunID != "" && len(r.Outputs) == 0
}

// Err returns the failure as a *wiregraph.RunError, or nil.
func (r *Response) Err(nodeID string) error {
	if !r.Failed() {
		return nil
	}
	msg := r.Error
	if msg == "" {
		msg = "output failed validation: " + r.ValidationError
	}
	return &wiregraph.RunError{
		NodeID:     nodeID,
		Message:    msg,
		Raw:        r.RawResponse,
		Validation: r.ValidationError,
	}
}

// DecodeResponse parses a backend response body. A body that is not a valid
// response becomes a failed Response keeping the raw text.
func DecodeResponse(data []byte) *Response {
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return &Response{
			Error:           "malformed backend response",
			RawResponse:     string(data),
			ValidationError: err.Error(),
		}
	}
	if !r.Failed() && r.RunID == "" && r.Outputs == nil {
		return &Response{
			Error:           "malformed backend response",
			RawResponse:     string(data),
			ValidationError: "response has neither outputs, error nor run_id",
		}
	}
	return &r
}

// NodeState is one node's progress in a StatusResponse.
type NodeState struct {
	Status string         `json:"status"`
	Output map[string]any `json:"output,omitempty"`
}

// StatusResponse is the answer of the status endpoint.
type StatusResponse struct {
	Outputs map[string]NodeState `json:"outputs"`
}

// Terminal reports whether every reported node has reached a terminal status.
// An empty report is not terminal.
func (s *StatusResponse) Terminal() bool {
	if s == nil || len(s.Outputs) == 0 {
		return false
	}
	for _, st := range s.Outputs {
		status, err := wiregraph.ParseStatus(st.Status)
		if err != nil || !status.IsTerminal() {
			return false
		}
	}
	return true
}

// DecodeStatus parses a status endpoint body.
func DecodeStatus(data []byte) (*StatusResponse, error) {
	var s StatusResponse
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, &wiregraph.RunError{
			Message:    "malformed status response",
			Raw:        string(data),
			Validation: fmt.Sprintf("decode: %v", err),
		}
	}
	return &s, nil
}
