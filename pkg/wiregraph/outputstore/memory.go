package outputstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps outputs in memory. Outputs are stored encoded so callers
// never share maps with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[string]map[string]entry
	sequence  map[string]int
	closed    bool
}

type entry struct {
	data      []byte
	sequence  int
	timestamp time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows: make(map[string]map[string]entry),
		sequence:  make(map[string]int),
	}
}

// Save implements Store.
func (s *MemoryStore) Save(workflowID, nodeID string, output map[string]any) error {
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	nodes, ok := s.workflows[workflowID]
	if !ok {
		nodes = make(map[string]entry)
		s.workflows[workflowID] = nodes
	}
	s.sequence[workflowID]++
	nodes[nodeID] = entry{data: data, sequence: s.sequence[workflowID], timestamp: time.Now().UTC()}
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(workflowID, nodeID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	e, ok := s.workflows[workflowID][nodeID]
	if !ok {
		return nil, ErrNotFound
	}
	return decode(e.data)
}

// Known implements Store.
func (s *MemoryStore) Known(workflowID string) (map[string]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	out := make(map[string]map[string]any, len(s.workflows[workflowID]))
	for nodeID, e := range s.workflows[workflowID] {
		m, err := decode(e.data)
		if err != nil {
			return nil, err
		}
		out[nodeID] = m
	}
	return out, nil
}

// List implements Store.
func (s *MemoryStore) List(workflowID string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	infos := make([]Info, 0, len(s.workflows[workflowID]))
	for nodeID, e := range s.workflows[workflowID] {
		infos = append(infos, Info{
			WorkflowID: workflowID,
			NodeID:     nodeID,
			Sequence:   e.sequence,
			Timestamp:  e.timestamp,
			Size:       int64(len(e.data)),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Sequence < infos[j].Sequence
	})
	return infos, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(workflowID, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	delete(s.workflows[workflowID], nodeID)
	return nil
}

// DeleteWorkflow implements Store.
func (s *MemoryStore) DeleteWorkflow(workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	delete(s.workflows, workflowID)
	delete(s.sequence, workflowID)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.workflows = nil
	return nil
}

func decode(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode output: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}
