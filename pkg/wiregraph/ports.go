package wiregraph

import (
	"github.com/randalmurphal/wiregraph/pkg/wiregraph/schema"
)

// Direction is the side of a node a port sits on.
type Direction string

const (
	// DirectionInput marks a port that receives an edge's target handle.
	DirectionInput Direction = "input"
	// DirectionOutput marks a port that provides an edge's source handle.
	DirectionOutput Direction = "output"
)

// Port is a named, typed connection point. Ports are derived, never stored.
type Port struct {
	NodeID    string    `json:"node_id"`
	Direction Direction `json:"direction"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`

	// Speculative marks a candidate port offered for an uncommitted connection.
	Speculative bool `json:"speculative,omitempty"`
}

// Ports is a node's ordered inputs and outputs.
type Ports struct {
	Inputs  []Port `json:"inputs"`
	Outputs []Port `json:"outputs"`
}

// Input returns the input port with the given name.
func (p Ports) Input(name string) (Port, bool) {
	return findPort(p.Inputs, name)
}

// Output returns the output port with the given name.
func (p Ports) Output(name string) (Port, bool) {
	return findPort(p.Outputs, name)
}

func findPort(ports []Port, name string) (Port, bool) {
	for _, p := range ports {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// DerivePorts computes a node's ports from its type schema and live config.
//
// Each direction yields one port per declared field, in declared order, or a
// single DefaultHandle port when none are declared. A nil schema (unknown
// type) yields no ports.
func DerivePorts(node *Node, ts *schema.TypeSchema) Ports {
	if node == nil || ts == nil {
		return Ports{}
	}
	return BehaviorFor(ts.Kind).Ports(node, ts)
}

func fieldPorts(nodeID string, dir Direction, fields []schema.Field) []Port {
	if len(fields) == 0 {
		return []Port{{NodeID: nodeID, Direction: dir, Name: DefaultHandle, Type: "any"}}
	}
	ports := make([]Port, 0, len(fields))
	for _, f := range fields {
		ports = append(ports, Port{NodeID: nodeID, Direction: dir, Name: f.Name, Type: f.TypeOrAny()})
	}
	return ports
}

// BranchHandle is the composite input port name for a branch of a router.
func BranchHandle(routerTitle, branch string) string {
	return routerTitle + HandleSeparator + handleOrDefault(branch)
}

// ResolvePorts derives the ports of nodeID in the context of its connections.
//
// Committed incoming edges from router nodes add one composite branch input
// per (router, branch). When pending is a connection in progress into nodeID,
// a speculative input for its source is added only if both nodes share a scope
// and the connection would not close a cycle. Unknown types resolve to no ports.
func ResolvePorts(g *Graph, reg *schema.Registry, nodeID string, pending *Connection) (Ports, error) {
	node := g.Node(nodeID)
	if node == nil {
		return Ports{}, &NodeError{NodeID: nodeID, Op: "resolve_ports", Err: ErrNodeNotFound}
	}

	ts, err := reg.Lookup(node.Type)
	if err != nil {
		return Ports{}, nil
	}
	ports := DerivePorts(node, ts)

	for _, e := range g.Incoming(nodeID) {
		src := g.Node(e.Source)
		if src == nil || reg.KindOf(src.Type) != schema.KindRouter {
			continue
		}
		ports.Inputs = appendUnique(ports.Inputs, Port{
			NodeID:    nodeID,
			Direction: DirectionInput,
			Name:      BranchHandle(src.DisplayTitle(), e.SourceHandle),
			Type:      "any",
		})
	}

	if pending != nil && pending.Target == nodeID {
		if src := g.Node(pending.Source); src != nil && acceptsPending(g, src, node) {
			ports.Inputs = appendUnique(ports.Inputs, Port{
				NodeID:      nodeID,
				Direction:   DirectionInput,
				Name:        BranchHandle(src.DisplayTitle(), pending.SourceHandle),
				Type:        "any",
				Speculative: true,
			})
		}
	}

	return ports, nil
}

func acceptsPending(g *Graph, src, target *Node) bool {
	if src.ID == target.ID || src.ParentID != target.ParentID {
		return false
	}
	return !newIndex(g).reachable(target.ID, src.ID)
}

func appendUnique(ports []Port, p Port) []Port {
	if _, ok := findPort(ports, p.Name); ok {
		return ports
	}
	return append(ports, p)
}
