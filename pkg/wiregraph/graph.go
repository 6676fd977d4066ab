package wiregraph

import "maps"

const (
	// DefaultHandle names the implicit port of a direction with no declared fields.
	DefaultHandle = "default"

	// HandleSeparator joins a router title and a branch name into a composite port.
	HandleSeparator = "."
)

// Position is a point in canvas space.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Size is a node's rendered width and height.
type Size struct {
	Width  float64 `json:"width" yaml:"width" validate:"gte=0"`
	Height float64 `json:"height" yaml:"height" validate:"gte=0"`
}

// Node is a unit of computation or configuration placed on the canvas.
type Node struct {
	ID       string         `json:"id" yaml:"id" validate:"required"`
	Type     string         `json:"type" yaml:"type" validate:"required"`
	Title    string         `json:"title,omitempty" yaml:"title,omitempty"`
	Position Position       `json:"position" yaml:"position"`
	Size     Size           `json:"size" yaml:"size"`
	ParentID string         `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Config   map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	Output   map[string]any `json:"output,omitempty" yaml:"output,omitempty"`
	Status   Status         `json:"status,omitempty" yaml:"status,omitempty" validate:"omitempty,oneof=none pending running completed failed cancelled"`
	Error    string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// DisplayTitle returns the title, falling back to the id.
func (n *Node) DisplayTitle() string {
	if n.Title != "" {
		return n.Title
	}
	return n.ID
}

// Clone returns a deep copy of the node. Nested config values are copied
// one level deep.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Config = maps.Clone(n.Config)
	c.Output = maps.Clone(n.Output)
	return &c
}

// Edge is a directed connection from a source port to a target port.
type Edge struct {
	ID           string         `json:"id" yaml:"id" validate:"required"`
	Source       string         `json:"source" yaml:"source" validate:"required"`
	SourceHandle string         `json:"source_handle,omitempty" yaml:"source_handle,omitempty"`
	Target       string         `json:"target" yaml:"target" validate:"required"`
	TargetHandle string         `json:"target_handle,omitempty" yaml:"target_handle,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Clone returns a copy of the edge.
func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	c := *e
	c.Metadata = maps.Clone(e.Metadata)
	return &c
}

// Graph holds one workflow's nodes and edges.
// Slice order is the stable input order that layout and run requests follow.
type Graph struct {
	Nodes []*Node `json:"nodes" yaml:"nodes" validate:"dive"`
	Edges []*Edge `json:"edges" yaml:"edges" validate:"dive"`
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	if g == nil {
		return nil
	}
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Edge returns the edge with the given id, or nil.
func (g *Graph) Edge(id string) *Edge {
	if g == nil {
		return nil
	}
	for _, e := range g.Edges {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// HasNode reports whether a node with the given id exists.
func (g *Graph) HasNode(id string) bool {
	return g.Node(id) != nil
}

// Incoming returns the edges targeting id, in edge order.
func (g *Graph) Incoming(id string) []*Edge {
	var out []*Edge
	for _, e := range g.Edges {
		if e.Target == id {
			out = append(out, e)
		}
	}
	return out
}

// Outgoing returns the edges leaving id, in edge order.
func (g *Graph) Outgoing(id string) []*Edge {
	var out []*Edge
	for _, e := range g.Edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

// Children returns the nodes whose parent is id, in node order.
func (g *Graph) Children(id string) []*Node {
	var out []*Node
	for _, n := range g.Nodes {
		if n.ParentID == id {
			out = append(out, n)
		}
	}
	return out
}

// origin returns the absolute position of the group id, the point its
// children's positions are relative to. The top level ("") is at zero.
func (g *Graph) origin(id string) Position {
	var o Position
	seen := make(map[string]bool)
	for id != "" && !seen[id] {
		seen[id] = true
		n := g.Node(id)
		if n == nil {
			break
		}
		o.X += n.Position.X
		o.Y += n.Position.Y
		id = n.ParentID
	}
	return o
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return &Graph{}
	}
	c := &Graph{
		Nodes: make([]*Node, len(g.Nodes)),
		Edges: make([]*Edge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		c.Nodes[i] = n.Clone()
	}
	for i, e := range g.Edges {
		c.Edges[i] = e.Clone()
	}
	return c
}

// index is a read-only adjacency view of a graph, built per operation.
type index struct {
	nodes        map[string]*Node
	order        map[string]int
	successors   map[string][]string
	predecessors map[string][]string
}

func newIndex(g *Graph) *index {
	idx := &index{
		nodes:        make(map[string]*Node, len(g.Nodes)),
		order:        make(map[string]int, len(g.Nodes)),
		successors:   make(map[string][]string),
		predecessors: make(map[string][]string),
	}
	for i, n := range g.Nodes {
		if _, dup := idx.nodes[n.ID]; dup {
			continue
		}
		idx.nodes[n.ID] = n
		idx.order[n.ID] = i
	}
	for _, e := range g.Edges {
		idx.successors[e.Source] = append(idx.successors[e.Source], e.Target)
		idx.predecessors[e.Target] = append(idx.predecessors[e.Target], e.Source)
	}
	return idx
}

// reachable reports whether to can be reached from from by following edges forward.
// The visited set bounds the search by node count.
func (idx *index) reachable(from, to string) bool {
	if from == to {
		return true
	}
	visited := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range idx.successors[current] {
			if next == to {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

func handleOrDefault(h string) string {
	if h == "" {
		return DefaultHandle
	}
	return h
}
