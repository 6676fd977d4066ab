package wiregraph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/wiregraph/pkg/wiregraph/schema"
)

func ptr[T any](v T) *T { return &v }

// testRegistry knows one type of every kind:
//   - task: no declared fields, so a single default port each way
//   - llm: two inputs, one output, a bounded temperature config
//   - input: an input-kind node
//   - group: a container
//   - router: outputs follow the "routes" config
func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	require.NoError(t, reg.RegisterMany([]*schema.TypeSchema{
		{Name: "task"},
		{
			Name:    "llm",
			Inputs:  []schema.Field{{Name: "prompt", Type: "string"}, {Name: "context"}},
			Outputs: []schema.Field{{Name: "text", Type: "string"}},
			Config: []schema.Field{
				{Name: "temperature", Type: "number", Minimum: ptr(0.0), Maximum: ptr(2.0), Default: 0.7},
				{Name: "model", Type: "string"},
			},
		},
		{Name: "input", Kind: schema.KindInput, Outputs: []schema.Field{{Name: "value"}}},
		{Name: "group", Kind: schema.KindGroup},
		{Name: "router", Kind: schema.KindRouter, Config: []schema.Field{{Name: RoutesKey, Type: "array"}}},
	}))
	return reg
}

// graphBuilder assembles graphs for tests without going through the editor.
type graphBuilder struct {
	g     *Graph
	edges int
}

func newGraph() *graphBuilder {
	return &graphBuilder{g: &Graph{}}
}

func (b *graphBuilder) node(id, typ string) *graphBuilder {
	b.g.Nodes = append(b.g.Nodes, &Node{ID: id, Type: typ, Status: StatusNone})
	return b
}

func (b *graphBuilder) child(id, typ, parent string) *graphBuilder {
	b.g.Nodes = append(b.g.Nodes, &Node{ID: id, Type: typ, ParentID: parent, Status: StatusNone})
	return b
}

func (b *graphBuilder) edge(source, target string) *graphBuilder {
	return b.handles(source, "", target, "")
}

func (b *graphBuilder) handles(source, sourceHandle, target, targetHandle string) *graphBuilder {
	b.edges++
	b.g.Edges = append(b.g.Edges, &Edge{
		ID:           fmt.Sprintf("e%d", b.edges),
		Source:       source,
		SourceHandle: sourceHandle,
		Target:       target,
		TargetHandle: targetHandle,
	})
	return b
}

func (b *graphBuilder) build() *Graph {
	return b.g
}

// chain returns A -> B -> C on default handles.
func chain() *Graph {
	return newGraph().
		node("A", "task").
		node("B", "task").
		node("C", "task").
		edge("A", "B").
		edge("B", "C").
		build()
}

// sequentialIDs returns an id generator yielding prefix1, prefix2, ...
func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}
