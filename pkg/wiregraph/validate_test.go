package wiregraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateGraph_Valid(t *testing.T) {
	reg := testRegistry(t)

	testCases := []struct {
		name  string
		graph *Graph
	}{
		{"empty", &Graph{}},
		{"chain", chain()},
		{"diamond", newGraph().
			node("A", "task").node("B", "task").node("C", "task").node("D", "task").
			edge("A", "B").edge("A", "C").
			handles("B", "", "D", "left").handles("C", "", "D", "right").
			build()},
		{"branch fan-in", newGraph().
			node("R", "router").node("S", "router").node("T", "task").
			handles("R", "yes", "T", "R.yes").
			handles("S", "yes", "T", "R.yes").
			build()},
		{"nested groups", newGraph().
			node("outer", "group").
			child("inner", "group", "outer").
			child("leaf", "task", "inner").
			build()},
		{"unknown type", newGraph().node("X", "mystery").build()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NoError(t, ValidateGraph(tc.graph, reg))
		})
	}
}

func TestValidateGraph_Invalid(t *testing.T) {
	reg := testRegistry(t)

	testCases := []struct {
		name    string
		graph   *Graph
		wantErr []error
	}{
		{
			name:    "duplicate node id",
			graph:   newGraph().node("A", "task").node("A", "task").build(),
			wantErr: []error{ErrDuplicateNode},
		},
		{
			name: "duplicate edge id",
			graph: func() *Graph {
				g := newGraph().node("A", "task").node("B", "task").edge("A", "B").handles("A", "", "B", "other").build()
				g.Edges[1].ID = g.Edges[0].ID
				return g
			}(),
			wantErr: []error{ErrDuplicateEdgeID},
		},
		{
			name:    "dangling edge",
			graph:   newGraph().node("A", "task").edge("A", "ghost").build(),
			wantErr: []error{ErrNodeNotFound},
		},
		{
			name:    "self loop",
			graph:   newGraph().node("A", "task").edge("A", "A").build(),
			wantErr: []error{ErrSelfLoop, ErrCycle},
		},
		{
			name:    "missing parent",
			graph:   newGraph().child("A", "task", "ghost").build(),
			wantErr: []error{ErrInvalidParent},
		},
		{
			name:    "parent is not a group",
			graph:   newGraph().node("P", "task").child("A", "task", "P").build(),
			wantErr: []error{ErrInvalidParent},
		},
		{
			name:    "parent loop",
			graph:   newGraph().child("G1", "group", "G2").child("G2", "group", "G1").build(),
			wantErr: []error{ErrAncestorLoop},
		},
		{
			name:    "fan-in",
			graph:   newGraph().node("A", "task").node("B", "task").node("C", "task").edge("A", "C").edge("B", "C").build(),
			wantErr: []error{ErrFanIn},
		},
		{
			name: "cycle",
			graph: newGraph().node("A", "task").node("B", "task").node("C", "task").
				edge("A", "B").edge("B", "C").handles("C", "", "A", "loop").build(),
			wantErr: []error{ErrCycle},
		},
		{
			name: "edge between groups",
			graph: newGraph().node("G1", "group").node("G2", "group").
				child("a", "task", "G1").child("c", "task", "G2").
				edge("a", "c").build(),
			wantErr: []error{ErrScopeMismatch},
		},
		{
			name: "edge into a group",
			graph: newGraph().node("G", "group").node("top", "task").
				child("a", "task", "G").
				edge("top", "a").build(),
			wantErr: []error{ErrScopeMismatch},
		},
		{
			name: "several problems at once",
			graph: newGraph().
				node("A", "task").node("A", "task").
				child("B", "task", "ghost").
				edge("B", "missing").
				build(),
			wantErr: []error{ErrDuplicateNode, ErrInvalidParent, ErrNodeNotFound},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateGraph(tc.graph, reg)
			require.Error(t, err)
			for _, want := range tc.wantErr {
				assert.ErrorIs(t, err, want)
			}
		})
	}
}

func TestValidateGraph_CycleListsNodes(t *testing.T) {
	g := newGraph().node("S", "task").node("A", "task").node("B", "task").
		edge("S", "A").handles("A", "", "B", "x").handles("B", "", "A", "y").build()

	err := ValidateGraph(g, testRegistry(t))
	require.ErrorIs(t, err, ErrCycle)
	assert.Contains(t, err.Error(), "[A B]")
	assert.Equal(t, []string{"A", "B"}, cyclicNodes(g))
}

func TestValidateGraph_CrossScope(t *testing.T) {
	reg := testRegistry(t)
	topToChild := newGraph().node("G", "group").node("top", "task").
		child("a", "task", "G").
		edge("top", "a").build()
	betweenGroups := newGraph().node("G1", "group").node("G2", "group").
		child("a", "task", "G1").child("c", "task", "G2").
		edge("a", "c").build()

	assert.NoError(t, ValidateGraph(topToChild, reg, WithCrossScope(true)))
	assert.ErrorIs(t, ValidateGraph(betweenGroups, reg, WithCrossScope(true)), ErrScopeMismatch)

	strict, _ := newTestEditor(t, topToChild.Clone())
	assert.ErrorIs(t, strict.Validate(), ErrScopeMismatch)

	loose, _ := newTestEditor(t, topToChild.Clone(), WithConnectOptions(WithCrossScope(true)))
	assert.NoError(t, loose.Validate())
}
