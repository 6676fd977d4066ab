package wiregraph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runNodeIDs(nodes []RunNode) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

func runEdgePairs(edges []RunEdge) []string {
	pairs := make([]string, 0, len(edges))
	for _, e := range edges {
		pairs = append(pairs, e.Source+"->"+e.Target)
	}
	return pairs
}

func TestBuildRunRequest(t *testing.T) {
	outA := map[string]any{"value": 1}
	outB := map[string]any{"value": 2}

	testCases := []struct {
		name      string
		graph     *Graph
		target    string
		known     map[string]map[string]any
		rerun     bool
		ancestors []string
		nodes     []string
		cached    []string
		edges     []string
	}{
		{
			name:      "cached root becomes a leaf",
			graph:     chain(),
			target:    "C",
			known:     map[string]map[string]any{"A": outA},
			ancestors: []string{"B"},
			nodes:     []string{"B", "C"},
			cached:    []string{"A"},
			edges:     []string{"A->B", "B->C"},
		},
		{
			name:      "every ancestor known",
			graph:     chain(),
			target:    "C",
			known:     map[string]map[string]any{"A": outA, "B": outB},
			ancestors: []string{},
			nodes:     []string{"C"},
			cached:    []string{"B"},
			edges:     []string{"B->C"},
		},
		{
			name:      "rerun ignores known outputs",
			graph:     chain(),
			target:    "C",
			known:     map[string]map[string]any{"A": outA, "B": outB},
			rerun:     true,
			ancestors: []string{"A", "B"},
			nodes:     []string{"A", "B", "C"},
			cached:    []string{},
			edges:     []string{"A->B", "B->C"},
		},
		{
			name:      "nothing known",
			graph:     chain(),
			target:    "C",
			ancestors: []string{"A", "B"},
			nodes:     []string{"A", "B", "C"},
			cached:    []string{},
			edges:     []string{"A->B", "B->C"},
		},
		{
			name:      "root target",
			graph:     chain(),
			target:    "A",
			ancestors: []string{},
			nodes:     []string{"A"},
			cached:    []string{},
			edges:     []string{},
		},
		{
			name: "diamond visits the shared root once",
			graph: newGraph().
				node("A", "task").node("B", "task").node("C", "task").node("D", "task").node("X", "task").
				edge("A", "B").edge("A", "C").
				handles("B", "", "D", "l").handles("C", "", "D", "r").
				edge("X", "A").
				build(),
			target:    "D",
			known:     map[string]map[string]any{"A": outA},
			ancestors: []string{"B", "C"},
			nodes:     []string{"B", "C", "D"},
			cached:    []string{"A"},
			edges:     []string{"A->B", "A->C", "B->D", "C->D"},
		},
		{
			name: "downstream and unrelated nodes excluded",
			graph: newGraph().
				node("A", "task").node("B", "task").node("C", "task").node("Z", "task").
				edge("A", "B").edge("B", "C").
				build(),
			target:    "B",
			ancestors: []string{"A"},
			nodes:     []string{"A", "B"},
			cached:    []string{},
			edges:     []string{"A->B"},
		},
		{
			name: "cyclic input terminates",
			graph: newGraph().
				node("A", "task").node("B", "task").node("C", "task").
				edge("A", "B").edge("B", "C").handles("C", "", "A", "loop").
				build(),
			target:    "C",
			ancestors: []string{"A", "B"},
			nodes:     []string{"A", "B", "C"},
			cached:    []string{},
			edges:     []string{"A->B", "B->C", "C->A"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := BuildRunRequest(tc.graph, "wf-1", tc.target, tc.known, tc.rerun)
			require.NoError(t, err)

			assert.Equal(t, "wf-1", req.WorkflowID)
			assert.Equal(t, tc.target, req.TargetNodeID)
			assert.Equal(t, tc.rerun, req.RerunPredecessors)
			assert.Equal(t, tc.ancestors, req.Ancestors)
			assert.Equal(t, tc.nodes, runNodeIDs(req.Nodes))
			assert.Equal(t, tc.edges, runEdgePairs(req.Edges))

			assert.Len(t, req.KnownOutputs, len(tc.cached))
			for _, id := range tc.cached {
				assert.Equal(t, tc.known[id], req.KnownOutputs[id])
			}
			assert.NotContains(t, req.Ancestors, tc.target)
		})
	}
}

func TestBuildRunRequest_MissingTarget(t *testing.T) {
	_, err := BuildRunRequest(chain(), "wf", "ghost", nil, false)
	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestBuildRunRequest_CopiesInputs(t *testing.T) {
	g := chain()
	g.Node("B").Config = map[string]any{"k": "v"}
	known := map[string]map[string]any{"A": {"value": 1}}

	req, err := BuildRunRequest(g, "wf", "C", known, false)
	require.NoError(t, err)

	req.KnownOutputs["A"]["value"] = 99
	req.Nodes[0].Config["k"] = "changed"

	assert.Equal(t, 1, known["A"]["value"])
	assert.Equal(t, "v", g.Node("B").Config["k"])
}

func TestBuildRunRequest_NormalizesHandles(t *testing.T) {
	g := newGraph().node("A", "task").node("B", "task").handles("A", "", "B", "").build()

	req, err := BuildRunRequest(g, "wf", "B", nil, false)
	require.NoError(t, err)
	require.Len(t, req.Edges, 1)
	assert.Equal(t, DefaultHandle, req.Edges[0].SourceHandle)
	assert.Equal(t, DefaultHandle, req.Edges[0].TargetHandle)
}

func TestRunRequest_JSONShape(t *testing.T) {
	req, err := BuildRunRequest(chain(), "wf-1", "A", nil, false)
	require.NoError(t, err)

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	for _, key := range []string{
		"workflow_id", "target_node_id", "initial_inputs", "known_outputs",
		"rerun_predecessors", "ancestors", "nodes", "edges",
	} {
		assert.Contains(t, doc, key)
	}
	assert.Equal(t, []any{}, doc["ancestors"])
	assert.Equal(t, []any{}, doc["edges"])
	assert.Equal(t, map[string]any{}, doc["known_outputs"])
}

func TestRunRequest_ResolveInitialInputs(t *testing.T) {
	reg := testRegistry(t)
	g := newGraph().
		node("I", "input").
		node("J", "input").
		node("T", "task").
		edge("I", "T").
		handles("J", "", "T", "second").
		build()
	g.Node("I").Config = map[string]any{"value": 3}

	req, err := BuildRunRequest(g, "wf", "T", map[string]map[string]any{"J": {"value": 4}}, false)
	require.NoError(t, err)
	req.ResolveInitialInputs(reg)

	assert.Equal(t, map[string]map[string]any{"I": {"value": 3}}, req.InitialInputs)
}
