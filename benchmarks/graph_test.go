package benchmarks

import (
	"fmt"
	"testing"

	"github.com/randalmurphal/wiregraph/pkg/wiregraph"
)

func nodeID(n int) string {
	return fmt.Sprintf("node%d", n)
}

// buildLinearGraph chains n task nodes.
func buildLinearGraph(n int) *wiregraph.Graph {
	g := &wiregraph.Graph{}
	for i := range n {
		g.Nodes = append(g.Nodes, &wiregraph.Node{ID: nodeID(i), Type: "task", Status: wiregraph.StatusNone})
		if i > 0 {
			g.Edges = append(g.Edges, &wiregraph.Edge{
				ID:     fmt.Sprintf("e%d", i),
				Source: nodeID(i - 1),
				Target: nodeID(i),
			})
		}
	}
	return g
}

// buildLayeredGraph builds layers of width nodes, each node feeding every
// node of the next layer through a branch handle.
func buildLayeredGraph(layers, width int) *wiregraph.Graph {
	g := &wiregraph.Graph{}
	id := func(l, w int) string { return fmt.Sprintf("n%d_%d", l, w) }
	for l := range layers {
		for w := range width {
			g.Nodes = append(g.Nodes, &wiregraph.Node{ID: id(l, w), Type: "task", Status: wiregraph.StatusNone})
			if l == 0 {
				continue
			}
			for p := range width {
				g.Edges = append(g.Edges, &wiregraph.Edge{
					ID:           fmt.Sprintf("e%d_%d_%d", l, p, w),
					Source:       id(l-1, p),
					Target:       id(l, w),
					TargetHandle: fmt.Sprintf("in.%d", p),
				})
			}
		}
	}
	return g
}

// BenchmarkCheckConnection_Linear_100 rejects a back edge on a 100-node chain.
// The cycle check walks the whole chain.
func BenchmarkCheckConnection_Linear_100(b *testing.B) {
	g := buildLinearGraph(100)
	c := wiregraph.Connection{Source: nodeID(99), Target: nodeID(0), TargetHandle: "loop.back"}

	for b.Loop() {
		_ = wiregraph.CheckConnection(g, c)
	}
}

// BenchmarkCheckConnection_Linear_500 accepts a forward skip edge on a
// 500-node chain.
func BenchmarkCheckConnection_Linear_500(b *testing.B) {
	g := buildLinearGraph(500)
	c := wiregraph.Connection{Source: nodeID(0), Target: nodeID(499), TargetHandle: "skip.in"}

	for b.Loop() {
		_ = wiregraph.CheckConnection(g, c)
	}
}

// BenchmarkCheckConnection_Layered measures a dense 20x10 graph.
func BenchmarkCheckConnection_Layered(b *testing.B) {
	g := buildLayeredGraph(20, 10)
	c := wiregraph.Connection{Source: "n19_0", Target: "n0_0", TargetHandle: "loop.back"}

	for b.Loop() {
		_ = wiregraph.CheckConnection(g, c)
	}
}

// BenchmarkValidateGraph_Layered validates a dense 20x10 graph.
func BenchmarkValidateGraph_Layered(b *testing.B) {
	g := buildLayeredGraph(20, 10)
	reg := newRegistry(b)

	for b.Loop() {
		_ = wiregraph.ValidateGraph(g, reg)
	}
}

// BenchmarkClone_Linear_500 measures the snapshot copy editors hand out.
func BenchmarkClone_Linear_500(b *testing.B) {
	g := buildLinearGraph(500)

	for b.Loop() {
		_ = g.Clone()
	}
}
