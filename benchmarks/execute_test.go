package benchmarks

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/randalmurphal/wiregraph/pkg/wiregraph"
	"github.com/randalmurphal/wiregraph/pkg/wiregraph/run"
	"github.com/randalmurphal/wiregraph/pkg/wiregraph/schema"
)

func newRegistry(b *testing.B) *schema.Registry {
	b.Helper()
	reg := schema.NewRegistry()
	err := reg.RegisterMany([]*schema.TypeSchema{
		{Name: "task", Outputs: []schema.Field{{Name: "value"}}},
		{Name: "group", Kind: schema.KindGroup},
	})
	if err != nil {
		b.Fatal(err)
	}
	return reg
}

func knownHalf(g *wiregraph.Graph) map[string]map[string]any {
	known := make(map[string]map[string]any)
	for i, n := range g.Nodes {
		if i%2 == 0 {
			known[n.ID] = map[string]any{"value": i}
		}
	}
	return known
}

// BenchmarkBuildRunRequest_Linear_500 resolves the tail of a 500-node chain
// with nothing cached.
func BenchmarkBuildRunRequest_Linear_500(b *testing.B) {
	g := buildLinearGraph(500)

	for b.Loop() {
		_, _ = wiregraph.BuildRunRequest(g, "wf", nodeID(499), nil, false)
	}
}

// BenchmarkBuildRunRequest_Layered_Cached stops at cached ancestors.
func BenchmarkBuildRunRequest_Layered_Cached(b *testing.B) {
	g := buildLayeredGraph(20, 10)
	known := knownHalf(g)

	for b.Loop() {
		_, _ = wiregraph.BuildRunRequest(g, "wf", "n19_0", known, false)
	}
}

// BenchmarkBuildRunRequest_Layered_Rerun includes the whole closure.
func BenchmarkBuildRunRequest_Layered_Rerun(b *testing.B) {
	g := buildLayeredGraph(20, 10)
	known := knownHalf(g)

	for b.Loop() {
		_, _ = wiregraph.BuildRunRequest(g, "wf", "n19_0", known, true)
	}
}

type echoExecutor struct{}

func (echoExecutor) Submit(_ context.Context, req *wiregraph.RunRequest) (*run.Response, error) {
	out := map[string]map[string]any{req.TargetNodeID: {"value": 1}}
	for _, id := range req.Ancestors {
		out[id] = map[string]any{"value": 1}
	}
	return &run.Response{Outputs: out}, nil
}

func (echoExecutor) Status(context.Context, string) (*run.StatusResponse, error) {
	return &run.StatusResponse{}, nil
}

// BenchmarkDispatcher_RunNode measures a full request/merge round trip
// against an in-process backend.
func BenchmarkDispatcher_RunNode(b *testing.B) {
	e := wiregraph.NewEditor(buildLinearGraph(50), newRegistry(b),
		wiregraph.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	d := run.NewDispatcher(e, echoExecutor{}, "wf")
	defer d.Close()
	ctx := context.Background()

	for b.Loop() {
		if _, err := d.RunNode(ctx, nodeID(49), true); err != nil {
			b.Fatal(err)
		}
		d.Wait()
	}
}
