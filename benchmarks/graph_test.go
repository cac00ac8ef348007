package benchmarks

import (
	"testing"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
)

var schema = stepgraph.MustSchema(
	stepgraph.Int("value"),
	stepgraph.List("trace").Accumulating(),
)

// noopStep does minimal work to measure framework overhead.
func noopStep(ctx stepgraph.Context, s stepgraph.State) (stepgraph.Update, error) {
	return nil, nil
}

func incStep(ctx stepgraph.Context, s stepgraph.State) (stepgraph.Update, error) {
	return stepgraph.Update{"value": s.Int("value") + 1}, nil
}

// BenchmarkNewGraph measures graph creation overhead.
func BenchmarkNewGraph(b *testing.B) {
	for i := 0; i < b.N; i++ {
		stepgraph.NewGraph(schema)
	}
}

// BenchmarkAddNode_10 measures adding 10 nodes.
func BenchmarkAddNode_10(b *testing.B) {
	for i := 0; i < b.N; i++ {
		graph := stepgraph.NewGraph(schema)
		for j := 0; j < 10; j++ {
			graph.AddNode(nodeID(j), noopStep)
		}
	}
}

// BenchmarkAddNode_100 measures adding 100 nodes.
func BenchmarkAddNode_100(b *testing.B) {
	for i := 0; i < b.N; i++ {
		graph := stepgraph.NewGraph(schema)
		for j := 0; j < 100; j++ {
			graph.AddNode(nodeID(j), noopStep)
		}
	}
}

// BenchmarkCompile_Linear_10 compiles a 10-node linear graph.
func BenchmarkCompile_Linear_10(b *testing.B) {
	graph := buildLinearGraph(10)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = graph.Compile()
	}
}

// BenchmarkCompile_Linear_100 compiles a 100-node linear graph.
func BenchmarkCompile_Linear_100(b *testing.B) {
	graph := buildLinearGraph(100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = graph.Compile()
	}
}

// BenchmarkCompile_Branching compiles a graph with conditional edges.
func BenchmarkCompile_Branching(b *testing.B) {
	graph := buildBranchingGraph()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = graph.Compile()
	}
}

// BenchmarkCompile_Fanout_16 compiles a 16-branch fork, which runs the
// post-dominator join analysis.
func BenchmarkCompile_Fanout_16(b *testing.B) {
	graph := buildFanoutGraph(16)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = graph.Compile()
	}
}

// BenchmarkSchemaApply measures validating and merging a replace update.
func BenchmarkSchemaApply(b *testing.B) {
	state, err := schema.Materialize(nil)
	if err != nil {
		b.Fatal(err)
	}
	update := stepgraph.Update{"value": 1}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = schema.Apply(state, update)
	}
}

// Helper functions

func nodeID(n int) string {
	return string(rune('a'+n%26)) + string(rune('0'+n/26%10))
}

func mustCompile(g *stepgraph.Graph) *stepgraph.CompiledGraph {
	compiled, err := g.Compile()
	if err != nil {
		panic(err)
	}
	return compiled
}

func buildLinearGraph(n int) *stepgraph.Graph {
	graph := stepgraph.NewGraph(schema)
	for i := 0; i < n; i++ {
		graph.AddNode(nodeID(i), incStep)
	}
	graph.AddEdge(stepgraph.START, nodeID(0))
	for i := 0; i < n-1; i++ {
		graph.AddEdge(nodeID(i), nodeID(i+1))
	}
	graph.AddEdge(nodeID(n-1), stepgraph.END)
	return graph
}

func buildBranchingGraph() *stepgraph.Graph {
	router := func(ctx stepgraph.Context, s stepgraph.State) string {
		if s.Int("value")%2 == 0 {
			return "even"
		}
		return "odd"
	}

	return stepgraph.NewGraph(schema).
		AddNode("start", noopStep).
		AddNode("even", noopStep).
		AddNode("odd", noopStep).
		AddNode("merge", noopStep).
		AddEdge(stepgraph.START, "start").
		AddConditionalEdges("start", router, stepgraph.Direct("even", "odd")).
		AddEdge("even", "merge").
		AddEdge("odd", "merge").
		AddEdge("merge", stepgraph.END)
}

func buildLoopGraph() *stepgraph.Graph {
	router := func(ctx stepgraph.Context, s stepgraph.State) string {
		if s.Int("value") >= 10 {
			return "done"
		}
		return "again"
	}

	return stepgraph.NewGraph(schema).
		AddNode("loop", incStep).
		AddEdge(stepgraph.START, "loop").
		AddConditionalEdges("loop", router, stepgraph.LabelMap(map[string]string{
			"again": "loop",
			"done":  stepgraph.END,
		}))
}

func buildFanoutGraph(width int) *stepgraph.Graph {
	branch := func(ctx stepgraph.Context, s stepgraph.State) (stepgraph.Update, error) {
		return stepgraph.Update{"trace": ctx.NodeID()}, nil
	}
	graph := stepgraph.NewGraph(schema).
		AddNode("fork", noopStep).
		AddNode("join", noopStep).
		AddEdge(stepgraph.START, "fork").
		AddEdge("join", stepgraph.END)
	for i := 0; i < width; i++ {
		graph.AddNode(nodeID(i), branch).
			AddEdge("fork", nodeID(i)).
			AddEdge(nodeID(i), "join")
	}
	return graph
}
