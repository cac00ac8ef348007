package benchmarks

import (
	"context"
	"testing"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
)

// BenchmarkInvoke_Linear_5 runs a 5-node linear graph.
func BenchmarkInvoke_Linear_5(b *testing.B) {
	benchmarkInvoke(b, mustCompile(buildLinearGraph(5)))
}

// BenchmarkInvoke_Linear_50 runs a 50-node linear graph.
func BenchmarkInvoke_Linear_50(b *testing.B) {
	benchmarkInvoke(b, mustCompile(buildLinearGraph(50)))
}

// BenchmarkInvoke_Branching runs a graph with conditional edges.
func BenchmarkInvoke_Branching(b *testing.B) {
	benchmarkInvoke(b, mustCompile(buildBranchingGraph()))
}

// BenchmarkInvoke_Loop runs a conditional self loop ten times.
func BenchmarkInvoke_Loop(b *testing.B) {
	benchmarkInvoke(b, mustCompile(buildLoopGraph()))
}

// BenchmarkInvoke_Fanout_16 runs 16 concurrent branches and merges them.
func BenchmarkInvoke_Fanout_16(b *testing.B) {
	benchmarkInvoke(b, mustCompile(buildFanoutGraph(16)))
}

// BenchmarkInvoke_Fanout_16_Sequential runs the same fork in declaration order.
func BenchmarkInvoke_Fanout_16_Sequential(b *testing.B) {
	benchmarkInvoke(b, mustCompile(buildFanoutGraph(16)), stepgraph.WithSequentialBranches())
}

// BenchmarkContextCreation measures context creation overhead.
func BenchmarkContextCreation(b *testing.B) {
	bg := context.Background()
	for i := 0; i < b.N; i++ {
		stepgraph.NewContext(bg)
	}
}

func benchmarkInvoke(b *testing.B, compiled *stepgraph.CompiledGraph, opts ...stepgraph.RunOption) {
	b.Helper()
	ctx := stepgraph.NewContext(context.Background())
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := compiled.Invoke(ctx, nil, opts...); err != nil {
			b.Fatal(err)
		}
	}
}
