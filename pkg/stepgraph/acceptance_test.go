package stepgraph

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptance_DuplicateNodeNeverCompiles(t *testing.T) {
	for _, second := range []StepFunc{noop, setStep("x", 1)} {
		compiled, err := NewGraph(testSchema).
			AddNode("a", noop).
			AddNode("a", second).
			AddEdge(START, "a").
			AddEdge("a", END).
			Compile(quietCompile())
		assert.Nil(t, compiled)
		var dup *DuplicateNodeError
		assert.True(t, errors.As(err, &dup))
	}
}

func TestAcceptance_UnknownNodeNeverCompiles(t *testing.T) {
	compiled, err := NewGraph(testSchema).
		AddNode("a", noop).
		AddEdge(START, "a").
		AddEdge("a", "b").
		AddEdge("a", END).
		Compile(quietCompile())
	assert.Nil(t, compiled)
	var unknown *UnknownNodeError
	assert.True(t, errors.As(err, &unknown))
}

func TestAcceptance_LinearChain(t *testing.T) {
	steps := map[string]StepFunc{
		"A": setStep("x", 1),
		"B": func(ctx Context, s State) (Update, error) {
			return Update{"y": s.Int("x") + 1}, nil
		},
	}
	compiled, err := linearGraph(steps, "A", "B").Compile(quietCompile())
	require.NoError(t, err)

	final, err := compiled.Invoke(testCtx(), map[string]any{"x": 0})
	require.NoError(t, err)
	assert.Equal(t, 1, final["x"])
	assert.Equal(t, 2, final["y"])
}

func TestAcceptance_FanOutJoinBarrier(t *testing.T) {
	for _, sequential := range []bool{false, true} {
		var aDone, bDone atomic.Bool
		var joinSawBoth atomic.Bool
		steps := map[string]StepFunc{
			"A": func(ctx Context, s State) (Update, error) {
				time.Sleep(20 * time.Millisecond)
				aDone.Store(true)
				return Update{"p": "from A"}, nil
			},
			"B": func(ctx Context, s State) (Update, error) {
				bDone.Store(true)
				return Update{"q": "from B"}, nil
			},
			"JOIN": func(ctx Context, s State) (Update, error) {
				joinSawBoth.Store(aDone.Load() && bDone.Load() && s.String("p") != "" && s.String("q") != "")
				return nil, nil
			},
		}
		g := NewGraph(testSchema)
		for _, name := range []string{"A", "B", "JOIN"} {
			g.AddNode(name, steps[name])
		}
		compiled, err := g.
			AddEdge(START, "A").
			AddEdge(START, "B").
			AddEdge("A", "JOIN").
			AddEdge("B", "JOIN").
			AddEdge("JOIN", END).
			Compile(quietCompile())
		require.NoError(t, err)

		var opts []RunOption
		if sequential {
			opts = append(opts, WithSequentialBranches())
		}
		final, err := compiled.Invoke(testCtx(), map[string]any{}, opts...)
		require.NoError(t, err)
		assert.Equal(t, "from A", final.String("p"))
		assert.Equal(t, "from B", final.String("q"))
		assert.True(t, joinSawBoth.Load())
	}
}

func TestAcceptance_AccumulateChainAndRoundTrip(t *testing.T) {
	appendStep := func(v string) StepFunc {
		return func(ctx Context, s State) (Update, error) {
			return Update{"history": v}, nil
		}
	}
	steps := map[string]StepFunc{"one": appendStep("1"), "two": appendStep("2"), "three": appendStep("3")}
	compiled, err := linearGraph(steps, "one", "two", "three").Compile(quietCompile())
	require.NoError(t, err)

	first, err := compiled.Invoke(testCtx(), nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"1", "2", "3"}, first.List("history"))

	second, err := compiled.Invoke(testCtx(), first)
	require.NoError(t, err)
	assert.Equal(t, []any{"1", "2", "3", "1", "2", "3"}, second.List("history"))
	assert.Len(t, first.List("history"), 3, "the first result is not aliased")
}

func TestAcceptance_UnknownRouterLabel(t *testing.T) {
	tr := &tracker{}
	router := func(ctx Context, s State) string { return "nowhere" }
	compiled, err := NewGraph(testSchema).
		AddNode("source", trackingStep("source", tr)).
		AddNode("target", trackingStep("target", tr)).
		AddEdge(START, "source").
		AddConditionalEdges("source", router, LabelMap(map[string]string{"go": "target"})).
		AddEdge("target", END).
		Compile(quietCompile())
	require.NoError(t, err)

	final, err := compiled.Invoke(testCtx(), nil)
	assert.Nil(t, final)
	var routeErr *RoutingError
	require.True(t, errors.As(err, &routeErr))
	assert.Equal(t, []string{"source"}, tr.names())
}

func TestAcceptance_CycleTerminates(t *testing.T) {
	tests := []struct {
		threshold int
	}{
		{threshold: 0},
		{threshold: 1},
		{threshold: 4},
	}

	for _, tt := range tests {
		tr := &tracker{}
		steps := map[string]StepFunc{
			"GENERATE": trackingStep("GENERATE", tr),
			"EVALUATE": trackingStep("EVALUATE", tr),
			"OPTIMIZE": func(ctx Context, s State) (Update, error) {
				tr.add("OPTIMIZE")
				return Update{"count": s.Int("count") + 1}, nil
			},
		}
		threshold := tt.threshold
		router := func(ctx Context, s State) string {
			if s.Int("count") >= threshold {
				return "approved"
			}
			return "needs_improvement"
		}
		compiled, err := NewGraph(testSchema).
			AddNode("GENERATE", steps["GENERATE"]).
			AddNode("EVALUATE", steps["EVALUATE"]).
			AddNode("OPTIMIZE", steps["OPTIMIZE"]).
			AddEdge(START, "GENERATE").
			AddEdge("GENERATE", "EVALUATE").
			AddConditionalEdges("EVALUATE", router, LabelMap(map[string]string{
				"approved":          END,
				"needs_improvement": "OPTIMIZE",
			})).
			AddEdge("OPTIMIZE", "EVALUATE").
			Compile(quietCompile())
		require.NoError(t, err)

		final, err := compiled.Invoke(testCtx(), nil)
		require.NoError(t, err)
		assert.Equal(t, threshold, final.Int("count"))
		assert.Equal(t, 1, tr.count("GENERATE"))
		assert.Equal(t, threshold, tr.count("OPTIMIZE"))
		assert.Equal(t, threshold+1, tr.count("EVALUATE"))
	}
}

func TestAcceptance_StepFailureReturnsNoState(t *testing.T) {
	cause := errors.New("llm unavailable")
	steps := map[string]StepFunc{"ok": setStep("x", 1), "broken": failingStep(cause)}
	compiled, err := linearGraph(steps, "ok", "broken").Compile(quietCompile())
	require.NoError(t, err)

	final, err := compiled.Invoke(testCtx(), nil)
	assert.Nil(t, final)
	assert.ErrorIs(t, err, cause)
	var stepErr *StepError
	assert.True(t, errors.As(err, &stepErr))
}

func TestAcceptance_ReusableCompiledGraph(t *testing.T) {
	steps := map[string]StepFunc{
		"inc": func(ctx Context, s State) (Update, error) {
			return Update{"x": s.Int("x") + 1}, nil
		},
	}
	compiled, err := linearGraph(steps, "inc").Compile(quietCompile())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		final, err := compiled.Invoke(testCtx(), map[string]any{"x": 10})
		require.NoError(t, err)
		assert.Equal(t, 11, final.Int("x"))
	}
}
