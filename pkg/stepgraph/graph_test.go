package stepgraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNode_RecordsProblems(t *testing.T) {
	tests := []struct {
		name    string
		node    string
		fn      StepFunc
		wantErr error
	}{
		{"empty name", "", noop, ErrInvalidNodeName},
		{"whitespace", "a b", noop, ErrInvalidNodeName},
		{"reserved start", "start", noop, ErrInvalidNodeName},
		{"reserved END", "END", noop, ErrInvalidNodeName},
		{"reserved sentinel", START, noop, ErrInvalidNodeName},
		{"nil step", "a", nil, ErrNilStep},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph(testSchema).AddNode(tt.node, tt.fn)

			err := g.Err()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			compiled, err := g.Compile()
			assert.Nil(t, compiled)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAddNode_Duplicate(t *testing.T) {
	g := NewGraph(testSchema).
		AddNode("a", setStep("x", 1)).
		AddNode("a", setStep("x", 2)).
		AddEdge(START, "a").
		AddEdge("a", END)

	compiled, err := g.Compile()
	require.Error(t, err)
	assert.Nil(t, compiled)

	var dup *DuplicateNodeError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "a", dup.Name)
	assert.Contains(t, err.Error(), `duplicate node "a"`)
}

func TestAddEdge_Problems(t *testing.T) {
	t.Run("unknown target", func(t *testing.T) {
		g := NewGraph(testSchema).
			AddNode("a", noop).
			AddEdge(START, "a").
			AddEdge("a", "ghost")

		_, err := g.Compile()
		var unknown *UnknownNodeError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, "ghost", unknown.Name)
		assert.Equal(t, "edge a -> ghost", unknown.Ref)
	})

	t.Run("edge before node registration", func(t *testing.T) {
		g := NewGraph(testSchema).
			AddEdge(START, "a").
			AddNode("a", noop).
			AddEdge("a", END)

		_, err := g.Compile()
		var unknown *UnknownNodeError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, "a", unknown.Name)
	})

	t.Run("from END", func(t *testing.T) {
		g := NewGraph(testSchema).AddNode("a", noop).AddEdge(END, "a")
		assert.ErrorIs(t, g.Err(), ErrEdgeFromEnd)
	})

	t.Run("to START", func(t *testing.T) {
		g := NewGraph(testSchema).AddNode("a", noop).AddEdge("a", START)
		assert.ErrorIs(t, g.Err(), ErrEdgeToStart)
	})

	t.Run("duplicate edge is ignored", func(t *testing.T) {
		compiled, err := NewGraph(testSchema).
			AddNode("a", noop).
			AddEdge(START, "a").
			AddEdge("a", END).
			AddEdge("a", END).
			Compile()
		require.NoError(t, err)
		assert.Equal(t, []string{END}, compiled.Successors("a"))
	})
}

func TestAddConditionalEdges_Problems(t *testing.T) {
	router := func(ctx Context, s State) string { return "x" }

	tests := []struct {
		name  string
		build func(g *Graph)
		check func(t *testing.T, err error)
	}{
		{
			name: "nil router",
			build: func(g *Graph) {
				g.AddConditionalEdges("a", nil, LabelMap(map[string]string{"x": END}))
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrNilRouter) },
		},
		{
			name: "empty label map",
			build: func(g *Graph) {
				g.AddConditionalEdges("a", router, LabelMap(nil))
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrEmptyRoutes) },
		},
		{
			name: "unknown target",
			build: func(g *Graph) {
				g.AddConditionalEdges("a", router, LabelMap(map[string]string{"x": "ghost"}))
			},
			check: func(t *testing.T, err error) {
				var unknown *UnknownNodeError
				require.True(t, errors.As(err, &unknown))
				assert.Equal(t, "ghost", unknown.Name)
				assert.Contains(t, unknown.Ref, `label "x"`)
			},
		},
		{
			name: "unknown direct destination",
			build: func(g *Graph) {
				g.AddConditionalEdges("a", router, Direct("ghost", END))
			},
			check: func(t *testing.T, err error) {
				var unknown *UnknownNodeError
				require.True(t, errors.As(err, &unknown))
				assert.Equal(t, "ghost", unknown.Name)
			},
		},
		{
			name: "route to START",
			build: func(g *Graph) {
				g.AddConditionalEdges("a", router, LabelMap(map[string]string{"x": START}))
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrEdgeToStart) },
		},
		{
			name: "from END",
			build: func(g *Graph) {
				g.AddConditionalEdges(END, router, Direct("a"))
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrEdgeFromEnd) },
		},
		{
			name: "second conditional set",
			build: func(g *Graph) {
				g.AddConditionalEdges("a", router, Direct(END))
				g.AddConditionalEdges("a", router, Direct(END))
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrMultipleConditionalEdges) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph(testSchema).AddNode("a", noop)
			tt.build(g)
			err := g.Err()
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestGraph_ErrNilWhenClean(t *testing.T) {
	g := NewGraph(testSchema).AddNode("a", noop).AddEdge(START, "a").AddEdge("a", END)
	assert.NoError(t, g.Err())
}

func TestRoutes(t *testing.T) {
	t.Run("label map", func(t *testing.T) {
		r := LabelMap(map[string]string{"yes": "a", "no": END, "maybe": "a"})
		assert.False(t, r.IsDirect())
		assert.Equal(t, []string{"a", END}, r.targets())

		to, err := r.resolve("no")
		require.NoError(t, err)
		assert.Equal(t, END, to)

		_, err = r.resolve("other")
		assert.ErrorIs(t, err, ErrUnknownLabel)
	})

	t.Run("direct with destinations", func(t *testing.T) {
		r := Direct("a", "b")
		assert.True(t, r.IsDirect())
		assert.False(t, r.open())

		to, err := r.resolve("b")
		require.NoError(t, err)
		assert.Equal(t, "b", to)

		_, err = r.resolve("c")
		assert.ErrorIs(t, err, ErrUnknownLabel)
	})

	t.Run("open direct", func(t *testing.T) {
		r := Direct()
		assert.True(t, r.open())
		assert.Empty(t, r.targets())

		to, err := r.resolve("anything")
		require.NoError(t, err)
		assert.Equal(t, "anything", to)
	})

	t.Run("label map is copied", func(t *testing.T) {
		m := map[string]string{"x": "a"}
		r := LabelMap(m)
		m["x"] = "b"
		to, err := r.resolve("x")
		require.NoError(t, err)
		assert.Equal(t, "a", to)
	})
}
