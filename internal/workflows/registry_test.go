package workflows_test

import (
	"sync"
	"testing"

	"github.com/randalmurphal/stepgraph/internal/workflows"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	r := workflows.Default()

	assert.Equal(t, []string{"cricket", "quadratic", "tweet"}, r.Names())
	assert.Equal(t, 3, r.Len())

	tweet, ok := r.Get("tweet")
	require.True(t, ok)
	assert.True(t, tweet.NeedsLLM)
}

// Every registered workflow compiles and runs its own example input.
func TestDefault_ExamplesRun(t *testing.T) {
	r := workflows.Default()
	client := scriptedCritic(`{"evaluation": "approved", "feedback": "ok"}`)

	for _, name := range r.Names() {
		t.Run(name, func(t *testing.T) {
			w, err := r.Lookup(name)
			require.NoError(t, err)

			compiled, err := w.Build()
			require.NoError(t, err)
			assert.Equal(t, name, compiled.Name())
			assert.Empty(t, compiled.Warnings())

			var c llm.Client
			if w.NeedsLLM {
				c = client
			}
			final, err := run(t, compiled, w.Example, c)
			require.NoError(t, err)
			assert.NotEmpty(t, final.String(w.Output))
		})
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := workflows.NewRegistry()
	r.Register(workflows.Workflow{Name: "a"})

	_, err := r.Lookup("missing")
	assert.ErrorIs(t, err, workflows.ErrUnknownWorkflow)
	assert.Contains(t, err.Error(), "[a]")
}

func TestRegistry_Replace(t *testing.T) {
	r := workflows.NewRegistry()
	r.Register(workflows.Workflow{Name: "a", Description: "first"})
	r.Register(workflows.Workflow{Name: "a", Description: "second"})

	w, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "second", w.Description)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Concurrent(t *testing.T) {
	r := workflows.NewRegistry()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register(workflows.Workflow{Name: string(rune('a' + i%26))})
			_ = r.Names()
		}()
	}
	wg.Wait()
	assert.Equal(t, 26, r.Len())
}
