package workflows

import (
	"fmt"
	"slices"
	"sync"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
)

// Workflow describes a runnable demo graph.
type Workflow struct {
	Name        string
	Description string
	// Inputs lists the fields a caller is expected to supply.
	Inputs []string
	// Example is a complete initial record that runs successfully.
	Example map[string]any
	// Output is the field shown as the headline result.
	Output string
	// NeedsLLM reports whether steps call llm.FromContext.
	NeedsLLM bool
	Build    func() (*stepgraph.CompiledGraph, error)
}

// Registry is a thread-safe set of workflows indexed by name.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Workflow
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Workflow)}
}

// Register adds w, replacing any workflow with the same name.
func (r *Registry) Register(w Workflow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[w.Name] = w
}

// Get returns the workflow registered under name.
func (r *Registry) Get(name string) (Workflow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.entries[name]
	return w, ok
}

// Lookup is Get with a descriptive error listing the known names.
func (r *Registry) Lookup(name string) (Workflow, error) {
	if w, ok := r.Get(name); ok {
		return w, nil
	}
	return Workflow{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownWorkflow, name, r.Names())
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of registered workflows.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// DefaultTweetIterations caps the tweet refine loop in the default registry.
const DefaultTweetIterations = 5

// Default returns a registry with every demo workflow.
func Default() *Registry {
	r := NewRegistry()
	r.Register(Workflow{
		Name:        "cricket",
		Description: "Batting statistics computed in parallel and joined into a summary",
		Inputs:      []string{"runs", "balls", "fours", "sixes"},
		Example:     map[string]any{"runs": 100, "balls": 50, "fours": 6, "sixes": 4},
		Output:      "summary",
		Build:       Cricket,
	})
	r.Register(Workflow{
		Name:        "quadratic",
		Description: "Roots of ax^2 + bx + c, routed on the discriminant",
		Inputs:      []string{"a", "b", "c"},
		Example:     map[string]any{"a": 1, "b": -3, "c": 2},
		Output:      "result",
		Build:       Quadratic,
	})
	r.Register(Workflow{
		Name:        "tweet",
		Description: "Generate, evaluate and refine a tweet with an LLM",
		Inputs:      []string{"topic"},
		Example:     map[string]any{"topic": "Go generics"},
		Output:      "tweet",
		NeedsLLM:    true,
		Build: func() (*stepgraph.CompiledGraph, error) {
			return Tweet(DefaultTweetIterations)
		},
	})
	return r
}
