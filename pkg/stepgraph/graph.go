package stepgraph

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Graph is a mutable builder for creating execution graphs.
// Use NewGraph to create a new graph, then chain AddNode, AddEdge and
// AddConditionalEdges calls to define the workflow.
//
// Mistakes made while building (duplicate names, edges to nodes that were not
// registered yet) do not panic. They are recorded, the offending registration
// is dropped, and Compile reports every one of them together.
//
// Graph is NOT thread-safe during building. Use a single goroutine
// to construct the graph, then call Compile() to create an immutable
// CompiledGraph that can be safely shared.
//
// Example:
//
//	graph := stepgraph.NewGraph(schema).
//	    AddNode("fetch", fetch).
//	    AddNode("process", process).
//	    AddEdge(stepgraph.START, "fetch").
//	    AddEdge("fetch", "process").
//	    AddEdge("process", stepgraph.END)
//
//	compiled, err := graph.Compile()
type Graph struct {
	mu               sync.RWMutex
	schema           *Schema
	nodes            map[string]StepFunc
	order            []string
	edges            map[string][]string
	conditionalEdges map[string]conditional
	buildErrs        []error
}

// NewGraph creates a new graph builder over the given state schema.
func NewGraph(schema *Schema) *Graph {
	return &Graph{
		schema:           schema,
		nodes:            make(map[string]StepFunc),
		edges:            make(map[string][]string),
		conditionalEdges: make(map[string]conditional),
	}
}

// AddNode registers a step under a unique name.
// Returns the graph for method chaining.
//
// Recorded as a build error (and not registered) if:
//   - name is empty or contains whitespace
//   - name is a reserved sentinel ("START", "END", "__start__", "__end__", any case)
//   - fn is nil
//   - name is already registered (*DuplicateNodeError)
func (g *Graph) AddNode(name string, fn StepFunc) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := validateNodeName(name); err != nil {
		g.buildErrs = append(g.buildErrs, err)
		return g
	}
	if _, exists := g.nodes[name]; exists {
		g.buildErrs = append(g.buildErrs, &DuplicateNodeError{Name: name})
		return g
	}
	if fn == nil {
		g.buildErrs = append(g.buildErrs, fmt.Errorf("%w: node %q", ErrNilStep, name))
		return g
	}

	g.nodes[name] = fn
	g.order = append(g.order, name)
	return g
}

// AddEdge adds an unconditional edge. Both endpoints must already be
// registered, except for START as a source and END as a target.
// Several unconditional edges leaving one node make it a fork: its targets
// run as parallel branches.
// Returns the graph for method chaining.
func (g *Graph) AddEdge(from, to string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	ref := fmt.Sprintf("edge %s -> %s", from, to)
	var errs []error
	if from == END {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEdgeFromEnd, ref))
	} else if err := g.checkKnown(from, START, ref); err != nil {
		errs = append(errs, err)
	}
	if to == START {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEdgeToStart, ref))
	} else if err := g.checkKnown(to, END, ref); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		g.buildErrs = append(g.buildErrs, errs...)
		return g
	}

	for _, existing := range g.edges[from] {
		if existing == to {
			return g
		}
	}
	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdges attaches a router to a node. After the node runs, the
// router's label is resolved through routes to the single next node.
// A node may carry at most one conditional edge set and no unconditional
// edges alongside it.
// Returns the graph for method chaining.
func (g *Graph) AddConditionalEdges(from string, router RouterFunc, routes Routes) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	ref := "conditional edges from " + from
	var errs []error
	if from == END {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEdgeFromEnd, ref))
	} else if err := g.checkKnown(from, START, ref); err != nil {
		errs = append(errs, err)
	}
	if router == nil {
		errs = append(errs, fmt.Errorf("%w: %s", ErrNilRouter, ref))
	}
	if !routes.direct && len(routes.labels) == 0 {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEmptyRoutes, ref))
	}

	labelOf := make(map[string]string)
	if routes.direct {
		for _, to := range routes.destinations {
			labelOf[to] = to
		}
	} else {
		for _, label := range sortedKeys(routes.labels) {
			if _, seen := labelOf[routes.labels[label]]; !seen {
				labelOf[routes.labels[label]] = label
			}
		}
	}
	for _, to := range routes.targets() {
		targetRef := fmt.Sprintf("%s (label %q)", ref, labelOf[to])
		if to == START {
			errs = append(errs, fmt.Errorf("%w: %s", ErrEdgeToStart, targetRef))
		} else if err := g.checkKnown(to, END, targetRef); err != nil {
			errs = append(errs, err)
		}
	}

	if _, exists := g.conditionalEdges[from]; exists {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMultipleConditionalEdges, from))
	}
	if len(errs) > 0 {
		g.buildErrs = append(g.buildErrs, errs...)
		return g
	}

	g.conditionalEdges[from] = conditional{router: router, routes: routes}
	return g
}

// Err returns the build errors recorded so far, or nil.
func (g *Graph) Err() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.buildErrs) == 0 {
		return nil
	}
	return &ValidationError{Violations: append([]error(nil), g.buildErrs...)}
}

// checkKnown reports an UnknownNodeError unless name is registered or is the
// sentinel allowed at this end of the edge.
func (g *Graph) checkKnown(name, sentinel, ref string) error {
	if name == sentinel {
		return nil
	}
	if _, ok := g.nodes[name]; ok {
		return nil
	}
	return &UnknownNodeError{Name: name, Ref: ref}
}

func validateNodeName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidNodeName)
	}
	if strings.ContainsAny(name, " \t\n\r") {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidNodeName, name)
	}
	switch strings.ToLower(name) {
	case "start", "end", START, END:
		return fmt.Errorf("%w: %q is reserved", ErrInvalidNodeName, name)
	}
	return nil
}

// compileConfig holds options for Compile.
type compileConfig struct {
	name            string
	strictTerminals bool
	logger          *slog.Logger
}

// CompileOption configures Compile.
type CompileOption func(*compileConfig)

// WithName names the compiled graph. The name appears in run spans and logs.
// Default: "stepgraph".
func WithName(name string) CompileOption {
	return func(c *compileConfig) {
		if name != "" {
			c.name = name
		}
	}
}

// WithStrictTerminals makes END listed among several unconditional
// successors a compile error instead of a warning.
func WithStrictTerminals() CompileOption {
	return func(c *compileConfig) {
		c.strictTerminals = true
	}
}

// WithCompileLogger sets the logger that receives compile warnings.
// Default: slog.Default().
func WithCompileLogger(logger *slog.Logger) CompileOption {
	return func(c *compileConfig) {
		c.logger = logger
	}
}
