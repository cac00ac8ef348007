package stepgraph

import (
	"fmt"
	"log/slog"
	"slices"
)

// Warning is a compile finding that does not prevent execution.
type Warning struct {
	Node    string
	Message string
}

// String formats the warning for logs.
func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Node, w.Message)
}

// Compile validates the graph and creates an executable CompiledGraph.
// Every violation found is returned inside a single *ValidationError,
// including the errors recorded while building.
//
// Validation checks:
//  1. Something leaves START
//  2. No node mixes unconditional edges with a conditional set
//  3. Every registered node has an outgoing transition
//  4. Every registered node has an incoming transition
//  5. END is reachable from START
//
// Unreachable nodes and END listed among fan-out successors are logged as
// warnings and do not fail compilation (the latter fails under
// WithStrictTerminals).
func (g *Graph) Compile(opts ...CompileOption) (*CompiledGraph, error) {
	cfg := compileConfig{name: "stepgraph", logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	errs := append([]error(nil), g.buildErrs...)
	if g.schema == nil {
		errs = append(errs, ErrNilSchema)
	}

	// 1. START has a way out
	_, startConditional := g.conditionalEdges[START]
	if len(g.edges[START]) == 0 && !startConditional {
		errs = append(errs, ErrNoStartEdge)
	}

	// 2. Mixed transition kinds
	for _, from := range sortedKeys(g.conditionalEdges) {
		if len(g.edges[from]) > 0 {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMixedEdges, from))
		}
	}

	// 3 & 4. Outgoing and incoming transitions
	incoming := g.incomingSet()
	for _, name := range g.order {
		_, hasConditional := g.conditionalEdges[name]
		if len(g.edges[name]) == 0 && !hasConditional {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, name))
		}
		if !incoming[name] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNoIncomingEdge, name))
		}
	}

	// 5. A path from START to END
	reachable := g.reachableFromStart()
	if !reachable[END] {
		errs = append(errs, ErrNoPathToEnd)
	}

	var warnings []Warning
	for _, from := range append([]string{START}, g.order...) {
		targets := g.edges[from]
		if len(targets) > 1 && slices.Contains(targets, END) {
			if cfg.strictTerminals {
				errs = append(errs, fmt.Errorf("%w: %s", ErrAmbiguousTerminal, from))
				continue
			}
			warnings = append(warnings, Warning{
				Node:    from,
				Message: "END listed among fan-out successors; the END edge is not scheduled as a branch",
			})
		}
	}
	for _, name := range g.order {
		if !reachable[name] {
			warnings = append(warnings, Warning{Node: name, Message: "node is unreachable from START"})
		}
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Violations: errs}
	}

	for _, w := range warnings {
		if cfg.logger != nil {
			cfg.logger.Warn("graph compile warning", "node_id", w.Node, "warning", w.Message)
		}
	}

	return g.buildCompiledGraph(cfg.name, warnings), nil
}

// openRouter reports whether any conditional set can target any node.
func (g *Graph) openRouter() bool {
	for _, c := range g.conditionalEdges {
		if c.routes.open() {
			return true
		}
	}
	return false
}

// incomingSet returns the nodes that something points at.
// A direct router without declared destinations counts as pointing at every node.
func (g *Graph) incomingSet() map[string]bool {
	incoming := make(map[string]bool)
	if g.openRouter() {
		for _, name := range g.order {
			incoming[name] = true
		}
		return incoming
	}
	for _, targets := range g.edges {
		for _, to := range targets {
			incoming[to] = true
		}
	}
	for _, c := range g.conditionalEdges {
		for _, to := range c.routes.targets() {
			incoming[to] = true
		}
	}
	return incoming
}

// reachableFromStart returns the set of nodes (END included) reachable from START.
// A direct router without declared destinations may reach every node and END.
func (g *Graph) reachableFromStart() map[string]bool {
	reachable := map[string]bool{START: true}
	queue := []string{START}

	visit := func(to string) {
		if !reachable[to] {
			reachable[to] = true
			queue = append(queue, to)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == END {
			continue
		}

		for _, to := range g.edges[current] {
			visit(to)
		}
		c, hasConditional := g.conditionalEdges[current]
		if !hasConditional {
			continue
		}
		if c.routes.open() {
			for _, name := range g.order {
				visit(name)
			}
			visit(END)
			continue
		}
		for _, to := range c.routes.targets() {
			visit(to)
		}
	}

	return reachable
}

// buildCompiledGraph creates the immutable CompiledGraph from the builder state.
func (g *Graph) buildCompiledGraph(name string, warnings []Warning) *CompiledGraph {
	nodes := make(map[string]StepFunc, len(g.nodes))
	for id, fn := range g.nodes {
		nodes[id] = fn
	}

	edges := make(map[string][]string, len(g.edges))
	for from, targets := range g.edges {
		edges[from] = slices.Clone(targets)
	}

	conditionalEdges := make(map[string]conditional, len(g.conditionalEdges))
	for from, c := range g.conditionalEdges {
		conditionalEdges[from] = c
	}

	// Runtime successors: END is dropped when a node also has real successors.
	next := make(map[string][]string, len(edges))
	for from, targets := range edges {
		if len(targets) > 1 {
			targets = slices.DeleteFunc(slices.Clone(targets), func(to string) bool { return to == END })
		}
		next[from] = targets
	}

	// Static flow used for join analysis: runtime successors plus known router targets.
	flow := make(map[string][]string, len(next)+len(conditionalEdges))
	for from, targets := range next {
		flow[from] = targets
	}
	for from, c := range conditionalEdges {
		flow[from] = c.routes.targets()
	}

	predecessors := make(map[string][]string)
	for _, from := range append([]string{START}, g.order...) {
		for _, to := range flow[from] {
			if to != END && !slices.Contains(predecessors[to], from) {
				predecessors[to] = append(predecessors[to], from)
			}
		}
	}

	forkNodes, joinNodes := detectForkJoinNodes(next, flow)

	return &CompiledGraph{
		name:             name,
		schema:           g.schema,
		nodes:            nodes,
		order:            slices.Clone(g.order),
		edges:            edges,
		next:             next,
		conditionalEdges: conditionalEdges,
		predecessors:     predecessors,
		forkNodes:        forkNodes,
		joinNodes:        joinNodes,
		warnings:         warnings,
	}
}

// detectForkJoinNodes identifies fork and join nodes in the graph.
// A fork node has more than one runtime successor. Its join is found using a
// simple heuristic: the closest node where all branches converge
// (post-dominator).
func detectForkJoinNodes(next, flow map[string][]string) (map[string]*ForkNode, map[string]*JoinNode) {
	forkNodes := make(map[string]*ForkNode)
	joinNodes := make(map[string]*JoinNode)

	for _, from := range sortedKeys(next) {
		targets := next[from]
		if len(targets) < 2 {
			continue
		}

		fork := &ForkNode{
			Node:     from,
			Branches: slices.Clone(targets),
			Join:     findJoinNode(from, targets, flow),
		}
		forkNodes[from] = fork

		if fork.Join != "" {
			if join, ok := joinNodes[fork.Join]; ok {
				join.Forks = append(join.Forks, from)
				continue
			}
			joinNodes[fork.Join] = &JoinNode{Node: fork.Join, Forks: []string{from}}
		}
	}

	return forkNodes, joinNodes
}

// findJoinNode finds the join point for a fork using simplified post-dominator
// analysis: the node closest to the first branch that every branch reaches.
// Paths are not followed back through the fork, so a fork inside a loop
// joins where its branches meet on the current pass. Returns "" when the
// branches only meet at END.
func findJoinNode(forkNode string, branches []string, flow map[string][]string) string {
	if len(branches) == 0 {
		return ""
	}

	common := computeReachable(branches[0], forkNode, flow)
	for _, branch := range branches[1:] {
		reach := computeReachable(branch, forkNode, flow)
		for node := range common {
			if !reach[node] {
				delete(common, node)
			}
		}
	}
	delete(common, START)

	if len(common) == 0 {
		return ""
	}
	return findClosestNode(branches[0], forkNode, common, flow)
}

// computeReachable returns all nodes reachable from start without passing
// through blocked, start included. END and blocked are never part of the
// result.
func computeReachable(start, blocked string, flow map[string][]string) map[string]bool {
	reachable := map[string]bool{}
	if start == blocked {
		return reachable
	}
	reachable[start] = true
	queue := []string{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, to := range flow[current] {
			if to != END && to != blocked && !reachable[to] {
				reachable[to] = true
				queue = append(queue, to)
			}
		}
	}

	return reachable
}

// findClosestNode finds the closest node in targets reachable from start
// using BFS, never stepping through blocked.
func findClosestNode(start, blocked string, targets map[string]bool, flow map[string][]string) string {
	if targets[start] {
		return start
	}

	visited := map[string]bool{start: true, blocked: true}
	queue := []string{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, to := range flow[current] {
			if to == END || visited[to] {
				continue
			}
			if targets[to] {
				return to
			}
			visited[to] = true
			queue = append(queue, to)
		}
	}

	return ""
}
