package stepgraph

import "slices"

// CompiledGraph is an immutable, executable graph.
// It is created by calling Compile() on a Graph builder.
//
// CompiledGraph is safe for concurrent Invoke calls: every call owns its own
// state. The graph structure cannot be modified after compilation.
//
// Use the introspection methods (NodeNames, Successors, etc.) to examine
// the graph structure for debugging or visualization.
type CompiledGraph struct {
	name             string
	schema           *Schema
	nodes            map[string]StepFunc
	order            []string
	edges            map[string][]string
	next             map[string][]string
	conditionalEdges map[string]conditional

	predecessors map[string][]string
	forkNodes    map[string]*ForkNode
	joinNodes    map[string]*JoinNode
	warnings     []Warning
}

// Name returns the graph name set with WithName.
func (cg *CompiledGraph) Name() string {
	return cg.name
}

// Schema returns the state schema the graph runs over.
func (cg *CompiledGraph) Schema() *Schema {
	return cg.schema
}

// NodeNames returns the registered node names in registration order.
func (cg *CompiledGraph) NodeNames() []string {
	return slices.Clone(cg.order)
}

// HasNode checks if a node exists in the graph.
func (cg *CompiledGraph) HasNode(name string) bool {
	_, exists := cg.nodes[name]
	return exists
}

// Successors returns the declared unconditional targets of a node, END
// included. Returns nil for END, unknown nodes, and conditional nodes.
func (cg *CompiledGraph) Successors(name string) []string {
	return slices.Clone(cg.edges[name])
}

// RouteTargets returns the destinations a conditional node may route to,
// as far as they are known before running. Nil for non-conditional nodes and
// for direct routes without declared destinations.
func (cg *CompiledGraph) RouteTargets(name string) []string {
	c, ok := cg.conditionalEdges[name]
	if !ok {
		return nil
	}
	return c.routes.targets()
}

// Predecessors returns the nodes with an unconditional edge or a known route
// to the given node.
func (cg *CompiledGraph) Predecessors(name string) []string {
	return slices.Clone(cg.predecessors[name])
}

// IsConditional returns true if the node has a conditional edge set.
func (cg *CompiledGraph) IsConditional(name string) bool {
	_, ok := cg.conditionalEdges[name]
	return ok
}

// IsForkNode returns true if the node's successors run as parallel branches.
func (cg *CompiledGraph) IsForkNode(name string) bool {
	_, exists := cg.forkNodes[name]
	return exists
}

// Fork returns a copy of the fork information for a node, or nil if not a fork.
func (cg *CompiledGraph) Fork(name string) *ForkNode {
	f, ok := cg.forkNodes[name]
	if !ok {
		return nil
	}
	return &ForkNode{Node: f.Node, Branches: slices.Clone(f.Branches), Join: f.Join}
}

// IsJoinNode returns true if parallel branches converge at the node.
func (cg *CompiledGraph) IsJoinNode(name string) bool {
	_, exists := cg.joinNodes[name]
	return exists
}

// JoinNodes returns the names of all join nodes, sorted.
func (cg *CompiledGraph) JoinNodes() []string {
	return sortedKeys(cg.joinNodes)
}

// HasParallelExecution returns true if the graph contains any fork/join structures.
func (cg *CompiledGraph) HasParallelExecution() bool {
	return len(cg.forkNodes) > 0
}

// Warnings returns the non-fatal findings from Compile.
func (cg *CompiledGraph) Warnings() []Warning {
	return slices.Clone(cg.warnings)
}
