package stepgraph

import "time"

// ForkNode represents a point where execution splits into parallel branches.
// This is computed during graph compilation from nodes with multiple
// unconditional successors.
type ForkNode struct {
	// Node is the name of the fork node in the graph (START included).
	Node string

	// Branches are the names of the first node in each branch,
	// in declaration order.
	Branches []string

	// Join is where all branches converge. Computed using post-dominator
	// analysis at compile time. Empty when the branches only meet at END.
	Join string
}

// JoinNode represents a point where parallel branches converge.
type JoinNode struct {
	// Node is the name of the join node in the graph.
	Node string

	// Forks are the fork nodes whose branches converge here.
	Forks []string
}

// NodeUpdate is one step's output, recorded in the order it was produced.
type NodeUpdate struct {
	Node   string
	Update Update
}

// branchResult holds the outcome of a single branch execution.
type branchResult struct {
	// branch identifies this branch (same as the first node name).
	branch string

	// updates are the branch's step outputs in execution order.
	// Nil if the branch failed.
	updates []NodeUpdate

	// ended is set when the branch reached END before the fork's join.
	ended bool

	err      error
	duration time.Duration
}
