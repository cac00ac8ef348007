package stepgraph

import (
	"context"
	"sync"
	"time"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/observability"
	"go.opentelemetry.io/otel/attribute"
)

// runFork executes every branch of a fork and merges their updates into state.
//
// Each branch starts from its own deep copy of the pre-fork state and runs
// until it reaches the fork's join node (or END). Nothing is merged until
// every branch has finished. The branch update lists are then applied in
// branch completion order.
//
// Returns the node to continue from and the updates applied, in the order
// they were applied. The next node is the join, or END when the branches only
// meet at END or when any branch reached END on its own.
func (cg *CompiledGraph) runFork(ec *executionContext, fork *ForkNode, state State, cfg *runConfig) (string, []NodeUpdate, error) {
	startTime := time.Now()

	spanCtx, forkSpan := cfg.spans.StartForkSpan(ec.Context, fork.Node, fork.Branches)
	fec := ec.withBase(spanCtx)

	next, applied, err := cg.mergeFork(fec, fork, state, cfg)
	cfg.spans.EndSpan(forkSpan, err, attribute.String("fork.join", next))
	if err != nil {
		return "", nil, err
	}

	duration := time.Since(startTime)
	observability.LogForkJoin(cfg.logger, fork.Node, next, len(fork.Branches), next != fork.Join, float64(duration.Milliseconds()))
	cfg.metrics.RecordForkJoin(ec, cg.name, fork.Node, len(fork.Branches), duration)
	cg.emit(ec, cfg, Event{Kind: EventForkJoined, RunID: cfg.runID, Node: fork.Node, Duration: duration})

	return next, applied, nil
}

// mergeFork runs the branches and applies their updates. It returns the
// node to continue from.
func (cg *CompiledGraph) mergeFork(ec *executionContext, fork *ForkNode, state State, cfg *runConfig) (string, []NodeUpdate, error) {
	var results []branchResult
	if cfg.sequentialBranches {
		results = cg.runBranchesSequential(ec, fork, state, cfg)
	} else {
		results = cg.runBranchesConcurrent(ec, fork, state, cfg)
	}

	for _, r := range results {
		if r.err != nil {
			return "", nil, &ForkJoinError{Fork: fork.Node, Branch: r.branch, Err: r.err}
		}
	}

	var applied []NodeUpdate
	ended := false
	for _, r := range results {
		ended = ended || r.ended
		for _, nu := range r.updates {
			if err := cg.schema.Apply(state, nu.Update); err != nil {
				mergeErr := &MergeError{Node: nu.Node, Err: err}
				return "", nil, &ForkJoinError{Fork: fork.Node, Branch: r.branch, Err: &StepError{Node: nu.Node, Err: mergeErr}}
			}
			applied = append(applied, nu)
		}
	}

	// A branch that reaches END ends the run once every branch has merged.
	next := fork.Join
	if next == "" || ended {
		next = END
	}
	return next, applied, nil
}

// runBranchesSequential runs branches one after another in declaration order.
// It stops at the first failure.
func (cg *CompiledGraph) runBranchesSequential(ec *executionContext, fork *ForkNode, state State, cfg *runConfig) []branchResult {
	results := make([]branchResult, 0, len(fork.Branches))
	for _, branch := range fork.Branches {
		r := cg.executeBranch(ec, fork, branch, state.Clone(), cfg)
		results = append(results, r)
		if r.err != nil {
			break
		}
	}
	return results
}

// runBranchesConcurrent runs every branch in its own goroutine and returns
// the results in completion order.
func (cg *CompiledGraph) runBranchesConcurrent(ec *executionContext, fork *ForkNode, state State, cfg *runConfig) []branchResult {
	// Set up concurrency control
	var sem chan struct{}
	if cfg.maxConcurrency > 0 {
		sem = make(chan struct{}, cfg.maxConcurrency)
	}

	branchCtx, cancel := context.WithCancel(ec.Context)
	defer cancel()
	bec := ec.withBase(branchCtx)

	// Clone before starting any goroutine so every branch sees the pre-fork state.
	snapshots := make([]State, len(fork.Branches))
	for i := range fork.Branches {
		snapshots[i] = state.Clone()
	}

	results := make(chan branchResult, len(fork.Branches))
	var wg sync.WaitGroup

	for i, branch := range fork.Branches {
		wg.Add(1)
		go func(branch string, local State) {
			defer wg.Done()

			// Acquire semaphore if concurrency is limited
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-branchCtx.Done():
					results <- branchResult{
						branch: branch,
						err:    &CancellationError{Node: branch, Cause: branchCtx.Err()},
					}
					return
				}
			}

			results <- cg.executeBranch(bec, fork, branch, local, cfg)
		}(branch, snapshots[i])
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]branchResult, 0, len(fork.Branches))
	var failed bool
	for r := range results {
		// A branch cancelled because another one failed first is not the cause.
		if failed && r.err != nil {
			continue
		}
		ordered = append(ordered, r)
		if r.err != nil {
			failed = true
			if cfg.failFast {
				cancel()
			}
		}
	}
	return ordered
}

// executeBranch runs a single branch from its first node until it reaches the
// fork's join node or END. Nested forks are run in place and merged into the
// branch's own state.
func (cg *CompiledGraph) executeBranch(ec *executionContext, fork *ForkNode, branch string, local State, cfg *runConfig) branchResult {
	startTime := time.Now()
	ec = ec.withBranch(fork.Node, branch)
	current := branch
	var updates []NodeUpdate

	for current != fork.Join && current != END {
		if err := checkCancelled(ec, current); err != nil {
			return branchResult{branch: branch, err: err, duration: time.Since(startTime)}
		}

		u, err := cg.runStep(ec, current, local, cfg)
		if err != nil {
			return branchResult{branch: branch, err: err, duration: time.Since(startTime)}
		}
		if err := cg.schema.Apply(local, u); err != nil {
			mergeErr := &MergeError{Node: current, Err: err}
			return branchResult{branch: branch, err: &StepError{Node: current, Err: mergeErr}, duration: time.Since(startTime)}
		}
		updates = append(updates, NodeUpdate{Node: current, Update: u})

		var next string
		if nested, ok := cg.forkNodes[current]; ok {
			var nestedUpdates []NodeUpdate
			next, nestedUpdates, err = cg.runFork(ec, nested, local, cfg)
			updates = append(updates, nestedUpdates...)
		} else {
			next, err = cg.resolve(ec, current, local)
		}
		if err != nil {
			return branchResult{branch: branch, err: err, duration: time.Since(startTime)}
		}

		current = next
	}

	return branchResult{
		branch:   branch,
		updates:  updates,
		ended:    current == END && fork.Join != "",
		duration: time.Since(startTime),
	}
}
