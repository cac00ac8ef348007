/*
Package stepgraph provides graph-based orchestration for LLM workflows.

# Overview

stepgraph builds and executes directed graphs where nodes perform work and
edges define flow. Every run carries one state record whose shape is fixed by
a Schema. Steps return partial updates, and the schema decides per field how
an update merges: overwrite replaces the value, accumulate appends to a list.

# Basic Usage

Declare the state, register steps, wire the edges, then compile and invoke:

	schema := stepgraph.MustSchema(
	    stepgraph.String("input"),
	    stepgraph.String("output"),
	)

	func process(ctx stepgraph.Context, s stepgraph.State) (stepgraph.Update, error) {
	    return stepgraph.Update{"output": "Processed: " + s.String("input")}, nil
	}

	func main() {
	    compiled, err := stepgraph.NewGraph(schema).
	        AddNode("process", process).
	        AddEdge(stepgraph.START, "process").
	        AddEdge("process", stepgraph.END).
	        Compile()
	    if err != nil {
	        log.Fatal(err)
	    }

	    ctx := stepgraph.NewContext(context.Background())
	    final, err := compiled.Invoke(ctx, map[string]any{"input": "hello"})
	    if err != nil {
	        log.Fatal(err)
	    }
	    fmt.Println(final.String("output")) // "Processed: hello"
	}

Building never panics. Mistakes are collected and Compile returns all of
them in one *ValidationError.

# Conditional Branching

A router returns a label. The edge set fixes at build time how labels become
nodes, either through an explicit map or by treating the label as a node name:

	graph.AddConditionalEdges("review", review, stepgraph.LabelMap(map[string]string{
	    "approved":          stepgraph.END,
	    "needs_improvement": "revise",
	}))

	graph.AddConditionalEdges("dispatch", pick, stepgraph.Direct("fast", "slow"))

A label that does not resolve fails the run with *RoutingError.

# Loops

Conditional edges may point back to earlier nodes. Loops are not bounded by
default; WithMaxIterations turns a runaway router into *MaxIterationsError.

# Fan-out and Join

A node with several unconditional successors is a fork. Its branches run
concurrently on private copies of the state, and the join node runs once
after every branch has finished. Branch updates are merged in completion
order, or in declaration order with WithSequentialBranches.

# Checkpointing

With a checkpoint store the state is saved after every step on the main path
and after every fork merge:

	store, err := checkpoint.NewSQLiteStore(ctx, "./checkpoints.db")
	defer store.Close()

	final, err := compiled.Invoke(ctx, input,
	    stepgraph.WithCheckpointing(store),
	    stepgraph.WithRunID("run-123"))

	// After a crash
	final, err = compiled.Resume(ctx, store, "run-123")

Memory, SQLite, Redis and PostgreSQL stores live in the checkpoint package.

# LLM Integration

Steps reach their model through the context, never through globals:

	ctx := stepgraph.NewContext(llm.WithClient(context.Background(), client))

	func draft(ctx stepgraph.Context, s stepgraph.State) (stepgraph.Update, error) {
	    client := llm.FromContext(ctx)
	    resp, err := client.Complete(ctx, llm.CompletionRequest{...})
	    ...
	}

# Observability

WithObservabilityLogger, WithMetrics, WithMetricsRecorder and WithTracing
enable slog lifecycle logs, OpenTelemetry or Prometheus metrics, and spans.
Listeners receive lifecycle events; the event package publishes them to AMQP.

# Error Handling

Errors are typed and wrap their cause:

	final, err := compiled.Invoke(ctx, input)
	var stepErr *stepgraph.StepError
	if errors.As(err, &stepErr) {
	    log.Printf("node %s failed: %v", stepErr.Node, stepErr.Err)
	}

A failed run never returns state.
*/
package stepgraph
