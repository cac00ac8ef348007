package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/checkpoint"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/config"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/event"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/llm"
	"github.com/spf13/cobra"
)

// ErrResumeNeedsCheckpoint is returned for --resume without a checkpoint
// backend and run ID.
var ErrResumeNeedsCheckpoint = errors.New("--resume requires --checkpoint and --run-id")

type runFlags struct {
	inputs        []string
	checkpoint    string
	runID         string
	resume        bool
	maxIterations int
}

// RunResult is the JSON form of a completed run.
type RunResult struct {
	Workflow string          `json:"workflow"`
	RunID    string          `json:"run_id"`
	Resumed  bool            `json:"resumed,omitempty"`
	Provider string          `json:"llm_provider,omitempty"`
	State    stepgraph.State `json:"state"`
}

func newRunCmd(e *env) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run WORKFLOW",
		Short: "Run a demo workflow",
		Long: `Run a demo workflow to completion and print its final state.

Inputs come from the config file's inputs section and --input flags, flags
winning. With neither, the workflow's example input is used.`,
		Example: `  stepgraph run cricket --input runs=120 --input balls=80 --input fours=10 --input sixes=3
  stepgraph run tweet --input topic="Monday meetings" --json
  stepgraph run quadratic --checkpoint sqlite --run-id q1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd.Context(), e, f, args[0])
		},
	}

	cmd.Flags().StringArrayVar(&f.inputs, "input", nil, "Input value as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&f.checkpoint, "checkpoint", "", "Checkpoint backend: memory, sqlite, redis, postgres")
	cmd.Flags().StringVar(&f.runID, "run-id", "", "Run ID (generated when empty)")
	cmd.Flags().BoolVar(&f.resume, "resume", false, "Resume --run-id from its latest checkpoint")
	cmd.Flags().IntVar(&f.maxIterations, "max-iterations", 0, "Bound on executed steps (0 = unbounded)")
	return cmd
}

func runWorkflow(ctx context.Context, e *env, f *runFlags, name string) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	out := e.output()

	settings, err := e.settings()
	if err != nil {
		return err
	}
	if f.checkpoint != "" {
		settings.Checkpoint.Backend = strings.ToLower(f.checkpoint)
	}
	if f.maxIterations > 0 {
		settings.Run.MaxIterations = f.maxIterations
	}
	if f.resume && (!settings.Checkpoint.Enabled() || f.runID == "") {
		return ErrResumeNeedsCheckpoint
	}
	logger := e.logger(settings)

	wf, err := e.opts.Registry.Lookup(name)
	if err != nil {
		return err
	}
	compiled, err := wf.Build()
	if err != nil {
		return fmt.Errorf("build %s: %w", name, err)
	}

	flagInputs, err := parseInputs(f.inputs, compiled.Schema())
	if err != nil {
		return err
	}
	input := fitInputs(mergeInputs(settings.Inputs, flagInputs), compiled.Schema())
	if len(input) == 0 && !f.resume {
		input = wf.Example
		if !out.JSONMode() {
			out.Success(fmt.Sprintf("No inputs given, using the %s example", name))
		}
	}

	provider := ""
	if wf.NeedsLLM {
		client := e.opts.LLM
		if client == nil {
			client, provider, err = selectClient(settings.LLM, e.opts.Getenv)
			if err != nil {
				return err
			}
		}
		ctx = llm.WithClient(ctx, client)
	}

	runID := f.runID
	if runID == "" {
		runID = uuid.New().String()
	}

	opts := append(settings.Run.Options(),
		stepgraph.WithRunID(runID),
		stepgraph.WithObservabilityLogger(logger),
	)

	var store checkpoint.Store
	if settings.Checkpoint.Enabled() {
		store, err = settings.Checkpoint.Open(ctx)
		if err != nil {
			return fmt.Errorf("open checkpoint store: %w", err)
		}
		defer func() {
			if cerr := store.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		opts = append(opts, stepgraph.WithCheckpointing(store))
	}

	publisherOpt, closeEvents, err := eventListener(ctx, settings.Events, logger)
	if err != nil {
		return err
	}
	if publisherOpt != nil {
		defer closeEvents()
		opts = append(opts, publisherOpt)
	}

	sctx := stepgraph.NewContext(ctx,
		stepgraph.WithLogger(logger),
		stepgraph.WithContextRunID(runID),
	)

	var final stepgraph.State
	if f.resume {
		final, err = compiled.Resume(sctx, store, runID, stepgraph.WithResumeRunOptions(opts...))
	} else {
		final, err = compiled.Invoke(sctx, input, opts...)
	}
	if err != nil {
		return fmt.Errorf("%s run %s: %w", name, runID, err)
	}

	if out.JSONMode() {
		return out.JSON(RunResult{
			Workflow: name,
			RunID:    runID,
			Resumed:  f.resume,
			Provider: provider,
			State:    final,
		})
	}

	out.Result(fmt.Sprintf("%s (run %s)", name, runID), formatValue(final[wf.Output]), stateRows(final))
	return nil
}

// eventListener connects the AMQP publisher when events are configured.
func eventListener(ctx context.Context, s config.EventSettings, logger *slog.Logger) (stepgraph.RunOption, func(), error) {
	if s.AMQPURL == "" {
		return nil, func() {}, nil
	}
	ch, closeFn, err := event.DialAMQP(ctx, s.AMQPURL, s.Exchange)
	if err != nil {
		return nil, nil, err
	}
	pub := event.NewAMQPPublisher(ch, s.Exchange, event.WithLogger(logger))
	return stepgraph.WithListener(pub), func() {
		if err := closeFn(); err != nil {
			logger.Warn("close amqp", slog.String("error", err.Error()))
		}
	}, nil
}

func stateRows(s stepgraph.State) [][]string {
	keys := slices.Sorted(maps.Keys(s))
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, formatValue(s[k])})
	}
	return rows
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return fmt.Sprintf("%.4g", x)
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = formatValue(item)
		}
		return strings.Join(parts, "\n")
	default:
		return fmt.Sprint(x)
	}
}
