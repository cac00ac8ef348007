package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/randalmurphal/stepgraph/internal/workflows"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/config"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/llm"
	"github.com/spf13/cobra"
)

// Options carries the process-level dependencies of the command tree.
type Options struct {
	Version string
	Stdout  io.Writer
	Stderr  io.Writer
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
	// Registry defaults to workflows.Default().
	Registry *workflows.Registry
	// LLM overrides client selection when set.
	LLM llm.Client
}

// rootFlags are the persistent flags shared by every command.
type rootFlags struct {
	json       bool
	configPath string
	logLevel   string
}

// env bundles what subcommands need.
type env struct {
	opts  Options
	flags *rootFlags
}

func (e *env) output() *Output {
	return NewOutput(e.flags.json, e.opts.Stdout, e.opts.Stderr)
}

// settings loads the config file, if any, and applies flag overrides.
func (e *env) settings() (config.Settings, error) {
	s := config.Load(config.New(nil))
	if e.flags.configPath != "" {
		loaded, err := config.LoadFile(e.flags.configPath)
		if err != nil {
			return config.Settings{}, err
		}
		s = loaded
	}
	if e.flags.logLevel != "" {
		s.Log.Level = e.flags.logLevel
	}
	return s, nil
}

func (e *env) logger(s config.Settings) *slog.Logger {
	return s.Log.Logger(e.opts.Stderr)
}

// NewRootCmd builds the stepgraph command tree.
func NewRootCmd(opts Options) *cobra.Command {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.Registry == nil {
		opts.Registry = workflows.Default()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	e := &env{opts: opts, flags: &rootFlags{}}

	root := &cobra.Command{
		Use:           "stepgraph",
		Short:         "Run declarative step graphs",
		Version:       opts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	root.PersistentFlags().BoolVar(&e.flags.json, "json", false, "Output in JSON format")
	root.PersistentFlags().StringVar(&e.flags.configPath, "config", "", "Config file (YAML or JSON)")
	root.PersistentFlags().StringVar(&e.flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(e),
		newListCmd(e),
		newDescribeCmd(e),
		newVersionCmd(e),
	)
	return root
}
