package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/checkpoint"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/observability"
)

// Checkpoint backends understood by CheckpointSettings.Open.
const (
	BackendNone     = ""
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Settings is everything a stepgraph run can take from a config file.
type Settings struct {
	Run        RunSettings
	Log        LogSettings
	Checkpoint CheckpointSettings
	Events     EventSettings
	LLM        LLMSettings
	// Inputs seed the initial state record.
	Inputs map[string]any
}

// RunSettings mirror the stepgraph run options.
type RunSettings struct {
	MaxIterations          int
	StepTimeout            time.Duration
	RunTimeout             time.Duration
	MaxConcurrency         int
	SequentialBranches     bool
	FailFast               bool
	CheckpointFailureFatal bool
	Metrics                bool
	Tracing                bool
}

// LogSettings select the log level and handler.
type LogSettings struct {
	Level  string
	Format string
}

// EventSettings configure publishing of run events. An empty AMQPURL
// disables publishing.
type EventSettings struct {
	AMQPURL  string
	Exchange string
}

// DefaultLLMAttempts is the llm.max_attempts default.
const DefaultLLMAttempts = 3

// LLMSettings select the model client steps receive.
type LLMSettings struct {
	// Provider is "openai", "mock", or empty to pick openai when an API key
	// is present.
	Provider string
	Model    string
	BaseURL  string
	// MaxAttempts bounds retries of rate-limited or failed provider calls.
	MaxAttempts int
}

// CheckpointSettings select and configure a checkpoint store.
type CheckpointSettings struct {
	Backend string
	// Path is the SQLite database file.
	Path string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	RedisTTL      time.Duration

	PostgresURL   string
	PostgresTable string
}

// Load reads Settings from the run, log, checkpoint, events, llm and inputs
// sections.
func Load(c Config) Settings {
	run := c.Sub("run")
	log := c.Sub("log")
	cp := c.Sub("checkpoint")
	events := c.Sub("events")
	model := c.Sub("llm")

	inputs := c.Sub("inputs").Raw()

	return Settings{
		Run: RunSettings{
			MaxIterations:          run.Int("max_iterations", 0),
			StepTimeout:            run.Duration("step_timeout", 0),
			RunTimeout:             run.Duration("run_timeout", 0),
			MaxConcurrency:         run.Int("max_concurrency", 0),
			SequentialBranches:     run.Bool("sequential_branches", false),
			FailFast:               run.Bool("fail_fast", false),
			CheckpointFailureFatal: run.Bool("checkpoint_failure_fatal", false),
			Metrics:                run.Bool("metrics", false),
			Tracing:                run.Bool("tracing", false),
		},
		Log: LogSettings{
			Level:  log.String("level", "info"),
			Format: log.String("format", "json"),
		},
		Checkpoint: CheckpointSettings{
			Backend:       strings.ToLower(cp.String("backend", BackendNone)),
			Path:          cp.String("path", "stepgraph.db"),
			RedisAddr:     cp.String("redis.addr", "localhost:6379"),
			RedisPassword: cp.String("redis.password", ""),
			RedisDB:       cp.Int("redis.db", 0),
			RedisPrefix:   cp.String("redis.prefix", ""),
			RedisTTL:      cp.Duration("redis.ttl", 0),
			PostgresURL:   cp.String("postgres.url", ""),
			PostgresTable: cp.String("postgres.table", ""),
		},
		Events: EventSettings{
			AMQPURL:  events.String("amqp.url", ""),
			Exchange: events.String("amqp.exchange", "stepgraph.events"),
		},
		LLM: LLMSettings{
			Provider:    strings.ToLower(model.String("provider", "")),
			Model:       model.String("model", ""),
			BaseURL:     model.String("base_url", ""),
			MaxAttempts: model.Int("max_attempts", DefaultLLMAttempts),
		},
		Inputs: inputs,
	}
}

// Options converts the settings into run options.
// Checkpointing is not included; pair Checkpoint.Open with
// stepgraph.WithCheckpointing and a run ID.
func (r RunSettings) Options() []stepgraph.RunOption {
	var opts []stepgraph.RunOption
	if r.MaxIterations > 0 {
		opts = append(opts, stepgraph.WithMaxIterations(r.MaxIterations))
	}
	if r.StepTimeout > 0 {
		opts = append(opts, stepgraph.WithStepTimeout(r.StepTimeout))
	}
	if r.RunTimeout > 0 {
		opts = append(opts, stepgraph.WithRunTimeout(r.RunTimeout))
	}
	if r.MaxConcurrency > 0 {
		opts = append(opts, stepgraph.WithMaxConcurrency(r.MaxConcurrency))
	}
	if r.SequentialBranches {
		opts = append(opts, stepgraph.WithSequentialBranches())
	}
	if r.FailFast {
		opts = append(opts, stepgraph.WithFailFast(true))
	}
	if r.CheckpointFailureFatal {
		opts = append(opts, stepgraph.WithCheckpointFailureFatal(true))
	}
	if r.Metrics {
		opts = append(opts, stepgraph.WithMetrics(true))
	}
	if r.Tracing {
		opts = append(opts, stepgraph.WithTracing(true))
	}
	return opts
}

// Logger builds the configured logger writing to w.
func (l LogSettings) Logger(w io.Writer) *slog.Logger {
	return observability.SetupLogger(l.Level, l.Format, w)
}

// Enabled reports whether a backend is selected.
func (c CheckpointSettings) Enabled() bool {
	return c.Backend != BackendNone
}

// Open connects the selected checkpoint store.
func (c CheckpointSettings) Open(ctx context.Context) (checkpoint.Store, error) {
	switch c.Backend {
	case BackendMemory:
		return checkpoint.NewMemoryStore(), nil
	case BackendSQLite:
		store, err := checkpoint.NewSQLiteStore(ctx, c.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendRedis:
		return checkpoint.NewRedisStore(checkpoint.RedisOptions{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
			Prefix:   c.RedisPrefix,
			TTL:      c.RedisTTL,
		}), nil
	case BackendPostgres:
		if c.PostgresURL == "" {
			return nil, fmt.Errorf("checkpoint backend postgres: %w", ErrMissingPostgresURL)
		}
		store, err := checkpoint.NewPostgresStore(ctx, checkpoint.PostgresOptions{
			ConnString: c.PostgresURL,
			TableName:  c.PostgresTable,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendNone:
		return nil, ErrNoBackend
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
}
