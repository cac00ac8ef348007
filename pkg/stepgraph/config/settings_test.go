package config_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/checkpoint"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullYAML = `
run:
  max_iterations: 7
  step_timeout: 2s
  run_timeout: 1m
  max_concurrency: 2
  sequential_branches: true
  fail_fast: true
  checkpoint_failure_fatal: true
  metrics: true
  tracing: false
log:
  level: debug
  format: text
checkpoint:
  backend: Redis
  redis:
    addr: cache:6379
    db: 2
    prefix: "sg:"
    ttl: 1h
events:
  amqp:
    url: amqp://guest:guest@mq:5672/
llm:
  provider: OpenAI
  model: gpt-4o
  base_url: http://proxy/v1
  max_attempts: 5
inputs:
  runs: 120
  balls: 80
`

func TestLoad(t *testing.T) {
	cfg, err := config.FromYAML([]byte(fullYAML))
	require.NoError(t, err)

	s := config.Load(cfg)

	assert.Equal(t, config.RunSettings{
		MaxIterations:          7,
		StepTimeout:            2 * time.Second,
		RunTimeout:             time.Minute,
		MaxConcurrency:         2,
		SequentialBranches:     true,
		FailFast:               true,
		CheckpointFailureFatal: true,
		Metrics:                true,
	}, s.Run)
	assert.Equal(t, config.LogSettings{Level: "debug", Format: "text"}, s.Log)

	assert.Equal(t, config.BackendRedis, s.Checkpoint.Backend)
	assert.True(t, s.Checkpoint.Enabled())
	assert.Equal(t, "cache:6379", s.Checkpoint.RedisAddr)
	assert.Equal(t, 2, s.Checkpoint.RedisDB)
	assert.Equal(t, "sg:", s.Checkpoint.RedisPrefix)
	assert.Equal(t, time.Hour, s.Checkpoint.RedisTTL)

	assert.Equal(t, config.EventSettings{
		AMQPURL:  "amqp://guest:guest@mq:5672/",
		Exchange: "stepgraph.events",
	}, s.Events)
	assert.Equal(t, config.LLMSettings{Provider: "openai", Model: "gpt-4o", BaseURL: "http://proxy/v1", MaxAttempts: 5}, s.LLM)

	assert.Equal(t, map[string]any{"runs": 120, "balls": 80}, s.Inputs)
	assert.Len(t, s.Run.Options(), 8)
}

func TestLoad_Defaults(t *testing.T) {
	s := config.Load(config.New(nil))

	assert.Equal(t, config.RunSettings{}, s.Run)
	assert.Empty(t, s.Run.Options())
	assert.Equal(t, "info", s.Log.Level)
	assert.Equal(t, "json", s.Log.Format)
	assert.False(t, s.Checkpoint.Enabled())
	assert.Equal(t, "stepgraph.db", s.Checkpoint.Path)
	assert.Equal(t, "localhost:6379", s.Checkpoint.RedisAddr)
	assert.Empty(t, s.Events.AMQPURL)
	assert.Equal(t, "stepgraph.events", s.Events.Exchange)
	assert.Equal(t, config.LLMSettings{MaxAttempts: config.DefaultLLMAttempts}, s.LLM)
	assert.Empty(t, s.Inputs)
}

func TestRunSettings_OptionsApply(t *testing.T) {
	schema := stepgraph.MustSchema(stepgraph.Int("n"))
	router := func(ctx stepgraph.Context, s stepgraph.State) string { return "loop" }
	compiled, err := stepgraph.NewGraph(schema).
		AddNode("loop", func(ctx stepgraph.Context, s stepgraph.State) (stepgraph.Update, error) {
			return stepgraph.Update{"n": s.Int("n") + 1}, nil
		}).
		AddEdge(stepgraph.START, "loop").
		AddConditionalEdges("loop", router, stepgraph.Direct("loop", stepgraph.END)).
		Compile()
	require.NoError(t, err)

	opts := config.RunSettings{MaxIterations: 3}.Options()
	_, err = compiled.Invoke(stepgraph.NewContext(context.Background()), nil, opts...)
	assert.ErrorIs(t, err, stepgraph.ErrMaxIterations)
}

func TestLogSettings_Logger(t *testing.T) {
	var buf bytes.Buffer
	logger := config.LogSettings{Level: "warn", Format: "json"}.Logger(&buf)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestCheckpointSettings_Open(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, err := config.CheckpointSettings{Backend: config.BackendMemory}.Open(ctx)
		require.NoError(t, err)
		assert.IsType(t, &checkpoint.MemoryStore{}, store)
		assert.NoError(t, store.Close())
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := config.CheckpointSettings{Backend: config.BackendSQLite, Path: ":memory:"}.Open(ctx)
		require.NoError(t, err)
		defer store.Close()

		require.NoError(t, store.Save(ctx, "r", "n", []byte("{}")))
		infos, err := store.List(ctx, "r")
		require.NoError(t, err)
		assert.Len(t, infos, 1)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		store, err := config.CheckpointSettings{Backend: config.BackendRedis, RedisAddr: mr.Addr()}.Open(ctx)
		require.NoError(t, err)
		defer store.Close()

		require.NoError(t, store.Save(ctx, "r", "n", []byte("{}")))
		data, err := store.Load(ctx, "r", "n")
		require.NoError(t, err)
		assert.Equal(t, []byte("{}"), data)
	})

	t.Run("postgres without url", func(t *testing.T) {
		store, err := config.CheckpointSettings{Backend: config.BackendPostgres}.Open(ctx)
		assert.Nil(t, store)
		assert.ErrorIs(t, err, config.ErrMissingPostgresURL)
	})

	t.Run("none", func(t *testing.T) {
		_, err := config.CheckpointSettings{}.Open(ctx)
		assert.ErrorIs(t, err, config.ErrNoBackend)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := config.CheckpointSettings{Backend: "etcd"}.Open(ctx)
		assert.ErrorIs(t, err, config.ErrUnknownBackend)
	})
}
