package workflows_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/randalmurphal/stepgraph/internal/workflows"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, compiled *stepgraph.CompiledGraph, input map[string]any, client llm.Client) (stepgraph.State, error) {
	t.Helper()
	base := context.Background()
	if client != nil {
		base = llm.WithClient(base, client)
	}
	return compiled.Invoke(stepgraph.NewContext(base), input)
}

func TestCricket(t *testing.T) {
	compiled, err := workflows.Cricket()
	require.NoError(t, err)

	assert.True(t, compiled.IsForkNode(stepgraph.START))
	assert.Equal(t, []string{"summary"}, compiled.JoinNodes())

	final, err := run(t, compiled, map[string]any{"runs": 100, "balls": 50, "fours": 6, "sixes": 4}, nil)
	require.NoError(t, err)

	assert.InDelta(t, 200.0, final.Float("strike_rate"), 1e-9)
	assert.InDelta(t, 5.0, final.Float("balls_per_boundary"), 1e-9)
	assert.InDelta(t, 48.0, final.Float("boundary_percent"), 1e-9)
	assert.Equal(t, "Strike Rate - 200.00\nBalls per boundary - 5.00\nBoundary percent - 48.00", final.String("summary"))
}

func TestCricket_NoBoundaries(t *testing.T) {
	compiled, err := workflows.Cricket()
	require.NoError(t, err)

	final, err := run(t, compiled, map[string]any{"runs": 0, "balls": 10}, nil)
	require.NoError(t, err)
	assert.Zero(t, final.Float("strike_rate"))
	assert.Zero(t, final.Float("balls_per_boundary"))
	assert.Zero(t, final.Float("boundary_percent"))
}

func TestCricket_InvalidInput(t *testing.T) {
	compiled, err := workflows.Cricket()
	require.NoError(t, err)

	tests := []struct {
		name  string
		input map[string]any
	}{
		{"no balls", map[string]any{"runs": 10, "balls": 0}},
		{"boundaries exceed runs", map[string]any{"runs": 10, "balls": 5, "fours": 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			final, err := run(t, compiled, tt.input, nil)
			assert.Nil(t, final)
			assert.ErrorIs(t, err, workflows.ErrInvalidInput)

			var stepErr *stepgraph.StepError
			assert.True(t, errors.As(err, &stepErr))
		})
	}
}

func TestQuadratic(t *testing.T) {
	compiled, err := workflows.Quadratic()
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    map[string]any
		equation string
		roots    []any
		result   string
	}{
		{
			name:     "two real roots",
			input:    map[string]any{"a": 1, "b": -3, "c": 2},
			equation: "1x^2 - 3x + 2 = 0",
			roots:    []any{2.0, 1.0},
			result:   "The roots are 2 and 1",
		},
		{
			name:     "repeated root",
			input:    map[string]any{"a": 1, "b": 2, "c": 1},
			equation: "1x^2 + 2x + 1 = 0",
			roots:    []any{-1.0},
			result:   "The only repeating root is -1",
		},
		{
			name:     "no real roots",
			input:    map[string]any{"a": 1, "b": 0, "c": 1},
			equation: "1x^2 + 0x + 1 = 0",
			roots:    []any{},
			result:   "No real roots",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			final, err := run(t, compiled, tt.input, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.equation, final.String("equation"))
			assert.Equal(t, tt.roots, final.List("roots"))
			assert.Equal(t, tt.result, final.String("result"))
		})
	}
}

func TestQuadratic_ZeroLeadingCoefficient(t *testing.T) {
	compiled, err := workflows.Quadratic()
	require.NoError(t, err)

	_, err = run(t, compiled, map[string]any{"a": 0, "b": 1, "c": 1}, nil)
	assert.ErrorIs(t, err, workflows.ErrInvalidInput)
}

// scriptedCritic answers generator and optimizer prompts with numbered tweets
// and evaluator prompts with the next verdict.
func scriptedCritic(verdicts ...string) *llm.MockClient {
	var tweets, evals atomic.Int32
	return llm.NewMockClient("").WithCompleteFunc(func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if strings.Contains(req.SystemPrompt, "critic") {
			i := int(evals.Add(1)) - 1
			v := verdicts[min(i, len(verdicts)-1)]
			return &llm.CompletionResponse{Content: v}, nil
		}
		n := tweets.Add(1)
		return &llm.CompletionResponse{Content: " tweet " + string(rune('0'+n)) + "\n"}, nil
	})
}

func TestTweet_ApprovedAfterOneRevision(t *testing.T) {
	compiled, err := workflows.Tweet(5)
	require.NoError(t, err)

	client := scriptedCritic(
		`{"evaluation": "needs_improvement", "feedback": "more puns"}`,
		"```json\n{\"evaluation\": \"approved\", \"feedback\": \"great\"}\n```",
	)

	final, err := run(t, compiled, map[string]any{"topic": "Go generics"}, client)
	require.NoError(t, err)

	assert.Equal(t, "tweet 2", final.String("tweet"))
	assert.Equal(t, workflows.Approved, final.String("evaluation"))
	assert.Equal(t, 2, final.Int("iteration"))
	assert.Equal(t, []string{"tweet 1", "tweet 2"}, final.Strings("tweet_history"))
	assert.Equal(t, []string{"more puns", "great"}, final.Strings("feedback_history"))
	assert.Equal(t, 4, client.CallCount())
	assert.Contains(t, client.Calls[0].Messages[0].Content, `"Go generics"`)
	assert.Contains(t, client.Calls[2].Messages[0].Content, `"more puns"`)
}

func TestTweet_StopsAtMaxIteration(t *testing.T) {
	compiled, err := workflows.Tweet(2)
	require.NoError(t, err)

	client := scriptedCritic(`{"evaluation": "needs_improvement", "feedback": "meh"}`)

	final, err := run(t, compiled, map[string]any{"topic": "Mondays"}, client)
	require.NoError(t, err)

	assert.Equal(t, workflows.NeedsImprovement, final.String("evaluation"))
	assert.Equal(t, 2, final.Int("iteration"))
	assert.Len(t, final.List("tweet_history"), 2)
	assert.Len(t, final.List("feedback_history"), 2)
}

func TestTweet_MaxIterationFromInput(t *testing.T) {
	compiled, err := workflows.Tweet(5)
	require.NoError(t, err)

	client := scriptedCritic(`{"evaluation": "needs_improvement", "feedback": "meh"}`)

	final, err := run(t, compiled, map[string]any{"topic": "x", "max_iteration": 1}, client)
	require.NoError(t, err)
	assert.Equal(t, 1, final.Int("iteration"))
	assert.Equal(t, 2, client.CallCount())
}

func TestTweet_Errors(t *testing.T) {
	compiled, err := workflows.Tweet(3)
	require.NoError(t, err)

	t.Run("no client", func(t *testing.T) {
		_, err := run(t, compiled, map[string]any{"topic": "x"}, nil)
		assert.ErrorIs(t, err, llm.ErrNoClient)
	})

	t.Run("provider failure", func(t *testing.T) {
		cause := errors.New("quota exceeded")
		_, err := run(t, compiled, map[string]any{"topic": "x"}, llm.NewMockClient("").WithError(cause))
		assert.ErrorIs(t, err, cause)

		var stepErr *stepgraph.StepError
		require.True(t, errors.As(err, &stepErr))
		assert.Equal(t, "generate", stepErr.Node)
	})

	t.Run("unparseable verdict", func(t *testing.T) {
		_, err := run(t, compiled, map[string]any{"topic": "x"}, scriptedCritic("no opinion"))
		var replyErr *llm.ReplyError
		assert.True(t, errors.As(err, &replyErr))
	})

	t.Run("verdict outside enum", func(t *testing.T) {
		_, err := run(t, compiled, map[string]any{"topic": "x"},
			scriptedCritic(`{"evaluation": "maybe", "feedback": "?"}`))
		assert.ErrorIs(t, err, stepgraph.ErrNotInEnum)

		var mergeErr *stepgraph.MergeError
		require.True(t, errors.As(err, &mergeErr))
		assert.Equal(t, "evaluate", mergeErr.Node)
	})
}

func TestTweet_InvalidMaxIterations(t *testing.T) {
	_, err := workflows.Tweet(0)
	assert.ErrorIs(t, err, workflows.ErrInvalidInput)
}
