package llm_test

import (
	"errors"
	"testing"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verdict struct {
	Evaluation string `json:"evaluation"`
	Feedback   string `json:"feedback"`
}

func TestParseJSON(t *testing.T) {
	want := verdict{Evaluation: "approved", Feedback: "great"}

	tests := []struct {
		name    string
		content string
	}{
		{"plain", `{"evaluation": "approved", "feedback": "great"}`},
		{"fenced json", "```json\n{\"evaluation\": \"approved\", \"feedback\": \"great\"}\n```"},
		{"fenced bare", "```\n{\"evaluation\": \"approved\", \"feedback\": \"great\"}\n```"},
		{"surrounding prose", `Here you go: {"evaluation": "approved", "feedback": "great"} Hope it helps.`},
		{"trailing comma", `{"evaluation": "approved", "feedback": "great",}`},
		{"single quotes", `{'evaluation': 'approved', 'feedback': 'great'}`},
		{"unquoted keys", `{evaluation: "approved", feedback: "great"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := llm.ParseJSON[verdict](tt.content)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseJSON_Array(t *testing.T) {
	got, err := llm.ParseJSON[[]int]("numbers: [1, 2, 3]")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestParseJSON_Map(t *testing.T) {
	got, err := llm.ParseJSON[map[string]any](`{"a": 1}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, got)
}

func TestParseJSON_Failures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"no json", "I cannot answer that."},
		{"wrong shape", `["approved", "great"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := llm.ParseJSON[verdict](tt.content)
			require.Error(t, err)

			var rerr *llm.ReplyError
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, tt.content, rerr.Content)
			assert.Contains(t, err.Error(), "decode llm reply")
		})
	}
}
