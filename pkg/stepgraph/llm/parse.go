package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ReplyError is returned when a model reply cannot be decoded.
type ReplyError struct {
	Content string
	Err     error
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("decode llm reply: %v", e.Err)
}

func (e *ReplyError) Unwrap() error {
	return e.Err
}

// ParseJSON decodes a model reply into T.
//
// Markdown code fences and prose around the outermost JSON value are
// stripped. If the result does not unmarshal, it is repaired with jsonrepair
// (single quotes, trailing commas, unquoted keys) and decoded again.
//
//	type verdict struct {
//	    Evaluation string `json:"evaluation"`
//	    Feedback   string `json:"feedback"`
//	}
//	v, err := llm.ParseJSON[verdict](resp.Content)
func ParseJSON[T any](content string) (T, error) {
	var result T

	body := extractJSON(content)
	if body == "" {
		return result, &ReplyError{Content: content, Err: fmt.Errorf("no JSON value found")}
	}

	err := json.Unmarshal([]byte(body), &result)
	if err == nil {
		return result, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(body)
	if repairErr != nil {
		return result, &ReplyError{Content: content, Err: err}
	}
	result = *new(T)
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return result, &ReplyError{Content: content, Err: err}
	}
	return result, nil
}

// extractJSON trims fences and surrounding prose, keeping the span from the
// first '{' or '[' to the matching last '}' or ']'.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		// Unterminated; let repair try to close it.
		return s[start:]
	}
	return s[start : end+1]
}
