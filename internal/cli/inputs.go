package cli

import (
	"fmt"
	"maps"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
)

// parseInputs turns KEY=VALUE pairs into an initial record. Values for string
// fields of schema are kept verbatim. Everything else is read as a YAML
// scalar, so numbers and booleans keep their type; anything that is not a
// scalar stays the raw string. A nil schema types every value.
func parseInputs(pairs []string, schema *stepgraph.Schema) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, kv := range pairs {
		key, raw, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
		}
		if isStringField(schema, key) {
			out[key] = raw
			continue
		}
		out[key] = scalar(raw)
	}
	return out, nil
}

// fitInputs renders scalar values given for string fields as text, so a
// config file's "topic: 2024" reaches a string field as "2024".
func fitInputs(input map[string]any, schema *stepgraph.Schema) map[string]any {
	for key, v := range input {
		if !isStringField(schema, key) {
			continue
		}
		switch v.(type) {
		case int, int64, float64, bool:
			input[key] = fmt.Sprint(v)
		}
	}
	return input
}

func isStringField(schema *stepgraph.Schema, key string) bool {
	if schema == nil {
		return false
	}
	f, ok := schema.Field(key)
	return ok && f.Kind == stepgraph.KindString
}

func scalar(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	switch v.(type) {
	case int, float64, bool, string:
		return v
	}
	return raw
}

// mergeInputs layers flag inputs over config inputs.
func mergeInputs(fromConfig, fromFlags map[string]any) map[string]any {
	out := make(map[string]any, len(fromConfig)+len(fromFlags))
	maps.Copy(out, fromConfig)
	maps.Copy(out, fromFlags)
	return out
}
