package stepgraph

import (
	"cmp"
	"reflect"
	"slices"
)

// State is the full shared record of a run, keyed by field name.
// Steps receive their own copy; the executor owns the live one.
type State map[string]any

// Update is the partial record a step returns. Only the keys present are
// merged, each according to its field's MergeStrategy.
type Update map[string]any

// Clone returns a deep copy. Nested lists and maps are copied so the clone
// can be mutated without affecting s.
func (s State) Clone() State {
	if s == nil {
		return nil
	}
	out := make(State, len(s))
	for k, v := range s {
		out[k] = cloneValue(v)
	}
	return out
}

// Has reports whether key is present.
func (s State) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// String returns the string value for key, or "" if missing or not a string.
func (s State) String(key string) string {
	v, _ := s[key].(string)
	return v
}

// Int returns the int value for key, or 0 if missing or not numeric.
// Whole float64 values are accepted, as produced by JSON decoding.
func (s State) Int(key string) int {
	switch v := s[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Float returns the float64 value for key, or 0 if missing or not numeric.
func (s State) Float(key string) float64 {
	switch v := s[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Bool returns the bool value for key, or false if missing or not a bool.
func (s State) Bool(key string) bool {
	v, _ := s[key].(bool)
	return v
}

// List returns the list value for key, or nil.
func (s State) List(key string) []any {
	v, _ := s[key].([]any)
	return v
}

// Strings returns the string elements of the list at key.
// Non-string elements are skipped.
func (s State) Strings(key string) []string {
	items := s.List(key)
	if items == nil {
		if v, ok := s[key].([]string); ok {
			return slices.Clone(v)
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if str, ok := item.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

// Map returns the map value for key, or nil.
func (s State) Map(key string) map[string]any {
	v, _ := s[key].(map[string]any)
	return v
}

// cloneValue deep-copies lists and maps, including typed slices and maps.
// Other values are returned as is.
func cloneValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}
		return out
	case string, bool, int, int64, float64:
		return t
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(cloneElem(rv.Index(i), rv.Type().Elem()))
		}
		return out.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneElem(iter.Value(), rv.Type().Elem()))
		}
		return out.Interface()
	}
	return v
}

// cloneElem deep-copies one element of a typed slice or map.
func cloneElem(v reflect.Value, typ reflect.Type) reflect.Value {
	c := cloneValue(v.Interface())
	if c == nil {
		return reflect.Zero(typ)
	}
	return reflect.ValueOf(c)
}

func sortedKeys[M ~map[K]V, K cmp.Ordered, V any](m M) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
