package stepgraph

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
)

// Kind is the value type a schema field holds.
type Kind int

const (
	// KindAny accepts any value unchanged.
	KindAny Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindList
	KindMap
)

// String returns the kind name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MergeStrategy decides how an update value combines with the current one.
type MergeStrategy int

const (
	// Overwrite replaces the current value. It is the zero value.
	Overwrite MergeStrategy = iota
	// Accumulate appends to the current list value.
	Accumulate
)

// String returns the strategy name.
func (m MergeStrategy) String() string {
	switch m {
	case Overwrite:
		return "overwrite"
	case Accumulate:
		return "accumulate"
	default:
		return fmt.Sprintf("merge(%d)", int(m))
	}
}

// Field declares one named slot of the shared state.
type Field struct {
	Name    string
	Kind    Kind
	Merge   MergeStrategy
	Default any
	// Enum restricts a KindString field to the listed values.
	Enum []string
}

// String declares a string field.
func String(name string) Field { return Field{Name: name, Kind: KindString} }

// Int declares an int field.
func Int(name string) Field { return Field{Name: name, Kind: KindInt} }

// Float declares a float64 field.
func Float(name string) Field { return Field{Name: name, Kind: KindFloat} }

// Bool declares a bool field.
func Bool(name string) Field { return Field{Name: name, Kind: KindBool} }

// List declares a []any field.
func List(name string) Field { return Field{Name: name, Kind: KindList} }

// Map declares a map[string]any field.
func Map(name string) Field { return Field{Name: name, Kind: KindMap} }

// Any declares a field that accepts any value.
func Any(name string) Field { return Field{Name: name, Kind: KindAny} }

// Accumulating returns a copy of f that appends instead of overwriting.
func (f Field) Accumulating() Field {
	f.Merge = Accumulate
	return f
}

// WithDefault returns a copy of f with an explicit default value.
func (f Field) WithDefault(v any) Field {
	f.Default = v
	return f
}

// OneOf returns a copy of f restricted to the given values.
func (f Field) OneOf(values ...string) Field {
	f.Enum = append([]string(nil), values...)
	return f
}

// Schema is the fixed set of fields a graph's state carries.
// A Schema is immutable once NewSchema returns it.
type Schema struct {
	fields map[string]Field
	order  []string
}

// NewSchema validates the field declarations and builds a Schema.
// Every problem is reported, not just the first.
func NewSchema(fields ...Field) (*Schema, error) {
	s := &Schema{fields: make(map[string]Field, len(fields))}
	var errs []error

	for _, f := range fields {
		if err := s.add(f); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return s, nil
}

// MustSchema is NewSchema that panics on error.
// Intended for package-level schema declarations.
func MustSchema(fields ...Field) *Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) add(f Field) error {
	name := strings.TrimSpace(f.Name)
	if name == "" || name != f.Name {
		return &FieldError{Field: f.Name, Err: fmt.Errorf("%w: name must be non-empty without surrounding spaces", ErrInvalidField)}
	}
	if _, dup := s.fields[name]; dup {
		return &FieldError{Field: name, Err: fmt.Errorf("%w: duplicate field", ErrInvalidField)}
	}
	if f.Kind < KindAny || f.Kind > KindMap {
		return &FieldError{Field: name, Err: fmt.Errorf("%w: unknown kind %s", ErrInvalidField, f.Kind)}
	}
	if f.Merge == Accumulate && f.Kind != KindList {
		return &FieldError{Field: name, Err: fmt.Errorf("%w: accumulate requires a list field, got %s", ErrInvalidField, f.Kind)}
	}
	if f.Merge != Overwrite && f.Merge != Accumulate {
		return &FieldError{Field: name, Err: fmt.Errorf("%w: unknown merge strategy %s", ErrInvalidField, f.Merge)}
	}
	if len(f.Enum) > 0 && f.Kind != KindString {
		return &FieldError{Field: name, Err: fmt.Errorf("%w: enum requires a string field, got %s", ErrInvalidField, f.Kind)}
	}

	f.Enum = slices.Clone(f.Enum)
	if f.Default != nil {
		v, err := coerce(f, f.Default)
		if err != nil {
			return &FieldError{Field: name, Value: f.Default, Err: fmt.Errorf("%w: default: %w", ErrInvalidField, err)}
		}
		f.Default = v
	}

	s.fields[name] = f
	s.order = append(s.order, name)
	return nil
}

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.fields[name])
	}
	return out
}

// Field returns the declaration for name.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Names returns the field names in declaration order.
func (s *Schema) Names() []string {
	return slices.Clone(s.order)
}

// Default returns a fresh copy of the default value for a field.
func (s *Schema) Default(name string) (any, bool) {
	f, ok := s.fields[name]
	if !ok {
		return nil, false
	}
	return defaultValue(f), true
}

// Materialize builds a complete State from an initial record.
// Fields absent from initial take their defaults. Unknown keys and values
// that do not fit their field fail with *FieldError.
func (s *Schema) Materialize(initial map[string]any) (State, error) {
	state := make(State, len(s.fields))
	for _, name := range s.order {
		state[name] = defaultValue(s.fields[name])
	}

	for _, key := range sortedKeys(initial) {
		f, ok := s.fields[key]
		if !ok {
			return nil, &FieldError{Field: key, Value: initial[key], Err: ErrUnknownField}
		}
		v := initial[key]
		if v == nil {
			continue
		}
		cv, err := coerce(f, v)
		if err != nil {
			return nil, &FieldError{Field: key, Value: v, Err: err}
		}
		state[key] = cv
	}
	return state, nil
}

// Apply merges an update into state field by field.
// The update is validated in full before any field changes, so a failed
// Apply leaves state untouched.
func (s *Schema) Apply(state State, u Update) error {
	if len(u) == 0 {
		return nil
	}

	staged := make(map[string]any, len(u))
	keys := sortedKeys(u)
	for _, key := range keys {
		f, ok := s.fields[key]
		if !ok {
			return &FieldError{Field: key, Value: u[key], Err: ErrUnknownField}
		}
		v := u[key]

		switch {
		case v == nil && f.Merge == Accumulate:
			staged[key] = nil
		case v == nil:
			staged[key] = defaultValue(f)
		case f.Merge == Accumulate:
			staged[key] = appendItems(v)
		default:
			cv, err := coerce(f, v)
			if err != nil {
				return &FieldError{Field: key, Value: v, Err: err}
			}
			staged[key] = cv
		}
	}

	for _, key := range keys {
		f := s.fields[key]
		if f.Merge != Accumulate {
			state[key] = staged[key]
			continue
		}
		items, _ := staged[key].([]any)
		current, _ := state[key].([]any)
		merged := make([]any, 0, len(current)+len(items))
		merged = append(merged, current...)
		merged = append(merged, items...)
		state[key] = merged
	}
	return nil
}

func defaultValue(f Field) any {
	if f.Default != nil {
		return cloneValue(f.Default)
	}
	switch f.Kind {
	case KindString:
		return ""
	case KindInt:
		return 0
	case KindFloat:
		return 0.0
	case KindBool:
		return false
	case KindList:
		return []any{}
	case KindMap:
		return map[string]any{}
	default:
		return nil
	}
}

// appendItems turns an accumulate update into the elements to append.
// Slices contribute their elements; anything else is a single element.
func appendItems(v any) []any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{cloneValue(v)}
	}
	return toList(rv)
}

// coerce converts v into the canonical Go type for f's kind.
func coerce(f Field, v any) (any, error) {
	switch f.Kind {
	case KindAny:
		return cloneValue(v), nil
	case KindString:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.String {
			return nil, kindMismatch(f, v)
		}
		str := rv.String()
		if len(f.Enum) > 0 && !slices.Contains(f.Enum, str) {
			return nil, fmt.Errorf("%w: %q not in %v", ErrNotInEnum, str, f.Enum)
		}
		return str, nil
	case KindInt:
		return toInt(f, v)
	case KindFloat:
		rv := reflect.ValueOf(v)
		switch {
		case rv.CanInt():
			return float64(rv.Int()), nil
		case rv.CanUint():
			return float64(rv.Uint()), nil
		case rv.CanFloat():
			return rv.Float(), nil
		}
		return nil, kindMismatch(f, v)
	case KindBool:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Bool {
			return nil, kindMismatch(f, v)
		}
		return rv.Bool(), nil
	case KindList:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, kindMismatch(f, v)
		}
		return toList(rv), nil
	case KindMap:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
			return nil, kindMismatch(f, v)
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = cloneValue(iter.Value().Interface())
		}
		return out, nil
	}
	return nil, kindMismatch(f, v)
}

func toInt(f Field, v any) (any, error) {
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return int(rv.Int()), nil
	case rv.CanUint():
		u := rv.Uint()
		if u > math.MaxInt {
			return nil, fmt.Errorf("%w: %d overflows int", ErrKindMismatch, u)
		}
		return int(u), nil
	case rv.CanFloat():
		fl := rv.Float()
		if fl != math.Trunc(fl) || math.IsInf(fl, 0) || math.IsNaN(fl) {
			return nil, fmt.Errorf("%w: %v is not integral", ErrKindMismatch, fl)
		}
		return int(fl), nil
	}
	return nil, kindMismatch(f, v)
}

func toList(rv reflect.Value) []any {
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = cloneValue(rv.Index(i).Interface())
	}
	return out
}

func kindMismatch(f Field, v any) error {
	return fmt.Errorf("%w: want %s, got %T", ErrKindMismatch, f.Kind, v)
}
