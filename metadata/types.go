// Package metadata provides the typed record model stored alongside vectors.
//
// Records are flat maps of string keys to scalar values. Values are validated
// at insertion time; there is no runtime duck typing.
package metadata

import "fmt"

// Kind identifies the concrete type stored in a Value.
type Kind uint8

const (
	// KindInvalid represents an invalid kind.
	KindInvalid Kind = iota
	// KindString represents a string value.
	KindString
	// KindInt represents an integer value.
	KindInt
	// KindFloat represents a float value.
	KindFloat
	// KindBool represents a boolean value.
	KindBool
)

// Value is a small typed scalar used for metadata records.
//
// NOTE: This is also used for persistence; keep the JSON shape stable.
type Value struct {
	Kind Kind    `json:"k"`
	S    string  `json:"s,omitempty"`
	I64  int64   `json:"i,omitempty"`
	F64  float64 `json:"f,omitempty"`
	B    bool    `json:"b,omitempty"`
}

// String creates a string Value.
func String(s string) Value { return Value{Kind: KindString, S: s} }

// Int creates an integer Value.
func Int(i int64) Value { return Value{Kind: KindInt, I64: i} }

// Float creates a float Value.
func Float(f float64) Value { return Value{Kind: KindFloat, F64: f} }

// Bool creates a boolean Value.
func Bool(b bool) Value { return Value{Kind: KindBool, B: b} }

// AsString returns the string value and whether the Value holds one.
func (v Value) AsString() (string, bool) {
	return v.S, v.Kind == KindString
}

// AsInt64 returns the integer value and whether the Value holds one.
func (v Value) AsInt64() (int64, bool) {
	return v.I64, v.Kind == KindInt
}

// AsFloat64 returns the float value, converting integers.
func (v Value) AsFloat64() (float64, bool) {
	switch v.Kind {
	case KindFloat:
		return v.F64, true
	case KindInt:
		return float64(v.I64), true
	default:
		return 0, false
	}
}

// AsBool returns the boolean value and whether the Value holds one.
func (v Value) AsBool() (bool, bool) {
	return v.B, v.Kind == KindBool
}

// FromAny converts a Go value into a typed Value.
//
// This exists as an adapter layer for caller input arriving as untyped maps.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case float64:
		return Float(x), nil
	case float32:
		return Float(float64(x)), nil
	case int:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint64:
		if x > uint64(1<<63-1) {
			return Value{}, fmt.Errorf("metadata uint64 out of range: %d", x)
		}
		return Int(int64(x)), nil
	default:
		return Value{}, fmt.Errorf("unsupported metadata value type: %T", v)
	}
}

// Record is one metadata record, keyed by attribute name.
type Record map[string]Value

// FromAnyMap converts an untyped map into a Record, rejecting
// unsupported value types.
func FromAnyMap(m map[string]any) (Record, error) {
	rec := make(Record, len(m))
	for k, raw := range m {
		v, err := FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		rec[k] = v
	}
	return rec, nil
}

// Validate reports the first invalid value in the record, if any.
func (r Record) Validate() error {
	for k, v := range r {
		if v.Kind == KindInvalid || v.Kind > KindBool {
			return fmt.Errorf("key %q: invalid value kind %d", k, v.Kind)
		}
	}
	return nil
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
