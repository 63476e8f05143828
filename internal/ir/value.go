// Package ir defines the canonical representation of the resolved service
// model: flows, component instances, combinator expressions, and the
// compiled runtime schema consumed by the planner and runtime layers.
package ir

import "fmt"

// Kind tags the dynamic type carried by a Value.
type Kind int

const (
	KindBool Kind = iota + 1
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// ValidKinds is the set of type names accepted in port and field declarations.
var ValidKinds = map[string]bool{
	"bool":   true,
	"int":    true,
	"float":  true,
	"string": true,
	"array":  true,
	"object": true,
}

// Value is a typed value flowing through a service: the payload of a
// signal's last-known value or an event's emitted value.
//
// Unlike a hash-oriented IR (which forbids floats to keep content
// addressing stable across languages), this domain's signals are
// continuous measurements, so Float is a first-class case. Determinism
// of float handling is preserved by formatting with a fixed, shortest
// round-trip representation wherever a Value is canonically marshaled
// (see canonical.go).
type Value struct {
	Kind   Kind
	Bool   bool
	Int    int64
	Float  float64
	Str    string
	Array  []Value
	Object map[string]Value
}

// BoolValue constructs a bool Value.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// IntValue constructs an int Value.
func IntValue(i int64) Value { return Value{Kind: KindInt, Int: i} }

// FloatValue constructs a float Value.
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// StringValue constructs a string Value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// ArrayValue constructs an array Value.
func ArrayValue(vs ...Value) Value { return Value{Kind: KindArray, Array: vs} }

// ObjectValue constructs an object Value.
func ObjectValue(fields map[string]Value) Value { return Value{Kind: KindObject, Object: fields} }

// ZeroValue returns the type-level default for a kind. persist()'s
// pre-first-emit value resolves to this rather than to an optional
// wrapper threaded through every consumer.
func ZeroValue(k Kind) Value {
	switch k {
	case KindBool:
		return BoolValue(false)
	case KindInt:
		return IntValue(0)
	case KindFloat:
		return FloatValue(0)
	case KindString:
		return StringValue("")
	case KindArray:
		return Value{Kind: KindArray}
	case KindObject:
		return Value{Kind: KindObject, Object: map[string]Value{}}
	default:
		return Value{}
	}
}

// Equal reports whether two values are identical, used by on_change to
// detect whether a signal's latest value differs from its previous one.
// Float comparison is exact (IEEE-754 bit equality via ==): step functions
// are pure and deterministic, so two identical upstream computations
// always produce bit-identical floats.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	case KindString:
		return v.Str == o.Str
	case KindArray:
		if len(v.Array) != len(o.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(o.Array[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.Object) != len(o.Object) {
			return false
		}
		for k, vv := range v.Object {
			ov, ok := o.Object[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindString:
		return v.Str
	case KindArray:
		return fmt.Sprintf("%v", v.Array)
	case KindObject:
		return fmt.Sprintf("%v", v.Object)
	default:
		return "<invalid>"
	}
}
