package eval

import (
	"fmt"
	"strconv"
)

// Kind is the dynamic type of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	}
	return "unknown"
}

// Value is the result of evaluating a node. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
}

// Null returns the inconclusive value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float64.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// FromLiteral converts an AST literal value.
func FromLiteral(v interface{}) (Value, error) {
	switch v := v.(type) {
	case float64:
		return Number(v), nil
	case int:
		return Number(float64(v)), nil
	case string:
		return String(v), nil
	case bool:
		return Bool(v), nil
	case nil:
		return Null(), nil
	}
	return Null(), fmt.Errorf("%w: unsupported literal type %T", ErrEvaluation, v)
}

// Kind returns the dynamic type.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is inconclusive.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean and whether v is a Bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsNumber returns the number and whether v is a Number.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsString returns the string and whether v is a String.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// Truthy follows the usual rules: false, 0, "" and Null are falsy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0
	case KindString:
		return v.s != ""
	}
	return false
}

// Interface returns the underlying Go value, or nil for Null.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	}
	return "null"
}
