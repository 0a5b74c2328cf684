package eval

import "sort"

// Operator compares two non-null values.
type Operator func(left, right Value) (Value, error)

// OperatorRegistry is an immutable symbol -> Operator map.
type OperatorRegistry struct {
	ops map[string]Operator
}

// NewOperatorRegistry copies ops into a new registry.
func NewOperatorRegistry(ops map[string]Operator) *OperatorRegistry {
	m := make(map[string]Operator, len(ops))
	for sym, op := range ops {
		m[sym] = op
	}
	return &OperatorRegistry{ops: m}
}

// DefaultOperators returns the six comparison operators.
// Numbers compare with ordinary ordering. Strings support only == and !=.
// Mixed number/string operands are a TypeMismatchError.
func DefaultOperators() *OperatorRegistry {
	return NewOperatorRegistry(map[string]Operator{
		"==": equality("==", false),
		"!=": equality("!=", true),
		"<":  ordered("<", func(a, b float64) bool { return a < b }),
		">":  ordered(">", func(a, b float64) bool { return a > b }),
		"<=": ordered("<=", func(a, b float64) bool { return a <= b }),
		">=": ordered(">=", func(a, b float64) bool { return a >= b }),
	})
}

// Lookup returns the operator registered under symbol.
func (r *OperatorRegistry) Lookup(symbol string) (Operator, bool) {
	op, ok := r.ops[symbol]
	return op, ok
}

// Names returns the registered symbols in sorted order.
func (r *OperatorRegistry) Names() []string {
	names := make([]string, 0, len(r.ops))
	for sym := range r.ops {
		names = append(names, sym)
	}
	sort.Strings(names)
	return names
}

// With returns a copy of the registry with op registered under symbol.
func (r *OperatorRegistry) With(symbol string, op Operator) *OperatorRegistry {
	next := NewOperatorRegistry(r.ops)
	next.ops[symbol] = op
	return next
}

func equality(symbol string, negate bool) Operator {
	return func(left, right Value) (Value, error) {
		if left.Kind() != right.Kind() {
			return Null(), &TypeMismatchError{Operator: symbol, Left: left.Kind(), Right: right.Kind()}
		}
		var eq bool
		switch left.Kind() {
		case KindNumber:
			eq = left.n == right.n
		case KindString:
			eq = left.s == right.s
		case KindBool:
			eq = left.b == right.b
		default:
			return Null(), &TypeMismatchError{Operator: symbol, Left: left.Kind(), Right: right.Kind()}
		}
		return Bool(eq != negate), nil
	}
}

func ordered(symbol string, cmp func(a, b float64) bool) Operator {
	return func(left, right Value) (Value, error) {
		l, lok := left.AsNumber()
		r, rok := right.AsNumber()
		if !lok || !rok {
			return Null(), &TypeMismatchError{Operator: symbol, Left: left.Kind(), Right: right.Kind()}
		}
		return Bool(cmp(l, r)), nil
	}
}
