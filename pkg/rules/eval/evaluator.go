package eval

import (
	"fmt"

	"mercator-hq/vigil/pkg/rules/ast"
	rerrors "mercator-hq/vigil/pkg/rules/errors"
)

// Evaluator walks rule ASTs. It holds only immutable registries and is
// safe for concurrent use.
type Evaluator struct {
	funcs *FunctionRegistry
	ops   *OperatorRegistry
}

// New creates an evaluator. Nil registries fall back to the defaults.
func New(funcs *FunctionRegistry, ops *OperatorRegistry) *Evaluator {
	if funcs == nil {
		funcs = DefaultFunctions()
	}
	if ops == nil {
		ops = DefaultOperators()
	}
	return &Evaluator{funcs: funcs, ops: ops}
}

// Functions returns the function registry.
func (e *Evaluator) Functions() *FunctionRegistry { return e.funcs }

// Operators returns the operator registry.
func (e *Evaluator) Operators() *OperatorRegistry { return e.ops }

// Evaluate resolves node against ctx.
//
// Comparisons with an unavailable statistic yield Null. AND and OR
// short-circuit: the right operand is not evaluated (and cannot fail) once
// the left operand decides the result.
func (e *Evaluator) Evaluate(node ast.Node, ctx ProfilingContext) (Value, error) {
	switch n := node.(type) {
	case *ast.Literal:
		return FromLiteral(n.Value)

	case *ast.FunctionCall:
		fn, ok := e.funcs.Lookup(n.Name)
		if !ok {
			return Null(), &UnknownFunctionError{
				Name:       n.Name,
				Suggestion: rerrors.SuggestName(n.Name, e.funcs.Names()),
			}
		}
		return fn(ctx, n.Field), nil

	case *ast.Comparison:
		return e.evaluateComparison(n, ctx)

	case *ast.LogicalExpression:
		return e.evaluateLogical(n, ctx)

	case nil:
		return Null(), fmt.Errorf("%w: nil node", ErrEvaluation)
	}
	return Null(), fmt.Errorf("%w: unsupported node type %T", ErrEvaluation, node)
}

func (e *Evaluator) evaluateComparison(n *ast.Comparison, ctx ProfilingContext) (Value, error) {
	op, ok := e.ops.Lookup(n.Operator)
	if !ok {
		return Null(), &UnknownOperatorError{Operator: n.Operator}
	}

	left, err := e.Evaluate(n.Left, ctx)
	if err != nil {
		return Null(), err
	}
	right, err := e.Evaluate(n.Right, ctx)
	if err != nil {
		return Null(), err
	}

	if left.IsNull() || right.IsNull() {
		return Null(), nil
	}
	return op(left, right)
}

func (e *Evaluator) evaluateLogical(n *ast.LogicalExpression, ctx ProfilingContext) (Value, error) {
	left, err := e.Evaluate(n.Left, ctx)
	if err != nil {
		return Null(), err
	}

	switch n.Operator {
	case ast.Not:
		if left.IsNull() {
			return Null(), nil
		}
		return Bool(!left.Truthy()), nil

	case ast.And:
		if !left.IsNull() && !left.Truthy() {
			return Bool(false), nil
		}
		right, err := e.Evaluate(n.Right, ctx)
		if err != nil {
			return Null(), err
		}
		if !right.IsNull() && !right.Truthy() {
			return Bool(false), nil
		}
		if left.IsNull() || right.IsNull() {
			return Null(), nil
		}
		return Bool(true), nil

	case ast.Or:
		if left.Truthy() {
			return Bool(true), nil
		}
		right, err := e.Evaluate(n.Right, ctx)
		if err != nil {
			return Null(), err
		}
		if right.Truthy() {
			return Bool(true), nil
		}
		if left.IsNull() || right.IsNull() {
			return Null(), nil
		}
		return Bool(false), nil
	}

	return Null(), fmt.Errorf("%w: unknown logical operator %q", ErrEvaluation, n.Operator)
}
