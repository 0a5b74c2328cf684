package eval

import (
	"errors"
	"fmt"
)

// ErrEvaluation is wrapped by every error the evaluator returns.
var ErrEvaluation = errors.New("rule evaluation failed")

// UnknownFunctionError indicates a function call with no registry entry.
type UnknownFunctionError struct {
	Name       string
	Suggestion string
}

// Error returns the error message.
func (e *UnknownFunctionError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown function %q (%s)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("unknown function %q", e.Name)
}

// Unwrap returns ErrEvaluation.
func (e *UnknownFunctionError) Unwrap() error {
	return ErrEvaluation
}

// UnknownOperatorError indicates a comparison operator with no registry entry.
type UnknownOperatorError struct {
	Operator string
}

// Error returns the error message.
func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("unknown operator %q", e.Operator)
}

// Unwrap returns ErrEvaluation.
func (e *UnknownOperatorError) Unwrap() error {
	return ErrEvaluation
}

// TypeMismatchError indicates operands that cannot be compared with Operator.
type TypeMismatchError struct {
	Operator string
	Left     Kind
	Right    Kind
}

// Error returns the error message.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: cannot apply %q to %s and %s", e.Operator, e.Left, e.Right)
}

// Unwrap returns ErrEvaluation.
func (e *TypeMismatchError) Unwrap() error {
	return ErrEvaluation
}
