// Package ast defines the abstract syntax tree for vigil rule conditions.
//
// A rule condition such as
//
//	missing_rate(email) < 0.1 AND NOT mean(age) > 60
//
// parses into a tree built from four node kinds:
//
// Literal: a number or quoted string on the right-hand side of a comparison
//
// FunctionCall: a statistic lookup such as mean(age)
//
// Comparison: FunctionCall, operator and Literal
//
// LogicalExpression: AND, OR, or NOT (NOT carries a single operand in Left)
//
// The Node interface is sealed, so the evaluator can switch over the complete
// set of node kinds. Nodes are immutable once built and are safe to share
// between goroutines.
package ast
