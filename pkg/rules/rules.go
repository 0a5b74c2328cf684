// Package rules provides the vigil rule-expression language.
//
// # Architecture
//
// The package is organized into subpackages:
//
// - ast: node types for parsed conditions
// - parser: tokenizer, recursive-descent parser and AST cache
// - eval: function/operator registries and the tri-state evaluator
// - errors: tokenize/parse errors, lint error lists and name suggestions
//
// # Basic Usage
//
//	v, err := rules.Evaluate("missing_rate(email) < 0.1 AND mean(age) <= 60", stats)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if v.IsNull() {
//	    fmt.Println("inconclusive")
//	}
package rules

import (
	"mercator-hq/vigil/pkg/rules/ast"
	"mercator-hq/vigil/pkg/rules/eval"
	"mercator-hq/vigil/pkg/rules/parser"
)

var defaultEvaluator = eval.New(nil, nil)

// Compile parses a condition through the shared parser.DefaultCache.
func Compile(condition string) (ast.Node, error) {
	return parser.DefaultCache.Get(condition)
}

// Evaluate compiles condition and evaluates it with the default registries.
func Evaluate(condition string, ctx eval.ProfilingContext) (eval.Value, error) {
	node, err := Compile(condition)
	if err != nil {
		return eval.Null(), err
	}
	return defaultEvaluator.Evaluate(node, ctx)
}

// Check reports whether condition passes against ctx. An inconclusive
// result does not pass.
func Check(condition string, ctx eval.ProfilingContext) (bool, error) {
	v, err := Evaluate(condition, ctx)
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}
