// Package validator lints audit policies before they are run.
//
// Structural checks cover the policy document itself (name, unique rule
// names, non-empty conditions). Syntax checks parse every condition.
// Semantic checks resolve every function and operator against the
// evaluator's registries and flag ordered comparisons against strings.
// Findings are accumulated so a single run reports every problem.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"mercator-hq/vigil/pkg/policy/model"
	"mercator-hq/vigil/pkg/rules/ast"
	rerrors "mercator-hq/vigil/pkg/rules/errors"
	"mercator-hq/vigil/pkg/rules/eval"
)

var orderedOperators = map[string]bool{"<": true, ">": true, "<=": true, ">=": true}

// Validator checks policies against a set of registries.
type Validator struct {
	funcs *eval.FunctionRegistry
	ops   *eval.OperatorRegistry
}

// NewValidator creates a validator. A nil evaluator uses the default registries.
func NewValidator(e *eval.Evaluator) *Validator {
	if e == nil {
		e = eval.New(nil, nil)
	}
	return &Validator{funcs: e.Functions(), ops: e.Operators()}
}

// Validate runs all passes and returns nil or an *errors.ErrorList.
func (v *Validator) Validate(p *model.AuditPolicy) error {
	return v.Check(p).ToError()
}

// Check runs all passes and returns the findings, which may be empty.
func (v *Validator) Check(p *model.AuditPolicy) *rerrors.ErrorList {
	el := rerrors.NewErrorList()
	v.structural(p, el)
	for _, r := range p.Rules {
		if r == nil || strings.TrimSpace(r.Condition) == "" {
			continue
		}
		v.rule(r, el)
	}
	return el
}

// CheckCondition lints a single condition string outside of any policy.
func (v *Validator) CheckCondition(condition string) *rerrors.ErrorList {
	el := rerrors.NewErrorList()
	v.rule(model.NewRule("", condition), el)
	return el
}

func (v *Validator) structural(p *model.AuditPolicy, el *rerrors.ErrorList) {
	if p.Name == "" {
		el.AddError(rerrors.ErrorTypeStructural, "", "policy name is required")
	}

	seen := make(map[string]bool, len(p.Rules))
	for i, r := range p.Rules {
		if r == nil {
			el.AddError(rerrors.ErrorTypeStructural, "", fmt.Sprintf("rule %d is empty", i))
			continue
		}
		if r.Name == "" {
			el.AddError(rerrors.ErrorTypeStructural, "", fmt.Sprintf("rule %d has no name", i))
		} else if seen[r.Name] {
			el.AddError(rerrors.ErrorTypeStructural, r.Name, "duplicate rule name")
		}
		seen[r.Name] = true

		if strings.TrimSpace(r.Condition) == "" {
			el.AddError(rerrors.ErrorTypeStructural, r.Name, "condition is empty")
		}
		if r.ExitCode != nil && (*r.ExitCode < 0 || *r.ExitCode > 255) {
			el.AddError(rerrors.ErrorTypeStructural, r.Name, fmt.Sprintf("exit_code %d out of range 0..255", *r.ExitCode))
		}
		if r.FailFast && !p.EnableFailFast {
			el.Add(&rerrors.Error{
				Type:       rerrors.ErrorTypeStructural,
				Rule:       r.Name,
				Message:    "fail_fast has no effect while enable_fail_fast is false",
				Suggestion: "set enable_fail_fast: true or remove fail_fast from the rule",
			})
		}
	}
}

func (v *Validator) rule(r *model.Rule, el *rerrors.ErrorList) {
	node, err := r.AST()
	if err != nil {
		var te *rerrors.TokenizeError
		var pe *rerrors.ParseError
		switch {
		case errors.As(err, &te):
			el.Add(&rerrors.Error{Type: rerrors.ErrorTypeSyntax, Rule: r.Name, Message: te.Message, Condition: r.Condition, Position: te.Position})
		case errors.As(err, &pe):
			el.Add(&rerrors.Error{Type: rerrors.ErrorTypeSyntax, Rule: r.Name, Message: pe.Message, Condition: r.Condition, Position: pe.Position})
		default:
			el.AddError(rerrors.ErrorTypeSyntax, r.Name, err.Error())
		}
		return
	}

	for _, fc := range ast.Functions(node) {
		if _, ok := v.funcs.Lookup(fc.Name); !ok {
			el.Add(&rerrors.Error{
				Type:       rerrors.ErrorTypeSemantic,
				Rule:       r.Name,
				Message:    fmt.Sprintf("unknown function %q", fc.Name),
				Condition:  r.Condition,
				Position:   fc.Position,
				Suggestion: rerrors.SuggestName(fc.Name, v.funcs.Names()),
			})
		}
	}

	for _, cmp := range ast.Comparisons(node) {
		if _, ok := v.ops.Lookup(cmp.Operator); !ok {
			el.Add(&rerrors.Error{
				Type:      rerrors.ErrorTypeSemantic,
				Rule:      r.Name,
				Message:   fmt.Sprintf("unknown operator %q", cmp.Operator),
				Condition: r.Condition,
				Position:  cmp.Position,
			})
			continue
		}
		if lit, ok := cmp.Right.(*ast.Literal); ok && orderedOperators[cmp.Operator] {
			if _, isString := lit.Value.(string); isString {
				el.Add(&rerrors.Error{
					Type:       rerrors.ErrorTypeSemantic,
					Rule:       r.Name,
					Message:    fmt.Sprintf("operator %q requires a number, got string %s", cmp.Operator, ast.FormatLiteral(lit.Value)),
					Condition:  r.Condition,
					Position:   lit.Position,
					Suggestion: "use == or != to compare strings",
				})
			}
		}
	}
}
