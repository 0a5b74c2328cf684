package model

import (
	"strings"
	"sync"

	"mercator-hq/vigil/pkg/rules/ast"
	"mercator-hq/vigil/pkg/rules/parser"
)

// Rule is a named pass condition with its severity and enforcement metadata.
// A Rule is created at load time and is read-only afterwards; always share
// it by pointer.
type Rule struct {
	Name        string
	Condition   string
	Severity    Severity
	Message     string
	Enforcement EnforcementMode
	FailFast    bool
	ExitCode    *int
	Metadata    map[string]interface{}

	once    sync.Once
	tree    ast.Node
	treeErr error
}

// NewRule creates a rule with severity error and enforce mode.
func NewRule(name, condition string) *Rule {
	return &Rule{
		Name:        name,
		Condition:   condition,
		Severity:    SeverityError,
		Enforcement: Enforce,
	}
}

// AST returns the parsed condition. The first call goes through
// parser.DefaultCache, so rules with the same condition text share a tree;
// the tree, or the parse error, is kept for the rule's lifetime.
func (r *Rule) AST() (ast.Node, error) {
	r.once.Do(func() {
		r.tree, r.treeErr = parser.DefaultCache.Get(r.Condition)
	})
	return r.tree, r.treeErr
}

// Enforced reports whether violations of this rule count toward failure.
func (r *Rule) Enforced() bool {
	return r.Enforcement == Enforce
}

// RenderMessage fills the message template. Supported placeholders are
// {rule}, {condition}, {severity} and {value}. An empty template renders
// "rule '<name>' failed: <condition>".
func (r *Rule) RenderMessage(value string) string {
	if r.Message == "" {
		return "rule '" + r.Name + "' failed: " + r.Condition
	}
	return strings.NewReplacer(
		"{rule}", r.Name,
		"{condition}", r.Condition,
		"{severity}", r.Severity.String(),
		"{value}", value,
	).Replace(r.Message)
}

// Clone returns a copy with fresh parse state.
func (r *Rule) Clone() *Rule {
	c := &Rule{
		Name:        r.Name,
		Condition:   r.Condition,
		Severity:    r.Severity,
		Message:     r.Message,
		Enforcement: r.Enforcement,
		FailFast:    r.FailFast,
		Metadata:    cloneMetadata(r.Metadata),
	}
	if r.ExitCode != nil {
		code := *r.ExitCode
		c.ExitCode = &code
	}
	return c
}

func cloneMetadata(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
