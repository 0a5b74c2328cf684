package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/vigil/pkg/cli"
	"mercator-hq/vigil/pkg/policy/model"
	"mercator-hq/vigil/pkg/policy/validator"
	rerrors "mercator-hq/vigil/pkg/rules/errors"
)

var lintFlags struct {
	strict bool
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint [policy...]",
	Short: "Validate policy files",
	Long: `Validate audit policies for structural, syntax and semantic errors.

Each argument is a policy name or path. Without arguments every policy in
the search paths is checked. The resolved policy is checked together with
each of its environment and dataset overlays:
  - Structure (name, unique rule names, non-empty conditions)
  - Condition syntax, with the position of the error
  - Unknown functions and operators, with suggestions
  - Ordered comparisons against strings

Warnings flag settings that have no effect. --strict, or
policy.validation.strict, turns them into errors.

Examples:
  # Lint every policy in the search paths
  vigil lint

  # Lint files
  vigil lint policies/orders.yaml policies/customers.yaml

  # JSON output for CI/CD
  vigil lint --format json --strict`,
	RunE: lintPolicies,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().BoolVar(&lintFlags.strict, "strict", false, "treat warnings as errors")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

// LintResult is the lint outcome for one policy.
type LintResult struct {
	Policy   string        `json:"policy"`
	Source   string        `json:"source,omitempty"`
	Valid    bool          `json:"valid"`
	Errors   []LintFinding `json:"errors,omitempty"`
	Warnings []LintFinding `json:"warnings,omitempty"`
}

// LintFinding is a single lint error or warning.
type LintFinding struct {
	Type       string `json:"type"`
	Overlay    string `json:"overlay,omitempty"`
	Rule       string `json:"rule,omitempty"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`

	text string
}

func lintPolicies(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(lintFlags.format)
	if err != nil {
		return err
	}
	if format == cli.FormatCSV {
		return cli.NewConfigError("format", "csv is not supported for lint")
	}

	ctx := commandContext(cmd)
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	names := args
	if len(names) == 0 {
		names, err = a.policies.ListPolicies()
		if err != nil {
			return fmt.Errorf("failed to list policies: %w", err)
		}
		if len(names) == 0 {
			return fmt.Errorf("no policy files found in %s", strings.Join(a.policies.SearchPaths(), ", "))
		}
	}

	strict := lintFlags.strict || a.cfg.Policy.Validation.Strict
	results := make([]LintResult, 0, len(names))
	for _, name := range names {
		results = append(results, a.lintPolicy(ctx, name, strict))
	}

	w := commandOutput(cmd)
	if format == cli.FormatJSON {
		if err := (&cli.JSONFormatter{Indent: true}).FormatTo(w, results); err != nil {
			return err
		}
	} else if err := writeLintText(w, results); err != nil {
		return err
	}

	invalid := 0
	for _, r := range results {
		if !r.Valid {
			invalid++
		}
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d policies failed validation", invalid, len(results))
	}
	return nil
}

func (a *app) lintPolicy(ctx context.Context, name string, strict bool) LintResult {
	result := LintResult{Policy: name, Valid: true}

	p, err := a.policies.Resolve(ctx, name)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, LintFinding{Type: "load", Message: err.Error(), text: err.Error()})
		return result
	}
	result.Policy = p.Name
	result.Source = p.Source

	v := validator.NewValidator(nil)
	result.Errors = append(result.Errors, findings(v.Check(p), "")...)
	result.Warnings = append(result.Warnings, policyWarnings(p, "")...)

	for _, env := range p.EnvironmentNames() {
		overlay := "env:" + env
		effective := p.Effective(env, "")
		result.Errors = append(result.Errors, findings(v.Check(effective), overlay)...)
		result.Warnings = append(result.Warnings, policyWarnings(effective, overlay)...)
	}
	for _, dataset := range p.DatasetNames() {
		overlay := "dataset:" + dataset
		effective := p.Effective("", dataset)
		result.Errors = append(result.Errors, findings(v.Check(effective), overlay)...)
		result.Warnings = append(result.Warnings, policyWarnings(effective, overlay)...)
	}

	result.Errors = dedupe(result.Errors)
	result.Warnings = dedupe(result.Warnings)
	if strict {
		result.Errors = append(result.Errors, result.Warnings...)
		result.Warnings = nil
	}
	result.Valid = len(result.Errors) == 0
	return result
}

// checkPolicies resolves and validates every policy in the search paths.
// It is used to accept or reject a policy reload.
func (a *app) checkPolicies(ctx context.Context) error {
	names, err := a.policies.ListPolicies()
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range names {
		r := a.lintPolicy(ctx, name, false)
		if r.Valid {
			continue
		}
		for _, f := range r.Errors {
			errs = append(errs, fmt.Errorf("%s: %s", r.Policy, f.Message))
		}
	}
	return errors.Join(errs...)
}

func findings(el *rerrors.ErrorList, overlay string) []LintFinding {
	out := make([]LintFinding, 0, el.Count())
	for _, e := range el.Errors {
		out = append(out, LintFinding{
			Type:       string(e.Type),
			Overlay:    overlay,
			Rule:       e.Rule,
			Message:    e.Message,
			Suggestion: e.Suggestion,
			text:       e.Error(),
		})
	}
	return out
}

// policyWarnings reports settings that are accepted but have no effect.
func policyWarnings(p *model.AuditPolicy, overlay string) []LintFinding {
	var out []LintFinding
	warn := func(rule, msg string) {
		out = append(out, LintFinding{Type: "warning", Overlay: overlay, Rule: rule, Message: msg, text: fmt.Sprintf("rule %q: %s", rule, msg)})
	}

	if len(p.Rules) == 0 {
		out = append(out, LintFinding{Type: "warning", Overlay: overlay, Message: "policy has no rules", text: "policy has no rules"})
	}
	for _, r := range p.Rules {
		if r == nil {
			continue
		}
		if r.FailFast && !r.Enforced() {
			warn(r.Name, "fail_fast has no effect on a dry-run rule")
		}
		if r.ExitCode != nil && !r.Enforced() {
			warn(r.Name, "exit_code has no effect on a dry-run rule")
		}
	}
	return out
}

// dedupe drops findings repeated by overlays that did not change the rule.
func dedupe(in []LintFinding) []LintFinding {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, f := range in {
		key := f.Type + "\x00" + f.Rule + "\x00" + f.Message
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}

func writeLintText(w io.Writer, results []LintResult) error {
	for _, r := range results {
		label := r.Policy
		if r.Source != "" {
			label = fmt.Sprintf("%s (%s)", r.Policy, r.Source)
		}
		if r.Valid && len(r.Warnings) == 0 {
			if _, err := fmt.Fprintf(w, "✓ %s\n", label); err != nil {
				return err
			}
			continue
		}
		mark := "✓"
		if !r.Valid {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s\n", mark, label)
		for _, f := range r.Errors {
			fmt.Fprintf(w, "  error%s: %s\n", overlaySuffix(f.Overlay), indent(f.text))
		}
		for _, f := range r.Warnings {
			fmt.Fprintf(w, "  warning%s: %s\n", overlaySuffix(f.Overlay), indent(f.text))
		}
	}
	return nil
}

func overlaySuffix(overlay string) string {
	if overlay == "" {
		return ""
	}
	return " [" + overlay + "]"
}

func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n    ")
}
