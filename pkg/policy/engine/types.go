package engine

import (
	"time"

	"mercator-hq/vigil/pkg/policy/model"
)

// State is the runner state of an audit.
type State int

const (
	// StateRunning is the state while rules are being evaluated.
	StateRunning State = iota

	// StateCompleted means every rule was evaluated.
	StateCompleted

	// StateTerminatedEarly means an enforced fail-fast violation stopped
	// the run.
	StateTerminatedEarly
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateTerminatedEarly:
		return "terminated_early"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Violation records one failing rule. Violations are created once and
// never modified.
type Violation struct {
	// Rule is the name of the violated rule.
	Rule string `json:"rule"`

	// Severity is the rule's severity, or FATAL for evaluation errors.
	Severity model.Severity `json:"severity"`

	// Message is the rendered rule message.
	Message string `json:"message"`

	// Enforced is true when the rule's enforcement mode is enforce.
	Enforced bool `json:"enforced"`

	// DryRun is the negation of Enforced.
	DryRun bool `json:"dry_run"`

	// Inconclusive is set when the condition evaluated to null because a
	// statistic was missing.
	Inconclusive bool `json:"inconclusive,omitempty"`

	// Error holds the evaluation error text when the rule could not be
	// evaluated.
	Error string `json:"error,omitempty"`

	rule *model.Rule
}

// Errored reports whether the violation came from an evaluation error.
func (v *Violation) Errored() bool {
	return v.Error != ""
}

// Result is the outcome of one audit run.
type Result struct {
	// RunID identifies the run. It is left empty by the runner and filled
	// in by callers that persist results.
	RunID string `json:"run_id,omitempty"`

	// Policy is the effective policy name.
	Policy string `json:"policy"`

	// Dataset and Environment are the overlay names the policy was
	// resolved with, if any.
	Dataset     string `json:"dataset,omitempty"`
	Environment string `json:"environment,omitempty"`

	// Success is true for dry-run policies and for runs without an
	// enforced violation of severity error or fatal.
	Success bool `json:"success"`

	// Violations in rule order.
	Violations []*Violation `json:"violations"`

	// TerminatedEarly and TerminationRule describe fail-fast termination.
	TerminatedEarly bool   `json:"terminated_early"`
	TerminationRule string `json:"termination_rule,omitempty"`

	// DryRun is true when the policy's default enforcement is dry_run.
	DryRun bool `json:"dry_run"`

	// ExitCode is the process exit code for this result.
	ExitCode int `json:"exit_code"`

	// WouldExitCode is the exit code if every violation were enforced.
	WouldExitCode int `json:"would_exit_code"`

	// WouldFail is true if every violation being enforced would have made
	// the run fail.
	WouldFail bool `json:"would_fail"`

	State          State         `json:"state"`
	RulesEvaluated int           `json:"rules_evaluated"`
	RulesTotal     int           `json:"rules_total"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`

	// Trace is set when RunnerConfig.EnableTrace is true.
	Trace *Trace `json:"trace,omitempty"`
}

// EnforcedViolations returns the violations that count toward failure.
func (r *Result) EnforcedViolations() []*Violation {
	var out []*Violation
	for _, v := range r.Violations {
		if v.Enforced {
			out = append(out, v)
		}
	}
	return out
}

// CountBySeverity returns the number of violations per severity.
func (r *Result) CountBySeverity() map[model.Severity]int {
	counts := make(map[model.Severity]int)
	for _, v := range r.Violations {
		counts[v.Severity]++
	}
	return counts
}

// HighestSeverity returns the highest violation severity and false if
// there are no violations.
func (r *Result) HighestSeverity() (model.Severity, bool) {
	if len(r.Violations) == 0 {
		return model.SeverityInfo, false
	}
	highest := r.Violations[0].Severity
	for _, v := range r.Violations[1:] {
		if v.Severity > highest {
			highest = v.Severity
		}
	}
	return highest, true
}

// Trace records evaluation steps for debugging.
type Trace struct {
	// Steps contains individual trace steps.
	Steps []*TraceStep `json:"steps"`

	// TotalTime is the total evaluation time.
	TotalTime time.Duration `json:"total_time"`
}

// TraceStep represents a single step in the evaluation trace.
type TraceStep struct {
	// StepType identifies the type of step ("run_start", "rule_eval",
	// "violation", "fail_fast", "run_end").
	StepType string `json:"step_type"`

	// Rule is the rule being evaluated, if any.
	Rule string `json:"rule,omitempty"`

	// Details contains step-specific details.
	Details string `json:"details"`

	// Timestamp is when this step occurred.
	Timestamp time.Time `json:"timestamp"`

	// Duration is how long this step took.
	Duration time.Duration `json:"duration"`
}

func (t *Trace) add(stepType, rule, details string, at time.Time, d time.Duration) {
	if t == nil {
		return
	}
	t.Steps = append(t.Steps, &TraceStep{
		StepType:  stepType,
		Rule:      rule,
		Details:   details,
		Timestamp: at,
		Duration:  d,
	})
}
