package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/vigil/pkg/policy/model"
	"mercator-hq/vigil/pkg/rules/eval"
)

// stats used by most tests: every condition on "bad" fails, every
// condition on "good" passes.
var stats = eval.MapContext{
	"good": {"mean": 10, "missing_rate": 0},
	"bad":  {"mean": 0, "missing_rate": 0.5},
}

const (
	passing = "mean(good) > 1"
	failing = "mean(bad) > 1"
)

type ruleOpt func(*model.Rule)

func severity(s model.Severity) ruleOpt { return func(r *model.Rule) { r.Severity = s } }
func failFast() ruleOpt                 { return func(r *model.Rule) { r.FailFast = true } }
func dryRun() ruleOpt                   { return func(r *model.Rule) { r.Enforcement = model.DryRun } }
func exitCode(c int) ruleOpt            { return func(r *model.Rule) { r.ExitCode = &c } }

func rule(name, condition string, opts ...ruleOpt) *model.Rule {
	r := model.NewRule(name, condition)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func policy(rules ...*model.Rule) *model.AuditPolicy {
	p := model.NewAuditPolicy("test")
	p.Rules = rules
	return p
}

func newTestRunner(t *testing.T, opts ...Option) *Runner {
	t.Helper()
	r, err := NewRunner(nil, nil, nil, opts...)
	if err != nil {
		t.Fatalf("NewRunner() failed: %v", err)
	}
	return r
}

func violationNames(res *Result) []string {
	names := make([]string, len(res.Violations))
	for i, v := range res.Violations {
		names[i] = v.Rule
	}
	return names
}

func TestRunner_Run(t *testing.T) {
	tests := []struct {
		name            string
		policy          func() *model.AuditPolicy
		wantViolations  []string
		wantSuccess     bool
		wantExitCode    int
		wantWouldExit   int
		wantTerminated  string
		wantState       State
		wantDryRun      bool
		wantRulesEvaled int
	}{
		{
			name:            "all pass",
			policy:          func() *model.AuditPolicy { return policy(rule("a", passing), rule("b", passing)) },
			wantViolations:  []string{},
			wantSuccess:     true,
			wantExitCode:    0,
			wantState:       StateCompleted,
			wantRulesEvaled: 2,
		},
		{
			name: "fail-fast stops at first enforced failure",
			policy: func() *model.AuditPolicy {
				return policy(rule("critical", failing, failFast()), rule("normal", failing))
			},
			wantViolations:  []string{"critical"},
			wantSuccess:     false,
			wantExitCode:    2,
			wantWouldExit:   2,
			wantTerminated:  "critical",
			wantState:       StateTerminatedEarly,
			wantRulesEvaled: 1,
		},
		{
			name: "fail-fast disabled by policy",
			policy: func() *model.AuditPolicy {
				p := policy(rule("critical", failing, failFast(), severity(model.SeverityFatal)), rule("normal", failing))
				p.EnableFailFast = false
				return p
			},
			wantViolations:  []string{"critical", "normal"},
			wantSuccess:     false,
			wantExitCode:    3,
			wantWouldExit:   3,
			wantState:       StateCompleted,
			wantRulesEvaled: 2,
		},
		{
			name: "dry-run rule does not trigger fail-fast",
			policy: func() *model.AuditPolicy {
				return policy(rule("soft", failing, failFast(), dryRun()), rule("hard", failing, severity(model.SeverityWarn)))
			},
			wantViolations:  []string{"soft", "hard"},
			wantSuccess:     true,
			wantExitCode:    1,
			wantWouldExit:   2,
			wantState:       StateCompleted,
			wantRulesEvaled: 2,
		},
		{
			name: "dry-run policy never fails",
			policy: func() *model.AuditPolicy {
				p := policy(
					rule("a", failing, dryRun()),
					rule("b", failing, dryRun(), severity(model.SeverityFatal)),
				)
				p.DefaultEnforcement = model.DryRun
				return p
			},
			wantViolations:  []string{"a", "b"},
			wantSuccess:     true,
			wantExitCode:    0,
			wantWouldExit:   3,
			wantState:       StateCompleted,
			wantDryRun:      true,
			wantRulesEvaled: 2,
		},
		{
			name: "warnings only succeed with warning exit code",
			policy: func() *model.AuditPolicy {
				return policy(rule("w", failing, severity(model.SeverityWarn)), rule("i", failing, severity(model.SeverityInfo)))
			},
			wantViolations:  []string{"w", "i"},
			wantSuccess:     true,
			wantExitCode:    1,
			wantWouldExit:   1,
			wantState:       StateCompleted,
			wantRulesEvaled: 2,
		},
		{
			name: "info only exits with success code",
			policy: func() *model.AuditPolicy {
				return policy(rule("i", failing, severity(model.SeverityInfo)))
			},
			wantViolations:  []string{"i"},
			wantSuccess:     true,
			wantExitCode:    0,
			wantState:       StateCompleted,
			wantRulesEvaled: 1,
		},
		{
			name: "highest severity decides",
			policy: func() *model.AuditPolicy {
				return policy(
					rule("w", failing, severity(model.SeverityWarn)),
					rule("f", failing, severity(model.SeverityFatal)),
					rule("e", failing),
				)
			},
			wantViolations:  []string{"w", "f", "e"},
			wantSuccess:     false,
			wantExitCode:    3,
			wantWouldExit:   3,
			wantState:       StateCompleted,
			wantRulesEvaled: 3,
		},
		{
			name: "first rule of highest severity supplies explicit exit code",
			policy: func() *model.AuditPolicy {
				return policy(
					rule("w", failing, severity(model.SeverityWarn), exitCode(7)),
					rule("e1", failing, exitCode(42)),
					rule("e2", failing, exitCode(43)),
				)
			},
			wantViolations:  []string{"w", "e1", "e2"},
			wantSuccess:     false,
			wantExitCode:    42,
			wantWouldExit:   42,
			wantState:       StateCompleted,
			wantRulesEvaled: 3,
		},
		{
			name: "explicit exit code beats fail_fast entry",
			policy: func() *model.AuditPolicy {
				return policy(rule("stop", failing, failFast(), exitCode(9)), rule("later", failing))
			},
			wantViolations:  []string{"stop"},
			wantSuccess:     false,
			wantExitCode:    9,
			wantWouldExit:   9,
			wantTerminated:  "stop",
			wantState:       StateTerminatedEarly,
			wantRulesEvaled: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newTestRunner(t).Run(context.Background(), tt.policy(), stats)
			if err != nil {
				t.Fatalf("Run() failed: %v", err)
			}

			got := violationNames(res)
			if strings.Join(got, ",") != strings.Join(tt.wantViolations, ",") {
				t.Errorf("violations = %v, want %v", got, tt.wantViolations)
			}
			if res.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v", res.Success, tt.wantSuccess)
			}
			if res.ExitCode != tt.wantExitCode {
				t.Errorf("ExitCode = %d, want %d", res.ExitCode, tt.wantExitCode)
			}
			if res.WouldExitCode != tt.wantWouldExit {
				t.Errorf("WouldExitCode = %d, want %d", res.WouldExitCode, tt.wantWouldExit)
			}
			if res.TerminationRule != tt.wantTerminated || res.TerminatedEarly != (tt.wantTerminated != "") {
				t.Errorf("termination = %v %q, want %q", res.TerminatedEarly, res.TerminationRule, tt.wantTerminated)
			}
			if res.State != tt.wantState {
				t.Errorf("State = %v, want %v", res.State, tt.wantState)
			}
			if res.DryRun != tt.wantDryRun {
				t.Errorf("DryRun = %v, want %v", res.DryRun, tt.wantDryRun)
			}
			if res.RulesEvaluated != tt.wantRulesEvaled {
				t.Errorf("RulesEvaluated = %d, want %d", res.RulesEvaluated, tt.wantRulesEvaled)
			}
		})
	}
}

func TestRunner_DryRunPredictsEnforcedOutcome(t *testing.T) {
	tests := []struct {
		name     string
		policy   *model.AuditPolicy
		wantExit int
	}{
		{
			name: "fatal fail-fast before error",
			policy: policy(
				rule("critical", failing, failFast(), severity(model.SeverityFatal)),
				rule("normal", failing),
			),
			wantExit: 2,
		},
		{
			name: "fail-fast after a fatal",
			policy: policy(
				rule("fatal", failing, severity(model.SeverityFatal)),
				rule("stop", failing, failFast(), severity(model.SeverityWarn)),
				rule("later", failing, exitCode(42)),
			),
			wantExit: 2,
		},
		{
			name: "fail-fast rule passes",
			policy: policy(
				rule("guard", passing, failFast()),
				rule("w", failing, severity(model.SeverityWarn)),
				rule("f", failing, severity(model.SeverityFatal)),
			),
			wantExit: 3,
		},
		{
			name: "explicit exit code on fail-fast rule",
			policy: policy(
				rule("stop", failing, failFast(), exitCode(9)),
				rule("later", failing, severity(model.SeverityFatal)),
			),
			wantExit: 9,
		},
		{
			name:     "warnings only",
			policy:   policy(rule("w", failing, severity(model.SeverityWarn))),
			wantExit: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRunner(t)
			enforced, err := r.Run(context.Background(), tt.policy, stats)
			if err != nil {
				t.Fatalf("Run() failed: %v", err)
			}
			dry, err := r.Run(context.Background(), tt.policy.AsDryRun(), stats)
			if err != nil {
				t.Fatalf("Run(dry-run) failed: %v", err)
			}

			if enforced.ExitCode != tt.wantExit {
				t.Errorf("enforced ExitCode = %d, want %d", enforced.ExitCode, tt.wantExit)
			}
			if dry.ExitCode != 0 || !dry.Success {
				t.Errorf("dry-run ExitCode = %d Success = %v, want 0 and true", dry.ExitCode, dry.Success)
			}
			if dry.WouldExitCode != enforced.ExitCode {
				t.Errorf("dry-run WouldExitCode = %d, enforced ExitCode = %d", dry.WouldExitCode, enforced.ExitCode)
			}
			if dry.WouldFail != !enforced.Success {
				t.Errorf("dry-run WouldFail = %v, enforced Success = %v", dry.WouldFail, enforced.Success)
			}
			if dry.TerminatedEarly || dry.RulesEvaluated != len(tt.policy.Rules) {
				t.Errorf("dry-run should evaluate every rule: terminated=%v evaluated=%d", dry.TerminatedEarly, dry.RulesEvaluated)
			}
		})
	}
}

func TestRunner_ViolationFields(t *testing.T) {
	p := policy(
		rule("templated", failing, severity(model.SeverityWarn), dryRun()),
		rule("plain", failing),
	)
	p.Rules[0].Message = "{rule} ({severity}) got {value}"

	res, err := newTestRunner(t).Run(context.Background(), p, stats)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	v := res.Violations[0]
	if v.Message != "templated (warning) got false" {
		t.Errorf("Message = %q", v.Message)
	}
	if v.Enforced || !v.DryRun || v.Severity != model.SeverityWarn {
		t.Errorf("templated = %+v", v)
	}

	v = res.Violations[1]
	if v.Message != "rule 'plain' failed: mean(bad) > 1" {
		t.Errorf("Message = %q", v.Message)
	}
	if !v.Enforced || v.DryRun || v.Inconclusive || v.Errored() {
		t.Errorf("plain = %+v", v)
	}

	if got := len(res.EnforcedViolations()); got != 1 {
		t.Errorf("EnforcedViolations() = %d, want 1", got)
	}
	if sev, ok := res.HighestSeverity(); !ok || sev != model.SeverityError {
		t.Errorf("HighestSeverity() = %v, %v", sev, ok)
	}
}

func TestRunner_Inconclusive(t *testing.T) {
	p := policy(
		rule("missing", "mean(unknown_column) > 1"),
		rule("unknown_or_pass", "mean(unknown_column) > 1 OR mean(good) > 1"),
		rule("unknown_and_fail", "mean(unknown_column) > 1 AND mean(bad) > 1"),
	)

	res, err := newTestRunner(t).Run(context.Background(), p, stats)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if got := violationNames(res); strings.Join(got, ",") != "missing,unknown_and_fail" {
		t.Fatalf("violations = %v", got)
	}
	if !res.Violations[0].Inconclusive {
		t.Error("null result should be marked inconclusive")
	}
	if res.Violations[1].Inconclusive {
		t.Error("false AND null is false, not inconclusive")
	}
	if res.Success {
		t.Error("inconclusive enforced error rule should fail the run")
	}
}

func TestRunner_RuleErrors(t *testing.T) {
	tests := []struct {
		name      string
		condition string
		wantInErr string
	}{
		{"tokenize error", "mean(x) > 1 $", "unexpected character"},
		{"parse error", "mean(x) >", "expected number or string"},
		{"unknown function", "meen(good) > 1", "did you mean 'mean'?"},
		{"type mismatch", "mean(good) > 'abc'", "type mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := policy(rule("broken", tt.condition, severity(model.SeverityInfo)), rule("after", failing))
			res, err := newTestRunner(t).Run(context.Background(), p, stats)
			if err != nil {
				t.Fatalf("Run() should fold rule errors into violations, got %v", err)
			}

			if len(res.Violations) != 2 {
				t.Fatalf("violations = %v, want evaluation to continue", violationNames(res))
			}
			v := res.Violations[0]
			if v.Severity != model.SeverityFatal {
				t.Errorf("Severity = %v, want fatal", v.Severity)
			}
			if !strings.HasPrefix(v.Message, "rule evaluation error: ") {
				t.Errorf("Message = %q", v.Message)
			}
			if !v.Errored() || !strings.Contains(v.Error, tt.wantInErr) {
				t.Errorf("Error = %q, want substring %q", v.Error, tt.wantInErr)
			}
			if res.ExitCode != 3 {
				t.Errorf("ExitCode = %d, want fatal code 3", res.ExitCode)
			}
		})
	}
}

func TestRunner_RuleErrorFailFast(t *testing.T) {
	p := policy(rule("broken", "mean(", failFast()), rule("never", failing))
	res, err := newTestRunner(t).Run(context.Background(), p, stats)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if !res.TerminatedEarly || res.TerminationRule != "broken" || len(res.Violations) != 1 {
		t.Errorf("result = %+v", res)
	}
	if res.ExitCode != 2 {
		t.Errorf("ExitCode = %d, want fail_fast code 2", res.ExitCode)
	}
}

func TestRunner_DryRunRuleError(t *testing.T) {
	p := policy(rule("broken", "nope(x) > 1", dryRun()))
	res, err := newTestRunner(t).Run(context.Background(), p, stats)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	v := res.Violations[0]
	if v.Enforced || !v.DryRun {
		t.Errorf("dry-run rule error should not be enforced: %+v", v)
	}
	if !res.Success || res.ExitCode != 0 || res.WouldExitCode != 3 {
		t.Errorf("Success=%v ExitCode=%d WouldExitCode=%d", res.Success, res.ExitCode, res.WouldExitCode)
	}
}

func TestRunner_FunctionPanic(t *testing.T) {
	funcs := eval.DefaultFunctions().With("explode", func(eval.ProfilingContext, string) eval.Value {
		panic("boom")
	})
	r, err := NewRunner(nil, eval.New(funcs, nil), nil)
	if err != nil {
		t.Fatalf("NewRunner() failed: %v", err)
	}

	res, err := r.Run(context.Background(), policy(rule("p", "explode(x) > 1")), stats)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(res.Violations) != 1 || !strings.Contains(res.Violations[0].Error, "boom") {
		t.Errorf("violations = %+v", res.Violations)
	}
}

func TestRunner_CustomExitCodes(t *testing.T) {
	p := policy(rule("stop", failing, failFast()))
	p.ExitCodes[model.ExitKeyFailFast] = 64

	res, err := newTestRunner(t).Run(context.Background(), p, stats)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if res.ExitCode != 64 {
		t.Errorf("ExitCode = %d, want 64", res.ExitCode)
	}

	p = policy(rule("ok", passing))
	p.ExitCodes[model.ExitKeySuccess] = 0
	p.DefaultEnforcement = model.DryRun
	res, _ = newTestRunner(t).Run(context.Background(), p, stats)
	if res.ExitCode != 0 || res.WouldExitCode != 0 || res.WouldFail {
		t.Errorf("passing dry run = %+v", res)
	}
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestRunner(t).Run(ctx, policy(rule("a", passing)), stats)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if res != nil {
		t.Error("cancelled run should not return a result")
	}
}

func TestRunner_NilPolicy(t *testing.T) {
	if _, err := newTestRunner(t).Run(context.Background(), nil, stats); !errors.Is(err, ErrNilPolicy) {
		t.Errorf("error = %v, want ErrNilPolicy", err)
	}
}

func TestRunner_NilContextIsEmpty(t *testing.T) {
	res, err := newTestRunner(t).Run(context.Background(), policy(rule("a", passing)), nil)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(res.Violations) != 1 || !res.Violations[0].Inconclusive {
		t.Errorf("nil context should make every statistic missing: %+v", res.Violations)
	}
}

func TestRunner_MaxRules(t *testing.T) {
	r, err := NewRunner(DefaultRunnerConfig().WithMaxRules(1), nil, nil)
	if err != nil {
		t.Fatalf("NewRunner() failed: %v", err)
	}
	_, err = r.Run(context.Background(), policy(rule("a", passing), rule("b", passing)), stats)
	var tm *TooManyRulesError
	if !errors.As(err, &tm) || tm.Count != 2 {
		t.Errorf("error = %v, want *TooManyRulesError", err)
	}
}

func TestNewRunner_InvalidConfig(t *testing.T) {
	_, err := NewRunner(DefaultRunnerConfig().WithRuleTimeout(-time.Second), nil, nil)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

// stepClock advances by step on every call to Now.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

func TestRunner_RuleTimeout(t *testing.T) {
	clock := &stepClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), step: 2 * time.Second}
	r, err := NewRunner(DefaultRunnerConfig().WithRuleTimeout(time.Second), nil, nil, WithClock(clock))
	if err != nil {
		t.Fatalf("NewRunner() failed: %v", err)
	}

	res, err := r.Run(context.Background(), policy(rule("slow", passing)), stats)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(res.Violations) != 1 || !strings.Contains(res.Violations[0].Error, "exceeding timeout") {
		t.Fatalf("violations = %+v", res.Violations)
	}
	if res.Duration <= 0 {
		t.Errorf("Duration = %v, want > 0 from injected clock", res.Duration)
	}

	r, _ = NewRunner(DefaultRunnerConfig().WithRuleTimeout(0), nil, nil, WithClock(clock))
	res, _ = r.Run(context.Background(), policy(rule("slow", passing)), stats)
	if len(res.Violations) != 0 {
		t.Errorf("zero timeout should disable the check: %+v", res.Violations)
	}
}

func TestRunner_Trace(t *testing.T) {
	r, err := NewRunner(DefaultRunnerConfig().WithTrace(true), nil, nil)
	if err != nil {
		t.Fatalf("NewRunner() failed: %v", err)
	}
	res, err := r.Run(context.Background(), policy(rule("a", passing), rule("b", failing, failFast()), rule("c", passing)), stats)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if res.Trace == nil {
		t.Fatal("Trace should be set")
	}

	var kinds []string
	for _, s := range res.Trace.Steps {
		kinds = append(kinds, s.StepType)
	}
	want := "run_start,rule_eval,rule_eval,fail_fast,run_end"
	if strings.Join(kinds, ",") != want {
		t.Errorf("trace steps = %v, want %s", kinds, want)
	}

	res, _ = newTestRunner(t).Run(context.Background(), policy(rule("a", passing)), stats)
	if res.Trace != nil {
		t.Error("Trace should be nil when disabled")
	}
}

type fakeMetrics struct {
	mu       sync.Mutex
	rules    map[string]int
	runs     []string
	failFast []string
}

func (m *fakeMetrics) RecordRule(_, _, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rules == nil {
		m.rules = make(map[string]int)
	}
	m.rules[outcome]++
}

func (m *fakeMetrics) RecordRun(_, outcome string, _, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, outcome)
}

func (m *fakeMetrics) RecordFailFast(_, rule string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFast = append(m.failFast, rule)
}

func TestRunner_Metrics(t *testing.T) {
	m := &fakeMetrics{}
	r := newTestRunner(t, WithMetrics(m))

	p := policy(
		rule("pass", passing),
		rule("fail", failing, severity(model.SeverityWarn)),
		rule("null", "mean(nope) > 1", severity(model.SeverityWarn)),
		rule("err", "mean(", severity(model.SeverityWarn), dryRun()),
		rule("stop", failing, failFast()),
	)
	if _, err := r.Run(context.Background(), p, stats); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	want := map[string]int{OutcomePass: 1, OutcomeViolation: 2, OutcomeInconclusive: 1, OutcomeError: 1}
	for k, v := range want {
		if m.rules[k] != v {
			t.Errorf("rules[%s] = %d, want %d", k, m.rules[k], v)
		}
	}
	if len(m.runs) != 1 || m.runs[0] != RunFailure {
		t.Errorf("runs = %v", m.runs)
	}
	if len(m.failFast) != 1 || m.failFast[0] != "stop" {
		t.Errorf("failFast = %v", m.failFast)
	}
}

func TestRunner_ConcurrentRuns(t *testing.T) {
	r := newTestRunner(t)
	p := policy(
		rule("a", passing),
		rule("b", failing, severity(model.SeverityWarn)),
		rule("c", failing, failFast()),
		rule("d", failing),
	)

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Run(context.Background(), p, stats)
			if err != nil {
				errs <- err.Error()
				return
			}
			if got := strings.Join(violationNames(res), ","); got != "b,c" || res.ExitCode != 2 {
				errs <- got
			}
		}()
	}
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Errorf("concurrent run mismatch: %s", e)
	}
}
