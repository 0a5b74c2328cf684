package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mercator-hq/vigil/pkg/policy/model"
	"mercator-hq/vigil/pkg/rules/eval"
)

// Rule outcome labels reported to MetricsRecorder.
const (
	OutcomePass         = "pass"
	OutcomeViolation    = "violation"
	OutcomeInconclusive = "inconclusive"
	OutcomeError        = "error"
)

// Run outcome labels reported to MetricsRecorder.
const (
	RunSuccess = "success"
	RunFailure = "failure"
	RunDryRun  = "dry_run"
)

// MetricsRecorder receives per-rule and per-run measurements.
type MetricsRecorder interface {
	RecordRule(policy, rule, outcome string, duration time.Duration)
	RecordRun(policy, outcome string, exitCode, violations int, duration time.Duration)
	RecordFailFast(policy, rule string)
}

// SpanStarter starts tracing spans. trace.Tracer and the telemetry
// tracing.Tracer both satisfy it.
type SpanStarter interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type noopMetrics struct{}

func (noopMetrics) RecordRule(string, string, string, time.Duration)  {}
func (noopMetrics) RecordRun(string, string, int, int, time.Duration) {}
func (noopMetrics) RecordFailFast(string, string)                     {}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(r *Runner) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithTracer sets the span starter used for run and rule spans.
func WithTracer(t SpanStarter) Option {
	return func(r *Runner) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithClock sets the clock used for timestamps, durations and the rule
// timeout check.
func WithClock(c Clock) Option {
	return func(r *Runner) {
		if c != nil {
			r.clock = c
		}
	}
}

// Runner executes audit policies. A Runner is immutable after
// construction and safe for concurrent use.
type Runner struct {
	config    *RunnerConfig
	evaluator *eval.Evaluator
	logger    *slog.Logger
	metrics   MetricsRecorder
	tracer    SpanStarter
	clock     Clock
}

// NewRunner creates an audit runner. A nil config uses
// DefaultRunnerConfig, a nil evaluator uses the default registries and a
// nil logger uses slog.Default().
func NewRunner(config *RunnerConfig, evaluator *eval.Evaluator, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if config == nil {
		config = DefaultRunnerConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if evaluator == nil {
		evaluator = eval.New(nil, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runner{
		config:    config,
		evaluator: evaluator,
		logger:    logger,
		metrics:   noopMetrics{},
		tracer:    noop.NewTracerProvider().Tracer("vigil/engine"),
		clock:     systemClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Evaluator returns the evaluator used for rule conditions.
func (r *Runner) Evaluator() *eval.Evaluator {
	return r.evaluator
}

// Run evaluates policy's rules in order against pctx. A nil pctx behaves
// like eval.EmptyContext.
//
// Rule failures never make Run return an error: parse and evaluation
// errors become FATAL violations. Run returns an error only for a nil
// policy, a policy over MaxRules, or a cancelled ctx.
func (r *Runner) Run(ctx context.Context, policy *model.AuditPolicy, pctx eval.ProfilingContext) (*Result, error) {
	if policy == nil {
		return nil, ErrNilPolicy
	}
	if r.config.MaxRules > 0 && len(policy.Rules) > r.config.MaxRules {
		return nil, &TooManyRulesError{Policy: policy.Name, Count: len(policy.Rules), Max: r.config.MaxRules}
	}
	if pctx == nil {
		pctx = eval.EmptyContext{}
	}

	ctx, span := r.tracer.Start(ctx, "audit.run", trace.WithAttributes(
		attribute.String("audit.policy", policy.Name),
		attribute.Int("audit.rules", len(policy.Rules)),
		attribute.Bool("audit.dry_run", policy.IsDryRun()),
	))
	defer span.End()

	start := r.clock.Now()
	res := &Result{
		Policy:     policy.Name,
		State:      StateRunning,
		DryRun:     policy.IsDryRun(),
		RulesTotal: len(policy.Rules),
		StartedAt:  start,
	}
	if r.config.EnableTrace {
		res.Trace = &Trace{}
	}
	res.Trace.add("run_start", "", fmt.Sprintf("policy %q with %d rules", policy.Name, len(policy.Rules)), start, 0)

	var termination *Violation
	// would tracks the run as it would go with every rule enforced: a
	// dry-run fail-fast violation ends it even though evaluation goes on.
	var wouldStop *Violation
	wouldEnd := -1
	for _, rule := range policy.Rules {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "audit cancelled")
			r.logger.WarnContext(ctx, "audit cancelled",
				"policy", policy.Name,
				"rules_evaluated", res.RulesEvaluated,
				"error", err,
			)
			return nil, err
		}

		v := r.evaluateRule(ctx, policy, rule, pctx, res.Trace)
		res.RulesEvaluated++
		if v == nil {
			continue
		}
		res.Violations = append(res.Violations, v)

		if wouldStop == nil && rule.FailFast && policy.EnableFailFast {
			wouldStop = v
			wouldEnd = len(res.Violations)
		}
		if v.Enforced && rule.FailFast && policy.EnableFailFast {
			res.State = StateTerminatedEarly
			res.TerminatedEarly = true
			res.TerminationRule = rule.Name
			termination = v

			res.Trace.add("fail_fast", rule.Name, "remaining rules skipped", r.clock.Now(), 0)
			r.metrics.RecordFailFast(policy.Name, rule.Name)
			r.logger.InfoContext(ctx, "fail-fast triggered",
				"policy", policy.Name,
				"rule", rule.Name,
				"skipped", len(policy.Rules)-res.RulesEvaluated,
			)
			break
		}
	}
	if res.State == StateRunning {
		res.State = StateCompleted
	}

	would := res.Violations
	if wouldEnd >= 0 {
		would = res.Violations[:wouldEnd]
	}
	finalize(policy, res, termination, would, wouldStop)
	res.Duration = r.clock.Now().Sub(start)
	if res.Trace != nil {
		res.Trace.TotalTime = res.Duration
		res.Trace.add("run_end", "", fmt.Sprintf("state=%s exit_code=%d", res.State, res.ExitCode), r.clock.Now(), res.Duration)
	}

	outcome := RunSuccess
	switch {
	case res.DryRun:
		outcome = RunDryRun
	case !res.Success:
		outcome = RunFailure
	}
	r.metrics.RecordRun(policy.Name, outcome, res.ExitCode, len(res.Violations), res.Duration)

	span.SetAttributes(
		attribute.String("audit.outcome", outcome),
		attribute.Int("audit.exit_code", res.ExitCode),
		attribute.Int("audit.violations", len(res.Violations)),
		attribute.Bool("audit.terminated_early", res.TerminatedEarly),
	)
	if !res.Success {
		span.SetStatus(codes.Error, "audit failed")
	}

	r.logger.InfoContext(ctx, "audit completed",
		"policy", policy.Name,
		"state", res.State.String(),
		"success", res.Success,
		"dry_run", res.DryRun,
		"violations", len(res.Violations),
		"exit_code", res.ExitCode,
		"duration", res.Duration,
	)
	return res, nil
}

// evaluateRule returns the rule's violation, or nil if it passed.
func (r *Runner) evaluateRule(ctx context.Context, policy *model.AuditPolicy, rule *model.Rule, pctx eval.ProfilingContext, tr *Trace) *Violation {
	_, span := r.tracer.Start(ctx, "audit.rule", trace.WithAttributes(
		attribute.String("audit.rule", rule.Name),
		attribute.String("audit.severity", rule.Severity.String()),
		attribute.Bool("audit.enforced", rule.Enforced()),
	))
	defer span.End()

	start := r.clock.Now()
	value, err := r.evaluate(rule, pctx)
	elapsed := r.clock.Now().Sub(start)
	if err == nil && r.config.RuleTimeout > 0 && elapsed > r.config.RuleTimeout {
		err = &TimeoutError{Rule: rule.Name, Timeout: r.config.RuleTimeout, Elapsed: elapsed}
	}

	enforced := rule.Enforced()
	var v *Violation
	var outcome string

	switch {
	case err != nil:
		outcome = OutcomeError
		v = &Violation{
			Rule:     rule.Name,
			Severity: model.SeverityFatal,
			Message:  "rule evaluation error: " + err.Error(),
			Enforced: enforced,
			DryRun:   !enforced,
			Error:    err.Error(),
			rule:     rule,
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.WarnContext(ctx, "rule evaluation failed",
			"policy", policy.Name,
			"rule", rule.Name,
			"condition", rule.Condition,
			"error", err,
		)

	case value.Truthy():
		outcome = OutcomePass

	default:
		outcome = OutcomeViolation
		if value.IsNull() {
			outcome = OutcomeInconclusive
		}
		v = &Violation{
			Rule:         rule.Name,
			Severity:     rule.Severity,
			Message:      rule.RenderMessage(value.String()),
			Enforced:     enforced,
			DryRun:       !enforced,
			Inconclusive: value.IsNull(),
			rule:         rule,
		}
	}

	span.SetAttributes(attribute.String("audit.outcome", outcome))
	r.metrics.RecordRule(policy.Name, rule.Name, outcome, elapsed)
	tr.add("rule_eval", rule.Name, fmt.Sprintf("%s: %s", outcome, value), start, elapsed)

	r.logger.DebugContext(ctx, "rule evaluated",
		"policy", policy.Name,
		"rule", rule.Name,
		"outcome", outcome,
		"enforced", enforced,
		"duration", elapsed,
	)
	return v
}

// evaluate parses (once per rule) and evaluates the rule condition.
// Panics from custom registry functions are returned as errors.
func (r *Runner) evaluate(rule *model.Rule, pctx eval.ProfilingContext) (value eval.Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			value, err = eval.Null(), fmt.Errorf("panic during evaluation: %v", p)
		}
	}()

	node, err := rule.AST()
	if err != nil {
		return eval.Null(), err
	}
	return r.evaluator.Evaluate(node, pctx)
}

// finalize sets Success, DryRun exit handling and the exit codes. would
// and wouldStop describe the run with enforcement in effect and decide
// WouldFail and WouldExitCode.
func finalize(policy *model.AuditPolicy, res *Result, termination *Violation, would []*Violation, wouldStop *Violation) {
	failed := false
	for _, v := range res.Violations {
		if v.Enforced && v.Severity.AtLeast(model.SeverityError) {
			failed = true
		}
	}
	for _, v := range would {
		if v.Severity.AtLeast(model.SeverityError) {
			res.WouldFail = true
		}
	}
	res.Success = res.DryRun || !failed

	res.WouldExitCode = policy.ResolveExitCode(exitTrigger(would, wouldStop, false))
	if res.DryRun {
		res.ExitCode = policy.ExitCode(model.ExitKeySuccess)
		return
	}
	res.ExitCode = policy.ResolveExitCode(exitTrigger(res.Violations, termination, true))
}

// exitTrigger picks the violation that decides the exit code: the
// fail-fast violation if there was one, otherwise the first violation of
// the highest severity. enforcedOnly skips dry-run violations.
func exitTrigger(violations []*Violation, termination *Violation, enforcedOnly bool) *model.ExitTrigger {
	if termination != nil {
		return &model.ExitTrigger{Rule: termination.rule, Severity: termination.Severity, FailFast: true}
	}

	var best *Violation
	for _, v := range violations {
		if enforcedOnly && !v.Enforced {
			continue
		}
		if best == nil || v.Severity > best.Severity {
			best = v
		}
	}
	if best == nil {
		return nil
	}
	return &model.ExitTrigger{Rule: best.rule, Severity: best.Severity}
}
