package engine

import (
	"fmt"
	"time"
)

// RunnerConfig contains configuration for the audit runner.
type RunnerConfig struct {
	// RuleTimeout bounds the evaluation of a single rule. A rule that
	// overruns is reported as a rule evaluation error. Zero disables the
	// check.
	// Default: 1s.
	RuleTimeout time.Duration

	// EnableTrace records a step-by-step trace in each Result.
	// Default: false.
	EnableTrace bool

	// MaxRules rejects policies with more rules than this before running.
	// Zero means unlimited.
	// Default: 1000.
	MaxRules int
}

// DefaultRunnerConfig returns the default runner configuration.
func DefaultRunnerConfig() *RunnerConfig {
	return &RunnerConfig{
		RuleTimeout: time.Second,
		EnableTrace: false,
		MaxRules:    1000,
	}
}

// Validate validates the runner configuration.
func (c *RunnerConfig) Validate() error {
	if c.RuleTimeout < 0 {
		return fmt.Errorf("%w: rule timeout cannot be negative", ErrInvalidConfig)
	}
	if c.MaxRules < 0 {
		return fmt.Errorf("%w: max rules cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// WithRuleTimeout sets the per-rule timeout.
func (c *RunnerConfig) WithRuleTimeout(timeout time.Duration) *RunnerConfig {
	c.RuleTimeout = timeout
	return c
}

// WithTrace enables or disables evaluation tracing.
func (c *RunnerConfig) WithTrace(enabled bool) *RunnerConfig {
	c.EnableTrace = enabled
	return c
}

// WithMaxRules sets the maximum number of rules per policy.
func (c *RunnerConfig) WithMaxRules(max int) *RunnerConfig {
	c.MaxRules = max
	return c
}
