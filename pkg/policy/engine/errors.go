package engine

import (
	"errors"
	"fmt"
	"time"
)

// Common sentinel errors
var (
	// ErrInvalidConfig indicates invalid runner configuration.
	ErrInvalidConfig = errors.New("invalid runner configuration")

	// ErrNilPolicy is returned when Run is called without a policy.
	ErrNilPolicy = errors.New("policy cannot be nil")
)

// TimeoutError indicates a rule evaluation exceeded RuleTimeout.
type TimeoutError struct {
	Rule    string
	Timeout time.Duration
	Elapsed time.Duration
}

// Error returns the error message.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("rule %s: evaluation took %v, exceeding timeout %v", e.Rule, e.Elapsed, e.Timeout)
}

// TooManyRulesError is returned when a policy exceeds RunnerConfig.MaxRules.
type TooManyRulesError struct {
	Policy string
	Count  int
	Max    int
}

// Error returns the error message.
func (e *TooManyRulesError) Error() string {
	return fmt.Sprintf("policy %s has %d rules, maximum is %d", e.Policy, e.Count, e.Max)
}
