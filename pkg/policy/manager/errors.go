package manager

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPolicyResolution is wrapped by errors that abort resolution:
// PolicyNotFoundError and CyclicPolicyError.
var ErrPolicyResolution = errors.New("policy resolution failed")

// LoadError reports a policy file or directory that could not be read.
type LoadError struct {
	FilePath string
	Message  string
	Cause    error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("cannot read policy %q: %s", e.FilePath, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Cause }

// ParseError reports a malformed policy document. Line and Column are
// 1-based and zero when unknown.
type ParseError struct {
	FilePath string
	Line     int
	Column   int
	Message  string
	Cause    error
}

func (e *ParseError) Error() string {
	loc := e.FilePath
	if e.Line > 0 {
		loc += fmt.Sprintf(":%d", e.Line)
		if e.Column > 0 {
			loc += fmt.Sprintf(":%d", e.Column)
		}
	}
	msg := fmt.Sprintf("invalid policy %s: %s", loc, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Cause }

// PolicyNotFoundError is returned when a name matches no file in the
// configured search paths.
type PolicyNotFoundError struct {
	Name        string
	SearchPaths []string
}

func (e *PolicyNotFoundError) Error() string {
	return fmt.Sprintf("policy %q not found (searched: %s)", e.Name, strings.Join(e.SearchPaths, ", "))
}

func (e *PolicyNotFoundError) Unwrap() error { return ErrPolicyResolution }

// CyclicPolicyError is returned when a policy transitively extends itself.
// Chain starts and ends with the repeated policy.
type CyclicPolicyError struct {
	Chain []string
}

func (e *CyclicPolicyError) Error() string {
	return "cyclic policy inheritance: " + strings.Join(e.Chain, " -> ")
}

func (e *CyclicPolicyError) Unwrap() error { return ErrPolicyResolution }
