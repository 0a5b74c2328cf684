package errors

import (
	"fmt"
	"strings"

	"mercator-hq/vigil/pkg/rules/ast"
)

// ErrorType categorizes lint findings.
type ErrorType string

const (
	// ErrorTypeSyntax indicates a condition that does not tokenize or parse.
	ErrorTypeSyntax ErrorType = "syntax"

	// ErrorTypeStructural indicates a malformed policy document
	// (missing name, duplicate rule, empty condition).
	ErrorTypeStructural ErrorType = "structural"

	// ErrorTypeSemantic indicates a well-formed condition that references
	// unknown functions or operators.
	ErrorTypeSemantic ErrorType = "semantic"
)

// Error is a single lint finding with an optional rule, position and suggestion.
type Error struct {
	Type       ErrorType
	Message    string
	Rule       string
	Condition  string
	Position   ast.Position
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] ", e.Type)
	if e.Rule != "" {
		fmt.Fprintf(&sb, "rule %q: ", e.Rule)
	}
	sb.WriteString(e.Message)
	if snippet := Snippet(e.Condition, e.Position); snippet != "" {
		sb.WriteString("\n")
		sb.WriteString(snippet)
	}
	if e.Suggestion != "" {
		sb.WriteString("\n  = help: ")
		sb.WriteString(e.Suggestion)
	}
	return sb.String()
}

// ErrorList accumulates findings so that all problems in a policy are
// reported at once.
type ErrorList struct {
	Errors []*Error
}

// NewErrorList creates a new empty error list.
func NewErrorList() *ErrorList {
	return &ErrorList{Errors: make([]*Error, 0)}
}

// Add appends an error to the list.
func (el *ErrorList) Add(err *Error) {
	el.Errors = append(el.Errors, err)
}

// AddError creates and adds a new error.
func (el *ErrorList) AddError(errType ErrorType, rule, message string) {
	el.Add(&Error{Type: errType, Rule: rule, Message: message})
}

// HasErrors returns true if the list contains any errors.
func (el *ErrorList) HasErrors() bool {
	return len(el.Errors) > 0
}

// HasErrorType returns true if any error has the given type.
func (el *ErrorList) HasErrorType(errType ErrorType) bool {
	for _, err := range el.Errors {
		if err.Type == errType {
			return true
		}
	}
	return false
}

// Count returns the number of errors in the list.
func (el *ErrorList) Count() int {
	return len(el.Errors)
}

// Error implements the error interface.
func (el *ErrorList) Error() string {
	if !el.HasErrors() {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "found %d error(s):\n", el.Count())
	for i, err := range el.Errors {
		fmt.Fprintf(&sb, "\n%d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ToError returns nil if the list is empty, otherwise the list itself.
func (el *ErrorList) ToError() error {
	if !el.HasErrors() {
		return nil
	}
	return el
}
