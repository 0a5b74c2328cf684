// Package errors provides the error types raised while reading rule conditions.
//
// TokenizeError and ParseError both carry the offending position and a
// one-line snippet with a caret, so lint output can point at the problem:
//
//	[parse] expected operator after mean(age)
//	  mean(age) 10
//	            ^
package errors

import (
	"errors"
	"fmt"
	"strings"

	"mercator-hq/vigil/pkg/rules/ast"
)

// ErrSyntax is wrapped by every tokenize and parse error.
var ErrSyntax = errors.New("rule syntax error")

// TokenizeError is returned when no token class matches at some position.
type TokenizeError struct {
	Input    string
	Position ast.Position
	Message  string
}

// Error implements the error interface.
func (e *TokenizeError) Error() string {
	return formatError("tokenize", e.Message, e.Input, e.Position)
}

// Unwrap returns ErrSyntax.
func (e *TokenizeError) Unwrap() error {
	return ErrSyntax
}

// ParseError is returned when the token stream does not match the grammar.
type ParseError struct {
	Input    string
	Position ast.Position
	Message  string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return formatError("parse", e.Message, e.Input, e.Position)
}

// Unwrap returns ErrSyntax.
func (e *ParseError) Unwrap() error {
	return ErrSyntax
}

// NewTokenizeError creates a TokenizeError at the given byte offset.
func NewTokenizeError(input string, offset int, format string, args ...interface{}) *TokenizeError {
	return &TokenizeError{
		Input:    input,
		Position: ast.PositionAt(offset),
		Message:  fmt.Sprintf(format, args...),
	}
}

// NewParseError creates a ParseError at the given byte offset.
func NewParseError(input string, offset int, format string, args ...interface{}) *ParseError {
	return &ParseError{
		Input:    input,
		Position: ast.PositionAt(offset),
		Message:  fmt.Sprintf(format, args...),
	}
}

func formatError(kind, msg, input string, pos ast.Position) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s at %s", kind, msg, pos)
	if snippet := Snippet(input, pos); snippet != "" {
		b.WriteString("\n")
		b.WriteString(snippet)
	}
	return b.String()
}

// Snippet renders the input with a caret under the given position.
// It returns "" when the input is empty or the position is invalid.
func Snippet(input string, pos ast.Position) string {
	if input == "" || !pos.IsValid() {
		return ""
	}
	offset := pos.Offset
	if offset > len(input) {
		offset = len(input)
	}
	return fmt.Sprintf("  %s\n  %s^", input, strings.Repeat(" ", offset))
}
