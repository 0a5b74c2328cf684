package parser

import (
	"strconv"
	"strings"

	"mercator-hq/vigil/pkg/rules/ast"
)

// TokenKind identifies the lexical class of a token.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenFunctionCall
	TokenOperator
	TokenNumber
	TokenString
	TokenLParen
	TokenRParen
	TokenLogical
)

var tokenKindNames = map[TokenKind]string{
	TokenEOF:          "end of input",
	TokenFunctionCall: "function call",
	TokenOperator:     "operator",
	TokenNumber:       "number",
	TokenString:       "string",
	TokenLParen:       "'('",
	TokenRParen:       "')'",
	TokenLogical:      "logical operator",
}

func (k TokenKind) String() string {
	if s, ok := tokenKindNames[k]; ok {
		return s
	}
	return "token(" + strconv.Itoa(int(k)) + ")"
}

// Token is one lexical element of a rule condition.
// Only the fields relevant to Kind are set.
type Token struct {
	Kind TokenKind
	Text string // Raw source text
	Pos  ast.Position

	Name  string  // FunctionCall: function name
	Field string  // FunctionCall: field argument
	Op    string  // Operator: comparison symbol; Logical: AND, OR or NOT
	Num   float64 // Number
	Str   string  // String: unquoted value
}

// Canonical returns the token in normalized form: keywords upper-cased,
// numbers without redundant zeros, strings single-quoted where possible.
func (t Token) Canonical() string {
	switch t.Kind {
	case TokenFunctionCall:
		return t.Name + "(" + t.Field + ")"
	case TokenOperator, TokenLogical:
		return t.Op
	case TokenNumber:
		return ast.FormatLiteral(t.Num)
	case TokenString:
		return ast.FormatLiteral(t.Str)
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	}
	return ""
}

// SameValue reports whether two tokens have the same kind and value,
// ignoring raw text and position.
func (t Token) SameValue(o Token) bool {
	return t.Kind == o.Kind && t.Name == o.Name && t.Field == o.Field &&
		t.Op == o.Op && t.Num == o.Num && t.Str == o.Str
}

// Canonical reconstructs a rule string from tokens. Tokenizing the result
// yields a token sequence with the same kinds and values.
func Canonical(tokens []Token) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t.Kind == TokenEOF {
			continue
		}
		parts = append(parts, t.Canonical())
	}
	return strings.Join(parts, " ")
}
