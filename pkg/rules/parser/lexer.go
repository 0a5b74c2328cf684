package parser

import (
	"strconv"
	"strings"

	"mercator-hq/vigil/pkg/rules/ast"
	rerrors "mercator-hq/vigil/pkg/rules/errors"
)

var comparisonOperators = []string{"==", "!=", "<=", ">=", "<", ">"}

// Tokenize splits a rule condition into tokens. The returned slice always
// ends with a TokenEOF. Whitespace between tokens is skipped.
//
// Lexical classes are tried in priority order: function call, comparison
// operator, number, quoted string, parenthesis, logical keyword.
func Tokenize(input string) ([]Token, error) {
	l := &lexer{input: input}
	var tokens []Token

	for {
		l.skipSpace()
		if l.pos >= len(l.input) {
			break
		}
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}

	tokens = append(tokens, Token{Kind: TokenEOF, Pos: ast.PositionAt(len(input))})
	return tokens, nil
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos++
	}
}

func (l *lexer) next() (Token, error) {
	start := l.pos

	if tok, ok := l.functionCall(); ok {
		return tok, nil
	}
	if tok, ok := l.operator(); ok {
		return tok, nil
	}
	if tok, ok := l.number(); ok {
		return tok, nil
	}

	c := l.input[start]
	switch {
	case c == '\'' || c == '"':
		return l.quoted()
	case c == '(':
		l.pos++
		return Token{Kind: TokenLParen, Text: "(", Pos: ast.PositionAt(start)}, nil
	case c == ')':
		l.pos++
		return Token{Kind: TokenRParen, Text: ")", Pos: ast.PositionAt(start)}, nil
	case isIdentStart(c):
		end := scanIdent(l.input, start)
		word := l.input[start:end]
		switch kw := strings.ToUpper(word); kw {
		case "AND", "OR", "NOT":
			l.pos = end
			return Token{Kind: TokenLogical, Text: word, Op: kw, Pos: ast.PositionAt(start)}, nil
		}
		return Token{}, rerrors.NewTokenizeError(l.input, start, "unexpected identifier %q", word)
	}

	return Token{}, rerrors.NewTokenizeError(l.input, start, "unexpected character %q", rune(c))
}

// functionCall matches ident(ident[.ident]*). Whitespace is allowed inside
// the parentheses but not between the name and "(".
func (l *lexer) functionCall() (Token, bool) {
	start := l.pos
	if !isIdentStart(l.input[start]) {
		return Token{}, false
	}
	nameEnd := scanIdent(l.input, start)
	if nameEnd >= len(l.input) || l.input[nameEnd] != '(' {
		return Token{}, false
	}

	i := skipSpaceAt(l.input, nameEnd+1)
	fieldStart := i
	for {
		if i >= len(l.input) || !isIdentStart(l.input[i]) {
			return Token{}, false
		}
		i = scanIdent(l.input, i)
		if i < len(l.input) && l.input[i] == '.' {
			i++
			continue
		}
		break
	}
	fieldEnd := i
	i = skipSpaceAt(l.input, i)
	if i >= len(l.input) || l.input[i] != ')' {
		return Token{}, false
	}
	i++

	l.pos = i
	return Token{
		Kind:  TokenFunctionCall,
		Text:  l.input[start:i],
		Name:  l.input[start:nameEnd],
		Field: l.input[fieldStart:fieldEnd],
		Pos:   ast.PositionAt(start),
	}, true
}

func (l *lexer) operator() (Token, bool) {
	rest := l.input[l.pos:]
	for _, op := range comparisonOperators {
		if strings.HasPrefix(rest, op) {
			tok := Token{Kind: TokenOperator, Text: op, Op: op, Pos: ast.PositionAt(l.pos)}
			l.pos += len(op)
			return tok, true
		}
	}
	return Token{}, false
}

// number matches -?digits(.digits)?
func (l *lexer) number() (Token, bool) {
	start := l.pos
	i := start
	if i < len(l.input) && l.input[i] == '-' {
		i++
	}
	digitsStart := i
	for i < len(l.input) && isDigit(l.input[i]) {
		i++
	}
	if i == digitsStart {
		return Token{}, false
	}
	if i+1 < len(l.input) && l.input[i] == '.' && isDigit(l.input[i+1]) {
		i++
		for i < len(l.input) && isDigit(l.input[i]) {
			i++
		}
	}
	// A number running into an identifier ("10abc") is not a number.
	if i < len(l.input) && isIdentStart(l.input[i]) {
		return Token{}, false
	}

	text := l.input[start:i]
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Token{}, false
	}
	l.pos = i
	return Token{Kind: TokenNumber, Text: text, Num: f, Pos: ast.PositionAt(start)}, true
}

func (l *lexer) quoted() (Token, error) {
	start := l.pos
	quote := l.input[start]
	end := strings.IndexByte(l.input[start+1:], quote)
	if end < 0 {
		return Token{}, rerrors.NewTokenizeError(l.input, start, "unterminated string literal")
	}
	end += start + 1
	l.pos = end + 1
	return Token{
		Kind: TokenString,
		Text: l.input[start:l.pos],
		Str:  l.input[start+1 : end],
		Pos:  ast.PositionAt(start),
	}, nil
}

func scanIdent(s string, i int) int {
	for i < len(s) && isIdentPart(s[i]) {
		i++
	}
	return i
}

func skipSpaceAt(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
