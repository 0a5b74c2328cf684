package parser

import (
	"mercator-hq/vigil/pkg/rules/ast"
	rerrors "mercator-hq/vigil/pkg/rules/errors"
)

// DefaultMaxDepth bounds nesting of NOT and parentheses.
const DefaultMaxDepth = 64

// Parser builds ASTs from rule condition strings.
// A Parser holds only configuration and is safe for concurrent use.
type Parser struct {
	maxDepth int
}

// NewParser creates a parser with default settings.
func NewParser() *Parser {
	return &Parser{maxDepth: DefaultMaxDepth}
}

// WithMaxDepth sets the maximum nesting depth. Values <= 0 are ignored.
func (p *Parser) WithMaxDepth(depth int) *Parser {
	if depth > 0 {
		p.maxDepth = depth
	}
	return p
}

// Parse tokenizes and parses a condition with a default Parser.
func Parse(input string) (ast.Node, error) {
	return NewParser().Parse(input)
}

// Parse tokenizes input and builds its AST. It returns a *errors.TokenizeError
// for lexical problems and a *errors.ParseError for grammar violations,
// including trailing tokens and premature end of input.
func (p *Parser) Parse(input string) (ast.Node, error) {
	tokens, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	return p.ParseTokens(input, tokens)
}

// ParseTokens builds an AST from an already tokenized condition. input is
// used only for error snippets. tokens must end with TokenEOF.
func (p *Parser) ParseTokens(input string, tokens []Token) (ast.Node, error) {
	if len(tokens) == 0 || tokens[len(tokens)-1].Kind != TokenEOF {
		tokens = append(tokens, Token{Kind: TokenEOF, Pos: ast.PositionAt(len(input))})
	}

	s := &state{input: input, tokens: tokens, maxDepth: p.maxDepth}
	if s.peek().Kind == TokenEOF {
		return nil, s.errorf(s.peek(), "empty condition")
	}

	node, err := s.expression()
	if err != nil {
		return nil, err
	}
	if tok := s.peek(); tok.Kind != TokenEOF {
		return nil, s.errorf(tok, "unexpected %s %q after complete expression", tok.Kind, tok.Text)
	}
	return node, nil
}

type state struct {
	input    string
	tokens   []Token
	pos      int
	depth    int
	maxDepth int
}

func (s *state) peek() Token {
	return s.tokens[s.pos]
}

func (s *state) advance() Token {
	tok := s.tokens[s.pos]
	if tok.Kind != TokenEOF {
		s.pos++
	}
	return tok
}

func (s *state) isLogical(op string) bool {
	tok := s.peek()
	return tok.Kind == TokenLogical && tok.Op == op
}

func (s *state) errorf(tok Token, format string, args ...interface{}) error {
	return rerrors.NewParseError(s.input, tok.Pos.Offset, format, args...)
}

func (s *state) enter(tok Token) error {
	s.depth++
	if s.depth > s.maxDepth {
		return s.errorf(tok, "expression nesting exceeds maximum depth %d", s.maxDepth)
	}
	return nil
}

func (s *state) leave() {
	s.depth--
}

// expression := or_expr
func (s *state) expression() (ast.Node, error) {
	return s.orExpr()
}

// or_expr := and_expr (OR and_expr)*
func (s *state) orExpr() (ast.Node, error) {
	left, err := s.andExpr()
	if err != nil {
		return nil, err
	}
	for s.isLogical("OR") {
		s.advance()
		right, err := s.andExpr()
		if err != nil {
			return nil, err
		}
		left = &ast.LogicalExpression{Left: left, Operator: ast.Or, Right: right, Position: left.Pos()}
	}
	return left, nil
}

// and_expr := unary (AND unary)*
func (s *state) andExpr() (ast.Node, error) {
	left, err := s.unary()
	if err != nil {
		return nil, err
	}
	for s.isLogical("AND") {
		s.advance()
		right, err := s.unary()
		if err != nil {
			return nil, err
		}
		left = &ast.LogicalExpression{Left: left, Operator: ast.And, Right: right, Position: left.Pos()}
	}
	return left, nil
}

// unary := NOT unary | primary
func (s *state) unary() (ast.Node, error) {
	if !s.isLogical("NOT") {
		return s.primary()
	}
	tok := s.advance()
	if err := s.enter(tok); err != nil {
		return nil, err
	}
	defer s.leave()

	operand, err := s.unary()
	if err != nil {
		return nil, err
	}
	return ast.NewNot(operand, tok.Pos), nil
}

// primary := comparison | "(" expression ")"
func (s *state) primary() (ast.Node, error) {
	tok := s.peek()
	switch tok.Kind {
	case TokenLParen:
		s.advance()
		if err := s.enter(tok); err != nil {
			return nil, err
		}
		defer s.leave()

		node, err := s.expression()
		if err != nil {
			return nil, err
		}
		if closing := s.peek(); closing.Kind != TokenRParen {
			return nil, s.errorf(closing, "expected ')' to close '(' at %s, got %s", tok.Pos, closing.Kind)
		}
		s.advance()
		return node, nil
	case TokenFunctionCall:
		return s.comparison()
	case TokenEOF:
		return nil, s.errorf(tok, "unexpected end of input, expected comparison or '('")
	}
	return nil, s.errorf(tok, "unexpected %s %q, expected comparison or '('", tok.Kind, tok.Text)
}

// comparison := function_call operator (number | string)
func (s *state) comparison() (ast.Node, error) {
	fnTok := s.advance()
	fn := &ast.FunctionCall{Name: fnTok.Name, Field: fnTok.Field, Position: fnTok.Pos}

	opTok := s.peek()
	if opTok.Kind != TokenOperator {
		if opTok.Kind == TokenEOF {
			return nil, s.errorf(opTok, "unexpected end of input, expected operator after %s", fnTok.Text)
		}
		return nil, s.errorf(opTok, "expected operator after %s, got %s %q", fnTok.Text, opTok.Kind, opTok.Text)
	}
	s.advance()

	valTok := s.peek()
	var lit *ast.Literal
	switch valTok.Kind {
	case TokenNumber:
		lit = &ast.Literal{Value: valTok.Num, Position: valTok.Pos}
	case TokenString:
		lit = &ast.Literal{Value: valTok.Str, Position: valTok.Pos}
	case TokenEOF:
		return nil, s.errorf(valTok, "unexpected end of input, expected number or string after %q", opTok.Op)
	default:
		return nil, s.errorf(valTok, "expected number or string after %q, got %s %q", opTok.Op, valTok.Kind, valTok.Text)
	}
	s.advance()

	return &ast.Comparison{Left: fn, Operator: opTok.Op, Right: lit, Position: fnTok.Pos}, nil
}
