package parser

import (
	"errors"
	"testing"

	rerrors "mercator-hq/vigil/pkg/rules/errors"
)

func TestTokenize(t *testing.T) {
	tokens, err := Tokenize(`missing_rate(email) < 0.1 and NOT mode(user.country) == "US"`)
	if err != nil {
		t.Fatalf("Tokenize() failed: %v", err)
	}

	want := []struct {
		kind TokenKind
		text string
	}{
		{TokenFunctionCall, "missing_rate(email)"},
		{TokenOperator, "<"},
		{TokenNumber, "0.1"},
		{TokenLogical, "and"},
		{TokenLogical, "NOT"},
		{TokenFunctionCall, "mode(user.country)"},
		{TokenOperator, "=="},
		{TokenString, `"US"`},
		{TokenEOF, ""},
	}

	if len(tokens) != len(want) {
		t.Fatalf("len(tokens) = %d, want %d", len(tokens), len(want))
	}
	for i, w := range want {
		if tokens[i].Kind != w.kind || tokens[i].Text != w.text {
			t.Errorf("tokens[%d] = %s %q, want %s %q", i, tokens[i].Kind, tokens[i].Text, w.kind, w.text)
		}
	}

	if tokens[0].Name != "missing_rate" || tokens[0].Field != "email" {
		t.Errorf("function call = %s(%s), want missing_rate(email)", tokens[0].Name, tokens[0].Field)
	}
	if tokens[3].Op != "AND" {
		t.Errorf("logical op = %q, want normalized %q", tokens[3].Op, "AND")
	}
	if tokens[5].Field != "user.country" {
		t.Errorf("dotted field = %q, want %q", tokens[5].Field, "user.country")
	}
	if tokens[7].Str != "US" {
		t.Errorf("string value = %q, want %q", tokens[7].Str, "US")
	}
	if tokens[2].Num != 0.1 {
		t.Errorf("number value = %v, want 0.1", tokens[2].Num)
	}
}

func TestTokenize_Operators(t *testing.T) {
	for _, op := range []string{"==", "!=", "<=", ">=", "<", ">"} {
		t.Run(op, func(t *testing.T) {
			tokens, err := Tokenize("mean(x)" + op + "1")
			if err != nil {
				t.Fatalf("Tokenize() failed: %v", err)
			}
			if tokens[1].Kind != TokenOperator || tokens[1].Op != op {
				t.Errorf("tokens[1] = %s %q, want operator %q", tokens[1].Kind, tokens[1].Op, op)
			}
		})
	}
}

func TestTokenize_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		offset int
	}{
		{"unknown character", "mean(x) ~ 1", 8},
		{"bare identifier", "mean(x) > limit", 10},
		{"unterminated string", "mode(x) == 'abc", 11},
		{"ampersand", "mean(x) > 1 && mean(y) > 2", 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.input)
			var te *rerrors.TokenizeError
			if !errors.As(err, &te) {
				t.Fatalf("Tokenize() error = %v, want *TokenizeError", err)
			}
			if te.Position.Offset != tt.offset {
				t.Errorf("Position.Offset = %d, want %d", te.Position.Offset, tt.offset)
			}
		})
	}
}

func TestCanonical_RoundTrip(t *testing.T) {
	inputs := []string{
		"missing_rate(email) < 0.1 AND mean(age) <= 60",
		"  mean( age )>=18.50 or   std(age)!=0",
		`NOT (mode(country) == "O'Brien") AND unique_count(id) > -3`,
		"((a(x) > 1))",
		"mode(status) != 'active'",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			first, err := Tokenize(input)
			if err != nil {
				t.Fatalf("Tokenize() failed: %v", err)
			}
			canonical := Canonical(first)
			second, err := Tokenize(canonical)
			if err != nil {
				t.Fatalf("Tokenize(%q) failed: %v", canonical, err)
			}
			if len(first) != len(second) {
				t.Fatalf("token count %d != %d for %q", len(first), len(second), canonical)
			}
			for i := range first {
				if !first[i].SameValue(second[i]) {
					t.Errorf("token %d: %+v != %+v", i, first[i], second[i])
				}
			}
		})
	}
}
