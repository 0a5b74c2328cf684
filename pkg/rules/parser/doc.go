// Package parser turns rule condition strings into ASTs.
//
// Parsing is two steps: Tokenize splits the string into a flat token
// sequence, and Parser builds the tree using the precedence
//
//	OR < AND < NOT < comparison / parenthesized expression
//
// Both steps are pure, so repeated parses of the same condition yield
// structurally equal trees. Cache exploits this to share parsed trees across
// concurrent audit runs without locking.
//
// # Basic Usage
//
//	node, err := parser.Parse("missing_rate(email) < 0.1 AND mean(age) <= 60")
//	if err != nil {
//	    var pe *errors.ParseError
//	    ...
//	}
package parser
