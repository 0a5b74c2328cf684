package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is an element of a parsed rule condition.
// The set of implementations is closed: Literal, FunctionCall, Comparison
// and LogicalExpression.
type Node interface {
	// Pos returns the position of the node's first token.
	Pos() Position

	node()
}

// LogicalOp is a boolean combinator.
type LogicalOp string

const (
	// And is true when both operands are true.
	And LogicalOp = "AND"

	// Or is true when either operand is true.
	Or LogicalOp = "OR"

	// Not negates its single operand.
	Not LogicalOp = "NOT"
)

// IsValid reports whether op is a known logical operator.
func (op LogicalOp) IsValid() bool {
	switch op {
	case And, Or, Not:
		return true
	}
	return false
}

// Literal is a constant value, either float64 or string.
type Literal struct {
	Value    interface{}
	Position Position
}

// FunctionCall looks up a statistic for a field, e.g. mean(age).
type FunctionCall struct {
	Name     string
	Field    string
	Position Position
}

// Comparison compares the result of a function call against a literal.
type Comparison struct {
	Left     Node
	Operator string
	Right    Node
	Position Position
}

// LogicalExpression combines boolean sub-expressions.
// For NOT, the operand is stored in Left and Right is nil.
type LogicalExpression struct {
	Left     Node
	Operator LogicalOp
	Right    Node
	Position Position
}

func (n *Literal) Pos() Position           { return n.Position }
func (n *FunctionCall) Pos() Position      { return n.Position }
func (n *Comparison) Pos() Position        { return n.Position }
func (n *LogicalExpression) Pos() Position { return n.Position }

func (*Literal) node()           {}
func (*FunctionCall) node()      {}
func (*Comparison) node()        {}
func (*LogicalExpression) node() {}

// IsUnary reports whether the expression is a NOT.
func (n *LogicalExpression) IsUnary() bool {
	return n.Operator == Not
}

// NewNot builds a NOT expression around operand.
func NewNot(operand Node, pos Position) *LogicalExpression {
	return &LogicalExpression{Left: operand, Operator: Not, Position: pos}
}

// String renders a node in canonical, fully parenthesized form.
// Two conditions that parse to the same tree render identically.
func String(n Node) string {
	var b strings.Builder
	writeNode(&b, n)
	return b.String()
}

func writeNode(b *strings.Builder, n Node) {
	switch n := n.(type) {
	case *Literal:
		b.WriteString(FormatLiteral(n.Value))
	case *FunctionCall:
		fmt.Fprintf(b, "%s(%s)", n.Name, n.Field)
	case *Comparison:
		writeNode(b, n.Left)
		b.WriteString(" ")
		b.WriteString(n.Operator)
		b.WriteString(" ")
		writeNode(b, n.Right)
	case *LogicalExpression:
		if n.IsUnary() {
			b.WriteString("NOT (")
			writeNode(b, n.Left)
			b.WriteString(")")
			return
		}
		b.WriteString("(")
		writeNode(b, n.Left)
		b.WriteString(") ")
		b.WriteString(string(n.Operator))
		b.WriteString(" (")
		writeNode(b, n.Right)
		b.WriteString(")")
	case nil:
		b.WriteString("<nil>")
	}
}

// FormatLiteral renders a literal value the way it would appear in a rule.
func FormatLiteral(v interface{}) string {
	switch v := v.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		if strings.Contains(v, "'") {
			return `"` + v + `"`
		}
		return "'" + v + "'"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Equal reports whether two trees have the same shape and values.
// Positions are ignored.
func Equal(a, b Node) bool {
	switch a := a.(type) {
	case *Literal:
		bl, ok := b.(*Literal)
		return ok && a.Value == bl.Value
	case *FunctionCall:
		bf, ok := b.(*FunctionCall)
		return ok && a.Name == bf.Name && a.Field == bf.Field
	case *Comparison:
		bc, ok := b.(*Comparison)
		return ok && a.Operator == bc.Operator && Equal(a.Left, bc.Left) && Equal(a.Right, bc.Right)
	case *LogicalExpression:
		be, ok := b.(*LogicalExpression)
		if !ok || a.Operator != be.Operator || !Equal(a.Left, be.Left) {
			return false
		}
		if a.Right == nil || be.Right == nil {
			return a.Right == nil && be.Right == nil
		}
		return Equal(a.Right, be.Right)
	case nil:
		return b == nil
	}
	return false
}
