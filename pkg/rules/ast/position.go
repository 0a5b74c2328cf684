package ast

import "fmt"

// Position locates a node or token inside a rule condition string.
type Position struct {
	Offset int // Byte offset (0-based)
	Column int // Column (1-based)
}

// String returns "col N", or "<unknown>" for the zero position.
func (p Position) String() string {
	if !p.IsValid() {
		return "<unknown>"
	}
	return fmt.Sprintf("col %d", p.Column)
}

// IsValid reports whether the position was set by the parser.
func (p Position) IsValid() bool {
	return p.Column > 0
}

// PositionAt builds a Position from a byte offset.
func PositionAt(offset int) Position {
	return Position{Offset: offset, Column: offset + 1}
}
