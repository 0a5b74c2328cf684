package ast

// Visitor is called for each node during Walk.
// Returning a non-nil error stops the traversal.
type Visitor interface {
	Visit(Node) error
}

// VisitorFunc adapts a function to the Visitor interface.
type VisitorFunc func(Node) error

// Visit calls f(n).
func (f VisitorFunc) Visit(n Node) error {
	return f(n)
}

// Walk traverses the tree depth-first, parents before children, left before right.
// It returns the first error encountered, or nil if traversal completes.
func Walk(n Node, v Visitor) error {
	if n == nil {
		return nil
	}
	if err := v.Visit(n); err != nil {
		return err
	}

	switch n := n.(type) {
	case *Comparison:
		if err := Walk(n.Left, v); err != nil {
			return err
		}
		return Walk(n.Right, v)
	case *LogicalExpression:
		if err := Walk(n.Left, v); err != nil {
			return err
		}
		return Walk(n.Right, v)
	}
	return nil
}

// Functions returns every FunctionCall in the tree in source order.
func Functions(n Node) []*FunctionCall {
	var calls []*FunctionCall
	_ = Walk(n, VisitorFunc(func(n Node) error {
		if fc, ok := n.(*FunctionCall); ok {
			calls = append(calls, fc)
		}
		return nil
	}))
	return calls
}

// Comparisons returns every Comparison in the tree in source order.
func Comparisons(n Node) []*Comparison {
	var cmps []*Comparison
	_ = Walk(n, VisitorFunc(func(n Node) error {
		if c, ok := n.(*Comparison); ok {
			cmps = append(cmps, c)
		}
		return nil
	}))
	return cmps
}

// Depth returns the height of the tree. A single leaf has depth 1.
func Depth(n Node) int {
	switch n := n.(type) {
	case *Comparison:
		return 1 + max(Depth(n.Left), Depth(n.Right))
	case *LogicalExpression:
		return 1 + max(Depth(n.Left), Depth(n.Right))
	case nil:
		return 0
	}
	return 1
}
