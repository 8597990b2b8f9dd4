package rules

import (
	"strconv"
)

// Node is an element of a parsed rule expression.
type Node interface {
	String() string
	boolean() bool // true for nodes producing a truth value
}

// NumberLit is a numeric literal.
type NumberLit struct {
	Value float64
}

// BoolLit is true or false.
type BoolLit struct {
	Value bool
}

// ColumnRef references a FeatureRow column by name.
type ColumnRef struct {
	Name string
}

// Negate is unary minus.
type Negate struct {
	X Node
}

// Not is logical negation.
type Not struct {
	X Node
}

// Arith is a binary arithmetic operation: + - * /.
type Arith struct {
	Op   string
	L, R Node
}

// Compare is a binary comparison: < <= > >= == !=.
type Compare struct {
	Op   string
	L, R Node
}

// Logical is "and" or "or".
type Logical struct {
	Op   string
	L, R Node
}

func (n *NumberLit) String() string { return strconv.FormatFloat(n.Value, 'g', -1, 64) }
func (n *BoolLit) String() string   { return strconv.FormatBool(n.Value) }
func (n *ColumnRef) String() string { return n.Name }
func (n *Negate) String() string    { return "-" + n.X.String() }
func (n *Not) String() string       { return "not " + n.X.String() }
func (n *Arith) String() string     { return "(" + n.L.String() + " " + n.Op + " " + n.R.String() + ")" }
func (n *Compare) String() string   { return "(" + n.L.String() + " " + n.Op + " " + n.R.String() + ")" }
func (n *Logical) String() string   { return "(" + n.L.String() + " " + n.Op + " " + n.R.String() + ")" }

func (n *NumberLit) boolean() bool { return false }
func (n *BoolLit) boolean() bool   { return true }
func (n *ColumnRef) boolean() bool { return false }
func (n *Negate) boolean() bool    { return false }
func (n *Not) boolean() bool       { return true }
func (n *Arith) boolean() bool     { return false }
func (n *Compare) boolean() bool   { return true }
func (n *Logical) boolean() bool   { return true }

// columns appends the column names referenced by n.
func columns(n Node, out []string) []string {
	switch n := n.(type) {
	case *ColumnRef:
		return append(out, n.Name)
	case *Negate:
		return columns(n.X, out)
	case *Not:
		return columns(n.X, out)
	case *Arith:
		return columns(n.R, columns(n.L, out))
	case *Compare:
		return columns(n.R, columns(n.L, out))
	case *Logical:
		return columns(n.R, columns(n.L, out))
	}
	return out
}
