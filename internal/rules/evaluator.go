package rules

// Row exposes named numeric columns. A missing or undefined column returns ok=false.
// *domain.FeatureRow implements Row.
type Row interface {
	Lookup(name string) (float64, bool)
}

// MapRow adapts a flat column mapping to Row. Nil values are undefined.
type MapRow map[string]*float64

// Lookup implements Row.
func (m MapRow) Lookup(name string) (float64, bool) {
	v, ok := m[name]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// truth is a three-valued logic result.
type truth int8

const (
	truthFalse truth = iota
	truthTrue
	truthUnknown
)

// Matches reports whether the rule evaluates to true on row.
// Comparisons against undefined columns are unknown, and an unknown rule does not match.
func (r *Rule) Matches(row Row) bool {
	return evalTruth(r.root, row) == truthTrue
}

// Excluded returns true if any rule matches the row. An empty rule set never excludes.
func Excluded(rules []*Rule, row Row) bool {
	for _, r := range rules {
		if r.Matches(row) {
			return true
		}
	}
	return false
}

func evalTruth(n Node, row Row) truth {
	switch n := n.(type) {
	case *BoolLit:
		if n.Value {
			return truthTrue
		}
		return truthFalse
	case *Not:
		switch evalTruth(n.X, row) {
		case truthTrue:
			return truthFalse
		case truthFalse:
			return truthTrue
		}
		return truthUnknown
	case *Logical:
		l := evalTruth(n.L, row)
		if n.Op == "and" {
			if l == truthFalse {
				return truthFalse
			}
			rv := evalTruth(n.R, row)
			if rv == truthFalse {
				return truthFalse
			}
			if l == truthTrue && rv == truthTrue {
				return truthTrue
			}
			return truthUnknown
		}
		if l == truthTrue {
			return truthTrue
		}
		rv := evalTruth(n.R, row)
		if rv == truthTrue {
			return truthTrue
		}
		if l == truthFalse && rv == truthFalse {
			return truthFalse
		}
		return truthUnknown
	case *Compare:
		l, lok := evalNumber(n.L, row)
		rv, rok := evalNumber(n.R, row)
		if !lok || !rok {
			return truthUnknown
		}
		if compare(n.Op, l, rv) {
			return truthTrue
		}
		return truthFalse
	}
	return truthUnknown
}

func compare(op string, l, r float64) bool {
	switch op {
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	case ">=":
		return l >= r
	case "==":
		return l == r
	case "!=":
		return l != r
	}
	return false
}

func evalNumber(n Node, row Row) (float64, bool) {
	switch n := n.(type) {
	case *NumberLit:
		return n.Value, true
	case *ColumnRef:
		return row.Lookup(n.Name)
	case *Negate:
		v, ok := evalNumber(n.X, row)
		return -v, ok
	case *Arith:
		l, lok := evalNumber(n.L, row)
		r, rok := evalNumber(n.R, row)
		if !lok || !rok {
			return 0, false
		}
		switch n.Op {
		case "+":
			return l + r, true
		case "-":
			return l - r, true
		case "*":
			return l * r, true
		case "/":
			if r == 0 {
				return 0, false
			}
			return l / r, true
		}
	}
	return 0, false
}
