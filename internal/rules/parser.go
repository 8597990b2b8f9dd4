package rules

import (
	"fmt"
	"sort"
)

// SyntaxError reports an invalid rule text.
type SyntaxError struct {
	Text string
	Pos  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("rule %q: position %d: %s", e.Text, e.Pos, e.Msg)
}

// Rule is a parsed exclusion predicate. Rules are immutable and reusable across rows.
type Rule struct {
	text string
	root Node
}

// Text returns the source text of the rule.
func (r *Rule) Text() string {
	return r.text
}

// Root returns the expression tree.
func (r *Rule) Root() Node {
	return r.root
}

// Columns returns the distinct column names referenced by the rule, sorted.
func (r *Rule) Columns() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, name := range columns(r.root, nil) {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse parses rule text of the form
//
//	adj_close_price < sma_200d or pct_63d < 0
//
// Grammar (lowest to highest precedence):
//
//	expr    := and ("or" and)*
//	and     := not ("and" not)*
//	not     := "not" not | compare
//	compare := sum (("<"|"<="|">"|">="|"=="|"!=") sum)?
//	sum     := term (("+"|"-") term)*
//	term    := unary (("*"|"/") unary)*
//	unary   := "-" unary | primary
//	primary := number | column | "true" | "false" | "(" expr ")"
//
// "&&", "||" and "!" are accepted for and, or, not. The whole rule must be boolean.
func Parse(text string) (*Rule, error) {
	tokens, err := lex(text)
	if err != nil {
		return nil, err
	}

	p := &parser{text: text, tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %q", tok.text)
	}
	if !root.boolean() {
		return nil, &SyntaxError{Text: text, Pos: 0, Msg: "rule must be a boolean expression"}
	}

	return &Rule{text: text, root: root}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(text string) *Rule {
	r, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return r
}

// ParseAll parses rule texts in order. Fails on the first invalid rule.
func ParseAll(texts []string) ([]*Rule, error) {
	rules := make([]*Rule, 0, len(texts))
	for i, text := range texts {
		r, err := Parse(text)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

type parser struct {
	text   string
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return &SyntaxError{Text: p.text, Pos: tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		tok := p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		if err := p.requireBoolean(tok, left, right); err != nil {
			return nil, err
		}
		left = &Logical{Op: "or", L: left, R: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		tok := p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		if err := p.requireBoolean(tok, left, right); err != nil {
			return nil, err
		}
		left = &Logical{Op: "and", L: left, R: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Node, error) {
	if p.peek().kind == tokNot {
		tok := p.next()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		if !x.boolean() {
			return nil, p.errorf(tok, "operand of not must be boolean")
		}
		return &Not{X: x}, nil
	}
	return p.parseCompare()
}

func (p *parser) parseCompare() (Node, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokCompare {
		return left, nil
	}
	tok := p.next()
	right, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if left.boolean() || right.boolean() {
		return nil, p.errorf(tok, "operands of %s must be numeric", tok.text)
	}
	if p.peek().kind == tokCompare {
		return nil, p.errorf(p.peek(), "chained comparison")
	}
	return &Compare{Op: tok.text, L: left, R: right}, nil
}

func (p *parser) parseSum() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokPlus || p.peek().kind == tokMinus {
		tok := p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if err := p.requireNumeric(tok, left, right); err != nil {
			return nil, err
		}
		left = &Arith{Op: tok.text, L: left, R: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokStar || p.peek().kind == tokSlash {
		tok := p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if err := p.requireNumeric(tok, left, right); err != nil {
			return nil, err
		}
		left = &Arith{Op: tok.text, L: left, R: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.peek().kind == tokMinus {
		tok := p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if x.boolean() {
			return nil, p.errorf(tok, "operand of - must be numeric")
		}
		if lit, ok := x.(*NumberLit); ok {
			return &NumberLit{Value: -lit.Value}, nil
		}
		return &Negate{X: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return &NumberLit{Value: tok.num}, nil
	case tokIdent:
		return &ColumnRef{Name: tok.text}, nil
	case tokTrue:
		return &BoolLit{Value: true}, nil
	case tokFalse:
		return &BoolLit{Value: false}, nil
	case tokLParen:
		x, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, p.errorf(closing, "expected ')'")
		}
		return x, nil
	case tokEOF:
		return nil, p.errorf(tok, "unexpected end of rule")
	default:
		return nil, p.errorf(tok, "unexpected %q", tok.text)
	}
}

func (p *parser) requireBoolean(op token, l, r Node) error {
	if !l.boolean() || !r.boolean() {
		return p.errorf(op, "operands of %s must be boolean", op.text)
	}
	return nil
}

func (p *parser) requireNumeric(op token, l, r Node) error {
	if l.boolean() || r.boolean() {
		return p.errorf(op, "operands of %s must be numeric", op.text)
	}
	return nil
}
