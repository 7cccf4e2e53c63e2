// Package reward derives reward fields from the successful-days counter using
// small arithmetic expressions. Expressions are parsed and evaluated here;
// nothing outside arithmetic, variable lookup and a fixed set of helper
// functions can run.
package reward

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

var (
	ErrSyntax          = errors.New("syntax error")
	ErrUnknownName     = errors.New("unknown name")
	ErrUnknownFunction = errors.New("unknown function")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrType            = errors.New("type error")
	ErrOverflow        = errors.New("result is not a finite number")
)

// Value is a number or a string.
type Value struct {
	num   float64
	str   string
	isStr bool
}

func Number(f float64) Value { return Value{num: f} }
func String(s string) Value  { return Value{str: s, isStr: true} }

func (v Value) IsString() bool { return v.isStr }

// Float returns the numeric value; strings yield 0.
func (v Value) Float() float64 { return v.num }

// Any returns an int64 for integral numbers, a float64 otherwise, or the
// string.
func (v Value) Any() any {
	if v.isStr {
		return v.str
	}
	if v.num == math.Trunc(v.num) && math.Abs(v.num) < 1<<53 {
		return int64(v.num)
	}
	return v.num
}

func (v Value) String() string {
	if v.isStr {
		return v.str
	}
	return strconv.FormatFloat(v.num, 'f', -1, 64)
}

// Env resolves names during evaluation.
type Env map[string]Value

// Expr is a parsed expression.
type Expr struct {
	src  string
	root node
}

// Parse compiles src. Grammar:
//
//	expr   = term { ("+" | "-") term }
//	term   = unary { ("*" | "/" | "%") unary }
//	unary  = "-" unary | primary
//	primary = number | string | name | name "(" [expr {"," expr}] ")" | "(" expr ")"
func Parse(src string) (*Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %q at offset %d", ErrSyntax, tok.text, tok.pos)
	}
	return &Expr{src: src, root: root}, nil
}

func (e *Expr) String() string { return e.src }

// Names returns the variable names the expression reads.
func (e *Expr) Names() []string {
	seen := map[string]bool{}
	var names []string
	var walk func(n node)
	walk = func(n node) {
		switch n := n.(type) {
		case nameNode:
			if !seen[string(n)] {
				seen[string(n)] = true
				names = append(names, string(n))
			}
		case unaryNode:
			walk(n.x)
		case binaryNode:
			walk(n.l)
			walk(n.r)
		case callNode:
			for _, a := range n.args {
				walk(a)
			}
		}
	}
	walk(e.root)
	return names
}

// Eval evaluates the expression against env. Results are always finite
// numbers or strings.
func (e *Expr) Eval(env Env) (Value, error) {
	v, err := e.root.eval(env)
	if err != nil {
		return Value{}, err
	}
	if !v.isStr && (math.IsInf(v.num, 0) || math.IsNaN(v.num)) {
		return Value{}, ErrOverflow
	}
	return v, nil
}

// ---- lexer ----

type tokKind int

const (
	tokEOF tokKind = iota
	tokNum
	tokStr
	tokName
	tokOp
)

type token struct {
	kind tokKind
	text string
	num  float64
	pos  int
}

func lex(src string) ([]token, error) {
	var toks []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(rs) && unicode.IsDigit(rs[i+1])):
			start := i
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.') {
				i++
			}
			text := string(rs[start:i])
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q", ErrSyntax, text)
			}
			toks = append(toks, token{kind: tokNum, text: text, num: f, pos: start})
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(rs) && (rs[i] == '_' || unicode.IsLetter(rs[i]) || unicode.IsDigit(rs[i])) {
				i++
			}
			toks = append(toks, token{kind: tokName, text: string(rs[start:i]), pos: start})
		case r == '"' || r == '\'':
			start := i
			i++
			var b strings.Builder
			for i < len(rs) && rs[i] != r {
				b.WriteRune(rs[i])
				i++
			}
			if i >= len(rs) {
				return nil, fmt.Errorf("%w: unterminated string at offset %d", ErrSyntax, start)
			}
			i++
			toks = append(toks, token{kind: tokStr, text: b.String(), pos: start})
		case strings.ContainsRune("+-*/%(),", r):
			toks = append(toks, token{kind: tokOp, text: string(r), pos: i})
			i++
		default:
			return nil, fmt.Errorf("%w: unexpected character %q at offset %d", ErrSyntax, r, i)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(rs)}), nil
}

// ---- parser ----

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(text string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == text
}

func (p *parser) expect(text string) error {
	if !p.isOp(text) {
		t := p.peek()
		return fmt.Errorf("%w: expected %q at offset %d", ErrSyntax, text, t.pos)
	}
	p.next()
	return nil
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.next().text
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") || p.isOp("%") {
		op := p.next().text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.isOp("-") {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{x: x}, nil
	}
	if p.isOp("+") {
		p.next()
		return p.parseUnary()
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNum:
		return numNode(t.num), nil
	case tokStr:
		return strNode(t.text), nil
	case tokName:
		if !p.isOp("(") {
			return nameNode(t.text), nil
		}
		p.next()
		fn, ok := builtins[t.text]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, t.text)
		}
		var args []node
		if !p.isOp(")") {
			for {
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if !p.isOp(",") {
					break
				}
				p.next()
			}
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return callNode{name: t.text, fn: fn, args: args}, nil
	case tokOp:
		if t.text == "(" {
			x, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return x, nil
		}
		return nil, fmt.Errorf("%w: unexpected %q at offset %d", ErrSyntax, t.text, t.pos)
	default:
		return nil, fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	}
}

// ---- evaluation ----

type node interface {
	eval(env Env) (Value, error)
}

type (
	numNode  float64
	strNode  string
	nameNode string

	unaryNode struct{ x node }

	binaryNode struct {
		op   string
		l, r node
	}

	callNode struct {
		name string
		fn   builtin
		args []node
	}
)

func (n numNode) eval(Env) (Value, error) { return Number(float64(n)), nil }
func (n strNode) eval(Env) (Value, error) { return String(string(n)), nil }

func (n nameNode) eval(env Env) (Value, error) {
	v, ok := env[string(n)]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownName, string(n))
	}
	return v, nil
}

func (n unaryNode) eval(env Env) (Value, error) {
	x, err := n.x.eval(env)
	if err != nil {
		return Value{}, err
	}
	if x.isStr {
		return Value{}, fmt.Errorf("%w: cannot negate string", ErrType)
	}
	return Number(-x.num), nil
}

func (n binaryNode) eval(env Env) (Value, error) {
	l, err := n.l.eval(env)
	if err != nil {
		return Value{}, err
	}
	r, err := n.r.eval(env)
	if err != nil {
		return Value{}, err
	}

	if l.isStr || r.isStr {
		if n.op == "+" {
			return String(l.String() + r.String()), nil
		}
		return Value{}, fmt.Errorf("%w: operator %s on string", ErrType, n.op)
	}

	var res float64
	switch n.op {
	case "+":
		res = l.num + r.num
	case "-":
		res = l.num - r.num
	case "*":
		res = l.num * r.num
	case "/":
		if r.num == 0 {
			return Value{}, ErrDivisionByZero
		}
		res = l.num / r.num
	case "%":
		if r.num == 0 {
			return Value{}, ErrDivisionByZero
		}
		res = math.Mod(l.num, r.num)
	default:
		return Value{}, fmt.Errorf("%w: operator %s", ErrSyntax, n.op)
	}
	if math.IsInf(res, 0) || math.IsNaN(res) {
		return Value{}, fmt.Errorf("%w: %v %s %v", ErrOverflow, l, n.op, r)
	}
	return Number(res), nil
}

func (n callNode) eval(env Env) (Value, error) {
	args := make([]Value, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(env)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	v, err := n.fn(args)
	if err != nil {
		return Value{}, fmt.Errorf("%s: %w", n.name, err)
	}
	return v, nil
}
