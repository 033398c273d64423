package compiler

import (
	"fmt"
	"strings"

	"github.com/openloom/openloom/pkg/inventory"
)

// Selector matches inventory devices against a tag expression.
//
// The grammar, with "not" binding tighter than "and" and "and" tighter
// than "or":
//
//	expr    = or
//	or      = and { "or" and }
//	and     = unary { "and" unary }
//	unary   = "not" unary | primary
//	primary = "(" expr ")" | term
//	term    = key ( "=" | "!=" ) value
//
// The keys hostname, role, site, and platform match the device fields of
// the same name, group matches group membership, and any other key
// matches a label. A term on an absent label is false for "=" and true
// for "!=", so "env!=prod" selects devices without an env label at all.
type Selector struct {
	expr node
	src  string
}

// ParseSelector parses a tag expression. The empty expression matches
// every device.
func ParseSelector(src string) (*Selector, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return &Selector{src: src}, nil
	}

	p := &parser{toks: lex(trimmed)}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
	return &Selector{expr: expr, src: src}, nil
}

// Matches reports whether the device satisfies the expression.
func (s *Selector) Matches(d inventory.Device) bool {
	if s.expr == nil {
		return true
	}
	return s.expr.eval(d)
}

// String returns the source expression.
func (s *Selector) String() string {
	return s.src
}

type node interface {
	eval(d inventory.Device) bool
}

type andNode struct{ left, right node }

func (n andNode) eval(d inventory.Device) bool {
	return n.left.eval(d) && n.right.eval(d)
}

type orNode struct{ left, right node }

func (n orNode) eval(d inventory.Device) bool {
	return n.left.eval(d) || n.right.eval(d)
}

type notNode struct{ expr node }

func (n notNode) eval(d inventory.Device) bool {
	return !n.expr.eval(d)
}

type termNode struct {
	key    string
	value  string
	negate bool
}

func (n termNode) eval(d inventory.Device) bool {
	var match bool
	if n.key == "group" {
		match = d.InGroup(n.value)
	} else {
		v, ok := d.Attribute(n.key)
		match = ok && v == n.value
	}
	if n.negate {
		return !match
	}
	return match
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokEq
	tokNeq
	tokLParen
	tokRParen
	tokEOF
	tokInvalid
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func lex(src string) []token {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == '=':
			toks = append(toks, token{tokEq, "=", i})
			i++
		case c == '!' && i+1 < len(src) && src[i+1] == '=':
			toks = append(toks, token{tokNeq, "!=", i})
			i += 2
		case isIdentChar(c):
			start := i
			for i < len(src) && isIdentChar(src[i]) {
				i++
			}
			toks = append(toks, token{tokIdent, src[start:i], start})
		default:
			toks = append(toks, token{tokInvalid, string(c), i})
			i++
		}
	}
	toks = append(toks, token{tokEOF, "", len(src)})
	return toks
}

func isIdentChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '-', c == '.', c == '/', c == ':':
		return true
	}
	return false
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return fmt.Errorf("selector: %s at position %d", fmt.Sprintf(format, args...), t.pos)
}

func (p *parser) parseExpr() (node, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokIdent && p.peek().text == "or" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left, right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokIdent && p.peek().text == "and" {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andNode{left, right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokIdent && p.peek().text == "not" {
		p.next()
		expr, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{expr}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	if p.peek().kind == tokLParen {
		p.next()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if t := p.peek(); t.kind != tokRParen {
			return nil, p.errorf(t, "expected )")
		}
		p.next()
		return expr, nil
	}
	return p.parseTerm()
}

func (p *parser) parseTerm() (node, error) {
	t := p.next()
	if t.kind != tokIdent {
		return nil, p.errorf(t, "expected a key, got %q", t.text)
	}
	if t.text == "and" || t.text == "or" || t.text == "not" {
		return nil, p.errorf(t, "%q is a keyword, not a key", t.text)
	}
	op := p.next()
	if op.kind != tokEq && op.kind != tokNeq {
		return nil, p.errorf(op, "expected = or != after %s", t.text)
	}
	v := p.next()
	if v.kind != tokIdent {
		return nil, p.errorf(v, "expected a value after %s%s", t.text, op.text)
	}
	return termNode{
		key:    strings.ToLower(t.text),
		value:  v.text,
		negate: op.kind == tokNeq,
	}, nil
}
