package revset

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ParseError is returned for malformed revset text.
type ParseError struct {
	Input string
	Pos   int // byte offset of the problem
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse revset %q at position %d: %s", e.Input, e.Pos, e.Msg)
}

// parser holds the state of a single Parse call.
type parser struct {
	src string
	pos int
}

// Parse parses revset text into an expression. It does not touch any
// repository; symbols are only checked syntactically.
func Parse(text string) (Expression, error) {
	ps := &parser{src: text}
	ps.skipSpace()
	if ps.eof() {
		return nil, ps.errorf("empty revset")
	}
	expr, err := ps.parseUnion()
	if err != nil {
		return nil, err
	}
	ps.skipSpace()
	if !ps.eof() {
		return nil, ps.errorf("unexpected %q", ps.rest())
	}
	return expr, nil
}

func (ps *parser) parseUnion() (Expression, error) {
	left, err := ps.parseIntersection()
	if err != nil {
		return nil, err
	}
	for {
		ps.skipSpace()
		if !ps.consume("|") {
			return left, nil
		}
		right, err := ps.parseIntersection()
		if err != nil {
			return nil, err
		}
		left = Union{Left: left, Right: right}
	}
}

func (ps *parser) parseIntersection() (Expression, error) {
	left, err := ps.parseRange()
	if err != nil {
		return nil, err
	}
	for {
		ps.skipSpace()
		switch {
		case ps.consume("&"):
			right, err := ps.parseRange()
			if err != nil {
				return nil, err
			}
			left = Intersection{Left: left, Right: right}
		case ps.consume("~"):
			right, err := ps.parseRange()
			if err != nil {
				return nil, err
			}
			left = Difference{Left: left, Right: right}
		default:
			return left, nil
		}
	}
}

func (ps *parser) parseRange() (Expression, error) {
	from, err := ps.parsePrefix()
	if err != nil {
		return nil, err
	}
	ps.skipSpace()
	if !ps.consume("..") {
		return from, nil
	}
	if ps.hasPrefix(".") {
		return nil, ps.errorf("unexpected '.' after '..'")
	}
	to, err := ps.parsePrefix()
	if err != nil {
		return nil, err
	}
	return Range{From: from, To: to}, nil
}

func (ps *parser) parsePrefix() (Expression, error) {
	ps.skipSpace()
	switch {
	case ps.consume(":"):
		of, err := ps.parseOperand(":")
		if err != nil {
			return nil, err
		}
		return Parents{Of: of}, nil
	case ps.consume("*:"):
		of, err := ps.parseOperand("*:")
		if err != nil {
			return nil, err
		}
		return Ancestors{Of: of}, nil
	case ps.hasPrefix("*"):
		return nil, ps.errorf("'*' must be followed by ':'")
	}
	return ps.parsePrimary()
}

// parseOperand parses the operand of a prefix operator, reporting a dangling
// operator when nothing follows.
func (ps *parser) parseOperand(op string) (Expression, error) {
	ps.skipSpace()
	if ps.eof() {
		return nil, ps.errorf("expected expression after %q", op)
	}
	return ps.parsePrefix()
}

func (ps *parser) parsePrimary() (Expression, error) {
	ps.skipSpace()
	if ps.eof() {
		return nil, ps.errorf("expected expression")
	}
	if ps.consume("(") {
		inner, err := ps.parseUnion()
		if err != nil {
			return nil, err
		}
		ps.skipSpace()
		if !ps.consume(")") {
			if ps.eof() {
				return nil, ps.errorf("missing ')'")
			}
			return nil, ps.errorf("expected ')', found %q", ps.rest())
		}
		return inner, nil
	}

	begin := ps.pos
	for !ps.eof() && !ps.atSymbolEnd() {
		_, size := utf8.DecodeRuneInString(ps.src[ps.pos:])
		ps.pos += size
	}
	if ps.pos == begin {
		return nil, ps.errorf("unexpected %q", ps.rest())
	}
	return Symbol{Name: ps.src[begin:ps.pos]}, nil
}

// atSymbolEnd reports whether the next character can't be part of a symbol.
func (ps *parser) atSymbolEnd() bool {
	r, _ := utf8.DecodeRuneInString(ps.src[ps.pos:])
	if unicode.IsSpace(r) || isReserved(r) {
		return true
	}
	return ps.hasPrefix("..")
}

func isReserved(r rune) bool {
	switch r {
	case ':', '*', '|', '&', '~', '(', ')':
		return true
	}
	return false
}

func (ps *parser) skipSpace() {
	for !ps.eof() {
		r, size := utf8.DecodeRuneInString(ps.src[ps.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		ps.pos += size
	}
}

func (ps *parser) consume(tok string) bool {
	if ps.hasPrefix(tok) {
		ps.pos += len(tok)
		return true
	}
	return false
}

func (ps *parser) hasPrefix(prefix string) bool {
	return strings.HasPrefix(ps.src[ps.pos:], prefix)
}

func (ps *parser) eof() bool {
	return ps.pos >= len(ps.src)
}

func (ps *parser) rest() string {
	return ps.src[ps.pos:]
}

func (ps *parser) errorf(format string, args ...interface{}) error {
	return &ParseError{Input: ps.src, Pos: ps.pos, Msg: fmt.Sprintf(format, args...)}
}
