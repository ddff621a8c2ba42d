// Package parser implements a recursive-descent reader for the KIF-like
// S-expression language: lists, quoted strings, '?'-prefixed variables,
// bare atoms, and ';'-to-end-of-line comments.
package parser

import (
	"fmt"
	"strings"

	"github.com/cogreason/reasoner/pkg/term"
)

// Error is a parse error carrying its 1-based line and column.
type Error struct {
	Line, Col int
	Msg       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

type reader struct {
	src        []rune
	pos        int
	line, col  int
}

// ParseAll reads every top-level term in text, in order.
func ParseAll(text string) ([]*term.Term, error) {
	r := &reader{src: []rune(text), line: 1, col: 1}
	var out []*term.Term
	for {
		r.skipSpaceAndComments()
		if r.eof() {
			break
		}
		t, err := r.readTerm()
		if err != nil {
			return out, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Parse reads exactly one top-level term, ignoring anything after it.
func Parse(text string) (*term.Term, error) {
	r := &reader{src: []rune(text), line: 1, col: 1}
	r.skipSpaceAndComments()
	if r.eof() {
		return nil, &Error{r.line, r.col, "unexpected end of input"}
	}
	return r.readTerm()
}

func (r *reader) eof() bool { return r.pos >= len(r.src) }

func (r *reader) peek() rune {
	if r.eof() {
		return 0
	}
	return r.src[r.pos]
}

func (r *reader) advance() rune {
	c := r.src[r.pos]
	r.pos++
	if c == '\n' {
		r.line++
		r.col = 1
	} else {
		r.col++
	}
	return c
}

func (r *reader) skipSpaceAndComments() {
	for !r.eof() {
		c := r.peek()
		switch {
		case c == ';':
			for !r.eof() && r.peek() != '\n' {
				r.advance()
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			r.advance()
		default:
			return
		}
	}
}

func isDelim(c rune) bool {
	switch c {
	case '(', ')', '"', ';', ' ', '\t', '\n', '\r', 0:
		return true
	}
	return false
}

func (r *reader) readTerm() (*term.Term, error) {
	r.skipSpaceAndComments()
	if r.eof() {
		return nil, &Error{r.line, r.col, "unexpected end of input"}
	}
	switch c := r.peek(); {
	case c == '(':
		return r.readList()
	case c == ')':
		return nil, &Error{r.line, r.col, "unexpected ')'"}
	case c == '"':
		return r.readString()
	case c == '?':
		return r.readVar()
	default:
		return r.readAtom()
	}
}

func (r *reader) readList() (*term.Term, error) {
	startLine, startCol := r.line, r.col
	r.advance() // consume '('
	var children []*term.Term
	for {
		r.skipSpaceAndComments()
		if r.eof() {
			return nil, &Error{startLine, startCol, "unterminated list"}
		}
		if r.peek() == ')' {
			r.advance()
			return term.NewList(children...), nil
		}
		c, err := r.readTerm()
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
}

func (r *reader) readString() (*term.Term, error) {
	line, col := r.line, r.col
	r.advance() // consume opening quote
	var b strings.Builder
	for {
		if r.eof() {
			return nil, &Error{line, col, "unterminated string"}
		}
		c := r.advance()
		if c == '"' {
			return term.NewAtom(b.String()), nil
		}
		if c == '\\' {
			if r.eof() {
				return nil, &Error{line, col, "unterminated escape in string"}
			}
			esc := r.advance()
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\':
				b.WriteByte('\\')
			case '"':
				b.WriteByte('"')
			default:
				b.WriteRune(esc)
			}
			continue
		}
		b.WriteRune(c)
	}
}

func (r *reader) readVar() (*term.Term, error) {
	line, col := r.line, r.col
	var b strings.Builder
	b.WriteRune(r.advance()) // the '?'
	for !r.eof() && !isDelim(r.peek()) {
		b.WriteRune(r.advance())
	}
	name := b.String()
	v, err := term.NewVar(name)
	if err != nil {
		return nil, &Error{line, col, err.Error()}
	}
	return v, nil
}

func (r *reader) readAtom() (*term.Term, error) {
	var b strings.Builder
	for !r.eof() && !isDelim(r.peek()) {
		b.WriteRune(r.advance())
	}
	if b.Len() == 0 {
		return nil, &Error{r.line, r.col, fmt.Sprintf("unexpected character %q", r.peek())}
	}
	return term.NewAtom(b.String()), nil
}
