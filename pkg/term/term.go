// Package term implements the immutable KIF term algebra: atoms, variables,
// and lists, with structural hashing, cached weight, and cached variable
// sets. Atoms and variables are interned so that structural equality and
// pointer equality coincide for them.
package term

import (
	"fmt"
	"strings"
	"sync"
)

// Kind distinguishes the three Term variants.
type Kind int

const (
	// KindAtom is a constant symbol or quoted string.
	KindAtom Kind = iota
	// KindVar is a logic variable, printed with a leading '?'.
	KindVar
	// KindList is an ordered sequence of terms.
	KindList
)

// Reserved atom-name prefixes (spec.md §6, bit-exact).
const (
	RulePrefix     = "rule_"
	FactPrefix     = "fact_"
	SkolemConstPre = "skc_"
	SkolemFuncPre  = "skf_"
	TMSPrefix      = "tms_"
	QueryPrefix    = "query_"
	OperatorPrefix = "op_"
)

// ReflexivePredicates is the set of predicates for which `(pred x x)` is
// trivially true and `(not (pred x x))` trivially false.
var ReflexivePredicates = map[string]bool{
	"instance":    true,
	"subclass":    true,
	"subrelation": true,
	"equivalent":  true,
	"same":        true,
	"equal":       true,
	"domain":      true,
	"range":       true,
	"=":           true,
}

// Term is an immutable KIF term: an Atom, a Var, or a List.
type Term struct {
	kind     Kind
	name     string  // Atom text or Var name (includes leading '?' for Var)
	children []*Term // only meaningful for KindList

	// cached, computed once at construction
	weight  int
	vars    map[string]*Term // varname -> the canonical *Term for that var
	printed string
}

// Kind reports the term's variant.
func (t *Term) Kind() Kind { return t.kind }

// Name returns the atom text (for KindAtom) or the variable name including
// its leading '?' (for KindVar). It is empty for KindList.
func (t *Term) Name() string { return t.name }

// Children returns the list's elements. Nil for non-lists.
func (t *Term) Children() []*Term { return t.children }

// Weight returns 1 for atoms/vars, and 1+sum(children weights) for lists.
func (t *Term) Weight() int { return t.weight }

// IsAtom reports whether t is an atom.
func (t *Term) IsAtom() bool { return t.kind == KindAtom }

// IsVar reports whether t is a variable.
func (t *Term) IsVar() bool { return t.kind == KindVar }

// IsList reports whether t is a list.
func (t *Term) IsList() bool { return t.kind == KindList }

// Vars returns the set of distinct variables occurring in t, keyed by name.
func (t *Term) Vars() map[string]*Term { return t.vars }

// HasVars reports whether t contains any variable.
func (t *Term) HasVars() bool { return len(t.vars) > 0 }

// Operator returns the first element of a list iff it is an Atom, else nil.
// Operator of a non-list term is always nil.
func (t *Term) Operator() *Term {
	if t.kind != KindList || len(t.children) == 0 {
		return nil
	}
	if t.children[0].kind == KindAtom {
		return t.children[0]
	}
	return nil
}

// OperatorName is a convenience for Operator().Name(), returning "" when
// there is no atomic operator.
func (t *Term) OperatorName() string {
	if op := t.Operator(); op != nil {
		return op.name
	}
	return ""
}

// Arity returns len(Children()) for a list, 0 otherwise.
func (t *Term) Arity() int {
	if t.kind != KindList {
		return 0
	}
	return len(t.children)
}

// Nth returns the i-th child (0-based), or nil if out of range or t is not
// a list.
func (t *Term) Nth(i int) *Term {
	if t.kind != KindList || i < 0 || i >= len(t.children) {
		return nil
	}
	return t.children[i]
}

// interning tables: structural equality <=> pointer equality for atoms/vars.
var (
	internMu sync.Mutex
	atoms    = map[string]*Term{}
	varsTab  = map[string]*Term{}
)

// NewAtom returns the canonical *Term for the given atom text, interning it.
func NewAtom(name string) *Term {
	internMu.Lock()
	defer internMu.Unlock()
	if t, ok := atoms[name]; ok {
		return t
	}
	t := &Term{kind: KindAtom, name: name, weight: 1, printed: printAtom(name)}
	atoms[name] = t
	return t
}

// NewVar returns the canonical *Term for the given variable name (must start
// with '?' and have length >= 2), interning it.
func NewVar(name string) (*Term, error) {
	if len(name) < 2 || name[0] != '?' {
		return nil, fmt.Errorf("term: invalid variable name %q", name)
	}
	internMu.Lock()
	defer internMu.Unlock()
	if t, ok := varsTab[name]; ok {
		return t, nil
	}
	t := &Term{kind: KindVar, name: name, weight: 1, printed: name}
	t.vars = map[string]*Term{name: t}
	varsTab[name] = t
	return t, nil
}

// MustVar is NewVar but panics on error; used for well-known internal
// variable names constructed from trusted code, never from parsed input.
func MustVar(name string) *Term {
	t, err := NewVar(name)
	if err != nil {
		panic(err)
	}
	return t
}

// NewList builds a list term from the given children, computing and caching
// its weight, variable set, and printed form.
func NewList(children ...*Term) *Term {
	w := 1
	var vars map[string]*Term
	for _, c := range children {
		w += c.weight
		for k, v := range c.vars {
			if vars == nil {
				vars = map[string]*Term{}
			}
			vars[k] = v
		}
	}
	t := &Term{kind: KindList, children: children, weight: w, vars: vars}
	t.printed = printList(t)
	return t
}

// ContainsSkolem reports whether t contains a Skolem constant (an atom whose
// name starts with SkolemConstPre) or a Skolem function application (a list
// whose operator starts with SkolemFuncPre), anywhere in its tree.
func (t *Term) ContainsSkolem() bool {
	switch t.kind {
	case KindAtom:
		return strings.HasPrefix(t.name, SkolemConstPre)
	case KindList:
		if op := t.OperatorName(); strings.HasPrefix(op, SkolemFuncPre) {
			return true
		}
		for _, c := range t.children {
			if c.ContainsSkolem() {
				return true
			}
		}
	}
	return false
}

// Equal is structural equality. For atoms/vars this is pointer equality
// thanks to interning; lists compare children recursively.
func (t *Term) Equal(o *Term) bool {
	if t == o {
		return true
	}
	if o == nil || t.kind != o.kind {
		return false
	}
	switch t.kind {
	case KindAtom, KindVar:
		return t.name == o.name
	case KindList:
		if len(t.children) != len(o.children) {
			return false
		}
		for i, c := range t.children {
			if !c.Equal(o.children[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// HashKey returns a string usable as a map key for structural equality;
// cheap because it reuses the cached printed form.
func (t *Term) HashKey() string { return t.printed }

// String implements fmt.Stringer via ToKIF-equivalent printing.
func (t *Term) String() string { return t.printed }

// isBareAtomChar defines the bare-atom character class used when printing
// atoms: names made only of these runes are printed unquoted.
func isBareAtomChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case strings.ContainsRune("_-+*/.<>=:", r):
		return true
	}
	return false
}

func isBareAtom(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !isBareAtomChar(r) {
			return false
		}
	}
	return true
}

func printAtom(name string) string {
	if isBareAtom(name) {
		return name
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range name {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func printList(t *Term) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, c := range t.children {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(c.printed)
	}
	b.WriteByte(')')
	return b.String()
}
