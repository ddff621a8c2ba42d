// Package assertion defines the stored and pre-commit assertion shapes, the
// rule shape, and the small id-allocation helper shared by the knowledge
// base, the TMS, and the reasoner plugins.
package assertion

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/cogreason/reasoner/pkg/term"
)

// Type classifies a stored Assertion.
type Type int

const (
	// Ground assertions contain no variables and no Skolem terms.
	Ground Type = iota
	// Universal assertions are `(forall vars body)`, kept explicit for
	// instantiation.
	Universal
	// Skolemized assertions are ground but contain Skolem terms.
	Skolemized
)

func (t Type) String() string {
	switch t {
	case Ground:
		return "Ground"
	case Universal:
		return "Universal"
	case Skolemized:
		return "Skolemized"
	default:
		return "Unknown"
	}
}

// IDCounter is an explicitly-passed, monotonically increasing id allocator
// keyed by a string prefix, passed in rather than made global.
type IDCounter struct {
	prefix string
	n      atomic.Uint64
}

// NewIDCounter returns a counter that produces ids of the form
// "<prefix><n>".
func NewIDCounter(prefix string) *IDCounter {
	return &IDCounter{prefix: prefix}
}

// Next returns the next id in the sequence.
func (c *IDCounter) Next() string {
	return fmt.Sprintf("%s%d", c.prefix, c.n.Add(1))
}

// PotentialAssertion is the pre-commit proposal for a new assertion. It has
// no id/timestamp/active/kb fields; equality is by Kif alone.
type PotentialAssertion struct {
	Kif                 *term.Term
	Priority            float64
	SourceNoteID        string // "" if none
	JustificationIDs    map[string]bool
	Type                Type
	IsEquality          bool
	IsOrientedEquality  bool
	Negated             bool
	QuantifiedVars      []*term.Term // only for Universal
	DerivationDepth     int
}

// Equal compares two PotentialAssertions by Kif only.
func (p *PotentialAssertion) Equal(o *PotentialAssertion) bool {
	if o == nil {
		return false
	}
	return p.Kif.Equal(o.Kif)
}

// Assertion is a committed, stored assertion.
type Assertion struct {
	ID                 string
	Kif                *term.Term
	Priority           float64
	Timestamp          int64
	SourceNoteID        string
	JustificationIDs   map[string]bool
	Type               Type
	IsEquality         bool
	IsOrientedEquality bool
	Negated            bool
	QuantifiedVars     []*term.Term
	DerivationDepth    int
	Active             bool
	KBID               string
}

// Complement returns a PotentialAssertion-shaped Kif: the negation of a's
// Kif (by stripping or adding an outer `(not …)`), used by the TMS
// contradiction check.
func Complement(kif *term.Term) *term.Term {
	if kif.OperatorName() == "not" && kif.Arity() == 2 {
		return kif.Nth(1)
	}
	return term.NewList(term.NewAtom("not"), kif)
}

// EvictionLess implements the eviction ordering for the KB's min-heap:
// active-first, then higher priority, then lower depth, then newer
// timestamp wins (is "less eviction-worthy"). The heap pops the *most*
// eviction-worthy item, so Less here means "more eviction-worthy" in the
// container/heap sense (should be popped first).
func EvictionLess(a, b *Assertion) bool {
	if a.Active != b.Active {
		// inactive assertions are more eviction-worthy (evict first)
		return !a.Active && b.Active
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if a.DerivationDepth != b.DerivationDepth {
		return a.DerivationDepth > b.DerivationDepth
	}
	return a.Timestamp < b.Timestamp
}

// Rule is a parsed `(=> antecedent consequent)` or `(<=> a c)` form.
type Rule struct {
	ID          string
	Form        *term.Term
	Antecedent  *term.Term
	Consequent  *term.Term
	Priority    float64
	Antecedents []*term.Term // flattened antecedent clauses
}

// Key returns the rule's deduplication key: its Form's printed text
// (equality/hash by form only).
func (r *Rule) Key() string { return r.Form.HashKey() }

// ParseRule validates and builds a Rule from a `(=> ant con)` or
// `(<=> ant con)` term. Each antecedent clause (after flattening an outer
// `and`) must be a list or `(not list)`; `or` in antecedents is rejected as
// unsupported.
func ParseRule(form *term.Term, idc *IDCounter, priority float64) (*Rule, error) {
	op := form.OperatorName()
	if (op != "=>" && op != "<=>") || form.Arity() != 3 {
		return nil, fmt.Errorf("assertion: expected (=> ant con) or (<=> ant con), got %v", form)
	}
	ant := form.Nth(1)
	con := form.Nth(2)

	clauses := flattenAnd(ant)
	for _, c := range clauses {
		if err := validateClause(c); err != nil {
			return nil, err
		}
	}

	return &Rule{
		ID:          idc.Next(),
		Form:        form,
		Antecedent:  ant,
		Consequent:  con,
		Priority:    priority,
		Antecedents: clauses,
	}, nil
}

func flattenAnd(t *term.Term) []*term.Term {
	if t.OperatorName() == "and" {
		var out []*term.Term
		for _, c := range t.Children()[1:] {
			out = append(out, flattenAnd(c)...)
		}
		return out
	}
	return []*term.Term{t}
}

func validateClause(c *term.Term) error {
	if c.OperatorName() == "or" {
		return fmt.Errorf("assertion: 'or' in rule antecedents is unsupported: %v", c)
	}
	if c.OperatorName() == "not" {
		if c.Arity() != 2 {
			return fmt.Errorf("assertion: malformed negated antecedent clause: %v", c)
		}
		inner := c.Nth(1)
		if !inner.IsList() {
			return fmt.Errorf("assertion: negated antecedent clause must wrap a list: %v", c)
		}
		if inner.OperatorName() == "or" {
			return fmt.Errorf("assertion: 'or' in rule antecedents is unsupported: %v", inner)
		}
		return nil
	}
	if !c.IsList() {
		return fmt.Errorf("assertion: antecedent clause must be a list or (not list): %v", c)
	}
	return nil
}

// ClauseSign reports whether a clause is negative ((not list)) along with
// the unwrapped positive pattern.
func ClauseSign(clause *term.Term) (negative bool, pattern *term.Term) {
	if clause.OperatorName() == "not" && clause.Arity() == 2 {
		return true, clause.Nth(1)
	}
	return false, clause
}

// ReferencedPredicates returns the set of predicate atoms (list operators)
// referenced anywhere within t, used to index Universal assertions by every
// predicate they mention.
func ReferencedPredicates(t *term.Term) []string {
	seen := map[string]bool{}
	var walk func(*term.Term)
	walk = func(t *term.Term) {
		if t.IsList() {
			if op := t.OperatorName(); op != "" {
				seen[op] = true
			}
			for _, c := range t.Children() {
				walk(c)
			}
		}
	}
	walk(t)
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// IsTriviallyTrivial reports whether kif is a reflexive-predicate
// self-application `(pred x x)` (or its negation, in which case `trivial`
// describes the negation of a trivial truth, i.e. a trivial falsehood).
// Both are rejected at commit time.
func IsTriviallyTrivial(kif *term.Term) bool {
	negated, body := false, kif
	if kif.OperatorName() == "not" && kif.Arity() == 2 {
		negated, body = true, kif.Nth(1)
	}
	_ = negated
	if !body.IsList() || body.Arity() != 3 {
		return false
	}
	pred := body.OperatorName()
	if pred == "" || !term.ReflexivePredicates[pred] {
		return false
	}
	return body.Nth(1).Equal(body.Nth(2))
}

// DerivedPriority computes min(min(supporter priorities), base) * 0.95
// when support is non-empty; the base priority is left unmodified when
// support is empty.
func DerivedPriority(supporterPriorities []float64, base float64) float64 {
	if len(supporterPriorities) == 0 {
		return base
	}
	min := supporterPriorities[0]
	for _, p := range supporterPriorities[1:] {
		if p < min {
			min = p
		}
	}
	if min < base {
		return min * 0.95
	}
	return base * 0.95
}

// DerivedDepth computes the max depth of supporters, or -1 when support is
// empty (so callers adding 1 get 0 for inputs).
func DerivedDepth(supporterDepths []int) int {
	if len(supporterDepths) == 0 {
		return -1
	}
	max := supporterDepths[0]
	for _, d := range supporterDepths[1:] {
		if d > max {
			max = d
		}
	}
	return max
}

// Simplify iteratively collapses `(not (not x))` up to depth 5.
func Simplify(t *term.Term) *term.Term {
	cur := t
	for i := 0; i < 5; i++ {
		if cur.OperatorName() != "not" || cur.Arity() != 2 {
			return cur
		}
		inner := cur.Nth(1)
		if inner.OperatorName() != "not" || inner.Arity() != 2 {
			return cur
		}
		cur = inner.Nth(1)
	}
	return cur
}

// bareAtomPrefixes lists the reserved atom-name prefixes, exposed here so
// callers (e.g. the input processor) can validate
// user-supplied atoms don't collide with internally-generated ones.
var bareAtomPrefixes = []string{
	term.RulePrefix, term.FactPrefix, term.SkolemConstPre, term.SkolemFuncPre,
	term.TMSPrefix, term.QueryPrefix, term.OperatorPrefix,
}

// HasReservedPrefix reports whether name starts with any reserved prefix.
func HasReservedPrefix(name string) bool {
	for _, p := range bareAtomPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
