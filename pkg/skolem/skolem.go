// Package skolem implements Skolemization of existentially quantified KIF
// terms: `(exists vars body)` becomes body with each variable in vars
// replaced by a fresh Skolem constant or function application
// parameterised by the free variables of body outside vars.
package skolem

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/cogreason/reasoner/pkg/term"
	"github.com/cogreason/reasoner/pkg/unify"
)

// Counter is a monotonically increasing, explicitly-passed id source for
// Skolem names, using the same atomic.Uint64-backed counter shape as the
// fact/rule id allocators in pkg/assertion — passed in explicitly rather
// than kept global.
type Counter struct {
	n atomic.Uint64
}

// NewCounter returns a fresh Counter starting at 0.
func NewCounter() *Counter { return &Counter{} }

func (c *Counter) next() uint64 { return c.n.Add(1) }

// Skolemize replaces every variable quantified by an `(exists vars body)`
// term with a fresh Skolem term. vars must be a single Var or a list of
// Vars. theta supplies any outer bindings already in force; the free
// variables of body (minus vars) are substituted through theta and sorted
// by printed form to produce a stable, deterministic argument vector for
// the Skolem functions. Returns the substituted body (always a list).
func Skolemize(existsTerm *term.Term, counter *Counter, theta unify.Bindings) (*term.Term, error) {
	if existsTerm.OperatorName() != "exists" || existsTerm.Arity() != 3 {
		return nil, fmt.Errorf("skolem: expected (exists vars body), got %v", existsTerm)
	}
	varsTerm := existsTerm.Nth(1)
	body := existsTerm.Nth(2)

	quantified, err := quantifiedVars(varsTerm)
	if err != nil {
		return nil, err
	}

	freeArgs := freeVarsExcept(body, quantified, theta)

	subst := unify.Bindings{}
	for _, v := range quantified {
		var skTerm *term.Term
		if len(freeArgs) == 0 {
			skTerm = term.NewAtom(fmt.Sprintf("%s%s_%d", term.SkolemConstPre, bareName(v), counter.next()))
		} else {
			fnName := term.NewAtom(fmt.Sprintf("%s%s_%d", term.SkolemFuncPre, bareName(v), counter.next()))
			children := append([]*term.Term{fnName}, freeArgs...)
			skTerm = term.NewList(children...)
		}
		subst[v.Name()] = skTerm
	}

	result := unify.Subst(body, subst)
	if !result.IsList() {
		return nil, fmt.Errorf("skolem: substituted body is not a list: %v", result)
	}
	return result, nil
}

func bareName(v *term.Term) string {
	// drop the leading '?'
	if len(v.Name()) > 1 {
		return v.Name()[1:]
	}
	return "v"
}

func quantifiedVars(varsTerm *term.Term) ([]*term.Term, error) {
	if varsTerm.IsVar() {
		return []*term.Term{varsTerm}, nil
	}
	if varsTerm.IsList() {
		out := make([]*term.Term, 0, varsTerm.Arity())
		for _, c := range varsTerm.Children() {
			if !c.IsVar() {
				return nil, fmt.Errorf("skolem: expected variable in quantifier list, got %v", c)
			}
			out = append(out, c)
		}
		return out, nil
	}
	return nil, fmt.Errorf("skolem: expected a variable or list of variables, got %v", varsTerm)
}

// freeVarsExcept collects the free variables of body that are not in
// excluded, substitutes each through theta, and returns them sorted by
// printed form for a stable, deterministic argument order.
func freeVarsExcept(body *term.Term, excluded []*term.Term, theta unify.Bindings) []*term.Term {
	excludedNames := make(map[string]bool, len(excluded))
	for _, v := range excluded {
		excludedNames[v.Name()] = true
	}

	seen := map[string]*term.Term{}
	for name, v := range body.Vars() {
		if excludedNames[name] {
			continue
		}
		resolved := unify.SubstFully(v, theta)
		seen[resolved.HashKey()] = resolved
	}

	out := make([]*term.Term, 0, len(seen))
	for _, v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
