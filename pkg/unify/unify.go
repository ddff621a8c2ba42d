// Package unify provides first-order unification, one-way matching,
// capture-avoiding substitution, and subterm rewriting over the term
// algebra in pkg/term. All operations are bounded by a recursion-depth cap
// to tolerate pathological bindings without blowing the Go stack.
package unify

import (
	"github.com/cogreason/reasoner/pkg/term"
)

// MaxDepth bounds the recursion depth of unify/match/subst, a cap that
// tolerates pathological bindings without blowing the Go stack.
const MaxDepth = 50

// Bindings maps variable names to terms. The zero value is a valid empty
// binding set.
type Bindings map[string]*term.Term

// Clone returns a shallow copy of b.
func (b Bindings) Clone() Bindings {
	out := make(Bindings, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Unify attempts full first-order unification of x and y under bindings θ,
// with occurs-check on every new binding. Returns the extended bindings, or
// (nil, false) on failure.
func Unify(x, y *term.Term, theta Bindings) (Bindings, bool) {
	return unify(x, y, theta, 0)
}

func unify(x, y *term.Term, theta Bindings, depth int) (Bindings, bool) {
	if depth > MaxDepth {
		return nil, false
	}
	x = substOnce(x, theta)
	y = substOnce(y, theta)

	if x.IsVar() && y.IsVar() && x.Name() == y.Name() {
		return theta, true
	}
	if x.IsVar() {
		return bindVar(x, y, theta, true, depth)
	}
	if y.IsVar() {
		return bindVar(y, x, theta, true, depth)
	}
	if x.IsAtom() && y.IsAtom() {
		if x.Name() == y.Name() {
			return theta, true
		}
		return nil, false
	}
	if x.IsList() && y.IsList() {
		if x.Arity() != y.Arity() {
			return nil, false
		}
		cur := theta
		for i := 0; i < x.Arity(); i++ {
			var ok bool
			cur, ok = unify(x.Nth(i), y.Nth(i), cur, depth+1)
			if !ok {
				return nil, false
			}
		}
		return cur, true
	}
	return nil, false
}

// Match performs one-way matching: variables may appear only in pattern,
// never in term, and no occurs-check is applied.
func Match(pattern, t *term.Term, theta Bindings) (Bindings, bool) {
	return match(pattern, t, theta, 0)
}

func match(pattern, t *term.Term, theta Bindings, depth int) (Bindings, bool) {
	if depth > MaxDepth {
		return nil, false
	}
	pattern = substOnce(pattern, theta)
	t = substOnce(t, theta)

	if pattern.IsVar() {
		return bindVar(pattern, t, theta, false, depth)
	}
	if pattern.IsAtom() {
		if t.IsAtom() && pattern.Name() == t.Name() {
			return theta, true
		}
		return nil, false
	}
	if pattern.IsList() {
		if !t.IsList() || pattern.Arity() != t.Arity() {
			return nil, false
		}
		cur := theta
		for i := 0; i < pattern.Arity(); i++ {
			var ok bool
			cur, ok = match(pattern.Nth(i), t.Nth(i), cur, depth+1)
			if !ok {
				return nil, false
			}
		}
		return cur, true
	}
	return nil, false
}

// bindVar binds variable v to u under theta. If v already has a binding, it
// recurses on (theta[v], u) instead (unify mode) or fails if the existing
// binding doesn't match u (match mode is handled the same way, since match
// also threads bindings for repeated pattern variables). When occursCheck is
// true (unification only) the binding is rejected if v occurs free in u.
func bindVar(v, u *term.Term, theta Bindings, occursCheck bool, depth int) (Bindings, bool) {
	if existing, ok := theta[v.Name()]; ok {
		if occursCheck {
			return unify(existing, u, theta, depth+1)
		}
		return match(existing, u, theta, depth+1)
	}
	u = substOnce(u, theta)
	if occursCheck && occurs(v, u) {
		return nil, false
	}
	out := theta.Clone()
	out[v.Name()] = u
	return out, true
}

// occurs reports whether v appears free anywhere in t.
func occurs(v, t *term.Term) bool {
	if t.IsVar() {
		return t.Name() == v.Name()
	}
	if t.IsList() {
		for _, c := range t.Children() {
			if occurs(v, c) {
				return true
			}
		}
	}
	return false
}

// substOnce replaces every variable in t that is bound in theta, one level
// (not recursively substituting the result). Used internally so unify/match
// always compare fully-dereferenced terms without being confused by chains
// — chains are still resolved because bindVar recurses through theta.
func substOnce(t *term.Term, theta Bindings) *term.Term {
	if t.IsVar() {
		if bound, ok := theta[t.Name()]; ok {
			return bound
		}
		return t
	}
	if t.IsList() && t.HasVars() {
		changed := false
		children := make([]*term.Term, t.Arity())
		for i, c := range t.Children() {
			nc := substOnce(c, theta)
			if nc != c {
				changed = true
			}
			children[i] = nc
		}
		if changed {
			return term.NewList(children...)
		}
	}
	return t
}

// Subst applies theta to t exactly once (capture-avoiding — variables are
// never renamed so no capture can occur in this quantifier-free algebra).
func Subst(t *term.Term, theta Bindings) *term.Term {
	return substOnce(t, theta)
}

// SubstFully iteratively substitutes t under theta until a fixpoint is
// reached or MaxDepth iterations have elapsed.
func SubstFully(t *term.Term, theta Bindings) *term.Term {
	cur := t
	for i := 0; i < MaxDepth; i++ {
		next := substOnce(cur, theta)
		if next.Equal(cur) {
			return next
		}
		cur = next
	}
	return cur
}

// Rewrite attempts to match lhs against target; on success it returns
// SubstFully(rhs, bindings). Otherwise it recurses into target's subterms
// (when target is a list) and returns the first subterm rewrite found,
// with that one subterm replaced; if nothing in the tree matches, returns
// (nil, false).
func Rewrite(target, lhs, rhs *term.Term) (*term.Term, bool) {
	if b, ok := Match(lhs, target, Bindings{}); ok {
		return SubstFully(rhs, b), true
	}
	if !target.IsList() {
		return nil, false
	}
	children := target.Children()
	for i, c := range children {
		if nc, ok := Rewrite(c, lhs, rhs); ok {
			out := make([]*term.Term, len(children))
			copy(out, children)
			out[i] = nc
			return term.NewList(out...), true
		}
	}
	return nil, false
}
