package unify

import (
	"testing"

	"github.com/cogreason/reasoner/pkg/parser"
	"github.com/cogreason/reasoner/pkg/term"
)

func mustParse(t *testing.T, s string) *term.Term {
	t.Helper()
	tr, err := parser.Parse(s)
	if err != nil {
		t.Fatalf("parsing %q: %v", s, err)
	}
	return tr
}

func TestUnifySoundnessAndIdempotence(t *testing.T) {
	x := mustParse(t, "(instance ?a Dog)")
	y := mustParse(t, "(instance Rex ?b)")

	theta, ok := Unify(x, y, Bindings{})
	if !ok {
		t.Fatal("expected unification to succeed")
	}

	sx := SubstFully(x, theta)
	sy := SubstFully(y, theta)
	if !sx.Equal(sy) {
		t.Errorf("subst(x) = %v, subst(y) = %v; expected equal", sx, sy)
	}

	idem := SubstFully(sx, theta)
	if !idem.Equal(sx) {
		t.Error("expected SubstFully to be idempotent")
	}
}

func TestOccursCheck(t *testing.T) {
	x := term.MustVar("?X")
	fx := term.NewList(term.NewAtom("f"), x)

	if _, ok := Unify(x, fx, Bindings{}); ok {
		t.Error("expected unify(?X, (f ?X)) to fail occurs-check")
	}

	theta, ok := Match(x, fx, Bindings{})
	if !ok {
		t.Fatal("expected match(?X, (f ?X)) to succeed (no occurs-check)")
	}
	if !theta["?X"].Equal(fx) {
		t.Errorf("?X bound to %v, want %v", theta["?X"], fx)
	}
}

func TestMatchVarsOnlyOnPatternSide(t *testing.T) {
	pattern := mustParse(t, "(likes ?p Cats)")
	fact := mustParse(t, "(likes Ana Cats)")

	theta, ok := Match(pattern, fact, Bindings{})
	if !ok {
		t.Fatal("expected match to succeed")
	}
	if theta["?p"].Name() != "Ana" {
		t.Errorf("?p = %v, want Ana", theta["?p"])
	}

	// Term-side variables must not be treated as pattern variables.
	patternAtom := mustParse(t, "(likes Ana Cats)")
	factWithVar := mustParse(t, "(likes Ana ?x)")
	if _, ok := Match(patternAtom, factWithVar, Bindings{}); ok {
		t.Error("expected match to fail when only term side has a variable")
	}
}

func TestRewrite(t *testing.T) {
	lhs := mustParse(t, "(father Bob)")
	rhs := mustParse(t, "Alice")
	target := mustParse(t, "(knows Carol (father Bob))")

	result, ok := Rewrite(target, lhs, rhs)
	if !ok {
		t.Fatal("expected rewrite to find a match in a subterm")
	}
	want := mustParse(t, "(knows Carol Alice)")
	if !result.Equal(want) {
		t.Errorf("rewrite = %v, want %v", result, want)
	}

	if _, ok := Rewrite(mustParse(t, "(unrelated X)"), lhs, rhs); ok {
		t.Error("expected no rewrite when lhs does not occur")
	}
}

func TestBindingChains(t *testing.T) {
	theta := Bindings{}
	theta, ok := Unify(term.MustVar("?a"), term.MustVar("?b"), theta)
	if !ok {
		t.Fatal("unify ?a ?b failed")
	}
	theta, ok = Unify(term.MustVar("?b"), term.NewAtom("Rex"), theta)
	if !ok {
		t.Fatal("unify ?b Rex failed")
	}
	got := SubstFully(term.MustVar("?a"), theta)
	if got.Name() != "Rex" {
		t.Errorf("?a resolved to %v, want Rex", got)
	}
}
