package skolem

import (
	"strings"
	"testing"

	"github.com/cogreason/reasoner/pkg/parser"
	"github.com/cogreason/reasoner/pkg/term"
	"github.com/cogreason/reasoner/pkg/unify"
)

func mustParse(t *testing.T, s string) *term.Term {
	t.Helper()
	tr, err := parser.Parse(s)
	if err != nil {
		t.Fatalf("parsing %q: %v", s, err)
	}
	return tr
}

func TestSkolemizeNoFreeVars(t *testing.T) {
	e := mustParse(t, "(exists (?k) (and (instance ?k Kitten) (owner ?k Mary)))")
	c := NewCounter()
	result, err := Skolemize(e, c, unify.Bindings{})
	if err != nil {
		t.Fatal(err)
	}
	if result.OperatorName() != "and" {
		t.Fatalf("unexpected result shape: %v", result)
	}
	first := result.Nth(1)
	second := result.Nth(2)
	skConst := first.Nth(1)
	if !strings.HasPrefix(skConst.Name(), term.SkolemConstPre) {
		t.Errorf("expected Skolem constant prefix, got %v", skConst)
	}
	if !second.Nth(1).Equal(skConst) {
		t.Error("expected both occurrences of ?k to share the same Skolem constant")
	}
	if !result.ContainsSkolem() {
		t.Error("expected ContainsSkolem to detect the fresh constant")
	}
}

func TestSkolemizeWithFreeVars(t *testing.T) {
	e := mustParse(t, "(exists (?k) (owner ?k ?owner))")
	c := NewCounter()
	result, err := Skolemize(e, c, unify.Bindings{})
	if err != nil {
		t.Fatal(err)
	}
	skTerm := result.Nth(1)
	if !skTerm.IsList() {
		t.Fatalf("expected Skolem function application, got %v", skTerm)
	}
	if !strings.HasPrefix(skTerm.OperatorName(), term.SkolemFuncPre) {
		t.Errorf("expected Skolem function prefix, got %v", skTerm.OperatorName())
	}
	if skTerm.Nth(1).Name() != "?owner" {
		t.Errorf("expected free variable ?owner as Skolem function argument, got %v", skTerm.Nth(1))
	}
}

func TestSkolemizeFreshness(t *testing.T) {
	e := mustParse(t, "(exists (?k) (instance ?k Kitten))")
	c := NewCounter()
	r1, err := Skolemize(e, c, unify.Bindings{})
	if err != nil {
		t.Fatal(err)
	}
	r2, err := Skolemize(e, c, unify.Bindings{})
	if err != nil {
		t.Fatal(err)
	}
	if r1.Equal(r2) {
		t.Error("expected successive Skolemizations to produce distinct fresh constants")
	}
}

func TestSkolemizeRejectsBadShape(t *testing.T) {
	bad := mustParse(t, "(exists ?k)")
	if _, err := Skolemize(bad, NewCounter(), unify.Bindings{}); err == nil {
		t.Error("expected error for malformed exists term")
	}
}
