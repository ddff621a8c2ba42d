package pathindex

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

func TestAddAndUnifiableWith(t *testing.T) {
	idx := New()
	a := mustParse(t, "(instance Rex Dog)")
	b := mustParse(t, "(instance ?x Dog)")
	idx.Add("a1", a)
	idx.Add("a2", b)

	q := mustParse(t, "(instance Rex Dog)")
	got := idx.UnifiableWith(q)
	if !got["a1"] || !got["a2"] {
		t.Errorf("expected both a1 and a2 unifiable with %v, got %v", q, got)
	}
}

func TestInstancesOf(t *testing.T) {
	idx := New()
	idx.Add("ground", mustParse(t, "(instance Rex Dog)"))
	idx.Add("general", mustParse(t, "(instance ?x Dog)"))

	q := mustParse(t, "?q")
	got := idx.InstancesOf(q)
	if len(got) != 2 {
		t.Errorf("expected all ids as instances of a variable query, got %v", got)
	}

	q2 := mustParse(t, "(instance Rex Dog)")
	got2 := idx.InstancesOf(q2)
	if !got2["ground"] {
		t.Errorf("expected ground fact as an instance of itself, got %v", got2)
	}
}

func TestGeneralisationsOf(t *testing.T) {
	idx := New()
	idx.Add("general", mustParse(t, "(instance ?x Dog)"))
	idx.Add("unrelated", mustParse(t, "(subclass Rex Dog)"))

	q := mustParse(t, "(instance Rex Dog)")
	got := idx.GeneralisationsOf(q)
	if !got["general"] {
		t.Errorf("expected general stored term to subsume %v, got %v", q, got)
	}
	if got["unrelated"] {
		t.Errorf("did not expect unrelated term in generalisations of %v, got %v", q, got)
	}
}

func TestRemovePrunesEmptyNodes(t *testing.T) {
	idx := New()
	term1 := mustParse(t, "(instance Rex Dog)")
	idx.Add("a1", term1)
	idx.Remove("a1", term1)

	got := idx.UnifiableWith(term1)
	if len(got) != 0 {
		t.Errorf("expected empty result after removal, got %v", got)
	}
}
