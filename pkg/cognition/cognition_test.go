package cognition

import (
	"testing"

	"github.com/cogreason/reasoner/pkg/assertion"
	"github.com/cogreason/reasoner/pkg/eventbus"
	"github.com/cogreason/reasoner/pkg/parser"
)

func mustParse(t *testing.T, s string) *assertion.PotentialAssertion {
	t.Helper()
	tr, err := parser.Parse(s)
	if err != nil {
		t.Fatalf("parsing %q: %v", s, err)
	}
	return &assertion.PotentialAssertion{Kif: tr, Priority: 0.5}
}

func TestNoteIsLazilyCreatedAndStable(t *testing.T) {
	bus := eventbus.New()
	defer bus.Shutdown()
	c := New(bus, 10)

	if c.NoteCount() != 0 {
		t.Fatalf("expected no per-note KBs before first use, got %d", c.NoteCount())
	}
	first := c.Note("note1")
	second := c.Note("note1")
	if first != second {
		t.Error("expected repeated Note calls for the same id to return the same KB")
	}
	if c.NoteCount() != 1 {
		t.Errorf("NoteCount() = %d, want 1", c.NoteCount())
	}
}

func TestKBForResolvesGlobalAndNotes(t *testing.T) {
	bus := eventbus.New()
	defer bus.Shutdown()
	c := New(bus, 10)

	if c.KBFor("") != c.Global() {
		t.Error("KBFor(\"\") should resolve to the global KB")
	}
	if c.KBFor(GlobalKBID) != c.Global() {
		t.Error("KBFor(GlobalKBID) should resolve to the global KB")
	}
	if c.KBFor("note1") != c.Note("note1") {
		t.Error("KBFor(noteID) should resolve to that note's KB")
	}
}

func TestAddRuleIsSetInsertedByForm(t *testing.T) {
	bus := eventbus.New()
	defer bus.Shutdown()
	c := New(bus, 10)

	form, err := parser.Parse("(=> (instance ?x Dog) (instance ?x Animal))")
	if err != nil {
		t.Fatal(err)
	}
	r1, err := c.AddRule(form, 10)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := c.AddRule(form, 10)
	if err != nil {
		t.Fatal(err)
	}
	if r1 != r2 {
		t.Error("expected re-adding the same rule form to return the existing rule")
	}
	if c.RuleCount() != 1 {
		t.Errorf("RuleCount() = %d, want 1", c.RuleCount())
	}
}

func TestCommonSourceNoteAgreement(t *testing.T) {
	bus := eventbus.New()
	defer bus.Shutdown()
	c := New(bus, 10)

	pa1 := mustParse(t, "(instance Rex Dog)")
	pa1.SourceNoteID = "note1"
	a1, err := c.Global().Commit(pa1, "test")
	if err != nil {
		t.Fatal(err)
	}

	pa2 := mustParse(t, "(instance Fido Dog)")
	pa2.SourceNoteID = "note1"
	a2, err := c.Global().Commit(pa2, "test")
	if err != nil {
		t.Fatal(err)
	}

	note, ok := c.CommonSourceNote(map[string]bool{a1.ID: true, a2.ID: true})
	if !ok || note != "note1" {
		t.Errorf("CommonSourceNote() = (%q, %v), want (note1, true)", note, ok)
	}
}

func TestCommonSourceNoteDivergence(t *testing.T) {
	bus := eventbus.New()
	defer bus.Shutdown()
	c := New(bus, 10)

	pa1 := mustParse(t, "(instance Rex Dog)")
	pa1.SourceNoteID = "note1"
	a1, err := c.Global().Commit(pa1, "test")
	if err != nil {
		t.Fatal(err)
	}

	pa2 := mustParse(t, "(instance Fido Dog)")
	pa2.SourceNoteID = "note2"
	a2, err := c.Global().Commit(pa2, "test")
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := c.CommonSourceNote(map[string]bool{a1.ID: true, a2.ID: true}); ok {
		t.Error("expected divergent source notes to yield ok=false")
	}
}

func TestDerivedPriorityAndDepthForwardToAssertionPackage(t *testing.T) {
	bus := eventbus.New()
	defer bus.Shutdown()
	c := New(bus, 10)

	pa := mustParse(t, "(instance Rex Dog)")
	pa.Priority = 8
	pa.DerivationDepth = 2
	a, err := c.Global().Commit(pa, "test")
	if err != nil {
		t.Fatal(err)
	}

	got := c.DerivedPriority(map[string]bool{a.ID: true}, 10)
	want := assertion.DerivedPriority([]float64{8}, 10)
	if got != want {
		t.Errorf("DerivedPriority() = %v, want %v", got, want)
	}

	gotDepth := c.DerivedDepth(map[string]bool{a.ID: true})
	wantDepth := assertion.DerivedDepth([]int{2})
	if gotDepth != wantDepth {
		t.Errorf("DerivedDepth() = %v, want %v", gotDepth, wantDepth)
	}
}
