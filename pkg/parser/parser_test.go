package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cogreason/reasoner/pkg/term"
)

func TestParseAtomsAndVars(t *testing.T) {
	tr, err := Parse("(instance ?x Dog)")
	if err != nil {
		t.Fatal(err)
	}
	if tr.OperatorName() != "instance" {
		t.Errorf("operator = %q", tr.OperatorName())
	}
	if !tr.Nth(1).IsVar() {
		t.Error("expected ?x to parse as a variable")
	}
	if tr.Nth(2).Name() != "Dog" {
		t.Errorf("got %q", tr.Nth(2).Name())
	}
}

func TestParseQuotedStringWithEscapes(t *testing.T) {
	tr, err := Parse(`(says Bob "line one\nline two")`)
	if err != nil {
		t.Fatal(err)
	}
	got := tr.Nth(2).Name()
	want := "line one\nline two"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseComments(t *testing.T) {
	text := "; a comment\n(instance Rex Dog) ; trailing comment"
	ts, err := ParseAll(text)
	if err != nil {
		t.Fatal(err)
	}
	if len(ts) != 1 {
		t.Fatalf("got %d terms, want 1", len(ts))
	}
}

func TestParseAllMultiple(t *testing.T) {
	ts, err := ParseAll("(a 1) (b 2) (c 3)")
	if err != nil {
		t.Fatal(err)
	}
	if len(ts) != 3 {
		t.Fatalf("got %d terms, want 3", len(ts))
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{"(a b", "a)", `"unterminated`, "?"}
	for _, c := range cases {
		if _, err := ParseAll(c); err == nil {
			t.Errorf("expected error parsing %q", c)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	texts := []string{
		`(instance ?x Dog)`,
		`(=> (instance ?x Dog) (attribute ?x Canine))`,
		`(says Bob "hello world")`,
		`Dog`,
		`?x`,
		`()`,
	}
	for _, text := range texts {
		t1, err := Parse(text)
		if err != nil {
			t.Fatalf("parsing %q: %v", text, err)
		}
		printed := ToKIF(t1)
		t2, err := Parse(printed)
		if err != nil {
			t.Fatalf("re-parsing %q: %v", printed, err)
		}
		if diff := cmp.Diff(t1, t2, cmp.Comparer(func(a, b *term.Term) bool {
			return a.Equal(b)
		})); diff != "" {
			t.Errorf("round-trip mismatch for %q (-parsed +reparsed):\n%s", text, diff)
		}
	}
}
