package operators

import (
	"context"
	"math"
	"strconv"
	"testing"

	"github.com/cogreason/reasoner/pkg/term"
)

func TestArithmetic(t *testing.T) {
	r := NewRegistry()
	fn, ok := r.Lookup("+")
	if !ok {
		t.Fatal("expected + to be registered")
	}
	result := fn(context.Background(), []*term.Term{term.NewAtom("2"), term.NewAtom("3")})
	if result == nil || result.Name() != "5" {
		t.Errorf("2 + 3 = %v, want 5", result)
	}
}

func TestDivisionByZeroIsNaN(t *testing.T) {
	r := NewRegistry()
	fn, _ := r.Lookup("/")
	result := fn(context.Background(), []*term.Term{term.NewAtom("1"), term.NewAtom("0")})
	if result == nil {
		t.Fatal("expected a result term for 1/0")
	}
	f, err := strconv.ParseFloat(result.Name(), 64)
	if err != nil || !math.IsNaN(f) {
		t.Errorf("1/0 = %v, want NaN", result)
	}
}

func TestComparisons(t *testing.T) {
	r := NewRegistry()
	fn, _ := r.Lookup("<")
	result := fn(context.Background(), []*term.Term{term.NewAtom("17"), term.NewAtom("20")})
	if result == nil || result.Name() != "true" {
		t.Errorf("17 < 20 = %v, want true", result)
	}
}

func TestUnparseableArgsYieldNoResult(t *testing.T) {
	r := NewRegistry()
	fn, _ := r.Lookup("+")
	result := fn(context.Background(), []*term.Term{term.NewAtom("abc"), term.NewAtom("3")})
	if result != nil {
		t.Errorf("expected nil for unparseable argument, got %v", result)
	}
}

func TestLookupMissing(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Lookup("frobnicate"); ok {
		t.Error("expected no operator registered for an unknown predicate")
	}
}
