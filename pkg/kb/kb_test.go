package kb

import (
	"sync"
	"testing"
	"time"

	"github.com/cogreason/reasoner/pkg/assertion"
	"github.com/cogreason/reasoner/pkg/eventbus"
	"github.com/cogreason/reasoner/pkg/parser"
	"github.com/cogreason/reasoner/pkg/tms"
)

func mustParse(t *testing.T, s string) *assertion.PotentialAssertion {
	t.Helper()
	tr, err := parser.Parse(s)
	if err != nil {
		t.Fatalf("parsing %q: %v", s, err)
	}
	return &assertion.PotentialAssertion{Kif: tr, Priority: 0.5}
}

func newKB(t *testing.T, capacity int) (*KB, *eventbus.Bus) {
	t.Helper()
	bus := eventbus.New()
	m := tms.New(bus)
	idc := assertion.NewIDCounter("fact_")
	return New("kb://test", capacity, m, bus, idc), bus
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

func TestCommitIndexesAndEmits(t *testing.T) {
	k, bus := newKB(t, 10)
	defer bus.Shutdown()

	var mu sync.Mutex
	var added []string
	bus.On(eventbus.AssertionAdded, func(ev eventbus.Event) {
		mu.Lock()
		added = append(added, ev.Payload.(eventbus.AssertionAddedPayload).Assertion.ID)
		mu.Unlock()
	})

	pa := mustParse(t, "(instance Rex Dog)")
	a, err := k.Commit(pa, "test")
	if err != nil {
		t.Fatal(err)
	}
	if !a.Active {
		t.Error("expected newly committed input assertion to be active")
	}

	pattern := mustParse(t, "(instance Rex ?x)").Kif
	ids := k.UnifiableWith(pattern)
	if !ids[a.ID] {
		t.Errorf("expected %s to be indexed and unifiable with %v", a.ID, pattern)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(added) == 1
	})
}

func TestCommitRejectsTrivial(t *testing.T) {
	k, bus := newKB(t, 10)
	defer bus.Shutdown()

	pa := mustParse(t, "(instance Rex Rex)")
	if _, err := k.Commit(pa, "test"); err == nil {
		t.Error("expected reflexive-predicate self-application to be rejected")
	}
}

func TestCommitRejectsExactDuplicate(t *testing.T) {
	k, bus := newKB(t, 10)
	defer bus.Shutdown()

	pa := mustParse(t, "(instance Rex Dog)")
	if _, err := k.Commit(pa, "test"); err != nil {
		t.Fatal(err)
	}
	if _, err := k.Commit(mustParse(t, "(instance Rex Dog)"), "test"); err == nil {
		t.Error("expected duplicate active kif to be rejected")
	}
}

func TestCommitRejectsSubsumedByGeneralisation(t *testing.T) {
	k, bus := newKB(t, 10)
	defer bus.Shutdown()

	general := mustParse(t, "(instance ?x Dog)")
	if _, err := k.Commit(general, "test"); err != nil {
		t.Fatal(err)
	}
	specific := mustParse(t, "(instance Rex Dog)")
	if _, err := k.Commit(specific, "test"); err == nil {
		t.Error("expected a more specific fact to be rejected as subsumed by an existing generalisation")
	}
}

func TestCapacityEvictsLeastValuable(t *testing.T) {
	k, bus := newKB(t, 2)
	defer bus.Shutdown()

	var mu sync.Mutex
	var evicted []string
	bus.On(eventbus.AssertionEvicted, func(ev eventbus.Event) {
		mu.Lock()
		evicted = append(evicted, ev.Payload.(eventbus.AssertionAddedPayload).Assertion.ID)
		mu.Unlock()
	})

	low := mustParse(t, "(instance A Dog)")
	low.Priority = 0.1
	aLow, err := k.Commit(low, "test")
	if err != nil {
		t.Fatal(err)
	}
	high := mustParse(t, "(instance B Dog)")
	high.Priority = 0.9
	if _, err := k.Commit(high, "test"); err != nil {
		t.Fatal(err)
	}

	// KB is now at capacity (2); a third commit must evict the
	// lower-priority entry first.
	third := mustParse(t, "(instance C Dog)")
	third.Priority = 0.5
	if _, err := k.Commit(third, "test"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(evicted) == 1
	})
	mu.Lock()
	defer mu.Unlock()
	if evicted[0] != aLow.ID {
		t.Errorf("evicted %v, want lowest-priority assertion %s", evicted, aLow.ID)
	}
}

func TestRetractUnindexes(t *testing.T) {
	k, bus := newKB(t, 10)
	defer bus.Shutdown()

	pa := mustParse(t, "(instance Rex Dog)")
	a, err := k.Commit(pa, "test")
	if err != nil {
		t.Fatal(err)
	}
	k.Retract(a.ID, "test")

	waitFor(t, func() bool {
		return !k.UnifiableWith(pa.Kif)[a.ID]
	})
}

func TestUniversalIndexedByPredicate(t *testing.T) {
	k, bus := newKB(t, 10)
	defer bus.Shutdown()

	form, err := parser.Parse("(forall (?x) (=> (instance ?x Dog) (instance ?x Mammal)))")
	if err != nil {
		t.Fatal(err)
	}
	pa := &assertion.PotentialAssertion{Kif: form, Type: assertion.Universal, Priority: 0.5}
	a, err := k.Commit(pa, "test")
	if err != nil {
		t.Fatal(err)
	}

	ids := k.UniversalsForPredicate("instance")
	if !ids[a.ID] {
		t.Errorf("expected universal %s to be indexed under predicate instance", a.ID)
	}
}
