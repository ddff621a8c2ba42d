package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/cogreason/reasoner/pkg/assertion"
	"github.com/cogreason/reasoner/pkg/parser"
	"github.com/cogreason/reasoner/pkg/unify"
)

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

func TestDirectSubscription(t *testing.T) {
	b := New()
	defer b.Shutdown()

	var mu sync.Mutex
	var got []Event
	b.On(RuleAdded, func(ev Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})

	b.Emit(Event{Type: RuleAdded, Payload: RuleEventPayload{}})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})
}

func TestPatternSubscriptionMatchesAssertionAdded(t *testing.T) {
	b := New()
	defer b.Shutdown()

	kif, err := parser.Parse("(likes Ana Cats)")
	if err != nil {
		t.Fatal(err)
	}
	pattern, err := parser.Parse("(likes ?who Cats)")
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var who string
	b.OnPattern(pattern, func(bindings unify.Bindings, ev Event) {
		mu.Lock()
		if v, ok := bindings["?who"]; ok {
			who = v.Name()
		}
		mu.Unlock()
	})

	b.Emit(Event{Type: AssertionAdded, Payload: AssertionAddedPayload{
		Assertion: &assertion.Assertion{Kif: kif},
		KBID:      "kb://global",
	}})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return who == "Ana"
	})
}

func TestNonMatchingPatternIsNotInvoked(t *testing.T) {
	b := New()
	defer b.Shutdown()

	kif, _ := parser.Parse("(likes Ana Dogs)")
	pattern, _ := parser.Parse("(likes ?who Cats)")

	var mu sync.Mutex
	invoked := false
	b.OnPattern(pattern, func(bindings unify.Bindings, ev Event) {
		mu.Lock()
		invoked = true
		mu.Unlock()
	})

	b.Emit(Event{Type: AssertionAdded, Payload: AssertionAddedPayload{
		Assertion: &assertion.Assertion{Kif: kif},
		KBID:      "kb://global",
	}})

	// no positive wait condition exists for "never happens"; a direct
	// subscription on the same event acts as a synchronization barrier.
	var barrier sync.WaitGroup
	barrier.Add(1)
	b.On(AssertionAdded, func(Event) { barrier.Done() })
	b.Emit(Event{Type: AssertionAdded, Payload: AssertionAddedPayload{
		Assertion: &assertion.Assertion{Kif: kif},
		KBID:      "kb://global",
	}})
	barrier.Wait()

	mu.Lock()
	defer mu.Unlock()
	if invoked {
		t.Error("expected non-matching pattern subscriber to not be invoked")
	}
}

func TestStopDropsNewEmits(t *testing.T) {
	b := New()
	defer b.Shutdown()

	var mu sync.Mutex
	count := 0
	b.On(RuleAdded, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	b.Stop()
	b.Emit(Event{Type: RuleAdded, Payload: RuleEventPayload{}})

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("expected emits after Stop to be dropped, got %d deliveries", count)
	}
}

func TestPauseResume(t *testing.T) {
	b := New()
	defer b.Shutdown()

	b.Pause()
	done := make(chan struct{})
	go func() {
		b.WaitIfPaused()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected WaitIfPaused to block while paused")
	case <-time.After(20 * time.Millisecond):
	}

	b.Resume()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected WaitIfPaused to unblock after Resume")
	}
}
