// Package kb implements the knowledge base: the sole entry point for
// committing new assertions. A KB wraps a PathIndex (for Ground/Skolemized
// assertions), a predicate-keyed index of Universal assertions, and a
// min-heap used for capacity-triggered eviction; it delegates truth
// maintenance to a shared TMS and keeps its indices in sync with that TMS
// via bus subscriptions, following the same read/write-lock-guarded
// registry shape used elsewhere in this codebase (parallel.WorkerPool).
package kb

import (
	"container/heap"
	"fmt"
	"log"
	"sync"

	"github.com/cogreason/reasoner/pkg/assertion"
	"github.com/cogreason/reasoner/pkg/eventbus"
	"github.com/cogreason/reasoner/pkg/pathindex"
	"github.com/cogreason/reasoner/pkg/term"
	"github.com/cogreason/reasoner/pkg/tms"
	"github.com/cogreason/reasoner/pkg/unify"
)

// KB is a single knowledge-base scope: the global KB or one note's KB.
type KB struct {
	mu       sync.RWMutex
	id       string
	capacity int

	tms *tms.TMS
	bus *eventbus.Bus
	idc *assertion.IDCounter

	index     *pathindex.Index
	universal map[string]map[string]bool // predicate -> universal assertion ids

	evictHeap  *idHeap
	groundSize int
	indexed    map[string]bool // ids currently filed in index/evictHeap, so indexLocked/unindexLocked are idempotent
}

// New constructs a KB with the given id (e.g. "kb://global" or a note id)
// and capacity, sharing tms, bus, and an id counter with the rest of
// Cognition. It subscribes itself to the bus so that status changes and
// retractions originating elsewhere (cascaded through the shared TMS) keep
// this KB's own indices correct as those notifications arrive.
func New(id string, capacity int, t *tms.TMS, bus *eventbus.Bus, idc *assertion.IDCounter) *KB {
	kb := &KB{
		id:        id,
		capacity:  capacity,
		tms:       t,
		bus:       bus,
		idc:       idc,
		index:     pathindex.New(),
		universal: map[string]map[string]bool{},
		evictHeap: &idHeap{tms: t},
		indexed:   map[string]bool{},
	}
	bus.On(eventbus.AssertionStatusChanged, kb.onStatusChanged)
	bus.On(eventbus.AssertionRetracted, kb.onRetracted)
	return kb
}

// ID returns the KB's scope id.
func (kb *KB) ID() string { return kb.id }

// Commit runs the eight-step commit algorithm (trivial-rejection through
// indexing and announcement) and returns the stored Assertion on success.
func (kb *KB) Commit(pa *assertion.PotentialAssertion, source string) (*assertion.Assertion, error) {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	// Step 1: trivially true/false forms are rejected outright.
	if assertion.IsTriviallyTrivial(pa.Kif) {
		return nil, fmt.Errorf("kb %s: rejected trivial assertion %v", kb.id, pa.Kif)
	}

	// Step 2: an active assertion with an equal kif already exists.
	if _, ok := kb.tms.ActiveIDByKif(kb.id, pa.Kif); ok {
		return nil, fmt.Errorf("kb %s: duplicate active assertion %v", kb.id, pa.Kif)
	}

	// Step 3: subsumed by an active generalisation already in this KB.
	// GeneralisationsOf only narrows by head-symbol walk, so every
	// candidate is re-checked with a real one-way match before it counts as
	// a subsuming generalisation; the pathindex holds only Ground/
	// Skolemized forms, so this is a no-op for Universal proposals.
	for id := range kb.index.GeneralisationsOf(pa.Kif) {
		a, ok := kb.tms.Get(id)
		if !ok || !a.Active || id == "" {
			continue
		}
		if _, matched := unify.Match(a.Kif, pa.Kif, unify.Bindings{}); matched {
			return nil, fmt.Errorf("kb %s: %v is subsumed by existing assertion %s", kb.id, pa.Kif, id)
		}
	}

	// Step 4: capacity enforcement.
	for kb.groundSize >= kb.capacity && pa.Type != assertion.Universal {
		if !kb.evictOneLocked() {
			log.Printf("[KB] %s: at capacity (%d) with nothing evictable, rejecting %v", kb.id, kb.capacity, pa.Kif)
			return nil, fmt.Errorf("kb %s: at capacity (%d) and nothing evictable", kb.id, kb.capacity)
		}
	}

	// Step 5: Ground promoted to Skolemized iff the kif contains Skolem terms.
	finalType := pa.Type
	if finalType == assertion.Ground && pa.Kif.ContainsSkolem() {
		finalType = assertion.Skolemized
	}

	// Step 6: assign id, build the Assertion, hand it to the TMS.
	a := &assertion.Assertion{
		ID:                 kb.idc.Next(),
		Kif:                pa.Kif,
		Priority:           pa.Priority,
		SourceNoteID:       pa.SourceNoteID,
		Type:               finalType,
		IsEquality:         pa.IsEquality,
		IsOrientedEquality: pa.IsOrientedEquality,
		Negated:            pa.Negated,
		QuantifiedVars:     pa.QuantifiedVars,
		DerivationDepth:    pa.DerivationDepth,
		KBID:               kb.id,
	}
	if err := kb.tms.Add(a, pa.JustificationIDs, source); err != nil {
		return nil, fmt.Errorf("kb %s: %w", kb.id, err)
	}

	// Step 7: index if it remains active.
	if a.Active {
		kb.indexLocked(a)
	}

	// Step 8: announce.
	kb.bus.Emit(eventbus.Event{
		Type:    eventbus.AssertionAdded,
		Payload: eventbus.AssertionAddedPayload{Assertion: a, KBID: kb.id},
	})
	return a, nil
}

// Retract delegates to the TMS; this KB's own indices are updated
// asynchronously when the resulting AssertionRetracted/StatusChanged events
// arrive on the bus.
func (kb *KB) Retract(id string, source string) {
	kb.tms.Retract(id, source)
}

// evictOneLocked pops the most eviction-worthy id from the heap and, if it
// is still live, belongs to this KB, and is Ground/Skolemized, retracts it
// and emits AssertionEvicted. Stale heap entries (already retracted, or
// since reassigned to another KB — which cannot happen, but defends
// against bookkeeping drift) are silently discarded and the next entry is
// tried. Returns false once the heap is exhausted without finding anything
// to evict. Must be called with kb.mu held.
func (kb *KB) evictOneLocked() bool {
	for kb.evictHeap.Len() > 0 {
		id := heap.Pop(kb.evictHeap).(string)
		a, ok := kb.tms.Get(id)
		if !ok || a.KBID != kb.id || !a.Active || a.Type == assertion.Universal {
			continue
		}
		kb.tms.Retract(id, "eviction")
		kb.unindexLocked(a)
		kb.bus.Emit(eventbus.Event{
			Type:    eventbus.AssertionEvicted,
			Payload: eventbus.AssertionAddedPayload{Assertion: a, KBID: kb.id},
		})
		return true
	}
	return false
}

// indexLocked adds a to the appropriate index. Must be called with kb.mu
// held. Idempotent: a Ground/Skolemized assertion already recorded in
// kb.indexed (e.g. a commit that indexed it at step 7, followed by a
// StatusChanged(true) for the same id) is left untouched rather than
// double-counted.
func (kb *KB) indexLocked(a *assertion.Assertion) {
	if a.Type == assertion.Universal {
		for _, pred := range assertion.ReferencedPredicates(a.Kif) {
			if kb.universal[pred] == nil {
				kb.universal[pred] = map[string]bool{}
			}
			kb.universal[pred][a.ID] = true
		}
		return
	}
	if kb.indexed[a.ID] {
		return
	}
	kb.index.Add(a.ID, a.Kif)
	heap.Push(kb.evictHeap, a.ID)
	kb.groundSize++
	kb.indexed[a.ID] = true
}

// unindexLocked removes a from the appropriate index. Must be called with
// kb.mu held. Idempotent: a Ground/Skolemized assertion that was committed
// inactive (so step 7 never indexed it) and then reported via
// StatusChanged(false) is a no-op here instead of spuriously decrementing
// groundSize.
func (kb *KB) unindexLocked(a *assertion.Assertion) {
	if a.Type == assertion.Universal {
		for _, pred := range assertion.ReferencedPredicates(a.Kif) {
			delete(kb.universal[pred], a.ID)
		}
		return
	}
	if !kb.indexed[a.ID] {
		return
	}
	kb.index.Remove(a.ID, a.Kif)
	kb.groundSize--
	delete(kb.indexed, a.ID)
}

func (kb *KB) onStatusChanged(ev eventbus.Event) {
	p := ev.Payload.(eventbus.AssertionStatusChangedPayload)
	if p.KBID != kb.id {
		return
	}
	a, ok := kb.tms.Get(p.ID)
	if !ok {
		return
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if p.Active {
		kb.indexLocked(a)
	} else {
		kb.unindexLocked(a)
	}
}

func (kb *KB) onRetracted(ev eventbus.Event) {
	p := ev.Payload.(eventbus.AssertionAddedPayload)
	if p.KBID != kb.id {
		return
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.unindexLocked(p.Assertion)
}

// UnifiableWith, InstancesOf, and GeneralisationsOf expose the Ground/
// Skolemized pathindex for reasoner plugins; each returns the set of
// matching assertion ids (callers must still confirm activeness via the
// TMS, since the index can briefly lag a concurrent status change).
func (kb *KB) UnifiableWith(q *term.Term) map[string]bool {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.index.UnifiableWith(q)
}

// InstancesOf returns ids of assertions that are ground instances of
// pattern q.
func (kb *KB) InstancesOf(q *term.Term) map[string]bool {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.index.InstancesOf(q)
}

// GeneralisationsOf returns ids of assertions more general than q.
func (kb *KB) GeneralisationsOf(q *term.Term) map[string]bool {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.index.GeneralisationsOf(q)
}

// AllGroundIDs returns every Ground/Skolemized assertion id currently
// indexed by this KB, regardless of its path-index key. The path index
// files a term only under its own top-level head symbol (spec.md §4.3), so
// it cannot answer "which assertions contain q as a subterm" — callers that
// need subterm-aware scanning (oriented rewriting's target search) must
// walk the full set themselves rather than going through UnifiableWith.
func (kb *KB) AllGroundIDs() map[string]bool {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.index.AllIDs()
}

// AllActiveIDs returns every assertion id currently indexed by this KB,
// Ground/Skolemized and Universal alike — used to implement a ByNote
// retraction sweep.
func (kb *KB) AllActiveIDs() map[string]bool {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	out := kb.index.AllIDs()
	for _, ids := range kb.universal {
		for id := range ids {
			out[id] = true
		}
	}
	return out
}

// UniversalsForPredicate returns the ids of Universal assertions in this KB
// that reference pred.
func (kb *KB) UniversalsForPredicate(pred string) map[string]bool {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	out := make(map[string]bool, len(kb.universal[pred]))
	for id := range kb.universal[pred] {
		out[id] = true
	}
	return out
}
