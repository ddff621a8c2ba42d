// Package tms implements justification-based truth maintenance: it stores
// assertions and their support sets, propagates active/inactive status
// through the dependency DAG, and detects direct contradictions.
package tms

import (
	"fmt"
	"log"
	"sync"

	"github.com/cogreason/reasoner/pkg/assertion"
	"github.com/cogreason/reasoner/pkg/eventbus"
	"github.com/cogreason/reasoner/pkg/term"
)

// ResolutionStrategy names a contradiction-resolution policy. Only LogOnly
// is implemented; RetractWeakest is declared per spec.md §9's Open
// Questions resolution #3 but deliberately left unimplemented behind this
// interface.
type ResolutionStrategy int

const (
	LogOnly ResolutionStrategy = iota
	RetractWeakest
)

// TMS is the justification-based truth maintenance store.
type TMS struct {
	mu             sync.RWMutex
	assertions     map[string]*assertion.Assertion
	justifications map[string]map[string]bool // id -> supporter ids
	dependents     map[string]map[string]bool // id -> ids that cite it as a supporter
	byKif          map[string]map[string]string // kbID -> kif hash -> id, active assertions only

	bus        *eventbus.Bus
	resolution ResolutionStrategy
}

// New returns an empty TMS that emits its events on bus.
func New(bus *eventbus.Bus) *TMS {
	return &TMS{
		assertions:     map[string]*assertion.Assertion{},
		justifications: map[string]map[string]bool{},
		dependents:     map[string]map[string]bool{},
		byKif:          map[string]map[string]string{},
		bus:            bus,
		resolution:     LogOnly,
	}
}

// SetResolutionStrategy selects the contradiction-resolution policy.
// Selecting RetractWeakest is accepted but has no effect beyond logging —
// the source this reasoner is modelled on only ever logs, per spec.md §9.
func (t *TMS) SetResolutionStrategy(s ResolutionStrategy) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resolution = s
}

// Get returns the current stored assertion for id, if any.
func (t *TMS) Get(id string) (*assertion.Assertion, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.assertions[id]
	return a, ok
}

// SupportersOf returns the justification ids recorded for id, if any.
// Cognition's common_source_note walks this to BFS the support DAG.
func (t *TMS) SupportersOf(id string) map[string]bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]bool, len(t.justifications[id]))
	for s := range t.justifications[id] {
		out[s] = true
	}
	return out
}

// ActiveIDByKif returns the id of the active assertion in kbID whose Kif
// hashes equal to kif's, if any. Used by the KB to implement commit step 2
// (reject an equal-kif duplicate) without duplicating the TMS's own index.
func (t *TMS) ActiveIDByKif(kbID string, kif *term.Term) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m := t.byKif[kbID]
	if m == nil {
		return "", false
	}
	id, ok := m[kif.HashKey()]
	return id, ok
}

// Add stores a new assertion with the given supporter ids and source. It
// rejects a duplicate id, or any non-empty supporter set referencing a
// missing id. On success, a's Active field is set and AssertionAdded's
// caller (the KB) may then index it; this function itself only emits
// StatusChanged/ContradictionDetected as appropriate — the KB emits
// AssertionAdded.
func (t *TMS) Add(a *assertion.Assertion, supporters map[string]bool, source string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.assertions[a.ID]; exists {
		return fmt.Errorf("tms: duplicate assertion id %q", a.ID)
	}
	if len(supporters) > 0 {
		for s := range supporters {
			if _, ok := t.assertions[s]; !ok {
				return fmt.Errorf("tms: missing supporter %q for assertion %q", s, a.ID)
			}
		}
	}

	a.Active = t.computeActive(supporters)
	t.assertions[a.ID] = a
	t.justifications[a.ID] = supporters
	for s := range supporters {
		if t.dependents[s] == nil {
			t.dependents[s] = map[string]bool{}
		}
		t.dependents[s][a.ID] = true
	}

	if !a.Active {
		t.emitStatusChanged(a.ID, false, a.KBID)
		return nil
	}
	t.indexKif(a)
	t.checkContradiction(a)
	return nil
}

func (t *TMS) computeActive(supporters map[string]bool) bool {
	if len(supporters) == 0 {
		return true
	}
	for s := range supporters {
		if sup, ok := t.assertions[s]; !ok || !sup.Active {
			return false
		}
	}
	return true
}

// Retract removes id (and its bookkeeping) from the TMS, then cascades a
// status re-evaluation to every former dependent, in discovery (BFS) order
// — matching spec.md §8's cascade example: retracting A emits
// StatusChanged(false) for B then C, then AssertionRetracted(A).
func (t *TMS) Retract(id string, source string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.assertions[id]
	if !ok {
		return
	}
	wasActive := a.Active
	supporters := t.justifications[id]
	deps := t.dependents[id]

	delete(t.assertions, id)
	delete(t.justifications, id)
	delete(t.dependents, id)
	for s := range supporters {
		delete(t.dependents[s], id)
	}
	t.unindexKif(a)

	worklist := make([]string, 0, len(deps))
	for d := range deps {
		worklist = append(worklist, d)
	}
	for i := 0; i < len(worklist); i++ {
		more := t.updateStatus(worklist[i])
		worklist = append(worklist, more...)
	}

	if wasActive {
		t.bus.Emit(eventbus.Event{Type: eventbus.AssertionRetracted, Payload: eventbus.AssertionAddedPayload{Assertion: a, KBID: a.KBID}})
	} else {
		t.emitStatusChanged(id, false, a.KBID)
	}
}

// updateStatus recomputes id's active flag; if it changed, emits
// StatusChanged, runs the contradiction check on newly-active assertions,
// and returns id's own dependents so the caller can continue the cascade.
func (t *TMS) updateStatus(id string) []string {
	a, ok := t.assertions[id]
	if !ok {
		return nil
	}
	newActive := len(t.justifications[id]) > 0 && t.computeActive(t.justifications[id])
	if newActive == a.Active {
		return nil
	}
	a.Active = newActive
	t.emitStatusChanged(id, newActive, a.KBID)
	if newActive {
		t.indexKif(a)
		t.checkContradiction(a)
	} else {
		t.unindexKif(a)
	}

	deps := t.dependents[id]
	out := make([]string, 0, len(deps))
	for d := range deps {
		out = append(out, d)
	}
	return out
}

func (t *TMS) emitStatusChanged(id string, active bool, kbID string) {
	t.bus.Emit(eventbus.Event{
		Type: eventbus.AssertionStatusChanged,
		Payload: eventbus.AssertionStatusChangedPayload{
			ID: id, Active: active, KBID: kbID,
		},
	})
}

func (t *TMS) indexKif(a *assertion.Assertion) {
	if t.byKif[a.KBID] == nil {
		t.byKif[a.KBID] = map[string]string{}
	}
	t.byKif[a.KBID][a.Kif.HashKey()] = a.ID
}

func (t *TMS) unindexKif(a *assertion.Assertion) {
	m := t.byKif[a.KBID]
	if m == nil {
		return
	}
	if m[a.Kif.HashKey()] == a.ID {
		delete(m, a.Kif.HashKey())
	}
}

// checkContradiction looks for an active assertion, in a's own KB, whose
// kif equals a's complement; if found it emits ContradictionDetected.
// Resolution is left to the configured (and, per spec.md §9, unimplemented
// beyond LogOnly) ResolutionStrategy.
func (t *TMS) checkContradiction(a *assertion.Assertion) {
	complement := assertion.Complement(a.Kif)
	m := t.byKif[a.KBID]
	if m == nil {
		return
	}
	matchID, ok := m[complement.HashKey()]
	if !ok || matchID == a.ID {
		return
	}
	t.bus.Emit(eventbus.Event{
		Type: eventbus.ContradictionDetected,
		Payload: eventbus.ContradictionPayload{
			IDs:  [2]string{a.ID, matchID},
			KBID: a.KBID,
		},
	})
	if t.resolution == RetractWeakest {
		log.Printf("[TMS] RetractWeakest selected but unimplemented; contradiction between %s and %s logged only", a.ID, matchID)
	}
}
