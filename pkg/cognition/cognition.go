// Package cognition owns the global knowledge base, the lazily-created
// per-note knowledge bases, and the rule set, and provides the derivation
// math (priority, depth, common-ancestor note lookup, simplification) that
// the reasoner plugins share, owning that registry of long-lived resources
// behind a single RWMutex.
package cognition

import (
	"sync"

	"github.com/cogreason/reasoner/pkg/assertion"
	"github.com/cogreason/reasoner/pkg/eventbus"
	"github.com/cogreason/reasoner/pkg/kb"
	"github.com/cogreason/reasoner/pkg/term"
	"github.com/cogreason/reasoner/pkg/tms"
)

// GlobalKBID is the reserved id of the one global knowledge base.
const GlobalKBID = "kb://global"

// Cognition is the top-level registry: one global KB, a lazily-populated
// map of per-note KBs (same capacity as the global KB), and the rule set.
type Cognition struct {
	mu        sync.RWMutex
	bus       *eventbus.Bus
	tms       *tms.TMS
	idc       *assertion.IDCounter
	ruleIDC   *assertion.IDCounter
	capacity  int
	global    *kb.KB
	notes     map[string]*kb.KB
	rules     map[string]*assertion.Rule // keyed by Rule.Key()
}

// New constructs Cognition with the given per-KB capacity, sharing one
// EventBus and one TMS across the global KB and every note KB it creates.
func New(bus *eventbus.Bus, capacity int) *Cognition {
	m := tms.New(bus)
	idc := assertion.NewIDCounter(term.FactPrefix)
	ruleIDC := assertion.NewIDCounter(term.RulePrefix)
	c := &Cognition{
		bus:      bus,
		tms:      m,
		idc:      idc,
		ruleIDC:  ruleIDC,
		capacity: capacity,
		notes:    map[string]*kb.KB{},
		rules:    map[string]*assertion.Rule{},
	}
	c.global = kb.New(GlobalKBID, capacity, m, bus, idc)
	return c
}

// Global returns the global KB.
func (c *Cognition) Global() *kb.KB { return c.global }

// Note returns the KB for noteID, creating it (with the global KB's
// capacity) on first use.
func (c *Cognition) Note(noteID string) *kb.KB {
	c.mu.RLock()
	if k, ok := c.notes[noteID]; ok {
		c.mu.RUnlock()
		return k
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if k, ok := c.notes[noteID]; ok {
		return k
	}
	k := kb.New(noteID, c.capacity, c.tms, c.bus, c.idc)
	c.notes[noteID] = k
	return k
}

// KBFor resolves a target note id to its KB: "" and GlobalKBID both mean
// the global KB.
func (c *Cognition) KBFor(noteID string) *kb.KB {
	if noteID == "" || noteID == GlobalKBID {
		return c.global
	}
	return c.Note(noteID)
}

// TMS returns the shared truth-maintenance store.
func (c *Cognition) TMS() *tms.TMS { return c.tms }

// AddRule inserts r by set-insertion (rule equality is by form); a
// duplicate form is a silent no-op. Emits RuleAdded on success.
func (c *Cognition) AddRule(form *term.Term, priority float64) (*assertion.Rule, error) {
	c.mu.Lock()
	r, err := assertion.ParseRule(form, c.ruleIDC, priority)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	key := r.Key()
	if existing, ok := c.rules[key]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	c.rules[key] = r
	c.mu.Unlock()

	c.bus.Emit(eventbus.Event{Type: eventbus.RuleAdded, Payload: eventbus.RuleEventPayload{Rule: r}})
	return r, nil
}

// RemoveRule deletes the rule with the given form, if present, and emits
// RuleRemoved.
func (c *Cognition) RemoveRule(form *term.Term) {
	key := form.HashKey()
	c.mu.Lock()
	r, ok := c.rules[key]
	if ok {
		delete(c.rules, key)
	}
	c.mu.Unlock()
	if ok {
		c.bus.Emit(eventbus.Event{Type: eventbus.RuleRemoved, Payload: eventbus.RuleEventPayload{Rule: r}})
	}
}

// Rules returns a snapshot of the current rule set.
func (c *Cognition) Rules() []*assertion.Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*assertion.Rule, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r)
	}
	return out
}

// RuleCount returns the number of distinct rule forms currently held.
func (c *Cognition) RuleCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rules)
}

// NoteCount returns the number of per-note KBs created so far (excludes the
// global KB).
func (c *Cognition) NoteCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.notes)
}

// DerivedPriority/DerivedDepth/Simplify forward to pkg/assertion's pure
// implementations; kept as Cognition methods since they operate on
// Cognition-owned state, without duplicating their logic.

// DerivedPriority computes a derived assertion's priority from its
// supporters' priorities and its own proposed base priority.
func (c *Cognition) DerivedPriority(supporterIDs map[string]bool, base float64) float64 {
	priorities := make([]float64, 0, len(supporterIDs))
	for id := range supporterIDs {
		if a, ok := c.tms.Get(id); ok {
			priorities = append(priorities, a.Priority)
		}
	}
	return assertion.DerivedPriority(priorities, base)
}

// DerivedDepth computes a derived assertion's depth from its supporters'
// depths.
func (c *Cognition) DerivedDepth(supporterIDs map[string]bool) int {
	depths := make([]int, 0, len(supporterIDs))
	for id := range supporterIDs {
		if a, ok := c.tms.Get(id); ok {
			depths = append(depths, a.DerivationDepth)
		}
	}
	return assertion.DerivedDepth(depths)
}

// Simplify forwards to assertion.Simplify.
func (c *Cognition) Simplify(t *term.Term) *term.Term { return assertion.Simplify(t) }

// CommonSourceNote performs a BFS over the support DAG rooted at
// supporterIDs: if every reachable assertion that carries a non-empty
// SourceNoteID agrees on that id, it is returned; any divergence (or no
// assertion carrying one) yields ("", false).
func (c *Cognition) CommonSourceNote(supporterIDs map[string]bool) (string, bool) {
	seen := map[string]bool{}
	queue := make([]string, 0, len(supporterIDs))
	for id := range supporterIDs {
		queue = append(queue, id)
	}
	found := ""
	haveOne := false
	for i := 0; i < len(queue); i++ {
		id := queue[i]
		if seen[id] {
			continue
		}
		seen[id] = true
		a, ok := c.tms.Get(id)
		if !ok {
			continue
		}
		if a.SourceNoteID != "" {
			if !haveOne {
				found, haveOne = a.SourceNoteID, true
			} else if found != a.SourceNoteID {
				return "", false
			}
		}
		for s := range c.tms.SupportersOf(id) {
			queue = append(queue, s)
		}
	}
	if !haveOne {
		return "", false
	}
	return found, true
}
