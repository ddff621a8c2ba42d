// Package rewrite implements the oriented-rewriting reasoner plugin:
// whenever an active oriented equality or a potential rewrite target is
// asserted, it applies term rewriting across the current and global KB
// using pkg/unify's Rewrite directly.
package rewrite

import (
	"log"

	"github.com/cogreason/reasoner/pkg/assertion"
	"github.com/cogreason/reasoner/pkg/cognition"
	"github.com/cogreason/reasoner/pkg/eventbus"
	"github.com/cogreason/reasoner/pkg/kb"
	"github.com/cogreason/reasoner/pkg/reasoner"
	"github.com/cogreason/reasoner/pkg/term"
	"github.com/cogreason/reasoner/pkg/unify"
)

// Plugin is the oriented-rewriting reasoner.
type Plugin struct {
	cog *cognition.Cognition
	bus *eventbus.Bus
	cfg reasoner.Config
}

// New constructs an oriented-rewriting plugin and subscribes it to
// AssertionAdded on bus.
func New(cog *cognition.Cognition, bus *eventbus.Bus, cfg reasoner.Config) *Plugin {
	p := &Plugin{cog: cog, bus: bus, cfg: cfg}
	bus.On(eventbus.AssertionAdded, p.onAssertionAdded)
	return p
}

func (p *Plugin) onAssertionAdded(ev eventbus.Event) {
	payload := ev.Payload.(eventbus.AssertionAddedPayload)
	a := payload.Assertion
	if !a.Active || a.Type == assertion.Universal {
		return
	}
	currentKB := p.cog.KBFor(a.KBID)

	if !a.Negated && a.IsOrientedEquality && a.Kif.Arity() == 3 {
		p.rewriteTargetsWith(a, currentKB)
		return
	}
	p.rewriteWithEqualities(a, currentKB)
}

// rewriteTargetsWith treats a as a new oriented equality `(= lhs rhs)` and
// attempts to rewrite every other active Ground/Skolemized assertion with
// it. lhs may occur only as a subterm of a candidate's kif (e.g. lhs
// `(father Bob)` inside `(knows Carol (father Bob))`), and the path index
// files assertions only by their own top-level head symbol, so candidates
// cannot be narrowed by an index lookup on lhs — every other active
// assertion is a candidate, and unify.Rewrite itself performs the subterm
// search and reports whether anything actually rewrote.
func (p *Plugin) rewriteTargetsWith(eq *assertion.Assertion, currentKB *kb.KB) {
	lhs, rhs := eq.Kif.Nth(1), eq.Kif.Nth(2)
	for _, t := range p.otherActiveAssertions(currentKB, eq.ID) {
		p.tryRewrite(t, lhs, rhs, eq)
	}
}

// rewriteWithEqualities treats a as a potential rewrite target and scans
// all active oriented equalities in currentKB and the global KB. Every
// equality is tried directly: unify.Rewrite already performs the subterm
// search for lhs within target.Kif and reports (nil, false) when nothing
// matches anywhere, so no whole-term pre-match is needed (and a whole-term
// match would wrongly reject lhs occurring only as a subterm).
func (p *Plugin) rewriteWithEqualities(target *assertion.Assertion, currentKB *kb.KB) {
	for _, eq := range p.activeOrientedEqualities(currentKB) {
		if eq.ID == target.ID {
			continue
		}
		lhs, rhs := eq.Kif.Nth(1), eq.Kif.Nth(2)
		p.tryRewrite(target, lhs, rhs, eq)
	}
}

func (p *Plugin) tryRewrite(target *assertion.Assertion, lhs, rhs *term.Term, eq *assertion.Assertion) {
	rewritten, ok := unify.Rewrite(target.Kif, lhs, rhs)
	if !ok || !rewritten.IsList() || rewritten.Equal(target.Kif) {
		return
	}
	support := cloneSupport(target.JustificationIDs)
	support[target.ID] = true
	support[eq.ID] = true
	depth := target.DerivationDepth
	if eq.DerivationDepth > depth {
		depth = eq.DerivationDepth
	}
	depth++
	if rewritten.Weight() > p.cfg.MaxDerivedWeight || depth > p.cfg.MaxDerivationDepth {
		return
	}

	pa := &assertion.PotentialAssertion{
		Kif:             rewritten,
		Priority:        p.cog.DerivedPriority(support, target.Priority),
		Type:            assertion.Ground,
		Negated:         rewritten.OperatorName() == "not",
		JustificationIDs: support,
		DerivationDepth: depth,
	}
	commitKB := p.cog.KBFor(target.KBID)
	if _, err := commitKB.Commit(pa, "oriented-rewriting"); err != nil {
		log.Printf("[REWRITE] rejected: %v", err)
	}
}

func cloneSupport(s map[string]bool) map[string]bool {
	out := make(map[string]bool, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

func (p *Plugin) otherActiveAssertions(currentKB *kb.KB, excludeID string) []*assertion.Assertion {
	seen := map[string]bool{excludeID: true}
	var out []*assertion.Assertion
	consider := func(ids map[string]bool) {
		for id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			a, ok := p.cog.TMS().Get(id)
			if !ok || !a.Active {
				continue
			}
			out = append(out, a)
		}
	}
	consider(currentKB.AllGroundIDs())
	if currentKB != p.cog.Global() {
		consider(p.cog.Global().AllGroundIDs())
	}
	return out
}

func (p *Plugin) activeOrientedEqualities(currentKB *kb.KB) []*assertion.Assertion {
	pattern := term.NewList(term.NewAtom("="), term.MustVar("?lhs"), term.MustVar("?rhs"))
	seen := map[string]bool{}
	var out []*assertion.Assertion
	consider := func(ids map[string]bool) {
		for id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			a, ok := p.cog.TMS().Get(id)
			if !ok || !a.Active || a.Negated || !a.IsOrientedEquality {
				continue
			}
			out = append(out, a)
		}
	}
	consider(currentKB.UnifiableWith(pattern))
	if currentKB != p.cog.Global() {
		consider(p.cog.Global().UnifiableWith(pattern))
	}
	return out
}
