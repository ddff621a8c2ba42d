// Package instantiate implements the universal-instantiation reasoner
// plugin: it matches newly active Ground/Skolemized assertions against
// Universal assertions (and vice versa) and commits the ground
// consequences.
package instantiate

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

// Plugin is the universal-instantiation reasoner.
type Plugin struct {
	cog *cognition.Cognition
	bus *eventbus.Bus
	cfg reasoner.Config
}

// New constructs a universal-instantiation plugin and subscribes it to
// AssertionAdded on bus.
func New(cog *cognition.Cognition, bus *eventbus.Bus, cfg reasoner.Config) *Plugin {
	p := &Plugin{cog: cog, bus: bus, cfg: cfg}
	bus.On(eventbus.AssertionAdded, p.onAssertionAdded)
	return p
}

func (p *Plugin) onAssertionAdded(ev eventbus.Event) {
	payload := ev.Payload.(eventbus.AssertionAddedPayload)
	a := payload.Assertion
	if !a.Active {
		return
	}
	currentKB := p.cog.KBFor(a.KBID)

	if a.Type == assertion.Universal {
		p.instantiateAgainstGrounds(a, currentKB)
		return
	}
	p.instantiateAgainstUniversals(a, currentKB)
}

func (p *Plugin) instantiateAgainstUniversals(alpha *assertion.Assertion, currentKB *kb.KB) {
	for _, pred := range assertion.ReferencedPredicates(alpha.Kif) {
		for id := range union(currentKB.UniversalsForPredicate(pred), p.cog.Global().UniversalsForPredicate(pred)) {
			u, ok := p.cog.TMS().Get(id)
			if !ok || !u.Active || u.DerivationDepth >= p.cfg.MaxDerivationDepth {
				continue
			}
			p.tryInstantiate(u, alpha)
		}
	}
}

func (p *Plugin) instantiateAgainstGrounds(u *assertion.Assertion, currentKB *kb.KB) {
	if u.DerivationDepth >= p.cfg.MaxDerivationDepth {
		return
	}
	pred := principalPredicate(u)
	if pred == "" {
		return
	}
	for _, alpha := range p.groundsForPredicate(currentKB, pred) {
		p.tryInstantiate(u, alpha)
	}
}

func principalPredicate(u *assertion.Assertion) string {
	if u.Kif.Arity() != 3 {
		return ""
	}
	body := u.Kif.Nth(2)
	if op := body.OperatorName(); op != "" {
		return op
	}
	preds := assertion.ReferencedPredicates(body)
	if len(preds) == 0 {
		return ""
	}
	return preds[0]
}

func (p *Plugin) groundsForPredicate(currentKB *kb.KB, pred string) []*assertion.Assertion {
	pattern := term.NewList(term.NewAtom(pred))
	seen := map[string]bool{}
	var out []*assertion.Assertion
	consider := func(ids map[string]bool) {
		for id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			a, ok := p.cog.TMS().Get(id)
			if !ok || !a.Active || a.Type == assertion.Universal || a.Kif.OperatorName() != pred {
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

func union(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for id := range a {
		out[id] = true
	}
	for id := range b {
		out[id] = true
	}
	return out
}

// tryInstantiate searches u's body for subexpressions that one-way-match
// alpha's kif, keeping only bindings that cover every quantified variable,
// and commits each resulting ground instantiation.
func (p *Plugin) tryInstantiate(u, alpha *assertion.Assertion) {
	if u.Kif.Arity() != 3 {
		return
	}
	quantified := u.QuantifiedVars
	body := u.Kif.Nth(2)

	for _, sub := range subterms(body) {
		theta, ok := unify.Match(sub, alpha.Kif, unify.Bindings{})
		if !ok || !coversAll(theta, quantified) {
			continue
		}
		result := unify.SubstFully(body, theta)
		if result.HasVars() || !result.IsList() || assertion.IsTriviallyTrivial(result) {
			continue
		}

		support := map[string]bool{u.ID: true, alpha.ID: true}
		for s := range u.JustificationIDs {
			support[s] = true
		}
		for s := range alpha.JustificationIDs {
			support[s] = true
		}
		depth := p.cog.DerivedDepth(support) + 1
		if depth > p.cfg.MaxDerivationDepth || result.Weight() > p.cfg.MaxDerivedWeight {
			continue
		}
		priority := p.cog.DerivedPriority(support, (u.Priority+alpha.Priority)/2)

		pa := &assertion.PotentialAssertion{
			Kif:              result,
			Priority:         priority,
			Type:             assertion.Ground,
			Negated:          result.OperatorName() == "not",
			JustificationIDs: support,
			DerivationDepth:  depth,
		}
		commitKB := p.cog.Global()
		if note, ok := p.cog.CommonSourceNote(support); ok {
			commitKB = p.cog.KBFor(note)
		}
		if _, err := commitKB.Commit(pa, "universal-instantiation"); err != nil {
			log.Printf("[UI] rejected: %v", err)
		}
	}
}

func coversAll(theta unify.Bindings, quantified []*term.Term) bool {
	for _, v := range quantified {
		if _, ok := theta[v.Name()]; !ok {
			return false
		}
	}
	return true
}

func subterms(t *term.Term) []*term.Term {
	out := []*term.Term{t}
	if t.IsList() {
		for _, c := range t.Children() {
			out = append(out, subterms(c)...)
		}
	}
	return out
}
