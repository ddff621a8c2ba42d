// Package forward implements the forward-chaining reasoner plugin: for
// every newly active Ground/Skolemized assertion, it tries to satisfy each
// rule's antecedent against the knowledge base and commits the resulting
// consequents. Like the rest of the reasoner subpackages, it is a
// long-lived worker subscribing to one event type.
package forward

import (
	"log"

	"github.com/cogreason/reasoner/pkg/assertion"
	"github.com/cogreason/reasoner/pkg/cognition"
	"github.com/cogreason/reasoner/pkg/eventbus"
	"github.com/cogreason/reasoner/pkg/kb"
	"github.com/cogreason/reasoner/pkg/reasoner"
	"github.com/cogreason/reasoner/pkg/skolem"
	"github.com/cogreason/reasoner/pkg/term"
	"github.com/cogreason/reasoner/pkg/unify"
)

// Plugin is the forward-chaining reasoner.
type Plugin struct {
	cog     *cognition.Cognition
	bus     *eventbus.Bus
	cfg     reasoner.Config
	skolems *skolem.Counter
}

// New constructs a forward-chaining plugin and subscribes it to
// AssertionAdded on bus.
func New(cog *cognition.Cognition, bus *eventbus.Bus, cfg reasoner.Config) *Plugin {
	p := &Plugin{cog: cog, bus: bus, cfg: cfg, skolems: skolem.NewCounter()}
	bus.On(eventbus.AssertionAdded, p.onAssertionAdded)
	return p
}

func (p *Plugin) onAssertionAdded(ev eventbus.Event) {
	payload := ev.Payload.(eventbus.AssertionAddedPayload)
	a := payload.Assertion
	if a.Type == assertion.Universal || !a.Active {
		return
	}
	currentKB := p.cog.KBFor(a.KBID)

	for _, rule := range p.cog.Rules() {
		p.tryRule(rule, a, currentKB)
	}
}

func effectiveTerm(a *assertion.Assertion) *term.Term {
	if a.Negated {
		return a.Kif.Nth(1)
	}
	return a.Kif
}

func (p *Plugin) tryRule(rule *assertion.Rule, a *assertion.Assertion, currentKB *kb.KB) {
	for i, clause := range rule.Antecedents {
		neg, pattern := assertion.ClauseSign(clause)
		if neg != a.Negated {
			continue
		}
		theta, ok := unify.Unify(pattern, effectiveTerm(a), unify.Bindings{})
		if !ok {
			continue
		}
		remaining := without(rule.Antecedents, i)
		support := map[string]bool{a.ID: true}
		for _, res := range p.matchRemaining(remaining, 0, theta, support, currentKB) {
			p.derive(rule, res.bindings, res.support)
		}
	}
}

func without(ts []*term.Term, i int) []*term.Term {
	out := make([]*term.Term, 0, len(ts)-1)
	for j, t := range ts {
		if j != i {
			out = append(out, t)
		}
	}
	return out
}

type matchResult struct {
	bindings unify.Bindings
	support  map[string]bool
}

func cloneSupport(s map[string]bool) map[string]bool {
	out := make(map[string]bool, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

// matchRemaining recursively satisfies clauses[i:] against currentKB (then
// the global KB, deduplicated).
func (p *Plugin) matchRemaining(clauses []*term.Term, i int, theta unify.Bindings, support map[string]bool, currentKB *kb.KB) []matchResult {
	if i >= len(clauses) {
		return []matchResult{{bindings: theta, support: support}}
	}
	clause := unify.SubstFully(clauses[i], theta)
	neg, pattern := assertion.ClauseSign(clause)

	var out []matchResult
	for _, cand := range p.candidates(currentKB, pattern, neg) {
		b2, ok := unify.Unify(pattern, effectiveTerm(cand), theta.Clone())
		if !ok {
			continue
		}
		sup2 := cloneSupport(support)
		sup2[cand.ID] = true
		out = append(out, p.matchRemaining(clauses, i+1, b2, sup2, currentKB)...)
	}
	return out
}

// candidates returns the active assertions in currentKB (then the global
// KB, deduplicated by id) whose kif is unifiable with pattern and whose
// negation matches neg.
func (p *Plugin) candidates(currentKB *kb.KB, pattern *term.Term, neg bool) []*assertion.Assertion {
	seen := map[string]bool{}
	var out []*assertion.Assertion
	consider := func(ids map[string]bool) {
		for id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			a, ok := p.cog.TMS().Get(id)
			if !ok || !a.Active || a.Negated != neg {
				continue
			}
			out = append(out, a)
		}
	}
	q := pattern
	if neg {
		q = term.NewList(term.NewAtom("not"), pattern)
	}
	consider(currentKB.UnifiableWith(q))
	if currentKB != p.cog.Global() {
		consider(p.cog.Global().UnifiableWith(q))
	}
	return out
}

// derive substitutes bindings into rule's consequent, simplifies, and
// classifies/commits the result.
func (p *Plugin) derive(rule *assertion.Rule, theta unify.Bindings, support map[string]bool) {
	form := p.cog.Simplify(unify.SubstFully(rule.Consequent, theta))
	p.deriveForm(form, rule, theta, support)
}

func (p *Plugin) deriveForm(form *term.Term, rule *assertion.Rule, theta unify.Bindings, support map[string]bool) {
	priority := p.cog.DerivedPriority(support, rule.Priority)
	depth := p.cog.DerivedDepth(support) + 1

	switch form.OperatorName() {
	case "and":
		for _, conjunct := range form.Children()[1:] {
			p.deriveForm(p.cog.Simplify(conjunct), rule, theta, support)
		}
		return

	case "forall":
		if form.Arity() != 3 {
			return
		}
		body := form.Nth(2)
		if op := body.OperatorName(); op == "=>" || op == "<=>" {
			if r2, err := p.cog.AddRule(body, priority); err != nil {
				log.Printf("[FC] derived rule rejected: %v", err)
			} else if op == "<=>" {
				reversed := term.NewList(term.NewAtom("=>"), body.Nth(2), body.Nth(1))
				if _, err := p.cog.AddRule(reversed, priority); err != nil {
					log.Printf("[FC] derived reverse rule rejected: %v", err)
				}
				_ = r2
			}
			return
		}
		p.commit(&assertion.PotentialAssertion{
			Kif: form, Priority: priority, Type: assertion.Universal,
			QuantifiedVars: quantifiedVarsOf(form.Nth(1)), JustificationIDs: support,
			DerivationDepth: depth,
		})
		return

	case "exists":
		if form.Arity() != 3 {
			return
		}
		body, err := skolem.Skolemize(form, p.skolems, theta)
		if err != nil {
			log.Printf("[FC] skolemization failed: %v", err)
			return
		}
		p.commit(&assertion.PotentialAssertion{
			Kif: body, Priority: priority, Type: assertion.Ground,
			JustificationIDs: support, DerivationDepth: depth,
		})
		return
	}

	if assertion.IsTriviallyTrivial(form) || form.HasVars() || form.Weight() > p.cfg.MaxDerivedWeight || depth > p.cfg.MaxDerivationDepth {
		return
	}
	negated := form.OperatorName() == "not"
	p.commit(&assertion.PotentialAssertion{
		Kif: form, Priority: priority, Type: assertion.Ground, Negated: negated,
		JustificationIDs: support, DerivationDepth: depth,
	})
}

func quantifiedVarsOf(varsTerm *term.Term) []*term.Term {
	if varsTerm.IsVar() {
		return []*term.Term{varsTerm}
	}
	if varsTerm.IsList() {
		return varsTerm.Children()
	}
	return nil
}

func (p *Plugin) commit(pa *assertion.PotentialAssertion) {
	commitKB := p.cog.Global()
	if note, ok := p.cog.CommonSourceNote(pa.JustificationIDs); ok {
		commitKB = p.cog.KBFor(note)
	}
	if _, err := commitKB.Commit(pa, "forward-chaining"); err != nil {
		log.Printf("[FC] derivation rejected: %v", err)
	}
}
