// Package backward implements the backward-chaining reasoner plugin: it
// serves ASK_BINDINGS and ASK_TRUE_FALSE query requests by recursively
// proving a goal against the knowledge base, the rule set, and the
// operator registry. Proof search is expressed as a small recursive
// function rather than a lazy generator-closure stream, since query
// results here are gathered eagerly and returned in one Answer rather than
// consumed incrementally.
package backward

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/cogreason/reasoner/pkg/assertion"
	"github.com/cogreason/reasoner/pkg/cognition"
	"github.com/cogreason/reasoner/pkg/eventbus"
	"github.com/cogreason/reasoner/pkg/kb"
	"github.com/cogreason/reasoner/pkg/operators"
	"github.com/cogreason/reasoner/pkg/reasoner"
	"github.com/cogreason/reasoner/pkg/term"
	"github.com/cogreason/reasoner/pkg/unify"
)

// Plugin is the backward-chaining reasoner.
type Plugin struct {
	cog     *cognition.Cognition
	bus     *eventbus.Bus
	ops     *operators.Registry
	cfg     reasoner.Config
	renames atomic.Uint64
}

// New constructs a backward-chaining plugin and subscribes it to
// QueryRequestEvent on bus.
func New(cog *cognition.Cognition, bus *eventbus.Bus, ops *operators.Registry, cfg reasoner.Config) *Plugin {
	p := &Plugin{cog: cog, bus: bus, ops: ops, cfg: cfg}
	bus.On(eventbus.QueryRequestEvent, p.onQueryRequest)
	return p
}

func (p *Plugin) onQueryRequest(ev eventbus.Event) {
	q := ev.Payload.(eventbus.QueryRequestPayload)
	if q.Type != eventbus.AskBindings && q.Type != eventbus.AskTrueFalse {
		// No plugin serves ACHIEVE_GOAL (or any future query type) yet; a
		// caller blocked on Query must still get an answer rather than
		// hang forever, per spec.md §7's "the core never hangs a caller".
		p.bus.Emit(eventbus.Event{Type: eventbus.QueryResultEvent, Payload: eventbus.QueryResultPayload{Answer: eventbus.Answer{
			QueryID: q.ID,
			Status:  eventbus.ErrorStatus,
			Error:   fmt.Sprintf("backward chaining: unsupported query type %v", q.Type),
		}}})
		return
	}

	maxDepth := p.cfg.MaxBackwardDepth
	if v, ok := q.Parameters["maxDepth"]; ok {
		if d, ok := v.(int); ok && d > 0 {
			maxDepth = d
		}
	}

	currentKB := p.cog.KBFor(q.TargetKBID)
	results := dedup(p.prove(q.Pattern, currentKB, unify.Bindings{}, maxDepth, nil))
	queryVars := q.Pattern.Vars()

	answer := eventbus.Answer{QueryID: q.ID}
	switch q.Type {
	case eventbus.AskTrueFalse:
		if len(results) > 0 {
			answer.Status = eventbus.Success
		} else {
			answer.Status = eventbus.Failure
		}
	case eventbus.AskBindings:
		if len(results) == 0 {
			answer.Status = eventbus.Failure
			break
		}
		answer.Status = eventbus.Success
		answer.Bindings = make([]map[string]*term.Term, len(results))
		for i, b := range results {
			answer.Bindings[i] = projectOnto(b, queryVars)
		}
	}
	p.bus.Emit(eventbus.Event{Type: eventbus.QueryResultEvent, Payload: eventbus.QueryResultPayload{Answer: answer}})
}

// projectOnto restricts bindings to the variables the caller actually
// asked about, dropping internal alpha-renamed rule/goal variables that
// prove accumulates along the way.
func projectOnto(b unify.Bindings, queryVars map[string]*term.Term) map[string]*term.Term {
	out := make(map[string]*term.Term, len(queryVars))
	for name := range queryVars {
		if v, ok := b[name]; ok {
			out[name] = v
		}
	}
	return out
}

// prove implements the five-step proof procedure: check the depth bound,
// check the goal stack for a cycle, try a registered operator (whose
// result is returned alone), otherwise try facts, then rules, recursing
// into each rule's antecedents.
func (p *Plugin) prove(goal *term.Term, currentKB *kb.KB, theta unify.Bindings, depth int, stack []*term.Term) []unify.Bindings {
	if depth <= 0 {
		return nil
	}
	g := unify.SubstFully(goal, theta)
	for _, s := range stack {
		if s.Equal(g) {
			return nil
		}
	}

	if g.IsList() && g.OperatorName() != "" {
		if fn, ok := p.ops.Lookup(g.OperatorName()); ok {
			return p.proveViaOperator(fn, g, theta)
		}
	}

	var results []unify.Bindings
	for _, a := range p.factCandidates(currentKB, g) {
		if b2, ok := unify.Unify(g, a.Kif, theta.Clone()); ok {
			results = append(results, b2)
		}
	}

	nextStack := append(append([]*term.Term{}, stack...), g)
	for _, rule := range p.cog.Rules() {
		consequent, antecedents := p.alphaRename(rule, depth)
		b2, ok := unify.Unify(consequent, g, theta.Clone())
		if !ok {
			continue
		}
		results = append(results, p.proveConjunction(antecedents, 0, currentKB, b2, depth-1, nextStack)...)
	}
	return results
}

func (p *Plugin) proveViaOperator(fn operators.Func, g *term.Term, theta unify.Bindings) []unify.Bindings {
	args := g.Children()[1:]
	res := fn(context.Background(), args)
	if res == nil {
		return nil
	}
	if res.IsAtom() && res.Name() == "true" {
		return []unify.Bindings{theta.Clone()}
	}
	if b2, ok := unify.Unify(res, g, theta.Clone()); ok {
		return []unify.Bindings{b2}
	}
	return nil
}

func (p *Plugin) proveConjunction(clauses []*term.Term, idx int, currentKB *kb.KB, theta unify.Bindings, depth int, stack []*term.Term) []unify.Bindings {
	if idx >= len(clauses) {
		return []unify.Bindings{theta}
	}
	var out []unify.Bindings
	for _, b := range p.prove(clauses[idx], currentKB, theta, depth, stack) {
		out = append(out, p.proveConjunction(clauses, idx+1, currentKB, b, depth, stack)...)
	}
	return out
}

func (p *Plugin) factCandidates(currentKB *kb.KB, g *term.Term) []*assertion.Assertion {
	seen := map[string]bool{}
	var out []*assertion.Assertion
	consider := func(ids map[string]bool) {
		for id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			a, ok := p.cog.TMS().Get(id)
			if !ok || !a.Active || a.Type == assertion.Universal {
				continue
			}
			out = append(out, a)
		}
	}
	consider(currentKB.UnifiableWith(g))
	if currentKB != p.cog.Global() {
		consider(p.cog.Global().UnifiableWith(g))
	}
	return out
}

// alphaRename returns rule's consequent and antecedent clauses with every
// variable replaced by a fresh one, keyed by a depth- and counter-specific
// suffix, so that two concurrent proof branches invoking the same rule
// never collide.
func (p *Plugin) alphaRename(rule *assertion.Rule, depth int) (*term.Term, []*term.Term) {
	n := p.renames.Add(1)
	subst := unify.Bindings{}
	i := 0
	for name := range rule.Form.Vars() {
		i++
		subst[name] = term.MustVar(fmt.Sprintf("?bc%d_%d_%d", depth, n, i))
	}
	consequent := unify.Subst(rule.Consequent, subst)
	antecedents := make([]*term.Term, len(rule.Antecedents))
	for i, c := range rule.Antecedents {
		antecedents[i] = unify.Subst(c, subst)
	}
	return consequent, antecedents
}

func dedup(bs []unify.Bindings) []unify.Bindings {
	seen := map[string]bool{}
	var out []unify.Bindings
	for _, b := range bs {
		key := bindingsKey(b)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, b)
	}
	return out
}

func bindingsKey(b unify.Bindings) string {
	s := ""
	for _, name := range sortedKeys(b) {
		s += name + "=" + b[name].HashKey() + ";"
	}
	return s
}

func sortedKeys(b unify.Bindings) []string {
	out := make([]string, 0, len(b))
	for k := range b {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
