// Package orchestrator wires the event bus, the knowledge bases, and the
// reasoner plugins into one running system, and exposes the small input
// surface external callers use: feeding raw KIF text, requesting
// retractions, and issuing queries. Grounded on the teacher's
// ParallelExecutor (parallel.go), which plays the same "owns everything,
// exposes a narrow surface" role for the worker pool.
package orchestrator

import (
	"fmt"
	"log"

	"github.com/cogreason/reasoner/pkg/assertion"
	"github.com/cogreason/reasoner/pkg/cognition"
	"github.com/cogreason/reasoner/pkg/eventbus"
	"github.com/cogreason/reasoner/pkg/operators"
	"github.com/cogreason/reasoner/pkg/parser"
	"github.com/cogreason/reasoner/pkg/reasoner"
	"github.com/cogreason/reasoner/pkg/reasoner/backward"
	"github.com/cogreason/reasoner/pkg/reasoner/forward"
	"github.com/cogreason/reasoner/pkg/reasoner/instantiate"
	"github.com/cogreason/reasoner/pkg/reasoner/rewrite"
	"github.com/cogreason/reasoner/pkg/skolem"
	"github.com/cogreason/reasoner/pkg/term"
)

// DefaultKBCapacity bounds how many Ground/Skolemized assertions any one
// KB (global or per-note) holds before eviction kicks in.
const DefaultKBCapacity = 10000

// Orchestrator owns the bus, Cognition, the operator registry, and the
// four reasoner plugins, and is the sole entry point external callers use
// to feed input, retract, and query.
type Orchestrator struct {
	Bus *eventbus.Bus
	Cog *cognition.Cognition
	Ops *operators.Registry

	capacity int
	skolems  *skolem.Counter

	forward     *forward.Plugin
	rewrite     *rewrite.Plugin
	instantiate *instantiate.Plugin
	backward    *backward.Plugin
}

// New builds and wires a complete Orchestrator with the given per-KB
// capacity and reasoner bounds.
func New(capacity int, cfg reasoner.Config) *Orchestrator {
	bus := eventbus.New()
	cog := cognition.New(bus, capacity)
	ops := operators.NewRegistry()

	o := &Orchestrator{
		Bus:      bus,
		Cog:      cog,
		Ops:      ops,
		capacity: capacity,
		skolems:  skolem.NewCounter(),
	}
	o.forward = forward.New(cog, bus, cfg)
	o.rewrite = rewrite.New(cog, bus, cfg)
	o.instantiate = instantiate.New(cog, bus, cfg)
	o.backward = backward.New(cog, bus, ops, cfg)
	return o
}

// Shutdown stops the event bus, draining in-flight listener dispatch.
func (o *Orchestrator) Shutdown() { o.Bus.Shutdown() }

// SubmitText parses text as a single top-level KIF term and processes it as
// external input, per spec.md §4.8.
func (o *Orchestrator) SubmitText(text, sourceID, targetNoteID string) error {
	t, err := parser.Parse(text)
	if err != nil {
		return fmt.Errorf("orchestrator: parse error: %w", err)
	}
	return o.SubmitTerm(t, sourceID, targetNoteID)
}

// SubmitTerm processes t as external input, dispatching by operator per
// spec.md §4.8. Non-list top-level terms and non-ground plain assertions
// are rejected with a warning rather than an error, matching the "no
// exception propagates" principle.
func (o *Orchestrator) SubmitTerm(t *term.Term, sourceID, targetNoteID string) error {
	o.Bus.Emit(eventbus.Event{
		Type:    eventbus.ExternalInput,
		Payload: eventbus.ExternalInputPayload{Term: t, SourceID: sourceID, TargetNoteID: targetNoteID},
	})

	if !t.IsList() {
		log.Printf("[ORCH] ignoring non-list top-level input: %v", t)
		return nil
	}

	priority := inputPriority(sourceID, t)
	commitKB := o.Cog.KBFor(targetNoteID)

	switch op := t.OperatorName(); op {
	case "=>", "<=>":
		if _, err := o.Cog.AddRule(t, priority); err != nil {
			log.Printf("[ORCH] rule rejected: %v", err)
		}
		return nil

	case "exists":
		if t.Arity() != 3 {
			log.Printf("[ORCH] malformed exists form: %v", t)
			return nil
		}
		body, err := skolem.Skolemize(t, o.skolems, nil)
		if err != nil {
			log.Printf("[ORCH] skolemization failed: %v", err)
			return nil
		}
		conjuncts := []*term.Term{body}
		if body.OperatorName() == "and" {
			conjuncts = body.Children()[1:]
		}
		for _, c := range conjuncts {
			_, err = commitKB.Commit(&assertion.PotentialAssertion{
				Kif: c, Priority: priority, Type: assertion.Ground, Negated: c.OperatorName() == "not",
				IsEquality: c.OperatorName() == "=",
			}, sourceID)
			if err != nil {
				log.Printf("[ORCH] commit rejected: %v", err)
			}
		}
		return nil

	case "forall":
		if t.Arity() != 3 {
			log.Printf("[ORCH] malformed forall form: %v", t)
			return nil
		}
		body := t.Nth(2)
		if bop := body.OperatorName(); bop == "=>" || bop == "<=>" {
			if _, err := o.Cog.AddRule(body, priority); err != nil {
				log.Printf("[ORCH] rule rejected: %v", err)
			}
			return nil
		}
		_, err := commitKB.Commit(&assertion.PotentialAssertion{
			Kif: t, Priority: priority, Type: assertion.Universal,
			QuantifiedVars: quantifiedVarsOf(t.Nth(1)),
		}, sourceID)
		if err != nil {
			log.Printf("[ORCH] commit rejected: %v", err)
		}
		return nil

	case "not":
		if t.Arity() != 2 {
			log.Printf("[ORCH] malformed not form: %v", t)
			return nil
		}
		if t.HasVars() {
			log.Printf("[ORCH] rejecting non-ground plain assertion: %v", t)
			return nil
		}
		_, err := commitKB.Commit(&assertion.PotentialAssertion{
			Kif: t, Priority: priority, Type: assertion.Ground, Negated: true,
		}, sourceID)
		if err != nil {
			log.Printf("[ORCH] commit rejected: %v", err)
		}
		return nil

	case "=":
		if t.Arity() != 3 {
			log.Printf("[ORCH] malformed equality form: %v", t)
			return nil
		}
		if t.HasVars() {
			log.Printf("[ORCH] rejecting non-ground plain assertion: %v", t)
			return nil
		}
		oriented := t.Nth(1).Weight() > t.Nth(2).Weight()
		_, err := commitKB.Commit(&assertion.PotentialAssertion{
			Kif: t, Priority: priority, Type: assertion.Ground,
			IsEquality: true, IsOrientedEquality: oriented,
		}, sourceID)
		if err != nil {
			log.Printf("[ORCH] commit rejected: %v", err)
		}
		return nil

	default:
		if t.HasVars() {
			log.Printf("[ORCH] rejecting non-ground plain assertion: %v", t)
			return nil
		}
		_, err := commitKB.Commit(&assertion.PotentialAssertion{
			Kif: t, Priority: priority, Type: assertion.Ground,
		}, sourceID)
		if err != nil {
			log.Printf("[ORCH] commit rejected: %v", err)
		}
		return nil
	}
}

// inputPriority implements spec.md §4.8: base/(1+weight), base 15 for LLM
// sources, 10 otherwise.
func inputPriority(sourceID string, t *term.Term) float64 {
	base := 10.0
	if sourceID == "llm" {
		base = 15.0
	}
	return base / (1 + float64(t.Weight()))
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

// Retract processes a RetractionRequest: ById retracts a single assertion
// by its id; ByNote sweeps every assertion (Ground/Skolemized/Universal)
// currently indexed by the named note's KB; ByRuleForm parses Target as a
// KIF rule form and removes the matching rule (rule equality is by form,
// per spec.md §3).
func (o *Orchestrator) Retract(req eventbus.RetractionRequestPayload) {
	o.Bus.Emit(eventbus.Event{Type: eventbus.RetractionRequest, Payload: req})
	switch req.Type {
	case eventbus.ByID:
		o.Cog.TMS().Retract(req.Target, req.SourceID)

	case eventbus.ByNote:
		noteKB := o.Cog.KBFor(req.Target)
		for id := range noteKB.AllActiveIDs() {
			o.Cog.TMS().Retract(id, req.SourceID)
		}

	case eventbus.ByRuleForm:
		form, err := parser.Parse(req.Target)
		if err != nil {
			log.Printf("[ORCH] ByRuleForm retraction: parse error: %v", err)
			return
		}
		o.Cog.RemoveRule(form)

	default:
		log.Printf("[ORCH] unknown retraction type %v for target %q", req.Type, req.Target)
	}
}

// SystemStatus snapshots the bus's dispatch queue depth and the cognition
// registry's KB/rule counts, emits a SystemStatusEvent carrying the
// snapshot, and returns it. Commits run synchronously inside the same
// dispatched bus tasks that drive reasoning, so CommitQueueSize mirrors
// TaskQueueSize rather than naming a second, separately-queued stage.
func (o *Orchestrator) SystemStatus() eventbus.SystemStatusPayload {
	depth := o.Bus.QueueDepth()
	p := eventbus.SystemStatusPayload{
		Status:          "running",
		KBCount:         o.Cog.NoteCount() + 1,
		KBCapacity:      o.capacity,
		TaskQueueSize:   depth,
		CommitQueueSize: depth,
		RuleCount:       o.Cog.RuleCount(),
	}
	o.Bus.Emit(eventbus.Event{Type: eventbus.SystemStatusEvent, Payload: p})
	return p
}

// Query issues a QueryRequest and blocks until its QueryResult is emitted.
func (o *Orchestrator) Query(q eventbus.QueryRequestPayload) eventbus.Answer {
	resultCh := make(chan eventbus.Answer, 1)
	var unsubscribeOnce bool
	o.Bus.On(eventbus.QueryResultEvent, func(ev eventbus.Event) {
		if unsubscribeOnce {
			return
		}
		p := ev.Payload.(eventbus.QueryResultPayload)
		if p.Answer.QueryID != q.ID {
			return
		}
		unsubscribeOnce = true
		select {
		case resultCh <- p.Answer:
		default:
		}
	})
	o.Bus.Emit(eventbus.Event{Type: eventbus.QueryRequestEvent, Payload: q})
	return <-resultCh
}
