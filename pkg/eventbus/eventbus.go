// Package eventbus implements the typed, asynchronous broadcast bus that
// coordinates the knowledge bases and the reasoner plugins: a single
// cooperative dispatcher backed by a worker pool, supporting both
// direct-listener subscription by event Type and pattern subscription
// (bindings delivered to subscribers whose pattern unifies with an added
// assertion's term).
package eventbus

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/cogreason/reasoner/internal/parallel"
	"github.com/cogreason/reasoner/pkg/term"
	"github.com/cogreason/reasoner/pkg/unify"
)

// Listener handles a direct, type-keyed subscription.
type Listener func(Event)

// PatternListener handles a pattern subscription; it is invoked with the
// unification bindings between its pattern and the event's term.
type PatternListener func(bindings unify.Bindings, ev Event)

type patternSub struct {
	pattern  *term.Term
	listener PatternListener
}

// Bus is the single cooperative event dispatcher. Every emit schedules
// listener dispatch asynchronously on an internal worker pool
// (internal/parallel.WorkerPool), which also backs SystemStatus's queue
// depth reporting.
type Bus struct {
	mu        sync.RWMutex
	listeners map[Type][]Listener
	patterns  []patternSub

	pool    *parallel.WorkerPool
	stopped atomic.Bool

	pauseMu   sync.Mutex
	pauseCond *sync.Cond
	paused    bool
}

// New returns a Bus with a worker pool sized for the host
// (runtime.NumCPU()).
func New() *Bus {
	b := &Bus{
		listeners: map[Type][]Listener{},
		pool:      parallel.NewWorkerPool(0),
	}
	b.pauseCond = sync.NewCond(&b.pauseMu)
	return b
}

// On subscribes listener to events of the given Type.
func (b *Bus) On(t Type, listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[t] = append(b.listeners[t], listener)
}

// OnPattern registers a pattern subscription. Whenever an AssertionAdded or
// TemporaryAssertion event is emitted, pattern is one-way-matched against
// the event's term and, on success, listener is invoked with the resulting
// bindings.
func (b *Bus) OnPattern(pattern *term.Term, listener PatternListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.patterns = append(b.patterns, patternSub{pattern: pattern, listener: listener})
}

// Emit schedules dispatch of ev to every matching subscriber. If the bus has
// been stopped, the emit is logged and dropped rather than propagating an
// error.
func (b *Bus) Emit(ev Event) {
	if b.stopped.Load() {
		log.Printf("[BUS] dropped %s: bus stopped", ev.Type)
		return
	}

	b.mu.RLock()
	direct := append([]Listener(nil), b.listeners[ev.Type]...)
	var matched []func()
	if ev.Type == AssertionAdded || ev.Type == TemporaryAssertion {
		if t := eventTerm(ev); t != nil {
			for _, ps := range b.patterns {
				ps := ps
				if bindings, ok := unify.Match(ps.pattern, t, unify.Bindings{}); ok {
					matched = append(matched, func() { ps.listener(bindings, ev) })
				}
			}
		}
	}
	b.mu.RUnlock()

	for _, l := range direct {
		l := l
		b.submit(func() { b.safeCall(func() { l(ev) }) })
	}
	for _, fn := range matched {
		fn := fn
		b.submit(func() { b.safeCall(fn) })
	}
}

func eventTerm(ev Event) *term.Term {
	switch p := ev.Payload.(type) {
	case AssertionAddedPayload:
		return p.Assertion.Kif
	case ExternalInputPayload:
		return p.Term
	}
	return nil
}

// QueueDepth and WorkerCount expose the dispatch worker pool's current
// load, used by the orchestrator to populate SystemStatusPayload.
func (b *Bus) QueueDepth() int  { return b.pool.GetQueueDepth() }
func (b *Bus) WorkerCount() int { return b.pool.GetWorkerCount() }

func (b *Bus) submit(task func()) {
	if err := b.pool.Submit(context.Background(), task); err != nil {
		log.Printf("[BUS] submit failed: %v", err)
	}
}

// safeCall invokes fn, recovering and logging any panic so that a single
// failing listener never propagates to callers or other listeners.
func (b *Bus) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[BUS] listener panicked: %v", r)
		}
	}()
	fn()
}

// Stop makes the bus stop accepting new emits; in-flight listeners
// continue to completion.
func (b *Bus) Stop() {
	b.stopped.Store(true)
}

// Shutdown stops the bus, clears all subscriptions, and waits for the
// worker pool to drain in-flight listeners.
func (b *Bus) Shutdown() {
	b.Stop()
	b.mu.Lock()
	b.listeners = map[Type][]Listener{}
	b.patterns = nil
	b.mu.Unlock()
	b.pool.Shutdown()
}

// Pause blocks subsequent calls to WaitIfPaused until Resume is called.
// Only input-feeding paths are expected to call WaitIfPaused; reasoning
// tasks already scheduled on the worker pool run to completion.
func (b *Bus) Pause() {
	b.pauseMu.Lock()
	b.paused = true
	b.pauseMu.Unlock()
}

// Resume releases any goroutines blocked in WaitIfPaused.
func (b *Bus) Resume() {
	b.pauseMu.Lock()
	b.paused = false
	b.pauseCond.Broadcast()
	b.pauseMu.Unlock()
}

// WaitIfPaused blocks the calling goroutine while the bus is paused.
func (b *Bus) WaitIfPaused() {
	b.pauseMu.Lock()
	for b.paused {
		b.pauseCond.Wait()
	}
	b.pauseMu.Unlock()
}
