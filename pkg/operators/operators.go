// Package operators implements pluggable, side-effect-free predicate
// evaluators ("Operators") used by backward chaining to evaluate built-ins
// such as arithmetic and comparisons.
package operators

import (
	"context"
	"math"
	"strconv"
	"sync"

	"github.com/cogreason/reasoner/pkg/term"
)

// Func evaluates an operator given its argument list and a context. It
// returns nil (no error) when the arguments cannot be evaluated: unparseable
// arguments and operator exceptions are both treated as "no result" rather
// than propagated as errors.
type Func func(ctx context.Context, args []*term.Term) *term.Term

// Registry is a concurrent map from predicate atom name to Func, wrapping a
// plain map behind a mutex the same way pkg/term's interning tables do.
type Registry struct {
	mu   sync.RWMutex
	fns  map[string]Func
}

// NewRegistry returns a Registry pre-populated with the standard arithmetic
// and comparison operators.
func NewRegistry() *Registry {
	r := &Registry{fns: map[string]Func{}}
	registerArithmetic(r)
	registerComparisons(r)
	return r
}

// Register installs fn under name, replacing any existing operator for
// that name.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[name] = fn
}

// Lookup returns the Func registered for name, or (nil, false).
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fns[name]
	return fn, ok
}

func num(t *term.Term) (float64, bool) {
	if !t.IsAtom() {
		return 0, false
	}
	f, err := strconv.ParseFloat(t.Name(), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func formatNum(f float64) *term.Term {
	return term.NewAtom(strconv.FormatFloat(f, 'g', -1, 64))
}

func boolTerm(b bool) *term.Term {
	if b {
		return term.NewAtom("true")
	}
	return term.NewAtom("false")
}

func registerArithmetic(r *Registry) {
	binaryArith := func(op func(a, b float64) float64) Func {
		return func(_ context.Context, args []*term.Term) *term.Term {
			if len(args) != 2 {
				return nil
			}
			a, ok1 := num(args[0])
			b, ok2 := num(args[1])
			if !ok1 || !ok2 {
				return nil
			}
			return formatNum(op(a, b))
		}
	}
	r.Register("+", binaryArith(func(a, b float64) float64 { return a + b }))
	r.Register("-", binaryArith(func(a, b float64) float64 { return a - b }))
	r.Register("*", binaryArith(func(a, b float64) float64 { return a * b }))
	// Division by zero is well-defined as NaN. Go's own float64 division
	// by zero yields ±Inf, so a zero divisor is handled explicitly.
	r.Register("/", binaryArith(func(a, b float64) float64 {
		if b == 0 {
			return math.NaN()
		}
		return a / b
	}))
}

func registerComparisons(r *Registry) {
	cmp := func(op func(a, b float64) bool) Func {
		return func(_ context.Context, args []*term.Term) *term.Term {
			if len(args) != 2 {
				return nil
			}
			a, ok1 := num(args[0])
			b, ok2 := num(args[1])
			if !ok1 || !ok2 {
				return nil
			}
			return boolTerm(op(a, b))
		}
	}
	r.Register("<", cmp(func(a, b float64) bool { return a < b }))
	r.Register(">", cmp(func(a, b float64) bool { return a > b }))
	r.Register("<=", cmp(func(a, b float64) bool { return a <= b }))
	r.Register(">=", cmp(func(a, b float64) bool { return a >= b }))
}
