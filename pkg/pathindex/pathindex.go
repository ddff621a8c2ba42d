// Package pathindex implements a "path index" over terms, with sentinel
// markers for variables and for generic (operator-less) lists. Each term is
// filed under a single key taken from its head position only (an atom's
// text, the variable marker, or a list's operator text); argument positions
// are not indexed, so every retrieval returns all ids that share the
// relevant head key and callers re-check each candidate with a real
// unification or match. It supports three candidate-retrieval modes used by
// the knowledge base: unifiable-with, instances-of, and generalisations-of.
package pathindex

import (
	"sync"

	"github.com/cogreason/reasoner/pkg/term"
)

const (
	varMarker     = "\x00var"
	genericMarker = "\x00list"
)

// node is one trie node. Children are keyed by the walk key (an atom's
// text, varMarker, or a list's operator text / genericMarker). ids holds
// the set of assertion ids whose term passes through this node. The
// children map uses sync.Map so it may be safely read while another
// lock-holding writer mutates sibling node contents.
type node struct {
	children sync.Map // string -> *node
	ids      sync.Map // string -> struct{}
}

func newNode() *node { return &node{} }

func (n *node) childOrCreate(key string) *node {
	if v, ok := n.children.Load(key); ok {
		return v.(*node)
	}
	v, _ := n.children.LoadOrStore(key, newNode())
	return v.(*node)
}

func (n *node) child(key string) (*node, bool) {
	v, ok := n.children.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*node), true
}

func (n *node) addID(id string)    { n.ids.Store(id, struct{}{}) }
func (n *node) removeID(id string) { n.ids.Delete(id) }

func (n *node) collectIDs(out map[string]bool) {
	n.ids.Range(func(k, _ any) bool {
		out[k.(string)] = true
		return true
	})
}

func (n *node) collectAll(out map[string]bool) {
	n.collectIDs(out)
	n.children.Range(func(_, v any) bool {
		v.(*node).collectAll(out)
		return true
	})
}

func (n *node) isEmpty() bool {
	empty := true
	n.ids.Range(func(_, _ any) bool { empty = false; return false })
	if !empty {
		return false
	}
	n.children.Range(func(_, _ any) bool { empty = false; return false })
	return empty
}

// pathKey returns the walk key for t at the head position: an atom's text,
// varMarker for a variable, or a list's operator text (falling back to
// genericMarker when the list has no atomic operator).
func pathKey(t *term.Term) string {
	switch {
	case t.IsAtom():
		return t.Name()
	case t.IsVar():
		return varMarker
	case t.IsList():
		if op := t.OperatorName(); op != "" {
			return op
		}
		return genericMarker
	}
	return genericMarker
}

// Index is a discrimination tree mapping terms to the assertion ids that
// reference them.
type Index struct {
	mu   sync.RWMutex // serializes structural Add/Remove against each other
	root *node
}

// New returns an empty Index.
func New() *Index {
	return &Index{root: newNode()}
}

// Add files id under t's path.
func (idx *Index) Add(id string, t *term.Term) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.root.childOrCreate(pathKey(t))
	n.addID(id)
}

// Remove un-files id from t's path, pruning empty nodes.
func (idx *Index) Remove(id string, t *term.Term) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	key := pathKey(t)
	n, ok := idx.root.child(key)
	if !ok {
		return
	}
	n.removeID(id)
	if n.isEmpty() {
		idx.root.children.Delete(key)
	}
}

// AllIDs returns every assertion id currently filed anywhere in the index,
// used by retraction-by-note sweeps that need every id in a KB regardless
// of its term shape.
func (idx *Index) AllIDs() map[string]bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := map[string]bool{}
	idx.root.collectAll(out)
	return out
}

// UnifiableWith returns the ids of terms that might unify with q: those
// filed under the variable marker at the top level, those under the
// generic-list marker when q is a list, and the ids filed at q's own key
// (together with all of that key's descendants when q is a list or var).
func (idx *Index) UnifiableWith(q *term.Term) map[string]bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := map[string]bool{}

	if n, ok := idx.root.child(varMarker); ok {
		n.collectAll(out)
	}
	if q.IsList() {
		if n, ok := idx.root.child(genericMarker); ok {
			n.collectAll(out)
		}
	}

	key := pathKey(q)
	if n, ok := idx.root.child(key); ok {
		n.collectIDs(out)
		if q.IsList() || q.IsVar() {
			n.collectAll(out)
		}
	}
	return out
}

// InstancesOf returns the ids of terms that are instances of q (q is more
// general): when q is a variable, every stored id; otherwise the ids filed
// at q's key, plus (for lists) all descendants under that key.
func (idx *Index) InstancesOf(q *term.Term) map[string]bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := map[string]bool{}

	if q.IsVar() {
		idx.root.collectAll(out)
		return out
	}
	key := pathKey(q)
	if n, ok := idx.root.child(key); ok {
		n.collectIDs(out)
		if q.IsList() {
			n.collectAll(out)
		}
	}
	return out
}

// GeneralisationsOf returns the ids of terms that are generalisations of q
// (stored term is more general than q): ids filed under the variable
// marker plus every id at q's own key. For a list q the walk continues
// into q's first child below that key; since Add files terms at the top
// level only, that deeper step finds no further ids.
func (idx *Index) GeneralisationsOf(q *term.Term) map[string]bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := map[string]bool{}
	idx.generalisations(idx.root, q, out)
	return out
}

func (idx *Index) generalisations(n *node, q *term.Term, out map[string]bool) {
	if vn, ok := n.child(varMarker); ok {
		vn.collectIDs(out)
	}
	key := pathKey(q)
	sub, ok := n.child(key)
	if !ok {
		return
	}
	sub.collectIDs(out)
	if q.IsList() && q.Arity() > 0 {
		idx.generalisations(sub, q.Nth(0), out)
	}
}
