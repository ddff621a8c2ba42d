package kb

import (
	"github.com/cogreason/reasoner/pkg/assertion"
	"github.com/cogreason/reasoner/pkg/tms"
)

// idHeap is a container/heap.Interface over assertion ids, ordered by
// assertion.EvictionLess as looked up live from the shared TMS so that an
// id's priority reflects its current (possibly since-changed) state rather
// than a snapshot taken at push time. An id whose assertion has since been
// retracted sorts as maximally eviction-worthy so it surfaces and gets
// discarded on the next pop.
type idHeap struct {
	ids []string
	tms *tms.TMS
}

func (h *idHeap) Len() int { return len(h.ids) }

func (h *idHeap) Less(i, j int) bool {
	a, aok := h.tms.Get(h.ids[i])
	b, bok := h.tms.Get(h.ids[j])
	if !aok || !bok {
		return !aok
	}
	return assertion.EvictionLess(a, b)
}

func (h *idHeap) Swap(i, j int) { h.ids[i], h.ids[j] = h.ids[j], h.ids[i] }

func (h *idHeap) Push(x any) { h.ids = append(h.ids, x.(string)) }

func (h *idHeap) Pop() any {
	n := len(h.ids)
	id := h.ids[n-1]
	h.ids = h.ids[:n-1]
	return id
}
