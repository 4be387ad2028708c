package ktask

import (
	"sync"

	"github.com/fogfactory/ktask/affinity"
	"github.com/gammazero/deque"
	"github.com/samber/lo"
)

// workItem is one execution slot of a task. Items are recycled across tasks: task is only valid between acquire and
// release.
type workItem struct {
	slot      int
	task      *task
	nodeIndex int
	domain    int
}

// workPool holds a fixed number of work items, one per slot the Limiter may grant.
type workPool struct {
	mu    sync.Mutex
	items []workItem
	free  deque.Deque[int]
}

func newWorkPool(capacity int) *workPool {
	p := &workPool{
		items: lo.Times(capacity, func(i int) workItem { return workItem{slot: i, domain: affinity.NoDomain} }),
	}
	for i := range p.items {
		p.free.PushBack(i)
	}
	return p
}

// acquire checks out an item bound to t. The caller must hold a Limiter reservation for it, so running out of items
// is a bug.
func (p *workPool) acquire(t *task, nodeIndex, domain int) *workItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.free.Len() == 0 {
		panic("work pool exhausted despite a granted reservation")
	}
	w := &p.items[p.free.PopFront()]
	w.task = t
	w.nodeIndex = nodeIndex
	w.domain = domain
	return w
}

func (p *workPool) release(w *workItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w.task = nil
	w.domain = affinity.NoDomain
	p.free.PushBack(w.slot)
}

// available returns the number of items left in the free list.
func (p *workPool) available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.free.Len()
}
