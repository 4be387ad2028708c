package ktask

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/fogfactory/ktask/affinity"
)

// task is the shared state of one RunNodes call. All fields below mu are guarded by it.
type task struct {
	ctl       Ctl
	chunkSize int

	mu        sync.Mutex
	nodes     []Node
	total     int // sum of the nodes' remaining sizes
	nodesLeft int // nodes whose remaining size is not zero
	works     int
	worksFini int
	err       error
	done      chan struct{}
}

func newTask(nodes []Node, ctl Ctl) *task {
	t := &task{
		ctl:   ctl,
		nodes: append([]Node(nil), nodes...),
		done:  make(chan struct{}),
	}
	for _, n := range t.nodes {
		t.total += n.Size
		if n.Size > 0 {
			t.nodesLeft++
		}
	}
	return t
}

// lockedPickNode returns the index of a node chosen uniformly among the ones with work left.
func (t *task) lockedPickNode(intn func(int) int) int {
	if t.nodesLeft == 0 {
		panic("picking a node of a task without work left")
	}
	want := intn(t.nodesLeft)
	seen := 0
	for i := range t.nodes {
		if t.nodes[i].Size == 0 {
			continue
		}
		if seen == want {
			return i
		}
		seen++
	}
	panic(fmt.Sprintf("%d nodes with work left, found %d", t.nodesLeft, seen))
}

// lockedClaim takes the next chunk of node i.
func (t *task) lockedClaim(i int) (start, end int) {
	n := &t.nodes[i]
	size := min(t.chunkSize, n.Size)
	start = n.Start
	end = t.ctl.iter(start, size)
	n.Start = end
	n.Size -= size
	t.total -= size
	if n.Size == 0 {
		t.nodesLeft--
	}
	return start, end
}

// call runs the chunk function, turning a panic into an error.
func (t *task) call(start, end int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w on [%d, %d): %v", ErrChunkPanic, start, end, r)
		}
	}()
	return t.ctl.Func(start, end)
}

// worker is one execution of a work item's loop. The inline worker is the one running on the RunNodes caller; it
// never migrates.
type worker struct {
	item   *workItem
	inline bool
	unpin  func() // restores the thread of a pinned worker, nil for the inline one
}

// work claims and runs chunks of w's task until the task has no work left or has failed. It returns early, without
// counting itself finished, when the item has been handed to another domain's executor.
func (s *Scheduler) work(w worker) {
	t := w.item.task
	t.mu.Lock()
	for t.total > 0 && t.err == nil {
		if t.nodes[w.item.nodeIndex].Size == 0 {
			from := t.nodes[w.item.nodeIndex].Affinity
			w.item.nodeIndex = t.lockedPickNode(s.intn)
			if !w.inline && s.migrate(w, from, t.nodes[w.item.nodeIndex].Affinity) {
				t.mu.Unlock()
				return
			}
		}

		start, end := t.lockedClaim(w.item.nodeIndex)
		t.mu.Unlock()

		err := t.call(start, end)

		t.mu.Lock()
		if err != nil && t.err == nil {
			t.err = err
		}
	}
	if t.nodesLeft > 0 && t.err == nil {
		panic(fmt.Sprintf("worker done with %d nodes left", t.nodesLeft))
	}
	t.worksFini++
	if t.worksFini > t.works {
		panic(fmt.Sprintf("%d workers finished out of %d", t.worksFini, t.works))
	}
	done := t.worksFini == t.works
	t.mu.Unlock()

	if done {
		close(t.done)
	}
}

// migrate moves w's reservation to the domain it has just switched to. When that domain has room, the item is queued
// on its executor and migrate returns true: the caller must stop. Otherwise w keeps running here, unpinned.
func (s *Scheduler) migrate(w worker, from, to int) bool {
	if from == to || len(s.topo.Domains) < 2 {
		return false
	}
	previous := w.item.domain
	w.item.domain = s.limiter.Migrate(previous, to)
	if w.item.domain == affinity.NoDomain {
		if w.unpin != nil {
			w.unpin()
		}
		return false
	}
	s.logger.Debug("migrating work item",
		slog.Int("slot", w.item.slot), slog.Int("from", previous), slog.Int("to", w.item.domain))
	s.executors.submit(w.item, s.runItem)
	return true
}

// runItem is the entry point of work items started by an executor.
func (s *Scheduler) runItem(item *workItem, unpin func()) {
	s.work(worker{item: item, unpin: unpin})
}
