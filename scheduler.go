package ktask

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/eapache/queue"
	"github.com/fogfactory/ktask/affinity"
	"github.com/samber/lo"
)

// Node is one range of a task, tagged with the affinity domain its work should preferably run on.
type Node struct {
	Start    int
	Size     int
	Affinity int // affinity.NoDomain for no preference
}

// ChunkFunc processes the units [start, end). It may run concurrently with other calls over disjoint ranges. A non
// nil error fails the task.
type ChunkFunc func(start, end int) error

// IterFunc returns the position size units after position.
type IterFunc func(position, size int) int

// IterRange is the default IterFunc: one unit per position.
func IterRange(position, size int) int {
	return position + size
}

// Ctl describes how to run a task.
type Ctl struct {
	Func         ChunkFunc
	Iter         IterFunc // IterRange when nil
	MinChunkSize int      // chunks are at least this large, and a multiple of it when larger
	MaxThreads   int      // 0 for the scheduler default
}

// NewCtl returns a Ctl running fn over chunks of at least minChunkSize units.
func NewCtl(fn ChunkFunc, minChunkSize int) Ctl {
	return Ctl{Func: fn, MinChunkSize: minChunkSize}
}

func (c Ctl) iter(position, size int) int {
	if c.Iter == nil {
		return IterRange(position, size)
	}
	return c.Iter(position, size)
}

// Scheduler runs tasks across goroutine pools bound to affinity domains, under a shared Limiter. Tasks may be run
// concurrently from several goroutines; they only compete for the Limiter's slots.
type Scheduler struct {
	topo       affinity.Topology
	maxThreads int
	logger     *slog.Logger
	intn       func(int) int
	limiter    *Limiter
	works      *workPool
	executors  *executors
}

// New builds a Scheduler. On hosts with fewer than 2 execution contexts, it runs every task on the calling goroutine
// only.
func New(opts ...Option) (*Scheduler, error) {
	o := newOptions(opts)
	topo := affinity.Detect()
	if o.topology != nil {
		topo = *o.topology
	}
	s := &Scheduler{
		topo:       topo,
		maxThreads: o.maxThreads,
		logger:     o.logger,
		intn:       o.intn,
		limiter:    NewLimiter(topo),
	}
	if !s.limiter.Enabled() {
		s.logger.Debug("parallel tasks disabled", slog.Int("cpus", topo.CPUs()))
		return s, nil
	}
	var err error
	s.executors, err = newExecutors(topo, s.limiter.Max(), s.logger, o.poolOptions...)
	if err != nil {
		return nil, err
	}
	s.works = newWorkPool(s.limiter.Max())
	return s, nil
}

// disabled returns a Scheduler running every task on the calling goroutine.
func disabled(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		topo:       affinity.Uniform(1),
		maxThreads: DefaultMaxThreads,
		logger:     logger,
		intn:       rand.IntN,
		limiter:    &Limiter{},
	}
}

// Release stops the scheduler's goroutine pools. No task may be running or started afterwards.
func (s *Scheduler) Release() {
	if s.executors != nil {
		s.executors.Release()
	}
}

// Enabled reports whether the scheduler may run tasks on more than the calling goroutine.
func (s *Scheduler) Enabled() bool {
	return s.executors != nil
}

// Run runs ctl over the single range [start, start+size) on the caller's current domain.
func (s *Scheduler) Run(start, size int, ctl Ctl) error {
	return s.RunNodes([]Node{{Start: start, Size: size, Affinity: affinity.CurrentDomain(s.topo)}}, ctl)
}

// RunNodes runs ctl over the ranges of nodes and waits for it to complete. It returns the first error returned by a
// chunk, nil when all succeeded. Once an error is recorded, workers stop claiming chunks, but chunks already running
// complete.
//
// The calling goroutine always works on the task, so it completes even when no other worker can be reserved.
func (s *Scheduler) RunNodes(nodes []Node, ctl Ctl) error {
	if err := s.validate(nodes, ctl); err != nil {
		return err
	}
	t := newTask(nodes, ctl)
	if t.total == 0 {
		return nil
	}

	works := s.initWorks(t)
	t.works = works.Length() + 1
	t.chunkSize = chunkSize(t.total, ctl.MinChunkSize, t.works)
	s.logger.Debug("running task",
		slog.Int("total", t.total), slog.Int("nodes", len(nodes)),
		slog.Int("workers", t.works), slog.Int("chunk", t.chunkSize))

	for i := 0; i < works.Length(); i++ {
		s.executors.submit(works.Get(i).(*workItem), s.runItem)
	}

	// Use the current goroutine, which saves starting a worker.
	s.work(worker{item: &workItem{slot: -1, task: t, domain: nodes[0].Affinity}, inline: true})

	<-t.done

	s.finiWorks(works)
	return t.err
}

func (s *Scheduler) validate(nodes []Node, ctl Ctl) error {
	switch {
	case len(nodes) == 0:
		return ErrNoNodes
	case ctl.MinChunkSize <= 0:
		return fmt.Errorf("%w (got %d)", ErrMinChunkSize, ctl.MinChunkSize)
	case ctl.Func == nil:
		return ErrNilFunc
	}
	if n, i, found := lo.FindIndexOf(nodes, func(n Node) bool {
		return n.Size < 0 || !s.topo.Valid(n.Affinity) || (ctl.Iter == nil && n.Start > math.MaxInt-n.Size)
	}); found {
		return fmt.Errorf("%w #%d %+v", ErrInvalidNode, i, n)
	}
	total := 0
	for i, n := range nodes {
		if n.Size > math.MaxInt-total {
			return fmt.Errorf("%w #%d %+v: total size overflows", ErrInvalidNode, i, n)
		}
		total += n.Size
	}
	return nil
}

// initWorks reserves the workers of t beyond the calling goroutine, spread evenly over its nodes. It may return
// fewer than wanted, down to none.
func (s *Scheduler) initWorks(t *task) *queue.Queue {
	works := queue.New()
	if !s.Enabled() {
		return works
	}
	maxThreads := t.ctl.MaxThreads
	if maxThreads <= 0 {
		maxThreads = s.maxThreads
	}
	chunks := t.total / t.ctl.MinChunkSize
	if t.total%t.ctl.MinChunkSize != 0 {
		chunks++
	}
	wanted := min(chunks, s.topo.CPUs(), maxThreads)
	for i := 1; i < wanted; i++ {
		nodeIndex := i % len(t.nodes)
		domain, ok := s.limiter.Reserve(t.nodes[nodeIndex].Affinity)
		if !ok {
			break // No more work items allowed to be queued.
		}
		works.Add(s.works.acquire(t, nodeIndex, domain))
	}
	return works
}

// finiWorks puts the workers of a completed task back into the pool, releasing their reservations.
func (s *Scheduler) finiWorks(works *queue.Queue) {
	for works.Length() > 0 {
		w := works.Remove().(*workItem)
		s.limiter.Release(w.domain)
		s.works.release(w)
	}
}

var defaultScheduler = sync.OnceValue(func() *Scheduler {
	s, err := New()
	if err != nil {
		slog.Warn("parallel tasks disabled", slog.Any("error", err))
		return disabled(slog.Default())
	}
	return s
})

// Default returns the process-wide Scheduler, built on first use from the detected topology.
func Default() *Scheduler {
	return defaultScheduler()
}

// Run runs ctl over [start, start+size) with the Default scheduler.
func Run(start, size int, ctl Ctl) error {
	return Default().Run(start, size, ctl)
}

// RunNodes runs ctl over nodes with the Default scheduler.
func RunNodes(nodes []Node, ctl Ctl) error {
	return Default().RunNodes(nodes, ctl)
}
