package ktask

import (
	"fmt"
	"log/slog"

	"github.com/fogfactory/ktask/affinity"
	"github.com/panjf2000/ants/v2"
	"github.com/samber/lo"
)

// executors run work items in goroutine pools: one per affinity domain, whose goroutines pin their thread on the
// domain CPUs, and one unbound pool for items without a domain.
type executors struct {
	topo    affinity.Topology
	domains []*ants.Pool
	unbound *ants.Pool
	logger  *slog.Logger
}

// newExecutors builds the pools, each able to run size items at once. A domain without CPU yields a nil pool: items
// asking for it run in the unbound pool.
func newExecutors(topo affinity.Topology, size int, logger *slog.Logger, opts ...ants.Option) (*executors, error) {
	var err error
	// Submit must block rather than fail: the Limiter already bounds the items in flight.
	opts = append(append([]ants.Option{ants.WithLogger(antsLogger{logger})}, opts...),
		ants.WithNonblocking(false), ants.WithMaxBlockingTasks(0))
	result := &executors{
		topo:   topo,
		logger: logger,
		domains: lo.Map(topo.Domains, func(cpus []int, _ int) (pool *ants.Pool) {
			if err != nil || len(cpus) == 0 {
				return nil
			}
			pool, err = ants.NewPool(size, opts...)
			return pool
		}),
	}
	if err == nil {
		result.unbound, err = ants.NewPool(size, opts...)
	}
	if err != nil {
		result.Release() // release eventually created pools
		return nil, fmt.Errorf("create executor pool: %w", err)
	}
	return result, nil
}

// Release releases all the pools.
func (e *executors) Release() {
	for _, p := range append([]*ants.Pool{e.unbound}, e.domains...) {
		if p == nil {
			continue
		}
		p.Release()
	}
}

func (e *executors) poolFor(domain int) *ants.Pool {
	if domain == affinity.NoDomain || domain >= len(e.domains) || e.domains[domain] == nil {
		return e.unbound
	}
	return e.domains[domain]
}

// submit queues run(w) on the pool of w's domain. The goroutine running it is pinned on the domain for the duration of
// the call; run may call unpin to release the pin early.
func (e *executors) submit(w *workItem, run func(w *workItem, unpin func())) {
	domain := w.domain
	err := e.poolFor(domain).Submit(func() {
		pin := e.pin(domain)
		unpin := func() {
			if err := pin.Release(); err != nil {
				e.logger.Warn("thread keeps its domain affinity", slog.Int("domain", domain), slog.Any("error", err))
			}
		}
		defer unpin()
		run(w, unpin)
	})
	if err != nil {
		// The Limiter bounds the items in flight under every pool size, so this is a bug.
		panic(fmt.Sprintf("submit work item to domain %d: %v", domain, err))
	}
}

func (e *executors) pin(domain int) *affinity.Pinned {
	if domain == affinity.NoDomain || domain >= len(e.topo.Domains) {
		return nil
	}
	pin, err := affinity.Pin(e.topo.Domains[domain])
	if err != nil {
		e.logger.Debug("running unpinned", slog.Int("domain", domain), slog.Any("error", err))
		return nil
	}
	return pin
}

// antsLogger forwards the pools' messages to slog.
type antsLogger struct {
	logger *slog.Logger
}

func (a antsLogger) Printf(format string, args ...any) {
	a.logger.Info(fmt.Sprintf(format, args...), slog.String("component", "ants"))
}
