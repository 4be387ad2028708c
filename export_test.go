package ktask

// ChunkSize exposes the chunk sizer.
var ChunkSize = chunkSize

const LoadBalanceShift = loadBalanceShift

// Counters returns the global and per domain slots in use.
func (l *Limiter) Counters() (int, []int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cur, append([]int(nil), l.domainCur...)
}

// DomainMax returns the slots allowed per domain.
func (l *Limiter) DomainMax() []int {
	return append([]int(nil), l.domainMax...)
}

// Limiter returns the scheduler's limiter.
func (s *Scheduler) Limiter() *Limiter {
	return s.limiter
}

// FreeWorks returns the work items left in the pool, -1 for a disabled scheduler.
func (s *Scheduler) FreeWorks() int {
	if s.works == nil {
		return -1
	}
	return s.works.available()
}

// Pools returns the number of executor pools: one per domain with CPUs, plus the unbound one.
func (s *Scheduler) Pools() int {
	if s.executors == nil {
		return 0
	}
	n := 1
	for _, p := range s.executors.domains {
		if p != nil {
			n++
		}
	}
	return n
}
