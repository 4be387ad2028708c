package ktask

import (
	"fmt"
	"sync"

	"github.com/fogfactory/ktask/affinity"
)

// Only this fraction of the execution contexts may run additional workers, both process-wide and per domain.
const (
	cpuFracNumer = 4
	cpuFracDenom = 5
)

// Limiter caps how many work items may be outstanding at once, across all tasks sharing it, globally and per affinity
// domain. Every successful reservation must be paired with exactly one release.
//
// A Limiter built from fewer than 2 execution contexts is disabled: it never grants anything.
type Limiter struct {
	mu        sync.Mutex
	cur       int
	max       int
	domainCur []int
	domainMax []int
}

// NewLimiter sizes a Limiter from the execution contexts of topo.
func NewLimiter(topo affinity.Topology) *Limiter {
	l := &Limiter{}
	if topo.CPUs() < 2 {
		return l
	}
	l.max = cpuFrac(topo.CPUs())
	l.domainMax = make([]int, len(topo.Domains))
	l.domainCur = make([]int, len(topo.Domains))
	for d, n := range topo.DomainCPUs() {
		l.domainMax[d] = cpuFrac(n)
	}
	return l
}

func cpuFrac(n int) int {
	return n * cpuFracNumer / cpuFracDenom
}

// Enabled reports whether the limiter may grant reservations at all.
func (l *Limiter) Enabled() bool {
	return l.max > 0
}

// Max returns the number of work items that may be outstanding process-wide.
func (l *Limiter) Max() int {
	return l.max
}

// ReserveGlobal takes one process-wide slot. It returns false, taking nothing, when all slots are in use.
func (l *Limiter) ReserveGlobal() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lockedReserveGlobal()
}

func (l *Limiter) lockedReserveGlobal() bool {
	l.cur++
	if l.cur > l.max {
		l.cur--
		return false
	}
	return true
}

// ReserveDomain takes one slot of the given domain, on top of a global slot already held by the caller. It returns
// false, taking nothing, when the domain is full or is NoDomain.
func (l *Limiter) ReserveDomain(domain int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lockedReserveDomain(domain)
}

func (l *Limiter) lockedReserveDomain(domain int) bool {
	if domain == affinity.NoDomain || domain >= len(l.domainCur) {
		return false
	}
	if l.domainCur[domain] >= l.domainMax[domain] {
		return false
	}
	l.domainCur[domain]++
	if l.domainCur[domain] > l.cur {
		panic(fmt.Sprintf("domain %d holds %d slots out of %d global ones", domain, l.domainCur[domain], l.cur))
	}
	return true
}

// Reserve takes a global slot and, when possible, a slot of domain. It returns the domain actually granted, which is
// NoDomain when only the global slot could be taken, and false when not even that one was available.
func (l *Limiter) Reserve(domain int) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.lockedReserveGlobal() {
		return affinity.NoDomain, false
	}
	if l.lockedReserveDomain(domain) {
		return domain, true
	}
	return affinity.NoDomain, true
}

// ReleaseDomain gives back a slot taken with ReserveDomain, keeping the global one.
func (l *Limiter) ReleaseDomain(domain int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lockedReleaseDomain(domain)
}

func (l *Limiter) lockedReleaseDomain(domain int) {
	if domain == affinity.NoDomain {
		return
	}
	if l.domainCur[domain] == 0 {
		panic(fmt.Sprintf("release of domain %d with no slot reserved", domain))
	}
	l.domainCur[domain]--
}

// Release gives back a global slot and, unless domain is NoDomain, the slot of domain held with it.
func (l *Limiter) Release(domain int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lockedReleaseDomain(domain)
	if l.cur == 0 {
		panic("release with no slot reserved")
	}
	l.cur--
}

// Migrate moves the domain slot held with a global slot from one domain to another. The global slot is kept. It
// returns the domain now held: to when it had room, NoDomain otherwise.
func (l *Limiter) Migrate(from, to int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lockedReleaseDomain(from)
	if l.lockedReserveDomain(to) {
		return to
	}
	return affinity.NoDomain
}
