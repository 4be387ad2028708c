/*
affinity describes how the execution contexts (CPUs) of the host are grouped into affinity domains, typically NUMA
nodes, and lets a goroutine ask to run its OS thread on one of them.

Affinity is always a hint: a failed Pin leaves the thread where it was and callers are expected to carry on unpinned.
*/
package affinity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// NoDomain is the affinity value meaning "no preference".
const NoDomain = -1

var (
	ErrInvalidCPUList = errors.New("invalid cpu list")
	ErrNoCPUs         = errors.New("no cpu to pin on")
)

// Topology lists the CPUs of each affinity domain. Domain IDs are the indexes of Domains.
type Topology struct {
	Domains [][]int
}

// Uniform builds a single domain topology holding n CPUs numbered from 0.
func Uniform(n int) Topology {
	return Split(n, 1)
}

// Split builds a topology of n CPUs spread over the given number of domains in contiguous blocks. The first n%domains
// domains get one extra CPU.
func Split(n, domains int) Topology {
	if domains < 1 {
		domains = 1
	}
	result := Topology{Domains: make([][]int, domains)}
	next := 0
	for d := range result.Domains {
		size := n / domains
		if d < n%domains {
			size++
		}
		result.Domains[d] = lo.RangeFrom(next, size)
		next += size
	}
	return result
}

// CPUs returns the number of execution contexts across all domains.
func (t Topology) CPUs() int {
	return lo.SumBy(t.Domains, func(cpus []int) int { return len(cpus) })
}

// DomainCPUs returns the number of execution contexts of each domain, indexed by domain ID.
func (t Topology) DomainCPUs() []int {
	return lo.Map(t.Domains, func(cpus []int, _ int) int { return len(cpus) })
}

// DomainOf returns the domain holding cpu, or NoDomain.
func (t Topology) DomainOf(cpu int) int {
	for d, cpus := range t.Domains {
		if lo.Contains(cpus, cpu) {
			return d
		}
	}
	return NoDomain
}

// Valid reports whether id is NoDomain or a domain of t.
func (t Topology) Valid(id int) bool {
	return id == NoDomain || (id >= 0 && id < len(t.Domains))
}

// domainOfAll returns the single domain holding every cpu, or NoDomain when they span several (or none).
func (t Topology) domainOfAll(cpus []int) int {
	if len(cpus) == 0 {
		return NoDomain
	}
	first := t.DomainOf(cpus[0])
	if first == NoDomain {
		return NoDomain
	}
	if !lo.EveryBy(cpus, func(cpu int) bool { return lo.Contains(t.Domains[first], cpu) }) {
		return NoDomain
	}
	return first
}

// ParseCPUList parses the kernel cpulist format ("0-3,8,10-11").
func ParseCPUList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var result []int
	for _, part := range strings.Split(s, ",") {
		lowStr, highStr, isRange := strings.Cut(part, "-")
		low, err := strconv.Atoi(lowStr)
		if err != nil || low < 0 {
			return nil, fmt.Errorf("%w %q", ErrInvalidCPUList, s)
		}
		high := low
		if isRange {
			high, err = strconv.Atoi(highStr)
			if err != nil || high < low {
				return nil, fmt.Errorf("%w %q", ErrInvalidCPUList, s)
			}
		}
		result = append(result, lo.RangeFrom(low, high-low+1)...)
	}
	return result, nil
}
