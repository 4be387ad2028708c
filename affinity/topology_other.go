//go:build !linux

package affinity

import "runtime"

// Detect returns a single domain of runtime.NumCPU() contexts; NUMA layout is only read on Linux.
func Detect() Topology {
	return Uniform(runtime.NumCPU())
}

// CurrentDomain always returns NoDomain outside Linux.
func CurrentDomain(Topology) int {
	return NoDomain
}
