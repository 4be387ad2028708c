//go:build linux

package affinity

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/sys/unix"
)

const sysNodeDir = "/sys/devices/system/node"

// Detect reads the NUMA layout from sysfs, restricted to the CPUs this process may run on. It falls back to a single
// domain of runtime.NumCPU() contexts whenever the layout cannot be read.
func Detect() Topology {
	t, ok := readTopology(sysNodeDir)
	if !ok {
		return Uniform(runtime.NumCPU())
	}
	var allowed unix.CPUSet
	if err := unix.SchedGetaffinity(0, &allowed); err == nil {
		for d, cpus := range t.Domains {
			t.Domains[d] = lo.Filter(cpus, func(cpu int, _ int) bool { return allowed.IsSet(cpu) })
		}
	}
	if t.CPUs() == 0 {
		return Uniform(runtime.NumCPU())
	}
	return t
}

func readTopology(dir string) (Topology, bool) {
	paths, err := filepath.Glob(filepath.Join(dir, "node[0-9]*"))
	if err != nil || len(paths) == 0 {
		return Topology{}, false
	}
	byID := map[int][]int{}
	for _, path := range paths {
		id, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(path), "node"))
		if err != nil {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(path, "cpulist"))
		if err != nil {
			return Topology{}, false
		}
		cpus, err := ParseCPUList(string(raw))
		if err != nil {
			return Topology{}, false
		}
		byID[id] = cpus
	}
	if len(byID) == 0 {
		return Topology{}, false
	}
	// Node IDs may be sparse; missing nodes become empty domains.
	t := Topology{Domains: make([][]int, lo.Max(lo.Keys(byID))+1)}
	for id, cpus := range byID {
		t.Domains[id] = cpus
	}
	return t, true
}

// cpuSetSize is the number of CPUs a unix.CPUSet can hold.
const cpuSetSize = 1024

// CurrentDomain returns the domain the calling thread is confined to, or NoDomain when its CPU mask spans several
// domains or CPUs outside t.
func CurrentDomain(t Topology) int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return NoDomain
	}
	cpus := make([]int, 0, set.Count())
	for cpu := 0; cpu < cpuSetSize && len(cpus) < cap(cpus); cpu++ {
		if set.IsSet(cpu) {
			cpus = append(cpus, cpu)
		}
	}
	return t.domainOfAll(cpus)
}
