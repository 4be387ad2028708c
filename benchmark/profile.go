package benchmark

import (
	"fmt"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/fogfactory/ktask"
	"github.com/samber/lo"
)

// spin burns about one microsecond of CPU per unit.
func spin(start, end int) error {
	deadline := time.Now().Add(time.Duration(end-start) * time.Microsecond)
	for time.Now().Before(deadline) {
	}
	return nil
}

// Profile generates a profile file of one task. It will be outputted as ktask_{date}_{size}_{minChunk}-{maxThreads}.prof.
//
// - size Number of units of the task, each costing about one microsecond.
// - minChunk Minimum chunk size.
// - maxThreads Maximum number of workers, 0 for the default.
//
// use pprof to read the file (go install github.com/google/pprof@latest).
func Profile(size, minChunk, maxThreads int) {
	// Profile file
	f, err := os.Create(fmt.Sprintf("ktask_%s_%d_%s.prof",
		strings.ReplaceAll(time.Now().Truncate(time.Second).Format(time.DateTime), " ", "-"),
		size,
		strings.Join(lo.Map([]int{minChunk, maxThreads}, func(item, _ int) string { return fmt.Sprint(item) }), "-")))
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer f.Close()

	// Init engine
	s, err := ktask.New()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer s.Release()
	ctl := ktask.NewCtl(spin, minChunk)
	ctl.MaxThreads = maxThreads
	fmt.Println("units: ", size, ", minimal seq duration:", time.Duration(size)*time.Microsecond)

	// Start profiling
	func() {
		_ = pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()

		start := time.Now()
		if err := s.Run(0, size, ctl); err != nil {
			fmt.Println(err)
		}
		fmt.Printf("(par: %s)\n", time.Since(start))
	}()

	start := time.Now()
	_ = spin(0, size)
	fmt.Printf("(seq: %s)\n", time.Since(start))
	fmt.Printf("profile:%s\n", f.Name())

	// Call pprof on a file
	// pprof -http=:8080 $file
}
