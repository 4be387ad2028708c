//go:build linux

package affinity

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sys/unix"
)

// Pinned is the handle of a thread pinned by Pin. Release must run on the goroutine that called Pin.
type Pinned struct {
	prev unix.CPUSet
	once sync.Once
}

// Pin locks the calling goroutine to its OS thread and restricts the thread to cpus.
func Pin(cpus []int) (*Pinned, error) {
	if len(cpus) == 0 {
		return nil, ErrNoCPUs
	}
	runtime.LockOSThread()
	p := &Pinned{}
	if err := unix.SchedGetaffinity(0, &p.prev); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("read thread affinity: %w", err)
	}
	var set unix.CPUSet
	for _, cpu := range cpus {
		set.Set(cpu)
	}
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("pin thread on cpus %v: %w", cpus, err)
	}
	return p, nil
}

// Release restores the thread mask saved by Pin and unlocks the goroutine. Calling it more than once is a no-op
// returning nil.
//
// When the mask cannot be restored, the goroutine stays locked to the thread and keeps the pinned mask: a long-lived
// goroutine (a pool worker) then runs everything it picks up later on the pinned CPUs. Release reports it so the caller
// can log it.
func (p *Pinned) Release() error {
	if p == nil {
		return nil
	}
	var err error
	p.once.Do(func() {
		if err = unix.SchedSetaffinity(0, &p.prev); err != nil {
			err = fmt.Errorf("restore thread affinity: %w", err)
			return
		}
		runtime.UnlockOSThread()
	})
	return err
}
