//go:build !linux

package affinity

import "errors"

// Pinned is the handle of a thread pinned by Pin.
type Pinned struct{}

// Pin is not supported outside Linux.
func Pin(cpus []int) (*Pinned, error) {
	if len(cpus) == 0 {
		return nil, ErrNoCPUs
	}
	return nil, errors.ErrUnsupported
}

// Release is a no-op outside Linux.
func (p *Pinned) Release() error {
	return nil
}
