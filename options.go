package ktask

import (
	"log/slog"
	"math/rand/v2"

	"github.com/fogfactory/ktask/affinity"
	"github.com/panjf2000/ants/v2"
)

// DefaultMaxThreads caps the workers of a task whose Ctl leaves MaxThreads unset.
const DefaultMaxThreads = 4

// Option configures a Scheduler.
type Option func(*options)

type options struct {
	maxThreads  int
	topology    *affinity.Topology
	logger      *slog.Logger
	poolOptions []ants.Option
	intn        func(int) int
}

func newOptions(opts []Option) options {
	o := options{
		maxThreads: DefaultMaxThreads,
		logger:     slog.Default(),
		intn:       rand.IntN,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMaxThreads sets the number of workers a task may use when its Ctl does not say. Values below 1 are ignored.
func WithMaxThreads(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxThreads = n
		}
	}
}

// WithTopology sets the execution contexts and affinity domains the scheduler sizes itself from, instead of the
// detected ones.
func WithTopology(topo affinity.Topology) Option {
	return func(o *options) {
		o.topology = &topo
	}
}

// WithLogger sets the logger of the scheduler and of its goroutine pools.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPoolOptions adds options to all underlying pools.
func WithPoolOptions(opts ...ants.Option) Option {
	return func(o *options) {
		o.poolOptions = append(o.poolOptions, opts...)
	}
}

// WithRand sets the source used to pick a node when a worker runs out of work: intn(n) must return a value in [0, n).
func WithRand(intn func(n int) int) Option {
	return func(o *options) {
		if intn != nil {
			o.intn = intn
		}
	}
}
