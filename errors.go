package ktask

import "errors"

var (
	ErrNoNodes      = errors.New("no node to run")
	ErrMinChunkSize = errors.New("minimum chunk size must be positive")
	ErrNilFunc      = errors.New("nil chunk function")
	ErrInvalidNode  = errors.New("invalid node")
	// ErrChunkPanic wraps the value recovered from a panicking ChunkFunc.
	ErrChunkPanic = errors.New("chunk function panicked")
)
