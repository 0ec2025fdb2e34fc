package queue

import "errors"

// ErrFull is returned by InMemory.Publish when no consumer keeps up.
var ErrFull = errors.New("queue full")
