package execctx

import (
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/offload/internal/result"
	"github.com/phrazzld/offload/internal/task"
)

// Status represents the current state of a handle
type Status string

// Possible handle status values
const (
	StatusRunning    Status = "running"
	StatusTerminated Status = "terminated"
)

// Handle represents one background context started by a Manager. It is
// also a single-resolution future for the context's result.
type Handle struct {
	// ID is the handle's unique identifier
	ID uuid.UUID

	// Seq is the creation sequence number, unique and increasing per manager
	Seq uint64

	// Program is the serialized program the context was started with
	Program task.Program

	// ctx is nil when the input could not be sent and no context was spawned
	ctx Context

	mu       sync.Mutex
	status   Status
	outcome  result.Outcome
	resolved bool

	// done is closed when the handle resolves or is terminated
	done chan struct{}

	// stopped is closed when the handle is terminated
	stopped chan struct{}
}

func newHandle(seq uint64, prog task.Program) *Handle {
	return &Handle{
		ID:      uuid.New(),
		Seq:     seq,
		Program: prog,
		status:  StatusRunning,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Status returns the current handle status
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Done returns a channel closed once the handle has an outcome or has been
// terminated without one.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Outcome returns the accepted outcome. ok is false while the handle is
// unresolved and for handles terminated before their result was accepted.
func (h *Handle) Outcome() (o result.Outcome, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outcome, h.resolved
}

// resolve records the outcome of a running handle. It returns false if the
// handle was already resolved or terminated.
func (h *Handle) resolve(o result.Outcome) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.resolved || h.status != StatusRunning {
		return false
	}
	h.outcome = o
	h.resolved = true
	close(h.done)
	return true
}

// markTerminated flips the handle to terminated. It returns false if the
// handle was already terminated.
func (h *Handle) markTerminated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.status == StatusTerminated {
		return false
	}
	h.status = StatusTerminated
	close(h.stopped)
	if !h.resolved {
		close(h.done)
	}
	return true
}
