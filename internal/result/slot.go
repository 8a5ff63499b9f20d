package result

import "sync"

// Slot holds the latest accepted value for one consumer instance. It is
// safe for concurrent use.
type Slot struct {
	mu      sync.Mutex
	seq     uint64
	value   Value
	closed  bool
	updates uint64

	// changed is closed and replaced on every mutation
	changed chan struct{}
}

// NewSlot creates an empty slot. Its value is the pending sentinel with
// sequence number zero.
func NewSlot() *Slot {
	return &Slot{
		value:   Pending(0),
		changed: make(chan struct{}),
	}
}

// Reset makes seq the slot's current sequence number and clears the value
// to pending. Subsequent results are only accepted for seq.
func (s *Slot) Reset(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.seq = seq
	s.set(Pending(seq))
}

// Accept stores the outcome if it was produced for the current sequence
// number. It returns false when the outcome is stale or the slot is closed.
func (s *Slot) Accept(seq uint64, o Outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || seq != s.seq {
		return false
	}
	s.set(FromOutcome(seq, o))
	return true
}

// Close stops the slot from accepting further updates. The last value stays readable.
func (s *Slot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.changed)
}

// Value returns the current value
func (s *Slot) Value() Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Updates returns how many times the slot has been mutated.
func (s *Slot) Updates() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

// Closed reports whether Close has been called
func (s *Slot) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Changed returns a channel that is closed on the next mutation, or when
// the slot is closed. Read the value again after it fires.
func (s *Slot) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// set must be called with mu held.
func (s *Slot) set(v Value) {
	s.value = v
	s.updates++
	close(s.changed)
	s.changed = make(chan struct{})
}
