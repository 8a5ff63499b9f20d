package events

import (
	"context"
	"sync"
)

// Counter tallies events by type.
type Counter struct {
	mu     sync.Mutex
	counts map[EventType]int
}

// NewCounter creates an empty Counter
func NewCounter() *Counter {
	return &Counter{counts: make(map[EventType]int)}
}

// HandleEvent implements the EventHandler interface
func (c *Counter) HandleEvent(_ context.Context, event *LifecycleEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[event.Type]++
	return nil
}

// Count returns how many events of the given type were seen
func (c *Counter) Count(eventType EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[eventType]
}

// Snapshot returns a copy of all counts
func (c *Counter) Snapshot() map[EventType]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[EventType]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// Recorder keeps every event it sees, in order.
type Recorder struct {
	mu     sync.Mutex
	events []LifecycleEvent
}

// NewRecorder creates an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// HandleEvent implements the EventHandler interface
func (r *Recorder) HandleEvent(_ context.Context, event *LifecycleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []LifecycleEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]LifecycleEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types, in order
func (r *Recorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

var (
	_ EventHandler = (*Counter)(nil)
	_ EventHandler = (*Recorder)(nil)
)
