package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a step in a background context's lifecycle
type EventType string

// Lifecycle event types
const (
	// ContextSpawned is emitted after a context is created and sent its input
	ContextSpawned EventType = "context_spawned"

	// ContextTerminated is emitted after a context is forcibly ended
	ContextTerminated EventType = "context_terminated"

	// SpawnFailed is emitted when a context could not be created
	SpawnFailed EventType = "spawn_failed"

	// ResultAccepted is emitted when a result from the live context reaches the slot
	ResultAccepted EventType = "result_accepted"

	// ResultDiscarded is emitted when a result from a superseded context is dropped
	ResultDiscarded EventType = "result_discarded"
)

// LifecycleEvent records one lifecycle step of one execution context handle.
type LifecycleEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is the lifecycle step
	Type EventType `json:"type"`

	// HandleID identifies the execution context handle
	HandleID uuid.UUID `json:"handle_id"`

	// Seq is the handle's creation sequence number
	Seq uint64 `json:"seq"`

	// Func is the registered name of the function the handle runs
	Func string `json:"func"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewLifecycleEvent creates a new LifecycleEvent with a fresh ID and timestamp.
func NewLifecycleEvent(eventType EventType, handleID uuid.UUID, seq uint64, fn string) *LifecycleEvent {
	return &LifecycleEvent{
		ID:        uuid.New(),
		Type:      eventType,
		HandleID:  handleID,
		Seq:       seq,
		Func:      fn,
		CreatedAt: time.Now(),
	}
}

// EventHandler defines an interface for components that can handle events.
// Handlers run synchronously on the emitting goroutine, possibly while the
// emitter's caller holds locks, so they must not call back into it.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *LifecycleEvent) error
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *LifecycleEvent) error
}

// NopEmitter discards every event
type NopEmitter struct{}

// EmitEvent implements EventEmitter
func (NopEmitter) EmitEvent(context.Context, *LifecycleEvent) error { return nil }
