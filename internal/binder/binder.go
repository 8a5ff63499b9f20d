// Package binder ties a background computation to the lifecycle of one
// consumer instance. The consumer calls Attach on every update cycle with
// its current function and input; the binder restarts the computation only
// when that pair changes, and releases it when the consumer is closed.
package binder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/offload/internal/events"
	"github.com/phrazzld/offload/internal/execctx"
	"github.com/phrazzld/offload/internal/result"
	"github.com/phrazzld/offload/internal/task"
)

// ErrTerminated is returned by Attach after Close
var ErrTerminated = errors.New("binder is terminated")

// State is the binder's lifecycle state
type State string

// Possible binder states
const (
	StateIdle       State = "idle"
	StateRunning    State = "running"
	StateTerminated State = "terminated"
)

// Binder owns the single background computation of one consumer instance:
// the execution context manager and the result slot it feeds.
type Binder struct {
	mu      sync.Mutex
	state   State
	last    *task.Descriptor
	manager *execctx.Manager
	slot    *result.Slot
	logger  *slog.Logger
}

// Option customizes a Binder
type Option func(*options)

type options struct {
	emitter events.EventEmitter
}

// WithEmitter sets the emitter that receives the lifecycle events of this
// binder's contexts.
func WithEmitter(emitter events.EventEmitter) Option {
	return func(o *options) {
		o.emitter = emitter
	}
}

// New creates an idle Binder whose contexts are spawned through host and
// whose functions are resolved by serializer.
func New(host execctx.Host, serializer *task.Serializer, logger *slog.Logger, opts ...Option) *Binder {
	o := options{emitter: events.NopEmitter{}}
	for _, opt := range opts {
		opt(&o)
	}

	logger = logger.With("component", "binder")
	slot := result.NewSlot()
	return &Binder{
		state:   StateIdle,
		manager: execctx.NewManager(host, serializer, slot, logger, execctx.WithEmitter(o.emitter)),
		slot:    slot,
		logger:  logger,
	}
}

// Attach is called once per update cycle with the consumer's current
// function name and input. When the pair differs from the previous
// successful call, the running computation is terminated and a new one is
// started; otherwise Attach has no side effects. It returns the current
// value: the pending sentinel or the latest accepted result.
//
// Serialization and spawn failures are returned and also recorded in the
// value. A failed pair is not remembered, so attaching it again retries.
func (b *Binder) Attach(ctx context.Context, fn string, input any) (result.Value, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateTerminated {
		return b.slot.Value(), ErrTerminated
	}

	d := task.NewDescriptor(fn, input)
	if b.last != nil && b.last.Equal(d) {
		return b.slot.Value(), nil
	}

	b.last = nil
	if _, err := b.manager.Start(ctx, d); err != nil {
		b.state = StateIdle
		return b.slot.Value(), fmt.Errorf("failed to start background computation: %w", err)
	}

	b.last = &d
	b.state = StateRunning
	b.logger.Debug("background computation started", "func", fn)
	return b.slot.Value(), nil
}

// Value returns the current value without side effects
func (b *Binder) Value() result.Value {
	return b.slot.Value()
}

// Changed returns a channel closed on the next value change
func (b *Binder) Changed() <-chan struct{} {
	return b.slot.Changed()
}

// Updates returns how many times the value has changed
func (b *Binder) Updates() uint64 {
	return b.slot.Updates()
}

// State returns the lifecycle state
func (b *Binder) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Live returns the handle of the current context, or nil
func (b *Binder) Live() *execctx.Handle {
	return b.manager.Live()
}

// Close tears the binder down: the live context is terminated, the value
// stops changing, and every goroutine the binder started has returned by
// the time Close returns. Close is idempotent.
func (b *Binder) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateTerminated {
		return nil
	}
	b.state = StateTerminated

	// Closing the slot first means a result racing the termination below
	// can no longer land.
	b.slot.Close()
	err := b.manager.Terminate(b.manager.Live())
	b.manager.Wait()

	b.logger.Debug("binder terminated")
	if err != nil {
		return fmt.Errorf("failed to release background context: %w", err)
	}
	return nil
}
