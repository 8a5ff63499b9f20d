package execctx

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/offload/internal/clone"
	"github.com/phrazzld/offload/internal/events"
	"github.com/phrazzld/offload/internal/result"
	"github.com/phrazzld/offload/internal/task"
)

// Sink receives the values of the handles a Manager starts. result.Slot
// implements it.
type Sink interface {
	// Reset clears the sink to pending for the handle with sequence number seq
	Reset(seq uint64)

	// Accept stores an outcome produced for seq, returning false if it was rejected
	Accept(seq uint64, o result.Outcome) bool
}

// Manager spawns, messages and terminates background contexts, keeping at
// most one of them live. It is safe for concurrent use, but is meant to be
// owned by a single consumer instance.
//
// Locking: Manager calls into its Sink and emitter while holding its own
// lock. Neither may call back into the Manager.
type Manager struct {
	host       Host
	serializer *task.Serializer
	sink       Sink
	emitter    events.EventEmitter
	logger     *slog.Logger

	mu   sync.Mutex
	seq  uint64
	live *Handle

	// wg tracks goroutines awaiting results
	wg sync.WaitGroup
}

// ManagerOption customizes a Manager
type ManagerOption func(*Manager)

// WithEmitter sets the emitter that receives lifecycle events
func WithEmitter(emitter events.EventEmitter) ManagerOption {
	return func(m *Manager) {
		m.emitter = emitter
	}
}

// NewManager creates a Manager that spawns contexts through host and
// forwards live results to sink.
func NewManager(host Host, serializer *task.Serializer, sink Sink, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		host:       host,
		serializer: serializer,
		sink:       sink,
		emitter:    events.NopEmitter{},
		logger:     logger.With("component", "execctx_manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start terminates the live handle, if any, and starts a new context for d.
// It returns as soon as the input has been sent; the result arrives later
// through the sink.
//
// Serialization and spawn failures are returned synchronously and also
// recorded in the sink as a failure. An input that cannot cross the
// boundary does not fail Start: the returned handle resolves with a
// clone.ErrUnclonable failure instead.
func (m *Manager) Start(ctx context.Context, d task.Descriptor) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.live != nil {
		if err := m.terminateLocked(ctx, m.live); err != nil {
			m.logger.Error("failed to terminate superseded context", "error", err)
		}
	}

	m.seq++
	seq := m.seq
	logger := m.logger.With("seq", seq, "func", d.Func)

	prog, err := m.serializer.Serialize(d)
	if err != nil {
		logger.Error("failed to serialize function", "error", err)
		m.fail(seq, err)
		return nil, err
	}

	h := newHandle(seq, prog)

	input, err := clone.Encode("input", d.Input)
	if err != nil {
		// Nothing to send, so nothing is spawned. The failure is delivered
		// the same way a result would be.
		logger.Warn("input cannot cross the context boundary", "error", err)
		m.live = h
		m.sink.Reset(seq)
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.OnResult(h, result.Outcome{Err: err})
		}()
		return h, nil
	}

	c, err := m.host.Spawn(ctx, prog)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSpawn, err)
		logger.Error("failed to spawn execution context", "error", err)
		m.emit(ctx, events.SpawnFailed, h)
		m.fail(seq, err)
		return nil, err
	}

	if err := c.Send(input); err != nil {
		_ = c.Terminate()
		err = fmt.Errorf("%w: failed to send startup message: %w", ErrSpawn, err)
		logger.Error("failed to start execution context", "error", err)
		m.emit(ctx, events.SpawnFailed, h)
		m.fail(seq, err)
		return nil, err
	}

	h.ctx = c
	m.live = h
	m.sink.Reset(seq)
	m.emit(ctx, events.ContextSpawned, h)
	logger.Debug("execution context started", "handle_id", h.ID)

	m.wg.Add(1)
	go m.await(h)

	return h, nil
}

// OnResult is called when a context posts its result. The outcome is
// forwarded to the sink only if h is still the live handle; results from
// superseded or terminated handles are dropped. It reports whether the
// outcome was accepted.
func (m *Manager) OnResult(h *Handle, o result.Outcome) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx := context.Background()
	if h != m.live || h.Status() != StatusRunning {
		m.logger.Debug("discarding result from superseded context",
			"seq", h.Seq,
			"handle_id", h.ID,
			"live_seq", m.liveSeqLocked())
		m.emit(ctx, events.ResultDiscarded, h)
		return false
	}

	if !h.resolve(o) {
		m.emit(ctx, events.ResultDiscarded, h)
		return false
	}
	if !m.sink.Accept(h.Seq, o) {
		m.emit(ctx, events.ResultDiscarded, h)
		return false
	}

	if o.Failed() {
		m.logger.Warn("background computation failed", "seq", h.Seq, "handle_id", h.ID, "error", o.Err)
	} else {
		m.logger.Debug("result accepted", "seq", h.Seq, "handle_id", h.ID)
	}
	m.emit(ctx, events.ResultAccepted, h)
	return true
}

// Terminate forcibly ends the handle's context whether or not it has
// completed. No partial result is delivered. Terminating an already
// terminated handle does nothing.
func (m *Manager) Terminate(h *Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminateLocked(context.Background(), h)
}

// Live returns the live handle, or nil
func (m *Manager) Live() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

// Wait blocks until every goroutine awaiting a result has returned. Call it
// after terminating the live handle.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) await(h *Handle) {
	defer m.wg.Done()

	select {
	case msg, ok := <-h.ctx.Results():
		// Termination closes the context's channel too; that is not a result.
		select {
		case <-h.stopped:
			return
		default:
		}
		o := msg.Outcome()
		if !ok {
			o = result.Outcome{Err: fmt.Errorf("%w: context exited without posting a result", result.ErrComputation)}
		}
		m.OnResult(h, o)
	case <-h.stopped:
	}
}

func (m *Manager) terminateLocked(ctx context.Context, h *Handle) error {
	if h == nil || !h.markTerminated() {
		return nil
	}
	if m.live == h {
		m.live = nil
	}

	var err error
	if h.ctx != nil {
		if termErr := h.ctx.Terminate(); termErr != nil {
			err = fmt.Errorf("failed to terminate context %d: %w", h.Seq, termErr)
		}
	}

	m.emit(ctx, events.ContextTerminated, h)
	m.logger.Debug("execution context terminated", "seq", h.Seq, "handle_id", h.ID)
	return err
}

// fail records a synchronous failure for seq so the sink never shows a
// value from a handle that is gone.
func (m *Manager) fail(seq uint64, err error) {
	m.sink.Reset(seq)
	m.sink.Accept(seq, result.Outcome{Err: err})
}

func (m *Manager) emit(ctx context.Context, eventType events.EventType, h *Handle) {
	event := events.NewLifecycleEvent(eventType, h.ID, h.Seq, h.Program.Func)
	if err := m.emitter.EmitEvent(ctx, event); err != nil {
		m.logger.Error("failed to emit lifecycle event", "event_type", eventType, "error", err)
	}
}

func (m *Manager) liveSeqLocked() uint64 {
	if m.live == nil {
		return 0
	}
	return m.live.Seq
}
