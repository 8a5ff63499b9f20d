package execctx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/offload/internal/task"
	"github.com/phrazzld/offload/internal/wire"
	"github.com/phrazzld/offload/internal/worker"
)

// GoroutineHost runs each context on its own goroutine inside the current
// process. Input and output cross the boundary only as encoded bytes, so the
// function never sees memory owned by the orchestrator. A goroutine cannot
// be killed: terminating cancels the function's context and abandons the
// goroutine, and whatever it computes afterwards is thrown away.
type GoroutineHost struct {
	registry *task.Registry
	logger   *slog.Logger
}

// NewGoroutineHost creates a host that resolves programs against registry
func NewGoroutineHost(registry *task.Registry, logger *slog.Logger) *GoroutineHost {
	return &GoroutineHost{
		registry: registry,
		logger:   logger.With("component", "goroutine_host"),
	}
}

// Spawn implements Host
func (h *GoroutineHost) Spawn(_ context.Context, prog task.Program) (Context, error) {
	fn, err := worker.Load(h.registry, prog)
	if err != nil {
		return nil, fmt.Errorf("host rejected program: %w", err)
	}

	// The context's lifetime is its own, not the caller's.
	runCtx, cancel := context.WithCancel(context.Background())
	c := &goroutineContext{
		inbox:   make(chan json.RawMessage, 1),
		results: make(chan wire.Result, 1),
		ctx:     runCtx,
		cancel:  cancel,
	}

	go c.run(fn)

	h.logger.Debug("goroutine context started", "func", prog.Func)
	return c, nil
}

type goroutineContext struct {
	inbox   chan json.RawMessage
	results chan wire.Result
	ctx     context.Context
	cancel  context.CancelFunc

	mu   sync.Mutex
	sent bool
}

func (c *goroutineContext) run(fn task.Func) {
	defer close(c.results)

	var input json.RawMessage
	select {
	case input = <-c.inbox:
	case <-c.ctx.Done():
		return
	}

	msg := worker.Evaluate(c.ctx, fn, input)
	if c.ctx.Err() != nil {
		return
	}
	c.results <- msg
}

func (c *goroutineContext) Send(input json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx.Err() != nil {
		return ErrContextTerminated
	}
	if c.sent {
		return fmt.Errorf("startup message already sent")
	}
	c.sent = true

	// Copy so the context owns its input outright.
	c.inbox <- append(json.RawMessage(nil), input...)
	return nil
}

func (c *goroutineContext) Results() <-chan wire.Result {
	return c.results
}

func (c *goroutineContext) Terminate() error {
	c.cancel()
	return nil
}
