package execctx

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/offload/internal/result"
	"github.com/phrazzld/offload/internal/task"
	"github.com/phrazzld/offload/internal/wire"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeHost hands out fakeContexts the test drives by hand
type fakeHost struct {
	mu       sync.Mutex
	contexts []*fakeContext
}

func (h *fakeHost) Spawn(_ context.Context, prog task.Program) (Context, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &fakeContext{prog: prog, results: make(chan wire.Result, 1)}
	h.contexts = append(h.contexts, c)
	return c, nil
}

func (h *fakeHost) spawned() []*fakeContext {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*fakeContext(nil), h.contexts...)
}

type fakeContext struct {
	prog    task.Program
	results chan wire.Result

	mu         sync.Mutex
	input      json.RawMessage
	terminated int
	closed     bool
}

func (c *fakeContext) Send(input json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = input
	return nil
}

func (c *fakeContext) Results() <-chan wire.Result {
	return c.results
}

func (c *fakeContext) Terminate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terminated++
	return nil
}

// post delivers a result as the context would
func (c *fakeContext) post(msg wire.Result) {
	c.results <- msg
}

// exit closes the result channel without a message
func (c *fakeContext) exit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.results)
	}
}

func (c *fakeContext) terminations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminated
}

func (c *fakeContext) sentInput() json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// MockHost is a testify mock of Host
type MockHost struct {
	mock.Mock
}

func (m *MockHost) Spawn(ctx context.Context, prog task.Program) (Context, error) {
	args := m.Called(ctx, prog)
	c, _ := args.Get(0).(Context)
	return c, args.Error(1)
}

// waitForValue waits until the slot's value satisfies cond
func waitForValue(t *testing.T, slot *result.Slot, cond func(result.Value) bool) result.Value {
	t.Helper()
	require.Eventually(t, func() bool {
		return cond(slot.Value())
	}, 5*time.Second, 5*time.Millisecond, "slot value never reached the expected state")
	return slot.Value()
}

func settled(v result.Value) bool {
	return !v.IsPending()
}
