package execctx

import (
	"context"
	"encoding/json"

	"github.com/phrazzld/offload/internal/task"
	"github.com/phrazzld/offload/internal/wire"
)

// Host creates isolated execution contexts
type Host interface {
	// Spawn creates a context loaded with prog. The context runs nothing
	// until it receives its startup message.
	Spawn(ctx context.Context, prog task.Program) (Context, error)
}

// Context is one isolated execution context. It shares no memory with its
// creator; the only way in is Send and the only way out is Results.
type Context interface {
	// Send delivers the startup message. It is called exactly once.
	Send(input json.RawMessage) error

	// Results yields at most one result message and is then closed. It is
	// closed without a message when the context ends without posting one.
	Results() <-chan wire.Result

	// Terminate ends the context abruptly and releases its resources. Any
	// in-flight computation is abandoned. Safe to call more than once.
	Terminate() error
}
