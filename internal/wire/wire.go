// Package wire defines the two messages exchanged with a background
// context: the startup message carrying the input and the result message
// carrying the output. Messages are newline-delimited JSON.
package wire

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/phrazzld/offload/internal/clone"
	"github.com/phrazzld/offload/internal/result"
)

// ErrMalformedMessage is returned when a message cannot be decoded
var ErrMalformedMessage = errors.New("malformed message")

// maxMessageSize bounds a single message line
const maxMessageSize = 64 << 20

// Kind tags a result message
type Kind string

// Result message kinds
const (
	KindValue       Kind = "value"
	KindComputation Kind = "computation"
	KindUnclonable  Kind = "unclonable"
)

// Startup is sent exactly once, immediately after the context is created.
type Startup struct {
	Input json.RawMessage `json:"input"`
}

// Result is posted exactly once by the context after invoking the function.
type Result struct {
	Kind  Kind            `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
}

// ValueResult builds a successful result message
func ValueResult(v json.RawMessage) Result {
	return Result{Kind: KindValue, Value: v}
}

// FailureResult builds a failed result message. Errors wrapping
// clone.ErrUnclonable are tagged as unclonable, everything else as a
// computation failure.
func FailureResult(err error) Result {
	kind := KindComputation
	if errors.Is(err, clone.ErrUnclonable) {
		kind = KindUnclonable
	}
	return Result{Kind: kind, Error: err.Error()}
}

// Outcome converts the message into the orchestrator's outcome, restoring
// the error class that was lost crossing the boundary.
func (r Result) Outcome() result.Outcome {
	switch r.Kind {
	case KindValue:
		value := r.Value
		if len(value) == 0 {
			value = json.RawMessage("null")
		}
		return result.Outcome{Output: value}
	case KindUnclonable:
		return result.Outcome{Err: fmt.Errorf("%w: %s", clone.ErrUnclonable, trimPrefix(r.Error, clone.ErrUnclonable))}
	case KindComputation:
		return result.Outcome{Err: fmt.Errorf("%w: %s", result.ErrComputation, trimPrefix(r.Error, result.ErrComputation))}
	default:
		return result.Outcome{Err: fmt.Errorf("%w: %w: unknown result kind %q", result.ErrComputation, ErrMalformedMessage, r.Kind)}
	}
}

// trimPrefix removes the sentinel text from a message that already carries
// it, so that re-wrapping does not repeat it.
func trimPrefix(msg string, sentinel error) string {
	prefix := sentinel.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}

// WriteMessage encodes one message as a single line.
func WriteMessage(w io.Writer, msg any) error {
	if err := json.NewEncoder(w).Encode(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Reader reads messages from a stream, one per line.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader creates a Reader over r
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	return &Reader{scanner: scanner}
}

// ReadStartup reads the startup message
func (r *Reader) ReadStartup() (Startup, error) {
	var msg Startup
	if err := r.read(&msg); err != nil {
		return Startup{}, err
	}
	return msg, nil
}

// ReadResult reads the result message
func (r *Reader) ReadResult() (Result, error) {
	var msg Result
	if err := r.read(&msg); err != nil {
		return Result{}, err
	}
	return msg, nil
}

// read returns io.EOF when the stream ends before a message arrives.
func (r *Reader) read(out any) error {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}
		return io.EOF
	}
	if err := json.Unmarshal(r.scanner.Bytes(), out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	return nil
}
