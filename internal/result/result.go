// Package result holds the value a consumer sees for its background
// computation: pending, a computed output, or a failure.
package result

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/phrazzld/offload/internal/clone"
)

// ErrComputation is returned when the computation inside a context fails:
// the function returned an error, panicked, or the context exited without
// posting a result.
var ErrComputation = errors.New("computation failed")

// ErrNotSuccess is returned by Value.Decode when the value holds no output.
var ErrNotSuccess = errors.New("value holds no computed output")

// State is the observable state of a Value
type State string

// Possible value states
const (
	StatePending State = "pending"
	StateSuccess State = "success"
	StateFailure State = "failure"
)

// Outcome is what a context produced: an encoded output or an error.
type Outcome struct {
	Output json.RawMessage
	Err    error
}

// Failed reports whether the outcome carries an error
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Value is the snapshot exposed to the consumer.
type Value struct {
	// State is pending, success, or failure
	State State

	// Seq is the sequence number of the handle the value belongs to.
	// Zero means no computation was ever started.
	Seq uint64

	// Output is the encoded result, set only in StateSuccess
	Output json.RawMessage

	// Err is the failure, set only in StateFailure
	Err error
}

// Pending returns the pending sentinel for the handle with the given sequence number.
func Pending(seq uint64) Value {
	return Value{State: StatePending, Seq: seq}
}

// FromOutcome converts a context outcome into a consumer value.
func FromOutcome(seq uint64, o Outcome) Value {
	if o.Failed() {
		return Value{State: StateFailure, Seq: seq, Err: o.Err}
	}
	return Value{State: StateSuccess, Seq: seq, Output: o.Output}
}

// IsPending reports whether no computation has completed for the current handle.
func (v Value) IsPending() bool {
	return v.State == StatePending
}

// Decode copies the computed output into out.
func (v Value) Decode(out any) error {
	if v.State != StateSuccess {
		return fmt.Errorf("%w: state is %s", ErrNotSuccess, v.State)
	}
	return clone.Decode(v.Output, out)
}

// Equal reports whether two values are observationally identical.
func (v Value) Equal(other Value) bool {
	if v.State != other.State || v.Seq != other.Seq {
		return false
	}
	if string(v.Output) != string(other.Output) {
		return false
	}
	return v.Err == other.Err
}
