package task

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/phrazzld/offload/internal/clone"
)

// Func is a capture-free function that can run inside an isolated context.
// It receives the decoded startup message and returns the value to post back.
// The context's ctx is cancelled when the context is terminated.
type Func func(ctx context.Context, input json.RawMessage) (any, error)

// Typed adapts a function with concrete input and output types to a Func.
// The input message is decoded into In before fn is called.
func Typed[In, Out any](fn func(ctx context.Context, in In) (Out, error)) Func {
	return func(ctx context.Context, input json.RawMessage) (any, error) {
		var in In
		if err := clone.Decode(input, &in); err != nil {
			return nil, err
		}
		return fn(ctx, in)
	}
}

// Descriptor is the unit of work: a registered function and its input.
type Descriptor struct {
	// Func is the registered name of the function
	Func string

	// Input is the value sent as the startup message
	Input any
}

// NewDescriptor creates a Descriptor
func NewDescriptor(fn string, input any) Descriptor {
	return Descriptor{Func: fn, Input: input}
}

// Equal reports whether two descriptors schedule the same work. Function
// names compare by value. Inputs compare with == when their type is
// comparable and by identity when it is not (slices, maps), never by deep
// structure.
func (d Descriptor) Equal(other Descriptor) bool {
	return d.Func == other.Func && sameInput(d.Input, other.Input)
}

func sameInput(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return sameComparable(a, b)
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Map, reflect.Func:
		return va.Pointer() == vb.Pointer()
	default:
		// Structs or arrays holding non-comparable fields have no identity
		// once boxed in an interface, so they always count as changed.
		return false
	}
}

// sameComparable compares two values of a comparable type. Interface-typed
// fields can still hold non-comparable values, which makes == panic.
func sameComparable(a, b any) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
