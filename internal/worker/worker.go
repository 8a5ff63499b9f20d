// Package worker is the inside of a background context. It loads a
// program, waits for the single startup message, runs the function bound to
// the entry point and posts exactly one result message.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/phrazzld/offload/internal/clone"
	"github.com/phrazzld/offload/internal/result"
	"github.com/phrazzld/offload/internal/task"
	"github.com/phrazzld/offload/internal/wire"
)

// Exit codes returned by Main
const (
	ExitOK          = 0
	ExitBadProgram  = 2
	ExitBadStartup  = 3
	ExitWriteFailed = 4
)

// Load resolves the program's entry point against registry.
func Load(registry *task.Registry, prog task.Program) (task.Func, error) {
	if prog.Entry != task.EntryPoint {
		return nil, fmt.Errorf("%w: unknown entry point %q", task.ErrInvalidProgram, prog.Entry)
	}
	fn, ok := registry.Lookup(prog.Func)
	if !ok {
		return nil, fmt.Errorf("%w: function %q is not registered in this context", task.ErrInvalidProgram, prog.Func)
	}
	return fn, nil
}

// Evaluate computes fn(input) once and returns the result message to post.
// Panics and errors become computation failures; an output that cannot be
// copied becomes an unclonable failure.
func Evaluate(ctx context.Context, fn task.Func, input json.RawMessage) (msg wire.Result) {
	defer func() {
		if r := recover(); r != nil {
			msg = wire.FailureResult(fmt.Errorf("%w: panic: %v\n%s", result.ErrComputation, r, debug.Stack()))
		}
	}()

	out, err := fn(ctx, input)
	if err != nil {
		if !errors.Is(err, result.ErrComputation) && !errors.Is(err, clone.ErrUnclonable) {
			err = fmt.Errorf("%w: %w", result.ErrComputation, err)
		}
		return wire.FailureResult(err)
	}

	encoded, err := clone.Encode("output", out)
	if err != nil {
		return wire.FailureResult(err)
	}
	return wire.ValueResult(encoded)
}

// Serve runs one program to completion over a message stream: it reads the
// startup message from in, evaluates, and writes the result message to out.
func Serve(ctx context.Context, registry *task.Registry, programText string, in io.Reader, out io.Writer) error {
	prog, err := task.ParseProgram(programText)
	if err != nil {
		return err
	}
	fn, err := Load(registry, prog)
	if err != nil {
		return err
	}

	startup, err := wire.NewReader(in).ReadStartup()
	if err != nil {
		return fmt.Errorf("failed to read startup message: %w", err)
	}

	msg := Evaluate(ctx, fn, startup.Input)
	if err := wire.WriteMessage(out, msg); err != nil {
		return err
	}
	return nil
}

// Main is the process entry point for a context spawned by a process host.
// It returns the exit code for the process.
func Main(ctx context.Context, registry *task.Registry, programText string, in io.Reader, out io.Writer, errOut io.Writer) int {
	err := Serve(ctx, registry, programText, in, out)
	if err == nil {
		return ExitOK
	}

	fmt.Fprintf(errOut, "worker: %v\n", err)
	switch {
	case errors.Is(err, task.ErrInvalidProgram):
		return ExitBadProgram
	case errors.Is(err, wire.ErrMalformedMessage), errors.Is(err, io.EOF):
		return ExitBadStartup
	default:
		return ExitWriteFailed
	}
}
