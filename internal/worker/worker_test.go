package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/phrazzld/offload/internal/clone"
	"github.com/phrazzld/offload/internal/funcs"
	"github.com/phrazzld/offload/internal/result"
	"github.com/phrazzld/offload/internal/task"
	"github.com/phrazzld/offload/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *task.Registry {
	t.Helper()
	reg := funcs.NewRegistry()
	reg.MustRegister("panic", func(context.Context, json.RawMessage) (any, error) {
		panic("kaboom")
	})
	reg.MustRegister("fail", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("bad things")
	})
	reg.MustRegister("returns_func", func(context.Context, json.RawMessage) (any, error) {
		return map[string]any{"cb": func() {}}, nil
	})
	return reg
}

func program(fn string) string {
	return task.Program{Version: task.ProgramVersion, Entry: task.EntryPoint, Func: fn}.String()
}

func startup(input string) *bytes.Buffer {
	var buf bytes.Buffer
	_ = wire.WriteMessage(&buf, wire.Startup{Input: json.RawMessage(input)})
	return &buf
}

func TestLoad(t *testing.T) {
	reg := testRegistry(t)

	fn, err := Load(reg, task.Program{Version: 1, Entry: task.EntryPoint, Func: funcs.Square})
	require.NoError(t, err)
	assert.NotNil(t, fn)

	_, err = Load(reg, task.Program{Version: 1, Entry: "other", Func: funcs.Square})
	assert.ErrorIs(t, err, task.ErrInvalidProgram)

	_, err = Load(reg, task.Program{Version: 1, Entry: task.EntryPoint, Func: "nope"})
	assert.ErrorIs(t, err, task.ErrInvalidProgram)
}

func TestEvaluate(t *testing.T) {
	reg := testRegistry(t)
	lookup := func(name string) task.Func {
		fn, ok := reg.Lookup(name)
		require.True(t, ok)
		return fn
	}

	t.Run("value", func(t *testing.T) {
		msg := Evaluate(context.Background(), lookup(funcs.Square), json.RawMessage(`5`))
		assert.Equal(t, wire.KindValue, msg.Kind)
		assert.Equal(t, "25", string(msg.Value))
	})

	t.Run("error", func(t *testing.T) {
		msg := Evaluate(context.Background(), lookup("fail"), nil)
		assert.Equal(t, wire.KindComputation, msg.Kind)
		assert.ErrorIs(t, msg.Outcome().Err, result.ErrComputation)
		assert.Contains(t, msg.Error, "bad things")
	})

	t.Run("panic", func(t *testing.T) {
		msg := Evaluate(context.Background(), lookup("panic"), nil)
		assert.Equal(t, wire.KindComputation, msg.Kind)
		assert.Contains(t, msg.Error, "panic: kaboom")
	})

	t.Run("unclonable output", func(t *testing.T) {
		msg := Evaluate(context.Background(), lookup("returns_func"), nil)
		assert.Equal(t, wire.KindUnclonable, msg.Kind)
		assert.ErrorIs(t, msg.Outcome().Err, clone.ErrUnclonable)
	})
}

func TestServe(t *testing.T) {
	var out bytes.Buffer
	err := Serve(context.Background(), testRegistry(t), program(funcs.Sum), startup(`[1,2,3]`), &out)
	require.NoError(t, err)

	msg, err := wire.NewReader(&out).ReadResult()
	require.NoError(t, err)
	assert.Equal(t, wire.KindValue, msg.Kind)
	assert.Equal(t, "6", string(msg.Value))
}

func TestMainExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		program  string
		in       string
		wantCode int
		wantOut  bool
	}{
		{name: "ok", program: program(funcs.Square), in: `{"input":3}` + "\n", wantCode: ExitOK, wantOut: true},
		{name: "computation failure still exits ok", program: program("fail"), in: `{"input":null}` + "\n", wantCode: ExitOK, wantOut: true},
		{name: "bad program text", program: "while(true){}", in: "", wantCode: ExitBadProgram},
		{name: "unknown function", program: program("missing"), in: "", wantCode: ExitBadProgram},
		{name: "no startup message", program: program(funcs.Square), in: "", wantCode: ExitBadStartup},
		{name: "malformed startup", program: program(funcs.Square), in: "garbage\n", wantCode: ExitBadStartup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			code := Main(context.Background(), testRegistry(t), tt.program, strings.NewReader(tt.in), &out, &errOut)

			assert.Equal(t, tt.wantCode, code)
			if tt.wantOut {
				assert.Equal(t, 1, strings.Count(out.String(), "\n"), "exactly one result message")
				assert.Empty(t, errOut.String())
			} else {
				assert.Empty(t, out.String(), "no result message is posted")
				assert.Contains(t, errOut.String(), "worker:")
			}
		})
	}
}
