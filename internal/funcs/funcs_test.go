package funcs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// call runs the registered function name on the JSON input
func call(t *testing.T, ctx context.Context, name, input string) (any, error) {
	t.Helper()
	fn, ok := NewRegistry().Lookup(name)
	require.True(t, ok, "built-in %s should be registered", name)
	return fn(ctx, json.RawMessage(input))
}

func TestNewRegistry(t *testing.T) {
	assert.Equal(t, []string{CountPrimes, Delay, Square, Sum}, NewRegistry().Names())
}

func TestSquare(t *testing.T) {
	out, err := call(t, context.Background(), Square, `5`)
	require.NoError(t, err)
	assert.Equal(t, 25.0, out)

	_, err = call(t, context.Background(), Square, `"five"`)
	assert.Error(t, err)
}

func TestSum(t *testing.T) {
	out, err := call(t, context.Background(), Sum, `[1, 2.5, 3]`)
	require.NoError(t, err)
	assert.Equal(t, 6.5, out)

	out, err = call(t, context.Background(), Sum, `[]`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out)
}

func TestCountPrimes(t *testing.T) {
	tests := []struct {
		n    string
		want int64
	}{
		{"0", 0},
		{"1", 0},
		{"2", 1},
		{"10", 4},
		{"100", 25},
		{"10000", 1229},
	}

	for _, tt := range tests {
		t.Run(tt.n, func(t *testing.T) {
			out, err := call(t, context.Background(), CountPrimes, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}

	_, err := call(t, context.Background(), CountPrimes, `-1`)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCountPrimesCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := call(t, ctx, CountPrimes, `100000`)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelay(t *testing.T) {
	out, err := call(t, context.Background(), Delay, `{"millis": 1, "value": "done"}`)
	require.NoError(t, err)
	assert.Equal(t, "done", out)

	_, err = call(t, context.Background(), Delay, `{"millis": -5}`)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDelayCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := call(t, ctx, Delay, `{"millis": 60000}`)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}
