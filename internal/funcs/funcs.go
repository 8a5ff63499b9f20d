// Package funcs holds the built-in functions that consumers can run in a
// background context. Every function here is capture-free: it depends only
// on its input, so a process-isolated context computes exactly what an
// in-process one would.
package funcs

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/phrazzld/offload/internal/task"
)

// Names of the built-in functions
const (
	Square      = "square"
	Sum         = "sum"
	CountPrimes = "count_primes"
	Delay       = "delay"
)

// maxDelay bounds the delay function
const maxDelay = 10 * time.Minute

// ErrInvalidInput is returned when a built-in receives an input it cannot use
var ErrInvalidInput = errors.New("invalid input")

// DelayInput is the input of the delay function
type DelayInput struct {
	// Millis is how long to wait before answering
	Millis int64 `json:"millis"`
	// Value is returned unchanged
	Value any `json:"value"`
}

// Register adds the built-in functions to registry
func Register(registry *task.Registry) error {
	builtins := []struct {
		name string
		fn   task.Func
	}{
		{Square, task.Typed(square)},
		{Sum, task.Typed(sum)},
		{CountPrimes, task.Typed(countPrimes)},
		{Delay, task.Typed(delay)},
	}

	for _, b := range builtins {
		if err := registry.Register(b.name, b.fn); err != nil {
			return fmt.Errorf("failed to register %s: %w", b.name, err)
		}
	}
	return nil
}

// NewRegistry returns a registry holding only the built-in functions
func NewRegistry() *task.Registry {
	registry := task.NewRegistry()
	if err := Register(registry); err != nil {
		panic(err)
	}
	return registry
}

func square(_ context.Context, n float64) (float64, error) {
	return n * n, nil
}

func sum(_ context.Context, values []float64) (float64, error) {
	var total float64
	for _, v := range values {
		total += v
	}
	return total, nil
}

// countPrimes counts the primes <= n by trial division. It is deliberately
// CPU-bound and checks ctx so a terminated goroutine context stops early.
func countPrimes(ctx context.Context, n int64) (int64, error) {
	if n < 0 {
		return 0, fmt.Errorf("%w: n must be non-negative, got %d", ErrInvalidInput, n)
	}

	var count int64
	for i := int64(2); i <= n; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		if isPrime(i) {
			count++
		}
	}
	return count, nil
}

func isPrime(n int64) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	limit := int64(math.Sqrt(float64(n)))
	for d := int64(3); d <= limit; d += 2 {
		if n%d == 0 {
			return false
		}
	}
	return true
}

func delay(ctx context.Context, in DelayInput) (any, error) {
	d := time.Duration(in.Millis) * time.Millisecond
	if d < 0 || d > maxDelay {
		return nil, fmt.Errorf("%w: millis must be between 0 and %d", ErrInvalidInput, maxDelay.Milliseconds())
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return in.Value, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
