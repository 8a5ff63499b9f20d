package execctx

import "errors"

// Common errors returned by the execctx package
var (
	// ErrSpawn is returned when the host refuses or fails to create a context
	ErrSpawn = errors.New("failed to spawn execution context")

	// ErrContextTerminated is returned when sending to a context that was already terminated
	ErrContextTerminated = errors.New("execution context is terminated")
)
