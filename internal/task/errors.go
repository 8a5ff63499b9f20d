package task

import "errors"

// Common errors returned by the task package
var (
	// ErrSerialization is returned when a function cannot be turned into a loadable program
	ErrSerialization = errors.New("function cannot be serialized")

	// ErrInvalidProgram is returned when program text cannot be loaded
	ErrInvalidProgram = errors.New("invalid program")

	// ErrInvalidName is returned when a function is registered under an unusable name
	ErrInvalidName = errors.New("invalid function name")

	// ErrDuplicateFunc is returned when a name is registered twice
	ErrDuplicateFunc = errors.New("function already registered")

	// ErrNilFunc is returned when registering a nil function
	ErrNilFunc = errors.New("function is nil")
)
