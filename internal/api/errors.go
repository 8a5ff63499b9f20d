package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/offload/internal/binder"
	"github.com/phrazzld/offload/internal/clone"
	"github.com/phrazzld/offload/internal/execctx"
	"github.com/phrazzld/offload/internal/result"
	"github.com/phrazzld/offload/internal/session"
	"github.com/phrazzld/offload/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, binder.ErrTerminated):
		return http.StatusConflict

	// Unprocessable requests
	case errors.Is(err, task.ErrSerialization):
		return http.StatusUnprocessableEntity

	// Capacity errors
	case errors.Is(err, session.ErrLimitReached):
		return http.StatusTooManyRequests

	case errors.Is(err, execctx.ErrSpawn),
		errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, session.ErrNotFound):
		return "Session not found"
	case errors.Is(err, binder.ErrTerminated):
		return "Session is terminated"
	case errors.Is(err, task.ErrSerialization):
		return "Function is not registered"
	case errors.Is(err, session.ErrLimitReached):
		return "Too many open sessions"
	case errors.Is(err, execctx.ErrSpawn):
		return "Background context could not be started"
	case errors.Is(err, session.ErrClosed):
		return "Server is shutting down"
	default:
		return "An unexpected error occurred"
	}
}

// ErrorKind names the class of a failure held in a session value
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, task.ErrSerialization):
		return "serialization"
	case errors.Is(err, execctx.ErrSpawn):
		return "spawn"
	case errors.Is(err, clone.ErrUnclonable):
		return "unclonable"
	case errors.Is(err, result.ErrComputation):
		return "computation"
	default:
		return "unknown"
	}
}

// firstLine trims multi-line error text, such as recovered panics with
// stack traces, to its first line.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}

	fe := verrs[0]
	return fmt.Sprintf("Invalid %s: %s", strings.ToLower(fe.Field()), getValidationTagMessage(fe.Tag()))
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
