package api

import (
	"encoding/json"
	"time"

	"github.com/phrazzld/offload/internal/redact"
	"github.com/phrazzld/offload/internal/result"
	"github.com/phrazzld/offload/internal/session"
)

// AttachRequest represents the request body for attaching a function and input to a session
type AttachRequest struct {
	Func  string          `json:"func" validate:"required,max=128"`
	Input json.RawMessage `json:"input"`
}

// ValueResponse represents the current value of a session
type ValueResponse struct {
	State     string          `json:"state"`
	Seq       uint64          `json:"seq"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
}

// SessionResponse represents the response data for a session
type SessionResponse struct {
	ID        string         `json:"id"`
	State     string         `json:"state"`
	CreatedAt time.Time      `json:"created_at"`
	Value     ValueResponse  `json:"value"`
	Stats     map[string]int `json:"stats"`
}

// FunctionsResponse lists the functions a session can run
type FunctionsResponse struct {
	Functions []string `json:"functions"`
}

// valueToResponse converts a result.Value to a ValueResponse
func valueToResponse(v result.Value) ValueResponse {
	resp := ValueResponse{
		State: string(v.State),
		Seq:   v.Seq,
	}
	switch v.State {
	case result.StateSuccess:
		resp.Output = v.Output
	case result.StateFailure:
		resp.Error = redact.String(firstLine(v.Err.Error()))
		resp.ErrorKind = ErrorKind(v.Err)
	}
	return resp
}

// sessionToResponse converts a session and a value snapshot to a SessionResponse
func sessionToResponse(sess *session.Session, v result.Value) SessionResponse {
	stats := make(map[string]int)
	for eventType, count := range sess.Stats.Snapshot() {
		stats[string(eventType)] = count
	}

	return SessionResponse{
		ID:        sess.ID.String(),
		State:     string(sess.Binder.State()),
		CreatedAt: sess.CreatedAt,
		Value:     valueToResponse(v),
		Stats:     stats,
	}
}
