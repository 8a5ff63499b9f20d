package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/offload/internal/api/shared"
	"github.com/phrazzld/offload/internal/binder"
	"github.com/phrazzld/offload/internal/result"
	"github.com/phrazzld/offload/internal/session"
	"github.com/phrazzld/offload/internal/task"
)

// SessionHandler handles session-related HTTP requests
type SessionHandler struct {
	store    *session.Store
	registry *task.Registry
	logger   *slog.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(store *session.Store, registry *task.Registry, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		store:    store,
		registry: registry,
		logger:   logger.With("component", "session_handler"),
	}
}

// ListFunctions handles GET /api/functions requests
func (h *SessionHandler) ListFunctions(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, FunctionsResponse{Functions: h.registry.Names()})
}

// CreateSession handles POST /api/sessions requests
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.Create()
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, sessionToResponse(sess, sess.Binder.Value()))
}

// Attach handles POST /api/sessions/{id}/attach requests. It is the remote
// form of one consumer update cycle: the computation restarts only when the
// function or input differs from the previous attach.
func (h *SessionHandler) Attach(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req AttachRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	input, err := canonicalInput(req.Input)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid input")
		return
	}

	value, err := sess.Binder.Attach(r.Context(), req.Func, input)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, sessionToResponse(sess, value))
}

// GetSession handles GET /api/sessions/{id} requests. With a wait query
// parameter it holds the request until the value is no longer pending or
// the wait elapses.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	wait, err := parseWait(r)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	value := sess.Binder.Value()
	if wait > 0 && value.IsPending() {
		value = awaitSettled(r.Context(), sess, wait)
	}

	shared.RespondWithJSON(w, r, http.StatusOK, sessionToResponse(sess, value))
}

// DeleteSession handles DELETE /api/sessions/{id} requests
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Delete(id); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// lookup resolves the session named by the id path parameter, writing an
// error response when it cannot.
func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return nil, false
	}

	sess, err := h.store.Get(id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return nil, false
	}
	return sess, true
}

// awaitSettled waits until the session's value leaves the pending state,
// the wait elapses, or ctx is done, and returns the value at that point.
func awaitSettled(ctx context.Context, sess *session.Session, wait time.Duration) result.Value {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		changed := sess.Binder.Changed()
		value := sess.Binder.Value()
		if !value.IsPending() || sess.Binder.State() == binder.StateTerminated {
			return value
		}

		select {
		case <-changed:
		case <-timer.C:
			return sess.Binder.Value()
		case <-ctx.Done():
			return sess.Binder.Value()
		}
	}
}
