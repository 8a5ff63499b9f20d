package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/offload/internal/api/shared"
	"github.com/phrazzld/offload/internal/execctx"
	"github.com/phrazzld/offload/internal/funcs"
	"github.com/phrazzld/offload/internal/platform/logger"
	"github.com/phrazzld/offload/internal/session"
	"github.com/phrazzld/offload/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestServer wires a SessionHandler into a chi router the way the server does
func setupTestServer(t *testing.T, maxSessions int) (*httptest.Server, *session.Store) {
	t.Helper()

	reg := funcs.NewRegistry()
	store := session.NewStore(execctx.NewGoroutineHost(reg, logger.Discard()), task.NewSerializer(reg), maxSessions, logger.Discard())
	handler := NewSessionHandler(store, reg, logger.Discard())

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/functions", handler.ListFunctions)
		r.Post("/sessions", handler.CreateSession)
		r.Get("/sessions/{id}", handler.GetSession)
		r.Delete("/sessions/{id}", handler.DeleteSession)
		r.Post("/sessions/{id}/attach", handler.Attach)
	})

	server := httptest.NewServer(r)
	t.Cleanup(func() {
		server.Close()
		_ = store.Close()
	})
	return server, store
}

func doRequest(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createSession(t *testing.T, server *httptest.Server) SessionResponse {
	t.Helper()
	resp := doRequest(t, http.MethodPost, server.URL+"/api/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody[SessionResponse](t, resp)
}

func TestListFunctions(t *testing.T) {
	server, _ := setupTestServer(t, 0)

	resp := doRequest(t, http.MethodGet, server.URL+"/api/functions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[FunctionsResponse](t, resp)
	assert.Equal(t, []string{funcs.CountPrimes, funcs.Delay, funcs.Square, funcs.Sum}, body.Functions)
}

func TestCreateSession(t *testing.T) {
	server, store := setupTestServer(t, 0)

	sess := createSession(t, server)
	_, err := uuid.Parse(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "idle", sess.State)
	assert.Equal(t, "pending", sess.Value.State)
	assert.Equal(t, uint64(0), sess.Value.Seq)
	assert.Equal(t, 1, store.Len())
}

func TestCreateSessionLimit(t *testing.T) {
	server, _ := setupTestServer(t, 1)

	createSession(t, server)
	resp := doRequest(t, http.MethodPost, server.URL+"/api/sessions", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	body := decodeBody[shared.ErrorResponse](t, resp)
	assert.Equal(t, "Too many open sessions", body.Error)
}

func TestAttachAndWait(t *testing.T) {
	server, _ := setupTestServer(t, 0)
	sess := createSession(t, server)
	base := server.URL + "/api/sessions/" + sess.ID

	resp := doRequest(t, http.MethodPost, base+"/attach", map[string]any{"func": funcs.Square, "input": 5})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	attached := decodeBody[SessionResponse](t, resp)
	assert.Equal(t, "running", attached.State)
	assert.Equal(t, uint64(1), attached.Value.Seq)

	resp = doRequest(t, http.MethodGet, base+"?wait=5s", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[SessionResponse](t, resp)

	assert.Equal(t, "success", got.Value.State)
	assert.JSONEq(t, `25`, string(got.Value.Output))
	assert.Equal(t, 1, got.Stats["context_spawned"])
	assert.Equal(t, 1, got.Stats["result_accepted"])
}

func TestAttachSameInputDoesNotRestart(t *testing.T) {
	server, _ := setupTestServer(t, 0)
	sess := createSession(t, server)
	base := server.URL + "/api/sessions/" + sess.ID

	doRequest(t, http.MethodPost, base+"/attach", `{"func":"sum","input":[1, 2, 3]}`)
	resp := doRequest(t, http.MethodPost, base+"/attach", `{"func":"sum","input":[1,2,3]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decodeBody[SessionResponse](t, resp)
	assert.Equal(t, uint64(1), got.Value.Seq, "formatting differences are not a new input")
	assert.Equal(t, 1, got.Stats["context_spawned"])
}

func TestAttachSupersedes(t *testing.T) {
	server, _ := setupTestServer(t, 0)
	sess := createSession(t, server)
	base := server.URL + "/api/sessions/" + sess.ID

	doRequest(t, http.MethodPost, base+"/attach", map[string]any{"func": funcs.Delay, "input": map[string]any{"millis": 200, "value": "stale"}})
	doRequest(t, http.MethodPost, base+"/attach", map[string]any{"func": funcs.Square, "input": 7})

	resp := doRequest(t, http.MethodGet, base+"?wait=5s", nil)
	got := decodeBody[SessionResponse](t, resp)

	assert.Equal(t, uint64(2), got.Value.Seq)
	assert.JSONEq(t, `49`, string(got.Value.Output))
	assert.Equal(t, 1, got.Stats["context_terminated"])
}

func TestAttachFailures(t *testing.T) {
	server, _ := setupTestServer(t, 0)
	sess := createSession(t, server)
	attachURL := server.URL + "/api/sessions/" + sess.ID + "/attach"

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{name: "malformed body", body: `{"func":`, wantStatus: http.StatusBadRequest, wantError: "Invalid request format"},
		{name: "unknown field", body: `{"func":"square","inputs":5}`, wantStatus: http.StatusBadRequest, wantError: "Invalid request format"},
		{name: "missing func", body: `{"input":5}`, wantStatus: http.StatusBadRequest, wantError: "Invalid func: required field"},
		{name: "unregistered func", body: `{"func":"eval","input":"1+1"}`, wantStatus: http.StatusUnprocessableEntity, wantError: "Function is not registered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodPost, attachURL, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			body := decodeBody[shared.ErrorResponse](t, resp)
			assert.Equal(t, tt.wantError, body.Error)
		})
	}
}

func TestAttachComputationFailureInValue(t *testing.T) {
	server, _ := setupTestServer(t, 0)
	sess := createSession(t, server)
	base := server.URL + "/api/sessions/" + sess.ID

	resp := doRequest(t, http.MethodPost, base+"/attach", map[string]any{"func": funcs.CountPrimes, "input": -1})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decodeBody[SessionResponse](t, doRequest(t, http.MethodGet, base+"?wait=5s", nil))
	assert.Equal(t, "failure", got.Value.State)
	assert.Equal(t, "computation", got.Value.ErrorKind)
	assert.Contains(t, got.Value.Error, "n must be non-negative")
}

func TestGetSessionErrors(t *testing.T) {
	server, _ := setupTestServer(t, 0)

	resp := doRequest(t, http.MethodGet, server.URL+"/api/sessions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, server.URL+"/api/sessions/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	sess := createSession(t, server)
	resp = doRequest(t, http.MethodGet, server.URL+"/api/sessions/"+sess.ID+"?wait=soon", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSessionWaitTimesOut(t *testing.T) {
	server, _ := setupTestServer(t, 0)
	sess := createSession(t, server)
	base := server.URL + "/api/sessions/" + sess.ID

	doRequest(t, http.MethodPost, base+"/attach", map[string]any{"func": funcs.Delay, "input": map[string]any{"millis": 60000}})

	start := time.Now()
	got := decodeBody[SessionResponse](t, doRequest(t, http.MethodGet, base+"?wait=50", nil))
	assert.Equal(t, "pending", got.Value.State)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestDeleteSession(t *testing.T) {
	server, store := setupTestServer(t, 0)
	sess := createSession(t, server)
	base := server.URL + "/api/sessions/" + sess.ID

	doRequest(t, http.MethodPost, base+"/attach", map[string]any{"func": funcs.Delay, "input": map[string]any{"millis": 60000}})

	resp := doRequest(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, store.Len())

	resp = doRequest(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, base+"/attach", map[string]any{"func": funcs.Square, "input": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
