package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/offload/internal/clone"
)

// maxWait caps the long-poll duration of GET /api/sessions/{id}
const maxWait = 60 * time.Second

// getPathUUID extracts a UUID from the URL path parameters.
// It parses and validates the UUID, handling common error cases.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, fmt.Errorf("%s is required", paramName)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s has invalid format", paramName)
	}

	return id, nil
}

// parseWait reads the optional wait query parameter. Plain integers are
// taken as milliseconds; anything else must be a Go duration.
func parseWait(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("wait")
	if raw == "" {
		return 0, nil
	}

	var d time.Duration
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		d = time.Duration(ms) * time.Millisecond
	} else {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("wait has invalid format")
		}
		d = parsed
	}

	if d < 0 {
		return 0, fmt.Errorf("wait must not be negative")
	}
	if d > maxWait {
		d = maxWait
	}
	return d, nil
}

// canonicalInput compacts the request input so that the same JSON value,
// however it is formatted, compares equal between attaches.
func canonicalInput(raw json.RawMessage) (clone.Raw, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return clone.Raw("null"), nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", fmt.Errorf("input is not valid JSON: %w", err)
	}
	return clone.Raw(buf.String()), nil
}
