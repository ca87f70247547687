package observe

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// readyTimeout is the maximum time the readiness probe may take before its
// context is cancelled.
const readyTimeout = 5 * time.Second

// Health serves the /healthz and /readyz endpoints on the metrics listener.
//
//   - /healthz — liveness: a process that can serve HTTP is alive.
//   - /readyz  — readiness: 200 only while the pipeline probe passes
//     (typically "pipeline running and transcriber loaded").
type Health struct {
	ready func(ctx context.Context) error
}

// NewHealth creates a Health handler. ready may be nil, in which case /readyz
// always succeeds.
func NewHealth(ready func(ctx context.Context) error) *Health {
	return &Health{ready: ready}
}

type healthResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Healthz always returns 200 OK.
func (h *Health) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResult{Status: "ok"})
}

// Readyz evaluates the readiness probe with a deadline.
func (h *Health) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready == nil {
		writeJSON(w, http.StatusOK, healthResult{Status: "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := h.ready(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResult{Status: "fail", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, healthResult{Status: "ok"})
}

// Register adds the health routes to mux.
func (h *Health) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
