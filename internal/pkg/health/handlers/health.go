package handlers

import (
	"net/http"
	"time"
)

// Ping answers liveness probes.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("pong\n"))
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string     `json:"status"`
	Entities  int        `json:"entities"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Health reports readiness with the registry size and the last run outcome.
// A failed last run is reported but does not make the service unhealthy.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.registry != nil {
		resp.Entities = h.registry.Len()
	}
	if h.runner != nil {
		if last, ok := h.runner.LastRun(); ok {
			resp.LastRunAt = &last.StartedAt
			resp.LastError = last.Error
		}
	}
	respondJSON(w, http.StatusOK, resp)
}
