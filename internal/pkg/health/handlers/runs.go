package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// triggerTimeout bounds a run started from the API.
const triggerTimeout = 5 * time.Minute

// GetLastRun returns the stats of the last pipeline run and the stage
// timing summary.
func (h *Handler) GetLastRun(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		respondError(w, http.StatusServiceUnavailable, "pipeline is not running in this process", nil)
		return
	}
	last, ok := h.runner.LastRun()
	if !ok {
		respondError(w, http.StatusNotFound, "no run finished yet", nil)
		return
	}

	resp := map[string]any{"run": last}
	if h.tracker != nil {
		resp["performance"] = h.tracker.Summary()
	}
	respondJSON(w, http.StatusOK, resp)
}

// TriggerRun starts one pipeline run in the background and returns
// immediately. Runs never overlap: a triggered run waits for the current one.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		respondError(w, http.StatusServiceUnavailable, "pipeline is not running in this process", nil)
		return
	}

	// Detached from the request so the run outlives it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), triggerTimeout)
	go func() {
		defer cancel()
		if _, err := h.runner.RunOnce(ctx); err != nil {
			slog.Error("On-demand run failed", "error", err)
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]any{"status": "started"})
}
