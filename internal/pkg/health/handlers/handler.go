package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Vodeneev/evledger/internal/pipeline"
	"github.com/Vodeneev/evledger/internal/pkg/performance"
	"github.com/Vodeneev/evledger/internal/pkg/storage"
	"github.com/Vodeneev/evledger/internal/resolver"
)

// Runner is the part of the pipeline the API drives.
type Runner interface {
	RunOnce(ctx context.Context) (pipeline.RunStats, error)
	LastRun() (pipeline.RunStats, bool)
}

// Handler serves the /api/v1 routes. Cache, Runner and Tracker may be nil.
type Handler struct {
	store    storage.LineStore
	cache    storage.SnapshotCache
	registry *resolver.Registry
	runner   Runner
	tracker  *performance.Tracker
}

func NewHandler(store storage.LineStore, cache storage.SnapshotCache, registry *resolver.Registry, runner Runner, tracker *performance.Tracker) *Handler {
	return &Handler{
		store:    store,
		cache:    cache,
		registry: registry,
		runner:   runner,
		tracker:  tracker,
	}
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		slog.Warn("Request failed", "status", status, "message", message, "error", err)
		if status < http.StatusInternalServerError {
			message = message + ": " + err.Error()
		}
	}
	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}

func parseBoolParam(r *http.Request, param string) (bool, error) {
	v := r.URL.Query().Get(param)
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
