package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Vodeneev/evledger/internal/pkg/enums"
	"github.com/Vodeneev/evledger/internal/pkg/models"
	"github.com/Vodeneev/evledger/internal/pkg/storage"
	"github.com/Vodeneev/evledger/internal/pkg/validation"
)

// maxBatchBytes bounds the body of POST /api/v1/lines.
const maxBatchBytes = 16 << 20

// GetLines returns stored lines.
// Query params: league, market, bookmaker, subject, label, game_id, market_domain, previous_batch_only
//
// With previous_batch_only the snapshot cache is tried first; the store
// answers on a miss or a cache error.
func (h *Handler) GetLines(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	previousBatchOnly, err := parseBoolParam(r, "previous_batch_only")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid previous_batch_only", err)
		return
	}
	q := lineQuery(r)

	source := "store"
	var lines []models.StoredBettingLine
	if previousBatchOnly && h.cache != nil {
		cached, ok, err := h.cache.Latest(r.Context(), q)
		switch {
		case err != nil:
			slog.Warn("Snapshot cache read failed, falling back to store", "error", err)
		case ok:
			lines, source = cached, "cache"
		}
	}
	if source == "store" {
		lines, err = h.store.Get(r.Context(), q, previousBatchOnly)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to read lines", err)
			return
		}
	}
	if lines == nil {
		lines = []models.StoredBettingLine{}
	}

	duration := time.Since(startTime)
	w.Header().Set("X-Query-Duration", duration.String())
	w.Header().Set("X-Lines-Count", fmt.Sprintf("%d", len(lines)))
	w.Header().Set("X-Source", source)

	respondJSON(w, http.StatusOK, map[string]any{
		"lines": lines,
		"meta": map[string]any{
			"count":               len(lines),
			"duration":            duration.String(),
			"source":              source,
			"previous_batch_only": previousBatchOnly,
		},
	})
}

// PostLines stores a JSON array of lines through the write-boundary schema
// check. Any invalid line rejects the whole batch with 400.
func (h *Handler) PostLines(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBatchBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "batch too large", err)
			return
		}
		respondError(w, http.StatusBadRequest, "failed to read body", err)
		return
	}

	lines, err := validation.DecodeBatch(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "batch rejected", err)
		return
	}
	if err := h.store.StoreBatch(r.Context(), lines); err != nil {
		if validation.IsValidationError(err) {
			respondError(w, http.StatusBadRequest, "batch rejected", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to store batch", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"stored": len(lines)})
}

func lineQuery(r *http.Request) storage.LineQuery {
	v := r.URL.Query()
	return storage.LineQuery{
		League:       v.Get("league"),
		Market:       v.Get("market"),
		Bookmaker:    v.Get("bookmaker"),
		Subject:      v.Get("subject"),
		Label:        v.Get("label"),
		GameID:       v.Get("game_id"),
		MarketDomain: enums.MarketDomain(v.Get("market_domain")),
	}
}
