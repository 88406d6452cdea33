package storage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Vodeneev/evledger/internal/pkg/models"
	"github.com/Vodeneev/evledger/internal/pkg/validation"
)

// MergeResult says what a merge appended to the stream.
type MergeResult int

const (
	MergeInserted  MergeResult = iota // new document, one full entry
	MergeHeartbeat                    // odds and line unchanged, batch timestamp only
	MergeChanged                      // full entry appended
)

func (r MergeResult) String() string {
	switch r {
	case MergeInserted:
		return "inserted"
	case MergeHeartbeat:
		return "heartbeat"
	case MergeChanged:
		return "changed"
	}
	return "unknown"
}

// MergeLine folds one batch line into its stored document. existing may be
// nil. The input document is not modified.
func MergeLine(existing *models.StoredBettingLine, line *models.BettingLine, batch time.Time) (models.StoredBettingLine, MergeResult) {
	full := fullEntry(line, batch)

	if existing == nil {
		doc := models.StoredBettingLine{
			ID:           line.ID,
			Bookmaker:    line.Bookmaker,
			League:       line.League,
			MarketDomain: line.MarketDomain,
			Market:       line.Market,
			Subject:      line.Subject,
			Label:        line.Label,
			Stream:       []models.StreamEntry{full},
		}
		applyLatest(&doc, line)
		return doc, MergeInserted
	}

	doc := *existing
	doc.Stream = make([]models.StreamEntry, len(existing.Stream), len(existing.Stream)+1)
	copy(doc.Stream, existing.Stream)

	result := MergeChanged
	if sameFloat(doc.Line, line.Line) && doc.Odds == line.Odds {
		result = MergeHeartbeat
		doc.Stream = append(doc.Stream, models.StreamEntry{BatchTimestamp: batch})
	} else {
		doc.Stream = append(doc.Stream, full)
	}
	applyLatest(&doc, line)
	return doc, result
}

// applyLatest copies the latest-batch fields. Metrics and extra stats are
// replaced wholesale: absent in the batch means removed.
func applyLatest(doc *models.StoredBettingLine, line *models.BettingLine) {
	doc.MarketDomain = line.MarketDomain
	doc.Game = line.Game
	doc.URL = line.URL
	doc.Odds = line.Odds
	if line.Line != nil {
		doc.Line = models.Float64(*line.Line)
	}
	doc.Metrics = line.Metrics
	doc.ExtraSourceStats = line.ExtraSourceStats
}

func fullEntry(line *models.BettingLine, batch time.Time) models.StreamEntry {
	collected := line.CollectionTimestamp
	if collected.IsZero() {
		collected = batch
	}
	e := models.StreamEntry{
		BatchTimestamp:      batch,
		CollectionTimestamp: &collected,
		Odds:                models.Float64(line.Odds),
	}
	if line.Line != nil {
		e.Line = models.Float64(*line.Line)
	}
	return e
}

func sameFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// prepareBatch copies the batch, fills missing ids and runs the schema
// gate over every line. A line id repeated within the batch keeps its first
// position and its last value.
func prepareBatch(v *validation.Validator, lines []models.BettingLine) ([]models.BettingLine, error) {
	prepared := make([]models.BettingLine, len(lines))
	copy(prepared, lines)
	for i := range prepared {
		l := &prepared[i]
		if l.ID == "" {
			l.ID = models.LineID(l.Bookmaker, l.League, l.Market, l.Subject, l.Label)
		}
	}
	if err := v.ValidateBatch(prepared); err != nil {
		return nil, fmt.Errorf("batch rejected: %w", err)
	}

	index := make(map[string]int, len(prepared))
	out := prepared[:0]
	for _, l := range prepared {
		if pos, ok := index[l.ID]; ok {
			out[pos] = l
			continue
		}
		index[l.ID] = len(out)
		out = append(out, l)
	}
	if dups := len(prepared) - len(out); dups > 0 {
		slog.Debug("Duplicate line ids in batch, last one kept", "duplicates", dups)
	}
	return out, nil
}

// MergeStats counts merge results of one batch.
type MergeStats struct {
	Inserted   int `json:"inserted"`
	Heartbeats int `json:"heartbeats"`
	Changed    int `json:"changed"`
}

func (s *MergeStats) add(r MergeResult) {
	switch r {
	case MergeInserted:
		s.Inserted++
	case MergeHeartbeat:
		s.Heartbeats++
	case MergeChanged:
		s.Changed++
	}
}
