package storage

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Vodeneev/evledger/internal/pkg/models"
	"github.com/Vodeneev/evledger/internal/pkg/validation"
)

// Ensure MemoryLineStore implements LineStore
var _ LineStore = (*MemoryLineStore)(nil)

// MemoryLineStore keeps stored lines in process memory. Used for dry runs
// and tests.
type MemoryLineStore struct {
	mu        sync.RWMutex
	docs      map[string]*models.StoredBettingLine
	lastBatch time.Time
	validator *validation.Validator
	now       func() time.Time
}

func NewMemoryLineStore() *MemoryLineStore {
	return &MemoryLineStore{
		docs:      make(map[string]*models.StoredBettingLine),
		validator: validation.NewValidator(),
		now:       time.Now,
	}
}

// SetClock overrides the batch timestamp source.
func (s *MemoryLineStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryLineStore) StoreBatch(ctx context.Context, lines []models.BettingLine) error {
	prepared, err := prepareBatch(s.validator, lines)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.now().UTC()
	staged := make(map[string]*models.StoredBettingLine, len(prepared))
	var stats MergeStats
	for i := range prepared {
		l := &prepared[i]
		existing := staged[l.ID]
		if existing == nil {
			existing = s.docs[l.ID]
		}
		doc, res := MergeLine(existing, l, batch)
		staged[l.ID] = &doc
		stats.add(res)
	}

	for id, doc := range staged {
		s.docs[id] = doc
	}
	if len(prepared) > 0 {
		s.lastBatch = batch
	}

	slog.Debug("Batch stored in memory", "lines", len(prepared), "inserted", stats.Inserted, "heartbeats", stats.Heartbeats, "changed", stats.Changed)
	return nil
}

func (s *MemoryLineStore) Get(ctx context.Context, q LineQuery, previousBatchOnly bool) ([]models.StoredBettingLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.StoredBettingLine
	for _, doc := range s.docs {
		if !q.Matches(doc) {
			continue
		}
		if previousBatchOnly {
			last, ok := doc.LastBatch()
			if !ok || !last.Equal(s.lastBatch) {
				continue
			}
			out = append(out, doc.Snapshot())
			continue
		}
		out = append(out, cloneDoc(doc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryLineStore) DeleteByGame(ctx context.Context, gameID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, doc := range s.docs {
		if doc.Game != nil && doc.Game.ID == gameID {
			delete(s.docs, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryLineStore) Close() error {
	return nil
}

func cloneDoc(doc *models.StoredBettingLine) models.StoredBettingLine {
	out := *doc
	out.Stream = make([]models.StreamEntry, len(doc.Stream))
	copy(out.Stream, doc.Stream)
	return out
}
