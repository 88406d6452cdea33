package storage

import (
	"context"
	"strings"

	"github.com/Vodeneev/evledger/internal/pkg/enums"
	"github.com/Vodeneev/evledger/internal/pkg/models"
)

// LineQuery filters stored lines by top-level fields. Empty fields match
// everything.
type LineQuery struct {
	League       string
	Market       string
	Bookmaker    string
	Subject      string
	Label        string
	GameID       string
	MarketDomain enums.MarketDomain
}

// Matches reports whether a stored line satisfies the query.
func (q LineQuery) Matches(l *models.StoredBettingLine) bool {
	if q.League != "" && !strings.EqualFold(q.League, l.League) {
		return false
	}
	if q.Market != "" && q.Market != l.Market {
		return false
	}
	if q.Bookmaker != "" && !strings.EqualFold(q.Bookmaker, l.Bookmaker) {
		return false
	}
	if q.Subject != "" && q.Subject != l.Subject {
		return false
	}
	if q.Label != "" && q.Label != l.Label {
		return false
	}
	if q.MarketDomain != "" && q.MarketDomain != l.MarketDomain {
		return false
	}
	if q.GameID != "" && (l.Game == nil || l.Game.ID != q.GameID) {
		return false
	}
	return true
}

// LineStore is the streaming betting line store.
type LineStore interface {
	// StoreBatch validates the whole batch and merges every line into its
	// stored document. Any validation failure persists nothing.
	StoreBatch(ctx context.Context, lines []models.BettingLine) error

	// Get returns stored lines matching q. With previousBatchOnly only lines
	// observed in the most recent batch are returned, each re-expanded to a
	// single full stream entry.
	Get(ctx context.Context, q LineQuery, previousBatchOnly bool) ([]models.StoredBettingLine, error)

	// DeleteByGame removes every line of a completed game and returns how
	// many were deleted.
	DeleteByGame(ctx context.Context, gameID string) (int, error)

	// Close closes the underlying connection
	Close() error
}

// EntityStore persists canonical entities and their aliases.
type EntityStore interface {
	LoadEntities(ctx context.Context) ([]models.CanonicalEntity, error)
	LoadAliases(ctx context.Context) ([]models.NameAlias, error)

	// SaveEntity upserts an entity; known attributes are never cleared.
	SaveEntity(ctx context.Context, e models.CanonicalEntity) error

	// SaveAlias records an alias; an existing alias is left unchanged.
	SaveAlias(ctx context.Context, a models.NameAlias) error

	Close() error
}

// SnapshotCache holds the flat snapshot of the latest batch.
type SnapshotCache interface {
	// PutLatest replaces the cached snapshot.
	PutLatest(ctx context.Context, lines []models.StoredBettingLine) error

	// Latest returns cached lines matching q; ok is false on a cache miss.
	Latest(ctx context.Context, q LineQuery) (lines []models.StoredBettingLine, ok bool, err error)

	Close() error
}
