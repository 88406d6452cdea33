package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Vodeneev/evledger/internal/pkg/models"
)

// FinishedGames returns the ids of games that started before cutoff, sorted.
// Lines whose game time cannot be parsed are skipped.
func FinishedGames(lines []models.StoredBettingLine, cutoff time.Time) []string {
	seen := make(map[string]bool)
	for i := range lines {
		g := lines[i].Game
		if g == nil || g.ID == "" || seen[g.ID] {
			continue
		}
		start, err := g.StartTime()
		if err != nil {
			continue
		}
		if start.Before(cutoff) {
			seen[g.ID] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DeleteFinishedGames removes the lines of every game that started before
// cutoff. With dryRun nothing is deleted and the line count is zero.
func DeleteFinishedGames(ctx context.Context, s LineStore, cutoff time.Time, dryRun bool) (games []string, deleted int, err error) {
	lines, err := s.Get(ctx, LineQuery{}, false)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list lines: %w", err)
	}
	games = FinishedGames(lines, cutoff)
	if dryRun {
		return games, 0, nil
	}
	for _, id := range games {
		n, err := s.DeleteByGame(ctx, id)
		if err != nil {
			return games, deleted, fmt.Errorf("failed to delete game %s: %w", id, err)
		}
		deleted += n
		slog.Debug("Deleted finished game", "game_id", id, "lines", n)
	}
	return games, deleted, nil
}
