package notify

import (
	"context"
	"log/slog"

	"github.com/Vodeneev/evledger/internal/pkg/models"
)

// LogNotifier writes alerts to the structured log.
type LogNotifier struct{}

func (LogNotifier) NotifyValueLines(_ context.Context, lines []models.BettingLine) error {
	for _, l := range lines {
		slog.Info("Value line", "id", l.ID, "odds", l.Odds, "line", derefFloat(l.Line),
			"tw_prb", derefFloat(l.Metrics.TwPrb), "ev", derefFloat(l.Metrics.EV), "ev_formula", l.Metrics.EVFormula)
	}
	return nil
}

func (LogNotifier) NotifyNewEntities(_ context.Context, entities []models.CanonicalEntity) error {
	for _, e := range entities {
		slog.Info("New entity needs review", "kind", e.Kind, "domain", e.Domain, "name", e.CanonicalName)
	}
	return nil
}

func (LogNotifier) Stop() {}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
