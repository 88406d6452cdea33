// Package notify delivers +EV line alerts and new-entity review digests.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/Vodeneev/evledger/internal/pkg/config"
	"github.com/Vodeneev/evledger/internal/pkg/models"
)

// Notifier delivers alerts. Implementations must not block the caller on
// network I/O.
type Notifier interface {
	NotifyValueLines(ctx context.Context, lines []models.BettingLine) error
	NotifyNewEntities(ctx context.Context, entities []models.CanonicalEntity) error
	Stop()
}

// New returns a TelegramNotifier when a bot token is configured and a
// LogNotifier otherwise.
func New(cfg *config.AlertsConfig) Notifier {
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		if tn := NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID); tn != nil {
			return tn
		}
		slog.Warn("Telegram notifier unavailable, falling back to log notifier")
	}
	return LogNotifier{}
}

// Alerts decides which lines are worth an alert. A line is alerted once per
// EV value: it alerts again only when its EV changes.
type Alerts struct {
	notifier    Notifier
	minEV       float64
	newEntities bool

	mu   sync.Mutex
	sent map[string]float64 // line id -> last alerted ev
}

func NewAlerts(n Notifier, cfg *config.AlertsConfig) *Alerts {
	return &Alerts{
		notifier:    n,
		minEV:       cfg.MinEV,
		newEntities: cfg.NotifyNewEntities,
		sent:        make(map[string]float64),
	}
}

// Process sends alerts for one batch and returns how many lines were alerted.
func (a *Alerts) Process(ctx context.Context, lines []models.BettingLine, created []models.CanonicalEntity) (int, error) {
	if a == nil || a.notifier == nil {
		return 0, nil
	}

	value := a.selectValueLines(lines)
	var errs []error
	if len(value) > 0 {
		if err := a.notifier.NotifyValueLines(ctx, value); err != nil {
			errs = append(errs, err)
		}
	}
	if a.newEntities && len(created) > 0 {
		if err := a.notifier.NotifyNewEntities(ctx, created); err != nil {
			errs = append(errs, err)
		}
	}
	return len(value), errors.Join(errs...)
}

func (a *Alerts) selectValueLines(lines []models.BettingLine) []models.BettingLine {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []models.BettingLine
	for _, l := range lines {
		if l.Metrics == nil || l.Metrics.EV == nil {
			continue
		}
		ev := *l.Metrics.EV
		if ev < a.minEV {
			continue
		}
		if last, ok := a.sent[l.ID]; ok && last == ev {
			continue
		}
		a.sent[l.ID] = ev
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].Metrics.EV > *out[j].Metrics.EV })
	return out
}
