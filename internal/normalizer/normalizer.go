// Package normalizer turns collector-shaped lines into canonical BettingLines.
// Every bookmaker adapter emits models.RawBettingLine; after Normalize the
// market, subject and team are canonical names and the line id is stable
// across bookmakers and runs.
package normalizer

import (
	"errors"
	"log/slog"
	"time"

	"github.com/Vodeneev/evledger/internal/pkg/enums"
	"github.com/Vodeneev/evledger/internal/pkg/interfaces"
	"github.com/Vodeneev/evledger/internal/pkg/models"
	"github.com/Vodeneev/evledger/internal/pkg/validation"
	"github.com/Vodeneev/evledger/internal/resolver"
)

// Stats describes one Normalize call.
type Stats struct {
	Input      int            `json:"input"`
	Accepted   int            `json:"accepted"`
	Rejected   int            `json:"rejected"`
	Duplicates int            `json:"duplicates"`
	Created    int            `json:"created"`
	Reasons    map[string]int `json:"reasons,omitempty"` // rejected field -> count
}

func (s *Stats) reject(field string) {
	s.Rejected++
	if s.Reasons == nil {
		s.Reasons = make(map[string]int)
	}
	s.Reasons[field]++
}

// Normalizer is single-threaded: it drives the resolver, which mutates the
// registry.
type Normalizer struct {
	resolver  *resolver.Resolver
	sanitizer interfaces.RawSanitizer
	validator interfaces.RawValidator
	now       func() time.Time
}

func New(res *resolver.Resolver) *Normalizer {
	return &Normalizer{
		resolver:  res,
		sanitizer: validation.NewSanitizer(),
		validator: validation.NewValidator(),
		now:       time.Now,
	}
}

// Normalize validates and resolves a batch of raw lines. Invalid lines are
// dropped and counted. When two lines map to the same id the later one wins
// but keeps the position of the first.
func (n *Normalizer) Normalize(raws []models.RawBettingLine) ([]models.BettingLine, Stats) {
	stats := Stats{Input: len(raws)}
	batchTime := n.now().UTC()

	out := make([]models.BettingLine, 0, len(raws))
	index := make(map[string]int, len(raws))

	for i := range raws {
		raw := raws[i]
		if raw.Game != nil {
			g := *raw.Game
			raw.Game = &g
		}
		n.sanitizer.SanitizeRaw(&raw)

		if err := n.validator.ValidateRaw(&raw); err != nil {
			field := "unknown"
			var ve *validation.ValidationError
			if errors.As(err, &ve) {
				field = ve.Field
			}
			stats.reject(field)
			slog.Debug("Raw line rejected", "bookmaker", raw.Bookmaker, "league", raw.League, "subject", raw.RawSubject, "error", err)
			continue
		}

		line, created := n.convert(&raw, batchTime)
		stats.Created += created

		if pos, ok := index[line.ID]; ok {
			out[pos] = line
			stats.Duplicates++
			continue
		}
		index[line.ID] = len(out)
		out = append(out, line)
	}

	stats.Accepted = len(out)
	if stats.Rejected > 0 || stats.Duplicates > 0 {
		slog.Info("Batch normalized", "input", stats.Input, "accepted", stats.Accepted,
			"rejected", stats.Rejected, "duplicates", stats.Duplicates, "created", stats.Created)
	}
	return out, stats
}

// convert resolves market, team and subject, in that order, and builds the
// canonical line. It returns the number of entities created.
func (n *Normalizer) convert(raw *models.RawBettingLine, batchTime time.Time) (models.BettingLine, int) {
	created := 0
	count := func(name string, c bool) string {
		if c {
			created++
		}
		return name
	}

	market := count(n.resolver.ResolveMarket(enums.SportOf(raw.League), raw.RawMarket, raw.Period))

	attrs := models.Attrs{Position: raw.Position, JerseyNumber: raw.JerseyNumber}
	if raw.RawTeam != "" {
		attrs.TeamAbbr = count(n.resolver.ResolveTeam(raw.League, raw.RawTeam))
	}
	subject := count(n.resolver.ResolveSubject(raw.League, raw.RawSubject, attrs))

	collected := raw.CollectionTimestamp
	if collected.IsZero() {
		collected = batchTime
	}

	line := models.BettingLine{
		ID:                  models.LineID(raw.Bookmaker, raw.League, market, subject, raw.Label),
		Bookmaker:           raw.Bookmaker,
		League:              raw.League,
		MarketDomain:        raw.MarketDomain,
		Market:              market,
		Subject:             subject,
		Game:                raw.Game,
		Label:               raw.Label,
		Line:                models.Float64(*raw.Line),
		Odds:                raw.Odds,
		CollectionTimestamp: collected.UTC(),
		URL:                 raw.URL,
	}
	if raw.ExtraSourceStats != nil {
		extra := *raw.ExtraSourceStats
		line.ExtraSourceStats = &extra
	}
	return line, created
}
