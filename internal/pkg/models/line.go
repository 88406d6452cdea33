package models

import (
	"time"

	"github.com/Vodeneev/evledger/internal/pkg/enums"
)

// Game is the external game reference attached to a line.
type Game struct {
	ID       string `json:"_id"`
	AwayTeam string `json:"away_team"`
	HomeTeam string `json:"home_team"`
	GameTime string `json:"game_time"`
}

// GameTimeLayout is the layout of Game.GameTime, in UTC.
const GameTimeLayout = "2006-01-02 15:04:05"

// StartTime parses GameTime.
func (g *Game) StartTime() (time.Time, error) {
	return time.ParseInLocation(GameTimeLayout, g.GameTime, time.UTC)
}

// RawBettingLine is one line as produced by a collector adapter.
type RawBettingLine struct {
	Bookmaker           string             `json:"bookmaker"`
	League              string             `json:"league"`
	MarketDomain        enums.MarketDomain `json:"market_domain"`
	RawMarket           string             `json:"raw_market"`
	RawSubject          string             `json:"raw_subject"`
	RawTeam             string             `json:"raw_team,omitempty"`
	Position            string             `json:"position,omitempty"`
	JerseyNumber        string             `json:"jersey_number,omitempty"`
	Period              string             `json:"period,omitempty"`
	Label               string             `json:"label"`
	Line                *float64           `json:"line"`
	Odds                float64            `json:"odds"`
	CollectionTimestamp time.Time          `json:"collection_timestamp"`
	Game                *Game              `json:"game,omitempty"`
	URL                 string             `json:"url,omitempty"`
	ExtraSourceStats    *ExtraSourceStats  `json:"extra_source_stats,omitempty"`
}

// Metrics are computed by the devig/EV engine.
type Metrics struct {
	ImplPrb   float64  `json:"impl_prb"`
	TwPrb     *float64 `json:"tw_prb,omitempty"`
	EV        *float64 `json:"ev,omitempty"`
	EVFormula string   `json:"ev_formula,omitempty"`
}

// ExtraSourceStats are reported by the source itself, never computed here.
type ExtraSourceStats struct {
	Hold  *float64 `json:"hold,omitempty"`
	TwPrb *float64 `json:"tw_prb,omitempty"`
	EV    *float64 `json:"ev,omitempty"`
}

// BettingLine is a normalized line keyed by canonical identities.
type BettingLine struct {
	ID                  string             `json:"_id"`
	Bookmaker           string             `json:"bookmaker"`
	League              string             `json:"league"`
	MarketDomain        enums.MarketDomain `json:"market_domain"`
	Market              string             `json:"market"`
	Subject             string             `json:"subject"`
	Game                *Game              `json:"game,omitempty"`
	Label               string             `json:"label"`
	Line                *float64           `json:"line"`
	Odds                float64            `json:"odds"`
	CollectionTimestamp time.Time          `json:"collection_timestamp"`
	URL                 string             `json:"url,omitempty"`
	Metrics             *Metrics           `json:"metrics,omitempty"`
	ExtraSourceStats    *ExtraSourceStats  `json:"extra_source_stats,omitempty"`
}

// StreamEntry is one observation of a stored line. An entry carrying only
// BatchTimestamp is a heartbeat: the line was offered unchanged.
type StreamEntry struct {
	BatchTimestamp      time.Time  `json:"batch_timestamp"`
	CollectionTimestamp *time.Time `json:"collection_timestamp,omitempty"`
	Odds                *float64   `json:"odds,omitempty"`
	Line                *float64   `json:"line,omitempty"`
}

func (e StreamEntry) IsHeartbeat() bool {
	return e.Odds == nil && e.Line == nil && e.CollectionTimestamp == nil
}

// StoredBettingLine is the persisted document: identity, latest state and
// the append-only stream (newest last).
type StoredBettingLine struct {
	ID               string             `json:"_id"`
	Bookmaker        string             `json:"bookmaker"`
	League           string             `json:"league"`
	MarketDomain     enums.MarketDomain `json:"market_domain"`
	Market           string             `json:"market"`
	Subject          string             `json:"subject"`
	Game             *Game              `json:"game,omitempty"`
	Label            string             `json:"label"`
	Line             *float64           `json:"line"`
	Odds             float64            `json:"odds"`
	URL              string             `json:"url,omitempty"`
	Metrics          *Metrics           `json:"metrics,omitempty"`
	ExtraSourceStats *ExtraSourceStats  `json:"extra_source_stats,omitempty"`
	Stream           []StreamEntry      `json:"stream"`
}

// LastBatch returns the batch timestamp of the newest stream entry.
func (s *StoredBettingLine) LastBatch() (time.Time, bool) {
	if len(s.Stream) == 0 {
		return time.Time{}, false
	}
	return s.Stream[len(s.Stream)-1].BatchTimestamp, true
}

// LastFull returns the newest stream entry that carries odds and line.
func (s *StoredBettingLine) LastFull() (StreamEntry, bool) {
	for i := len(s.Stream) - 1; i >= 0; i-- {
		if !s.Stream[i].IsHeartbeat() {
			return s.Stream[i], true
		}
	}
	return StreamEntry{}, false
}

// Latest re-expands the newest stream entry into a full entry. A heartbeat
// inherits odds, line and collection time from the last full entry.
func (s *StoredBettingLine) Latest() (StreamEntry, bool) {
	if len(s.Stream) == 0 {
		return StreamEntry{}, false
	}
	last := s.Stream[len(s.Stream)-1]
	if !last.IsHeartbeat() {
		return last, true
	}
	full, ok := s.LastFull()
	if !ok {
		return last, true
	}
	full.BatchTimestamp = last.BatchTimestamp
	return full, true
}

// Snapshot returns a copy of the document whose stream holds only the
// re-expanded latest entry.
func (s *StoredBettingLine) Snapshot() StoredBettingLine {
	out := *s
	out.Stream = nil
	if e, ok := s.Latest(); ok {
		out.Stream = []StreamEntry{e}
		if e.Odds != nil {
			out.Odds = *e.Odds
		}
		if e.Line != nil {
			out.Line = Float64(*e.Line)
		}
	}
	return out
}

// Flatten turns the document back into the collector-shaped flat record.
func (s *StoredBettingLine) Flatten() BettingLine {
	line := BettingLine{
		ID:               s.ID,
		Bookmaker:        s.Bookmaker,
		League:           s.League,
		MarketDomain:     s.MarketDomain,
		Market:           s.Market,
		Subject:          s.Subject,
		Game:             s.Game,
		Label:            s.Label,
		Line:             s.Line,
		Odds:             s.Odds,
		URL:              s.URL,
		Metrics:          s.Metrics,
		ExtraSourceStats: s.ExtraSourceStats,
	}
	if e, ok := s.Latest(); ok {
		if e.Odds != nil {
			line.Odds = *e.Odds
		}
		if e.Line != nil {
			line.Line = Float64(*e.Line)
		}
		if e.CollectionTimestamp != nil {
			line.CollectionTimestamp = *e.CollectionTimestamp
		}
	}
	return line
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 {
	return &v
}
