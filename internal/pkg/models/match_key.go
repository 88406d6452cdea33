package models

import (
	"strings"
	"time"
)

// LineID builds the deterministic composite key of a betting line.
// Format: bookmaker:league:market:subject:label
func LineID(bookmaker, league, market, subject, label string) string {
	return strings.Join([]string{
		normalizeKeyPart(bookmaker),
		normalizeKeyPart(league),
		normalizeKeyPart(market),
		normalizeKeyPart(subject),
		normalizeKeyPart(label),
	}, ":")
}

// GameID builds a stable game identifier, e.g. NBA_20250128_LAL@PHI.
func GameID(league, awayTeam, homeTeam string, start time.Time) string {
	day := "unknown-date"
	if !start.IsZero() {
		day = start.UTC().Format("20060102")
	}
	return strings.ToUpper(normalizeKeyPart(league)) + "_" + day + "_" +
		strings.ReplaceAll(normalizeKeyPart(awayTeam), " ", "") + "@" +
		strings.ReplaceAll(normalizeKeyPart(homeTeam), " ", "")
}

func normalizeKeyPart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	// ':' separates id parts
	s = strings.ReplaceAll(s, ":", " ")
	s = strings.ReplaceAll(s, "/", " ")
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.Join(strings.Fields(s), " ")
	return s
}
