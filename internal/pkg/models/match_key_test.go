package models

import (
	"testing"
	"time"
)

func TestNormalizeKeyPart(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  LeBron   James ", "LeBron James"},
		{"Points+Rebounds", "Points+Rebounds"},
		{"1Q: Points", "1Q Points"},
		{"Over/Under", "Over Under"},
		{"", ""},
	}

	for _, tt := range tests {
		result := normalizeKeyPart(tt.input)
		if result != tt.expected {
			t.Errorf("normalizeKeyPart(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestLineID(t *testing.T) {
	got := LineID("STNSports", "NBA", "Moneyline", "Los Angeles Lakers", "Over")
	want := "STNSports:NBA:Moneyline:Los Angeles Lakers:Over"
	if got != want {
		t.Errorf("LineID = %q, want %q", got, want)
	}

	// separators inside parts must not produce extra segments
	got = LineID("PrizePicks", "NBA", "1Q: Points", "LeBron James", "Over")
	want = "PrizePicks:NBA:1Q Points:LeBron James:Over"
	if got != want {
		t.Errorf("LineID = %q, want %q", got, want)
	}
}

func TestGameID(t *testing.T) {
	start := time.Date(2025, 1, 28, 19, 30, 0, 0, time.UTC)
	got := GameID("nba", "LAL", "PHI", start)
	if got != "NBA_20250128_LAL@PHI" {
		t.Errorf("GameID = %q", got)
	}
	if got := GameID("NBA", "LAL", "PHI", time.Time{}); got != "NBA_unknown-date_LAL@PHI" {
		t.Errorf("GameID without start = %q", got)
	}
}
