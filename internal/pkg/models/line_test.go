package models

import (
	"testing"
	"time"
)

func TestStoredBettingLineLatestExpandsHeartbeat(t *testing.T) {
	t0 := time.Date(2025, 1, 28, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(10 * time.Minute)
	collected := t0.Add(-time.Minute)

	doc := StoredBettingLine{
		ID:   "PrizePicks:NBA:Points:LeBron James:Over",
		Odds: 2.0,
		Line: Float64(25.5),
		Stream: []StreamEntry{
			{BatchTimestamp: t0, CollectionTimestamp: &collected, Odds: Float64(2.0), Line: Float64(25.5)},
			{BatchTimestamp: t1},
		},
	}

	if !doc.Stream[1].IsHeartbeat() {
		t.Fatal("entry with only batch timestamp should be a heartbeat")
	}

	latest, ok := doc.Latest()
	if !ok {
		t.Fatal("Latest returned !ok")
	}
	if !latest.BatchTimestamp.Equal(t1) {
		t.Errorf("batch timestamp = %v, want %v", latest.BatchTimestamp, t1)
	}
	if latest.Odds == nil || *latest.Odds != 2.0 {
		t.Errorf("odds = %v, want 2.0", latest.Odds)
	}
	if latest.CollectionTimestamp == nil || !latest.CollectionTimestamp.Equal(collected) {
		t.Errorf("collection timestamp = %v, want %v", latest.CollectionTimestamp, collected)
	}

	snap := doc.Snapshot()
	if len(snap.Stream) != 1 {
		t.Fatalf("snapshot stream len = %d, want 1", len(snap.Stream))
	}
	if len(doc.Stream) != 2 {
		t.Errorf("Snapshot mutated the source document")
	}

	flat := doc.Flatten()
	if flat.Odds != 2.0 || flat.Line == nil || *flat.Line != 25.5 {
		t.Errorf("Flatten = odds %v line %v", flat.Odds, flat.Line)
	}
	if !flat.CollectionTimestamp.Equal(collected) {
		t.Errorf("Flatten collection timestamp = %v", flat.CollectionTimestamp)
	}
}

func TestAttrsEnrich(t *testing.T) {
	a := Attrs{TeamAbbr: "LAL"}
	if !a.Enrich(Attrs{TeamAbbr: "PHI", JerseyNumber: "23"}) {
		t.Fatal("expected change")
	}
	if a.TeamAbbr != "LAL" {
		t.Errorf("known team overwritten: %q", a.TeamAbbr)
	}
	if a.JerseyNumber != "23" {
		t.Errorf("jersey = %q, want 23", a.JerseyNumber)
	}
	if a.Enrich(Attrs{JerseyNumber: "6"}) {
		t.Error("enriching known fields should report no change")
	}
}
