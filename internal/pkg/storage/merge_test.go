package storage

import (
	"testing"
	"time"

	"github.com/Vodeneev/evledger/internal/pkg/models"
)

func TestMergeLine(t *testing.T) {
	t0 := time.Date(2025, 1, 28, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(5 * time.Minute)
	t2 := t1.Add(5 * time.Minute)

	line := testLine("PrizePicks", "LeBron James", 2.0)

	doc, res := MergeLine(nil, &line, t0)
	if res != MergeInserted || len(doc.Stream) != 1 {
		t.Fatalf("insert: res=%v stream=%d", res, len(doc.Stream))
	}

	hb, res := MergeLine(&doc, &line, t1)
	if res != MergeHeartbeat {
		t.Fatalf("same odds: res=%v, want heartbeat", res)
	}
	if !hb.Stream[1].IsHeartbeat() || !hb.Stream[1].BatchTimestamp.Equal(t1) {
		t.Errorf("heartbeat entry = %+v", hb.Stream[1])
	}
	if len(doc.Stream) != 1 {
		t.Errorf("input document modified: stream len %d", len(doc.Stream))
	}

	moved := line
	moved.Line = models.Float64(26.5)
	ch, res := MergeLine(&hb, &moved, t2)
	if res != MergeChanged || len(ch.Stream) != 3 {
		t.Fatalf("moved line: res=%v stream=%d", res, len(ch.Stream))
	}
	if *ch.Line != 26.5 || *ch.Stream[2].Line != 26.5 {
		t.Errorf("latest line = %v", *ch.Line)
	}
}

func TestMergeLineZeroCollectionTime(t *testing.T) {
	batch := time.Date(2025, 1, 28, 12, 0, 0, 0, time.UTC)
	line := testLine("PrizePicks", "LeBron James", 2.0)
	line.CollectionTimestamp = time.Time{}

	doc, _ := MergeLine(nil, &line, batch)
	if got := doc.Stream[0].CollectionTimestamp; got == nil || !got.Equal(batch) {
		t.Errorf("collection_timestamp = %v, want batch time", got)
	}
}

func TestMergeResultString(t *testing.T) {
	for r, want := range map[MergeResult]string{
		MergeInserted:  "inserted",
		MergeHeartbeat: "heartbeat",
		MergeChanged:   "changed",
		MergeResult(9): "unknown",
	} {
		if r.String() != want {
			t.Errorf("%d.String() = %q, want %q", r, r.String(), want)
		}
	}
}
