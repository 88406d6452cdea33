package performance

import (
	"testing"
	"time"
)

func fakeClock(step time.Duration) func() time.Time {
	t := time.Date(2025, 1, 28, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func TestTrackerAverages(t *testing.T) {
	tr := NewTracker(2)

	for i := 0; i < 3; i++ {
		r := tr.Start("run")
		r.now = fakeClock(time.Second)
		r.timing.StartedAt = r.now()

		done := r.Stage(StageCollect)
		done()
		done = r.Stage(StageStore)
		done()
		r.Finish()
	}

	s := tr.Summary()
	if s.Runs != 3 {
		t.Errorf("runs = %d, want 3", s.Runs)
	}
	if s.Average[StageCollect] != time.Second || s.Average[StageStore] != time.Second {
		t.Errorf("averages = %v", s.Average)
	}
	if s.Last == nil || s.Last.Total != 5*time.Second {
		t.Errorf("last = %+v", s.Last)
	}
	if n := len(tr.Recent()); n != 2 {
		t.Errorf("recent = %d, want capped at 2", n)
	}
}

func TestTrackerEmptySummary(t *testing.T) {
	s := NewTracker(0).Summary()
	if s.Runs != 0 || s.Last != nil {
		t.Errorf("summary = %+v", s)
	}
}
