package performance

import (
	"log/slog"
	"sync"
	"time"
)

// Stage is one phase of a pipeline run.
type Stage string

const (
	StageCollect   Stage = "collect"
	StageNormalize Stage = "normalize"
	StageEntities  Stage = "entities"
	StageDevig     Stage = "devig"
	StageStore     Stage = "store"
	StageCache     Stage = "cache"
	StageAlerts    Stage = "alerts"
)

// Stages lists the stages in pipeline order.
var Stages = []Stage{StageCollect, StageNormalize, StageEntities, StageDevig, StageStore, StageCache, StageAlerts}

// RunTiming tracks timing for a single run
type RunTiming struct {
	RunID     string                  `json:"run_id"`
	StartedAt time.Time               `json:"started_at"`
	Stages    map[Stage]time.Duration `json:"stages"`
	Total     time.Duration           `json:"total"`
}

// Tracker tracks per-stage timings of pipeline runs
type Tracker struct {
	mu sync.RWMutex

	runs   int
	totals map[Stage]time.Duration
	total  time.Duration
	recent []RunTiming // newest last, at most keep entries
	keep   int
}

func NewTracker(keep int) *Tracker {
	if keep <= 0 {
		keep = 50
	}
	return &Tracker{
		totals: make(map[Stage]time.Duration),
		recent: make([]RunTiming, 0, keep),
		keep:   keep,
	}
}

// RunTimer times the stages of one run. It is not safe for concurrent use.
type RunTimer struct {
	tracker *Tracker
	timing  RunTiming
	now     func() time.Time
}

// Start begins timing a run.
func (t *Tracker) Start(runID string) *RunTimer {
	return &RunTimer{
		tracker: t,
		timing:  RunTiming{RunID: runID, StartedAt: time.Now(), Stages: make(map[Stage]time.Duration)},
		now:     time.Now,
	}
}

// Stage starts timing s and returns the function that stops it:
//
//	done := timer.Stage(performance.StageStore)
//	err := store.StoreBatch(ctx, lines)
//	done()
func (r *RunTimer) Stage(s Stage) func() {
	start := r.now()
	return func() {
		r.timing.Stages[s] += r.now().Sub(start)
	}
}

// Finish records the run in the tracker and returns its timing.
func (r *RunTimer) Finish() RunTiming {
	r.timing.Total = r.now().Sub(r.timing.StartedAt)
	r.tracker.record(r.timing)
	return r.timing
}

func (t *Tracker) record(run RunTiming) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.runs++
	t.total += run.Total
	for s, d := range run.Stages {
		t.totals[s] += d
	}
	if len(t.recent) == t.keep {
		copy(t.recent, t.recent[1:])
		t.recent = t.recent[:t.keep-1]
	}
	t.recent = append(t.recent, run)
}

// Summary is an aggregate view of recorded runs.
type Summary struct {
	Runs    int                     `json:"runs"`
	Average map[Stage]time.Duration `json:"average"`
	AvgRun  time.Duration           `json:"avg_run"`
	Last    *RunTiming              `json:"last,omitempty"`
}

func (t *Tracker) Summary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Summary{Runs: t.runs, Average: make(map[Stage]time.Duration, len(t.totals))}
	if t.runs == 0 {
		return s
	}
	for stage, d := range t.totals {
		s.Average[stage] = d / time.Duration(t.runs)
	}
	s.AvgRun = t.total / time.Duration(t.runs)
	last := t.recent[len(t.recent)-1]
	s.Last = &last
	return s
}

// Recent returns a copy of the most recent run timings, oldest first.
func (t *Tracker) Recent() []RunTiming {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]RunTiming, len(t.recent))
	copy(out, t.recent)
	return out
}

// LogSummary prints a performance summary
func (t *Tracker) LogSummary() {
	s := t.Summary()
	if s.Runs == 0 {
		slog.Info("No performance data collected yet")
		return
	}
	args := []any{"runs", s.Runs, "avg_run", s.AvgRun}
	for _, stage := range Stages {
		if d, ok := s.Average[stage]; ok {
			args = append(args, "avg_"+string(stage), d)
		}
	}
	slog.Info("Pipeline performance", args...)
}
