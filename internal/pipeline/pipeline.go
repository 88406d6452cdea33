// Package pipeline runs batches end to end: collect, normalize, devig/EV,
// store, cache the fresh snapshot and alert. Batches never overlap.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Vodeneev/evledger/internal/calculator"
	"github.com/Vodeneev/evledger/internal/collector"
	"github.com/Vodeneev/evledger/internal/normalizer"
	"github.com/Vodeneev/evledger/internal/pkg/config"
	"github.com/Vodeneev/evledger/internal/pkg/interfaces"
	"github.com/Vodeneev/evledger/internal/pkg/metrics"
	"github.com/Vodeneev/evledger/internal/pkg/notify"
	"github.com/Vodeneev/evledger/internal/pkg/performance"
	"github.com/Vodeneev/evledger/internal/pkg/storage"
	"github.com/Vodeneev/evledger/internal/pkg/validation"
	"github.com/Vodeneev/evledger/internal/resolver"
)

// RunStats describes one pipeline run.
type RunStats struct {
	RunID          string                `json:"run_id"`
	StartedAt      time.Time             `json:"started_at"`
	Duration       time.Duration         `json:"duration"`
	Requests       int                   `json:"requests"`
	FailedRequests int                   `json:"failed_requests"`
	Collected      int                   `json:"collected"`
	Rejected       int                   `json:"rejected"`
	Duplicates     int                   `json:"duplicates"`
	Resolution     resolver.Stats        `json:"resolution"`
	Devig          calculator.Report     `json:"devig"`
	Stored         int                   `json:"stored"`
	Alerts         int                   `json:"alerts"`
	Error          string                `json:"error,omitempty"`
	Timing         performance.RunTiming `json:"timing"`
}

// Deps are the collaborators of a Pipeline. Entities, Cache, Alerts,
// Metrics and Tracker are optional.
type Deps struct {
	Collectors []interfaces.Collector
	Resolver   *resolver.Resolver
	Entities   resolver.EntitySink
	Engine     *calculator.Engine
	Store      storage.LineStore
	Cache      storage.SnapshotCache
	Alerts     *notify.Alerts
	Metrics    *metrics.Metrics
	Tracker    *performance.Tracker
}

type Pipeline struct {
	cfg        config.CollectorConfig
	deps       Deps
	normalizer *normalizer.Normalizer

	runMu sync.Mutex // serializes batches

	mu   sync.RWMutex
	last *RunStats
}

func New(cfg config.CollectorConfig, deps Deps) *Pipeline {
	if deps.Tracker == nil {
		deps.Tracker = performance.NewTracker(0)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(prometheus.NewRegistry())
	}
	return &Pipeline{
		cfg:        cfg,
		deps:       deps,
		normalizer: normalizer.New(deps.Resolver),
	}
}

// RunOnce runs a single batch. Once collection has joined the remaining
// stages run to completion even if ctx is cancelled. A store failure rejects
// the whole batch and is returned.
func (p *Pipeline) RunOnce(ctx context.Context) (RunStats, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	stats := RunStats{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	timer := p.deps.Tracker.Start(stats.RunID)
	log := slog.With("run_id", stats.RunID)

	done := timer.Stage(performance.StageCollect)
	collected := collector.Run(ctx, p.deps.Collectors, collector.RunOptions{
		Timeout: p.cfg.Timeout,
		OnTask: func(_ interfaces.Collector, task interfaces.Task, _ int, err error) {
			p.deps.Metrics.RecordRequest(task.Bookmaker, err == nil)
		},
	})
	done()
	stats.Requests = collected.Requests
	stats.FailedRequests = collected.Failed
	stats.Collected = len(collected.Lines)
	p.deps.Metrics.RecordCollected(stats.Collected)

	// collection has joined: nothing below is cancelled
	ctx = context.WithoutCancel(ctx)

	done = timer.Stage(performance.StageNormalize)
	lines, nstats := p.normalizer.Normalize(collected.Lines)
	done()
	stats.Rejected = nstats.Rejected
	stats.Duplicates = nstats.Duplicates
	for reason, n := range nstats.Reasons {
		p.deps.Metrics.RecordRejected(reason, n)
	}

	done = timer.Stage(performance.StageEntities)
	stats.Resolution = p.deps.Resolver.DrainStats()
	created := p.deps.Resolver.DrainCreated()
	if err := p.deps.Resolver.Flush(ctx, p.deps.Entities); err != nil {
		log.Error("Failed to persist registry changes, will retry next run", "error", err)
	}
	done()

	done = timer.Stage(performance.StageDevig)
	lines, report := p.deps.Engine.Run(lines)
	done()
	stats.Devig = report
	p.deps.Metrics.RecordDevig("devigged", report.Devigged)
	p.deps.Metrics.RecordDevig("one_sided", report.OneSided)
	p.deps.Metrics.RecordDevig("ambiguous", report.Ambiguous)
	p.deps.Metrics.RecordDevig("malformed", report.Malformed)

	done = timer.Stage(performance.StageStore)
	err := p.deps.Store.StoreBatch(ctx, lines)
	done()
	if err != nil {
		errType := "database"
		if validation.IsValidationError(err) {
			errType = "validation"
		}
		p.deps.Metrics.RecordStoreFailure(errType)
		stats.Error = err.Error()
		log.Error("Batch rejected by store", "lines", len(lines), "error_type", errType, "error", err)
		p.finish(&stats, timer)
		return stats, fmt.Errorf("store batch: %w", err)
	}
	stats.Stored = len(lines)
	p.deps.Metrics.RecordStored(stats.Stored)

	if p.deps.Cache != nil {
		done = timer.Stage(performance.StageCache)
		p.refreshCache(ctx, log)
		done()
	}

	done = timer.Stage(performance.StageAlerts)
	alerted, err := p.deps.Alerts.Process(ctx, lines, created)
	done()
	stats.Alerts = alerted
	if err != nil {
		log.Warn("Failed to queue alerts", "error", err)
	}

	p.finish(&stats, timer)
	log.Info("Pipeline run finished", "duration", stats.Duration, "requests", stats.Requests,
		"failed_requests", stats.FailedRequests, "collected", stats.Collected, "rejected", stats.Rejected,
		"created_entities", stats.Resolution.Created, "devigged", report.Devigged, "ambiguous", report.Ambiguous,
		"with_ev", report.WithEV, "stored", stats.Stored, "alerts", stats.Alerts)
	return stats, nil
}

func (p *Pipeline) refreshCache(ctx context.Context, log *slog.Logger) {
	fresh, err := p.deps.Store.Get(ctx, storage.LineQuery{}, true)
	if err != nil {
		log.Warn("Failed to read latest batch for cache", "error", err)
		return
	}
	if err := p.deps.Cache.PutLatest(ctx, fresh); err != nil {
		log.Warn("Failed to refresh snapshot cache", "error", err)
	}
}

func (p *Pipeline) finish(stats *RunStats, timer *performance.RunTimer) {
	stats.Timing = timer.Finish()
	stats.Duration = stats.Timing.Total
	p.deps.Metrics.RecordRun(stats.Duration, time.Now())

	p.mu.Lock()
	defer p.mu.Unlock()
	last := *stats
	p.last = &last
}

// LastRun returns the stats of the most recent run.
func (p *Pipeline) LastRun() (RunStats, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return RunStats{}, false
	}
	return *p.last, true
}

// Start runs batches until ctx is done. After each run it waits for the
// rest of the interval, and at least the throttle.
func (p *Pipeline) Start(ctx context.Context) error {
	slog.Info("Pipeline started", "interval", p.cfg.Interval, "throttle", p.cfg.Throttle, "collectors", len(p.deps.Collectors))
	for {
		started := time.Now()
		if _, err := p.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Pipeline run failed", "error", err)
		}

		wait := max(p.cfg.Interval-time.Since(started), p.cfg.Throttle)
		select {
		case <-ctx.Done():
			slog.Info("Pipeline stopped")
			return nil
		case <-time.After(wait):
		}
	}
}
