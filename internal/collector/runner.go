// Package collector runs bookmaker collectors for one batch. Every task runs
// in its own goroutine; results are gathered once all of them returned.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Vodeneev/evledger/internal/pkg/interfaces"
	"github.com/Vodeneev/evledger/internal/pkg/models"
)

// TaskFailure records one failed task.
type TaskFailure struct {
	Collector string          `json:"collector"`
	Task      interfaces.Task `json:"task"`
	Error     string          `json:"error"`
}

// Result is the gathered output of one collection run.
type Result struct {
	Lines    []models.RawBettingLine
	Requests int
	Failed   int
	Failures []TaskFailure
	Duration time.Duration
}

// RunOptions configures Run.
type RunOptions struct {
	// Timeout bounds every task. Zero means the collector's own timeout only.
	Timeout time.Duration
	// OnTask is called after every task with its outcome.
	OnTask func(c interfaces.Collector, task interfaces.Task, lines int, err error)
}

// Run fans out every task of every collector and waits for all of them. A
// failed task is counted and excluded; it never cancels its siblings.
func Run(ctx context.Context, collectors []interfaces.Collector, opts RunOptions) Result {
	start := time.Now()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		res Result
	)

	for _, c := range collectors {
		for _, task := range c.Tasks() {
			c, task := c, task
			wg.Add(1)
			go func() {
				defer wg.Done()

				lines, err := runTask(ctx, c, task, opts.Timeout)
				if opts.OnTask != nil {
					opts.OnTask(c, task, len(lines), err)
				}

				mu.Lock()
				defer mu.Unlock()
				res.Requests++
				if err != nil {
					res.Failed++
					res.Failures = append(res.Failures, TaskFailure{Collector: c.Name(), Task: task, Error: err.Error()})
					slog.Warn("Collection task failed", "collector", c.Name(), "league", task.League, "page", task.Page, "error", err)
					return
				}
				res.Lines = append(res.Lines, lines...)
			}()
		}
	}
	wg.Wait()

	res.Duration = time.Since(start)
	slog.Info("Collection finished", "collectors", len(collectors), "requests", res.Requests,
		"failed", res.Failed, "lines", len(res.Lines), "duration", res.Duration)
	return res
}

func runTask(ctx context.Context, c interfaces.Collector, task interfaces.Task, timeout time.Duration) (lines []models.RawBettingLine, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			lines = nil
			err = fmt.Errorf("collector panicked: %v", r)
		}
	}()
	return c.Collect(ctx, task)
}
