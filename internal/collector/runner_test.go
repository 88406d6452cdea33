package collector

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Vodeneev/evledger/internal/pkg/config"
	"github.com/Vodeneev/evledger/internal/pkg/interfaces"
	"github.com/Vodeneev/evledger/internal/pkg/models"
)

type fakeCollector struct {
	name    string
	leagues []string
	collect func(ctx context.Context, task interfaces.Task) ([]models.RawBettingLine, error)
}

func (f *fakeCollector) Name() string { return f.name }

func (f *fakeCollector) Tasks() []interfaces.Task {
	out := make([]interfaces.Task, 0, len(f.leagues))
	for _, l := range f.leagues {
		out = append(out, interfaces.Task{Bookmaker: f.name, League: l, Page: 1})
	}
	return out
}

func (f *fakeCollector) Collect(ctx context.Context, task interfaces.Task) ([]models.RawBettingLine, error) {
	return f.collect(ctx, task)
}

func oneLine(_ context.Context, task interfaces.Task) ([]models.RawBettingLine, error) {
	return []models.RawBettingLine{{Bookmaker: task.Bookmaker, League: task.League}}, nil
}

func TestRunGathersAllTasks(t *testing.T) {
	cs := []interfaces.Collector{
		&fakeCollector{name: "PrizePicks", leagues: []string{"NBA", "NHL", "NFL"}, collect: oneLine},
		&fakeCollector{name: "Pinnacle", leagues: []string{"NBA"}, collect: oneLine},
	}

	var calls atomic.Int32
	res := Run(context.Background(), cs, RunOptions{
		OnTask: func(interfaces.Collector, interfaces.Task, int, error) { calls.Add(1) },
	})

	if res.Requests != 4 || res.Failed != 0 || len(res.Lines) != 4 {
		t.Fatalf("requests %d failed %d lines %d", res.Requests, res.Failed, len(res.Lines))
	}
	if calls.Load() != 4 {
		t.Errorf("OnTask called %d times, want 4", calls.Load())
	}
}

func TestRunFailureDoesNotCancelSiblings(t *testing.T) {
	cs := []interfaces.Collector{
		&fakeCollector{name: "Broken", leagues: []string{"NBA"}, collect: func(context.Context, interfaces.Task) ([]models.RawBettingLine, error) {
			return nil, errors.New("connection reset")
		}},
		&fakeCollector{name: "Panicky", leagues: []string{"NBA"}, collect: func(context.Context, interfaces.Task) ([]models.RawBettingLine, error) {
			panic("bad selector")
		}},
		&fakeCollector{name: "Slow", leagues: []string{"NBA"}, collect: func(ctx context.Context, _ interfaces.Task) ([]models.RawBettingLine, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}},
		&fakeCollector{name: "Healthy", leagues: []string{"NBA", "WNBA"}, collect: oneLine},
	}

	res := Run(context.Background(), cs, RunOptions{Timeout: 50 * time.Millisecond})

	if res.Requests != 5 {
		t.Errorf("requests = %d, want 5", res.Requests)
	}
	if res.Failed != 3 || len(res.Failures) != 3 {
		t.Errorf("failed = %d (%d recorded), want 3", res.Failed, len(res.Failures))
	}
	if len(res.Lines) != 2 {
		t.Errorf("lines = %d, want 2 from the healthy collector", len(res.Lines))
	}
}

func TestRunNoCollectors(t *testing.T) {
	res := Run(context.Background(), nil, RunOptions{})
	if res.Requests != 0 || len(res.Lines) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestBuild(t *testing.T) {
	const name = "static-test"
	if _, ok := FactoryByName(name); !ok {
		Register(name, func(cfg *config.Config) ([]interfaces.Collector, error) {
			return []interfaces.Collector{&fakeCollector{name: "static", collect: oneLine}}, nil
		})
	}

	cs, err := Build(&config.Config{Collector: config.CollectorConfig{Enabled: []string{"Static-Test"}}})
	if err != nil || len(cs) != 1 || cs[0].Name() != "static" {
		t.Fatalf("Build = %v, %v", cs, err)
	}

	if _, err := Build(&config.Config{Collector: config.CollectorConfig{Enabled: []string{"nope"}}}); err == nil {
		t.Error("expected error for unknown collector")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	const name = "dup-test"
	f := func(*config.Config) ([]interfaces.Collector, error) { return nil, nil }
	if _, ok := FactoryByName(name); !ok {
		Register(name, f)
	}
	defer func() {
		if recover() == nil {
			t.Error("duplicate Register did not panic")
		}
	}()
	Register(name, f)
}
