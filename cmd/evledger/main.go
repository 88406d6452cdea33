package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Vodeneev/evledger/internal/calculator"
	"github.com/Vodeneev/evledger/internal/collector"
	"github.com/Vodeneev/evledger/internal/pipeline"
	pkgconfig "github.com/Vodeneev/evledger/internal/pkg/config"
	"github.com/Vodeneev/evledger/internal/pkg/health"
	"github.com/Vodeneev/evledger/internal/pkg/logging"
	"github.com/Vodeneev/evledger/internal/pkg/metrics"
	"github.com/Vodeneev/evledger/internal/pkg/models"
	"github.com/Vodeneev/evledger/internal/pkg/notify"
	"github.com/Vodeneev/evledger/internal/pkg/performance"
	"github.com/Vodeneev/evledger/internal/pkg/storage"
	"github.com/Vodeneev/evledger/internal/resolver"

	_ "github.com/Vodeneev/evledger/internal/collector/all"
)

const (
	defaultConfigPath = "configs/production.yaml"
	serviceName       = "evledger"
)

type flags struct {
	configPath string
	runFor     time.Duration
	once       bool
}

func main() {
	if err := run(); err != nil {
		slog.Error("evledger failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	f := parseFlags()

	slog.Info("Loading config", "path", f.configPath)
	cfg, err := pkgconfig.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	_, logCloser, err := logging.SetupLogger(&cfg.Logging, serviceName)
	if err != nil {
		slog.Warn("Failed to setup logging, continuing with default logger", "error", err)
	} else {
		defer logCloser.Close()
	}

	ctx, cancel := createContext(f.runFor)
	defer cancel()
	setupSignalHandler(ctx, cancel)

	m := metrics.New(prometheus.DefaultRegisterer)

	lineStore, entityStore, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer lineStore.Close()
	defer entityStore.Close()

	var cache storage.SnapshotCache
	if cfg.Redis.Addr != "" {
		redisCache, err := storage.NewRedisSnapshotCache(&cfg.Redis)
		if err != nil {
			slog.Warn("Redis unavailable, previous-batch reads go to the store", "error", err)
		} else {
			cache = redisCache
			defer redisCache.Close()
		}
	}

	registry := resolver.NewRegistry()
	if err := registry.Load(ctx, entityStore); err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	res := resolver.New(registry, resolver.Options{
		FuzzyOnMiss: cfg.Resolver.FuzzyOnMiss,
		OnMiss: func(e models.CanonicalEntity, rawName string) {
			m.RecordMiss(string(e.Kind))
			slog.Debug("Created entity", "kind", e.Kind, "domain", e.Domain, "canonical", e.CanonicalName, "raw", rawName)
		},
	})
	if err := res.SeedMarkets(cfg.Resolver.MarketAliases); err != nil {
		return fmt.Errorf("failed to seed market aliases: %w", err)
	}
	slog.Info("Registry loaded", "entities", registry.Len(), "fuzzy_on_miss", cfg.Resolver.FuzzyOnMiss)

	collectors, err := collector.Build(cfg)
	if err != nil {
		return fmt.Errorf("failed to build collectors: %w (available: %v)", err, collector.AvailableNames())
	}
	if len(collectors) == 0 {
		slog.Warn("No collectors enabled, the pipeline will only serve stored data")
	}

	engine, err := calculator.NewEngine(calculator.FormulaTable(cfg.EV.Formulas), cfg.EV.DefaultFormula)
	if err != nil {
		return err
	}

	notifier := notify.New(&cfg.Alerts)
	defer notifier.Stop()

	tracker := performance.NewTracker(0)
	p := pipeline.New(cfg.Collector, pipeline.Deps{
		Collectors: collectors,
		Resolver:   res,
		Entities:   entityStore,
		Engine:     engine,
		Store:      lineStore,
		Cache:      cache,
		Alerts:     notify.NewAlerts(notifier, &cfg.Alerts),
		Metrics:    m,
		Tracker:    tracker,
	})

	if f.once {
		stats, err := p.RunOnce(ctx)
		tracker.LogSummary()
		if err != nil {
			return err
		}
		slog.Info("Single run finished", "run_id", stats.RunID, "stored", stats.Stored, "alerts", stats.Alerts)
		return nil
	}

	addr, err := health.AddrFor(cfg.Health.Port)
	if err != nil {
		return err
	}
	router := health.NewRouter(health.Options{
		Service:  serviceName,
		Store:    lineStore,
		Cache:    cache,
		Registry: registry,
		Runner:   p,
		Tracker:  tracker,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.Start(gctx)
	})
	g.Go(func() error {
		return health.Run(gctx, addr, serviceName, router, cfg.Health.ReadHeaderTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	tracker.LogSummary()
	slog.Info("evledger stopped gracefully")
	return nil
}

func parseFlags() flags {
	var f flags
	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = defaultConfigPath
	}
	flag.StringVar(&f.configPath, "config", defaultConfig, "Path to config file")
	flag.DurationVar(&f.runFor, "run-for", 0, "Auto-stop after duration. 0 = run until SIGINT/SIGTERM")
	flag.BoolVar(&f.once, "once", false, "Run a single batch and exit")
	flag.Parse()
	return f
}

func openStores(cfg *pkgconfig.Config) (storage.LineStore, storage.EntityStore, error) {
	switch cfg.Store.Backend {
	case "postgres":
		lines, err := storage.NewPostgresLineStore(&cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open line store: %w", err)
		}
		entities, err := storage.NewPostgresEntityStore(&cfg.Postgres)
		if err != nil {
			lines.Close()
			return nil, nil, fmt.Errorf("failed to open entity store: %w", err)
		}
		slog.Info("Using postgres store")
		return lines, entities, nil
	default:
		slog.Warn("Using in-memory store, data is lost on restart")
		return storage.NewMemoryLineStore(), storage.NewMemoryEntityStore(), nil
	}
}

func createContext(runFor time.Duration) (context.Context, context.CancelFunc) {
	if runFor > 0 {
		return context.WithTimeout(context.Background(), runFor)
	}
	return context.WithCancel(context.Background())
}

func setupSignalHandler(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
			signal.Stop(sigChan)
		}
	}()
}
