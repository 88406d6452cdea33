// reconcile folds reference collections (rosters, team lists) into the
// canonical registry through the fuzzy matcher, so later exact lookups hit.
//
//	go run ./cmd/tools/reconcile -config configs/production.yaml -file rosters.json
//	go run ./cmd/tools/reconcile -file rosters.json -dry-run
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	pkgconfig "github.com/Vodeneev/evledger/internal/pkg/config"
	"github.com/Vodeneev/evledger/internal/pkg/logging"
	"github.com/Vodeneev/evledger/internal/pkg/storage"
	"github.com/Vodeneev/evledger/internal/resolver"
)

func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", "configs/production.yaml"), "Path to config file")
	file := flag.String("file", "", "Reference collections JSON (defaults to resolver.reference_path)")
	dryRun := flag.Bool("dry-run", false, "Print the report without persisting")
	flag.Parse()

	if err := run(*configPath, *file, *dryRun); err != nil {
		slog.Error("reconcile failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, file string, dryRun bool) error {
	cfg, err := pkgconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if _, closer, err := logging.SetupLogger(&cfg.Logging, "reconcile"); err == nil {
		defer closer.Close()
	}
	if file == "" {
		file = cfg.Resolver.ReferencePath
	}
	if file == "" {
		return fmt.Errorf("no reference file: use -file or resolver.reference_path")
	}

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	collections, err := resolver.ReadReferences(f)
	if err != nil {
		return err
	}

	var entities storage.EntityStore
	if cfg.Store.Backend == "postgres" {
		entities, err = storage.NewPostgresEntityStore(&cfg.Postgres)
		if err != nil {
			return err
		}
	} else {
		slog.Warn("Memory store backend: the result is printed but not persisted")
		entities = storage.NewMemoryEntityStore()
	}
	defer entities.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	registry := resolver.NewRegistry()
	if err := registry.Load(ctx, entities); err != nil {
		return err
	}
	res := resolver.New(registry, resolver.Options{})

	type result struct {
		Kind   string                   `json:"kind"`
		Domain string                   `json:"domain"`
		Report resolver.ReconcileReport `json:"report"`
	}
	results := make([]result, 0, len(collections))
	for _, c := range collections {
		rep := res.Reconcile(c.Kind, c.Domain, c.Entries)
		slog.Info("Reconciled collection", "kind", c.Kind, "domain", c.Domain,
			"entries", len(c.Entries), "exact", rep.Exact, "fuzzy", rep.Fuzzy, "created", len(rep.Created))
		results = append(results, result{Kind: string(c.Kind), Domain: c.Domain, Report: rep})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}

	if dryRun {
		slog.Info("Dry run, nothing persisted")
		return nil
	}
	return res.Flush(ctx, entities)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
