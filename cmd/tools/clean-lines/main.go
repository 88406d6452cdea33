// clean-lines deletes stored lines of games that have already started.
// Usage: set CONFIG_PATH (same as for evledger), then run:
//
//	go run ./cmd/tools/clean-lines -grace 6h
//	go run ./cmd/tools/clean-lines -dry-run
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	pkgconfig "github.com/Vodeneev/evledger/internal/pkg/config"
	"github.com/Vodeneev/evledger/internal/pkg/storage"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/production.yaml"
	}
	flag.StringVar(&configPath, "config", configPath, "Path to config file")
	grace := flag.Duration("grace", 6*time.Hour, "Delete games that started more than this long ago")
	dryRun := flag.Bool("dry-run", false, "List finished games without deleting")
	flag.Parse()

	cfg, err := pkgconfig.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Store.Backend != "postgres" {
		log.Fatal("clean-lines needs the postgres store backend")
	}

	store, err := storage.NewPostgresLineStore(&cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-*grace)
	games, deleted, err := storage.DeleteFinishedGames(ctx, store, cutoff, *dryRun)
	if err != nil {
		log.Fatalf("Cleanup failed after %d lines: %v", deleted, err)
	}
	for _, id := range games {
		log.Printf("Finished game %s", id)
	}
	if *dryRun {
		log.Printf("Dry run: %d finished games", len(games))
		return
	}
	log.Printf("Done. Deleted %d lines of %d finished games.", deleted, len(games))
}
