package interfaces

import (
	"context"

	"github.com/Vodeneev/evledger/internal/pkg/models"
)

// Task is one unit of collection: a single page of one league at one bookmaker.
type Task struct {
	Bookmaker string
	League    string
	Page      int
}

// Collector interface for bookmaker line adapters
type Collector interface {
	// Name returns the collector name
	Name() string

	// Tasks lists the fetches that make up one collection run
	Tasks() []Task

	// Collect fetches one task. It must honor ctx's deadline.
	Collect(ctx context.Context, task Task) ([]models.RawBettingLine, error)
}
