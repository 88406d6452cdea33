// Package feed collects lines from JSON feeds that already speak the
// collector line shape: GET <base>/lines?league=<league>&page=<n>.
package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Vodeneev/evledger/internal/collector"
	"github.com/Vodeneev/evledger/internal/pkg/config"
	"github.com/Vodeneev/evledger/internal/pkg/interfaces"
	"github.com/Vodeneev/evledger/internal/pkg/models"
)

func init() {
	collector.Register("feed", FromConfig)
}

// Ensure Collector implements interfaces.Collector
var _ interfaces.Collector = (*Collector)(nil)

type Collector struct {
	name      string
	bookmaker string
	leagues   []string
	pages     int
	client    *Client
	now       func() time.Time
}

// FromConfig builds one collector per configured feed.
func FromConfig(cfg *config.Config) ([]interfaces.Collector, error) {
	out := make([]interfaces.Collector, 0, len(cfg.Collector.Feeds))
	for _, f := range cfg.Collector.Feeds {
		c, err := New(f, cfg.Collector.Timeout, cfg.Collector.UserAgent)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func New(f config.FeedConfig, timeout time.Duration, userAgent string) (*Collector, error) {
	if len(f.Leagues) == 0 {
		return nil, fmt.Errorf("feed %s: no leagues configured", f.Name)
	}
	bookmaker := f.Bookmaker
	if bookmaker == "" {
		bookmaker = f.Name
	}
	pages := f.Pages
	if pages <= 0 {
		pages = 1
	}
	return &Collector{
		name:      f.Name,
		bookmaker: bookmaker,
		leagues:   f.Leagues,
		pages:     pages,
		client:    NewClient(f.BaseURL, f.MirrorURL, f.ResolveMirror, timeout, userAgent, f.Headers),
		now:       time.Now,
	}, nil
}

func (c *Collector) Name() string {
	return c.name
}

// Tasks returns one task per league and page.
func (c *Collector) Tasks() []interfaces.Task {
	tasks := make([]interfaces.Task, 0, len(c.leagues)*c.pages)
	for _, league := range c.leagues {
		for page := 1; page <= c.pages; page++ {
			tasks = append(tasks, interfaces.Task{Bookmaker: c.bookmaker, League: league, Page: page})
		}
	}
	return tasks
}

// Collect fetches one page. Bookmaker, league and collection time default
// to the task's when the feed omits them.
func (c *Collector) Collect(ctx context.Context, task interfaces.Task) ([]models.RawBettingLine, error) {
	lines, err := c.client.FetchLines(ctx, task.League, task.Page)
	if err != nil {
		return nil, fmt.Errorf("%s %s page %d: %w", c.name, task.League, task.Page, err)
	}

	now := c.now().UTC()
	for i := range lines {
		l := &lines[i]
		if strings.TrimSpace(l.Bookmaker) == "" {
			l.Bookmaker = c.bookmaker
		}
		if strings.TrimSpace(l.League) == "" {
			l.League = task.League
		}
		if l.CollectionTimestamp.IsZero() {
			l.CollectionTimestamp = now
		}
	}
	return lines, nil
}
