package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/Vodeneev/evledger/internal/pkg/config"
)

// RemoteHandler is a slog.Handler that ships records in batches to an HTTP
// ingest endpoint as a JSON array.
type RemoteHandler struct {
	shared *remoteSink
	attrs  []slog.Attr
	group  string
}

// remoteSink is shared by a handler and everything derived from it via
// WithAttrs/WithGroup.
type remoteSink struct {
	url       string
	token     string
	batchSize int
	level     slog.Level
	client    *http.Client

	mu     sync.Mutex
	buffer []LogEntry

	sendMu sync.Mutex // one request in flight

	ticker    *time.Ticker
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// LogEntry is one shipped record.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewRemoteHandler starts a handler that flushes every FlushInterval or
// whenever BatchSize records are buffered.
func NewRemoteHandler(cfg config.RemoteLoggingConfig) (*RemoteHandler, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("remote logging url is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	s := &remoteSink{
		url:       cfg.URL,
		token:     cfg.Token,
		batchSize: cfg.BatchSize,
		level:     level,
		client:    &http.Client{Timeout: 10 * time.Second},
		buffer:    make([]LogEntry, 0, cfg.BatchSize),
		ticker:    time.NewTicker(cfg.FlushInterval),
		done:      make(chan struct{}),
	}
	s.wg.Add(1)
	go s.flushLoop()
	return &RemoteHandler{shared: s}, nil
}

func (h *RemoteHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.shared.level
}

func (h *RemoteHandler) Handle(ctx context.Context, record slog.Record) error {
	if !h.Enabled(ctx, record.Level) {
		return nil
	}

	entry := LogEntry{
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
		Payload:   make(map[string]any, len(h.attrs)+record.NumAttrs()),
	}
	for _, a := range h.attrs {
		entry.Payload[a.Key] = a.Value.Resolve().Any()
	}
	record.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		entry.Payload[key] = a.Value.Resolve().Any()
		return true
	})

	s := h.shared
	s.mu.Lock()
	s.buffer = append(s.buffer, entry)
	full := len(s.buffer) >= s.batchSize
	s.mu.Unlock()

	if full {
		go s.flush()
	}
	return nil
}

func (h *RemoteHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		merged = append(merged, a)
	}
	return &RemoteHandler{shared: h.shared, attrs: merged, group: h.group}
}

func (h *RemoteHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &RemoteHandler{shared: h.shared, attrs: h.attrs, group: group}
}

// Close stops the flush loop and ships whatever is still buffered.
func (h *RemoteHandler) Close() error {
	s := h.shared
	s.closeOnce.Do(func() {
		close(s.done)
		s.ticker.Stop()
		s.wg.Wait()
		s.flush()
	})
	return nil
}

func (s *remoteSink) flushLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ticker.C:
			s.flush()
		case <-s.done:
			return
		}
	}
}

func (s *remoteSink) flush() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	entries := make([]LogEntry, len(s.buffer))
	copy(entries, s.buffer)
	s.buffer = s.buffer[:0]
	s.mu.Unlock()

	if err := s.send(entries); err != nil {
		// stderr: logging through slog here would loop
		fmt.Fprintf(os.Stderr, "Failed to ship %d log records: %v\n", len(entries), err)
	}
}

func (s *remoteSink) send(entries []LogEntry) error {
	body, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	return nil
}
