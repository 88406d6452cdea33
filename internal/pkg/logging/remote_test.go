package logging

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Vodeneev/evledger/internal/pkg/config"
)

func TestRemoteHandlerShipsBatches(t *testing.T) {
	var (
		mu      sync.Mutex
		entries []LogEntry
		auth    string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []LogEntry
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			t.Errorf("decode batch: %v", err)
		}
		mu.Lock()
		entries = append(entries, batch...)
		auth = r.Header.Get("Authorization")
		mu.Unlock()
	}))
	defer srv.Close()

	h, err := NewRemoteHandler(config.RemoteLoggingConfig{
		URL:           srv.URL,
		Token:         "secret",
		Level:         "info",
		BatchSize:     100,
		FlushInterval: time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(h).With("service", "evledger").WithGroup("run")

	logger.Debug("dropped")
	logger.Info("batch stored", "lines", 3)
	logger.Warn("ambiguous devig match", "line_id", "abc")
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(entries) != 2 {
		t.Fatalf("shipped %d entries, want 2: %+v", len(entries), entries)
	}
	if auth != "Bearer secret" {
		t.Errorf("authorization = %q", auth)
	}
	first := entries[0]
	if first.Message != "batch stored" || first.Level != "INFO" {
		t.Errorf("first entry = %+v", first)
	}
	if first.Payload["service"] != "evledger" || first.Payload["run.lines"] != float64(3) {
		t.Errorf("payload = %+v", first.Payload)
	}
}

func TestRemoteHandlerRequiresURL(t *testing.T) {
	if _, err := NewRemoteHandler(config.RemoteLoggingConfig{}); err == nil {
		t.Error("expected error without url")
	}
}
