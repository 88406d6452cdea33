package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
collector:
  interval: 2m
  feeds:
    - name: stn
      bookmaker: STNSports
      base_url: https://feed.example.com
      leagues: [NBA, NFL]
ev:
  default_formula: sully
  formulas:
    sully:
      pinnacle: 0.6
      circa: 0.4
resolver:
  market_aliases:
    basketball:
      pts: Points
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Collector.Interval != 2*time.Minute {
		t.Errorf("interval = %v, want 2m", cfg.Collector.Interval)
	}
	if cfg.Collector.Throttle != 30*time.Second {
		t.Errorf("throttle default = %v", cfg.Collector.Throttle)
	}
	if got := cfg.EV.Formulas["sully"]["pinnacle"]; got != 0.6 {
		t.Errorf("pinnacle weight = %v", got)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("backend = %q, want memory without DSN", cfg.Store.Backend)
	}
	if cfg.Resolver.MarketAliases["basketball"]["pts"] != "Points" {
		t.Errorf("market alias not loaded")
	}
}

func TestParseEnvOverride(t *testing.T) {
	t.Setenv("EVLEDGER_POSTGRES_DSN", "postgres://localhost/evledger")
	t.Setenv("EVLEDGER_LOG_LEVEL", "debug")

	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Postgres.DSN != "postgres://localhost/evledger" {
		t.Errorf("dsn = %q", cfg.Postgres.DSN)
	}
	if cfg.Store.Backend != "postgres" {
		t.Errorf("backend = %q, want postgres when DSN is set", cfg.Store.Backend)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown formula", "ev:\n  default_formula: nope\n", "not defined"},
		{"negative weight", "ev:\n  formulas:\n    x:\n      pinnacle: -1\n", "must be positive"},
		{"bad level", "logging:\n  level: loud\n", "invalid log level"},
		{"feed without url", "collector:\n  feeds:\n    - name: a\n", "base_url"},
	}

	for _, tt := range tests {
		_, err := Parse([]byte(tt.yaml))
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: err = %v, want containing %q", tt.name, err, tt.want)
		}
	}
}
