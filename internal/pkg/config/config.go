package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. EVLEDGER_POSTGRES_DSN.
const EnvPrefix = "EVLEDGER_"

type Config struct {
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Collector CollectorConfig `yaml:"collector"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	EV        EVConfig        `yaml:"ev"`
	Store     StoreConfig     `yaml:"store"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Health    HealthConfig    `yaml:"health"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn" env:"POSTGRES_DSN"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB"`
	TTL      time.Duration `yaml:"ttl"`
}

type CollectorConfig struct {
	Enabled   []string      `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval" env:"COLLECT_INTERVAL"`
	Throttle  time.Duration `yaml:"throttle"` // Sleep after every run before the next one may start
	Timeout   time.Duration `yaml:"timeout"`  // Per-task network timeout
	UserAgent string        `yaml:"user_agent"`
	Feeds     []FeedConfig  `yaml:"feeds"`
}

// FeedConfig describes one JSON feed collected by the generic feed adapter.
type FeedConfig struct {
	Name          string            `yaml:"name"`
	Bookmaker     string            `yaml:"bookmaker"`
	BaseURL       string            `yaml:"base_url"`
	MirrorURL     string            `yaml:"mirror_url"`     // Page that redirects to the current base URL
	ResolveMirror bool              `yaml:"resolve_mirror"` // Use a headless browser to follow the mirror
	Leagues       []string          `yaml:"leagues"`
	Pages         int               `yaml:"pages"`
	Headers       map[string]string `yaml:"headers"`
}

type ResolverConfig struct {
	// FuzzyOnMiss enables the fuzzy fallback on the hot path. Off by default:
	// the hot path only does exact lookups.
	FuzzyOnMiss bool `yaml:"fuzzy_on_miss" env:"FUZZY_ON_MISS"`
	// MarketAliases seeds market aliases per sport: sport -> alias -> canonical.
	MarketAliases map[string]map[string]string `yaml:"market_aliases"`
	// ReferencePath is the JSON file reconciled by cmd/tools/reconcile.
	ReferencePath string `yaml:"reference_path"`
}

type EVConfig struct {
	DefaultFormula string `yaml:"default_formula" env:"EV_FORMULA"`
	// Formulas maps a formula name to bookmaker weights.
	Formulas map[string]map[string]float64 `yaml:"formulas"`
}

type StoreConfig struct {
	// Backend is "postgres" or "memory".
	Backend string `yaml:"backend" env:"STORE_BACKEND"`
}

type AlertsConfig struct {
	TelegramBotToken  string  `yaml:"telegram_bot_token" env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID    int64   `yaml:"telegram_chat_id" env:"TELEGRAM_CHAT_ID"`
	MinEV             float64 `yaml:"min_ev"`
	NotifyNewEntities bool    `yaml:"notify_new_entities"`
}

type HealthConfig struct {
	Port              int           `yaml:"port" env:"HEALTH_PORT"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

type LoggingConfig struct {
	Level  string              `yaml:"level" env:"LOG_LEVEL"`
	File   string              `yaml:"file"` // Optional JSON log file in addition to stdout
	Remote RemoteLoggingConfig `yaml:"remote"`
}

// RemoteLoggingConfig ships logs in JSON batches to an HTTP ingest endpoint.
// Disabled when URL is empty.
type RemoteLoggingConfig struct {
	URL           string        `yaml:"url" env:"LOG_REMOTE_URL"`
	Token         string        `yaml:"token" env:"LOG_REMOTE_TOKEN"`
	Level         string        `yaml:"level"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies environment overrides and defaults, then
// validates the result.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := env.ParseWithOptions(&config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Collector.Interval == 0 {
		c.Collector.Interval = 5 * time.Minute
	}
	if c.Collector.Throttle == 0 {
		c.Collector.Throttle = 30 * time.Second
	}
	if c.Collector.Timeout == 0 {
		c.Collector.Timeout = 20 * time.Second
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = time.Hour
	}
	if c.Store.Backend == "" {
		if c.Postgres.DSN != "" {
			c.Store.Backend = "postgres"
		} else {
			c.Store.Backend = "memory"
		}
	}
	if c.Health.Port == 0 {
		c.Health.Port = 8080
	}
	if c.Health.ReadHeaderTimeout == 0 {
		c.Health.ReadHeaderTimeout = 5 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Collector.Interval < 0 || c.Collector.Throttle < 0 || c.Collector.Timeout < 0 {
		return fmt.Errorf("collector durations cannot be negative")
	}

	for name, weights := range c.EV.Formulas {
		if len(weights) == 0 {
			return fmt.Errorf("ev formula %q has no bookmakers", name)
		}
		for bookmaker, w := range weights {
			if w <= 0 {
				return fmt.Errorf("ev formula %q: weight for %s must be positive, got %v", name, bookmaker, w)
			}
		}
	}
	if c.EV.DefaultFormula != "" {
		if _, ok := c.EV.Formulas[c.EV.DefaultFormula]; !ok {
			return fmt.Errorf("ev default_formula %q is not defined in ev.formulas", c.EV.DefaultFormula)
		}
	}

	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres DSN is required for the postgres store backend")
		}
	default:
		return fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}

	for i, f := range c.Collector.Feeds {
		if f.Name == "" {
			return fmt.Errorf("feed %d: name cannot be empty", i)
		}
		if f.BaseURL == "" && f.MirrorURL == "" {
			return fmt.Errorf("feed %s: base_url or mirror_url is required", f.Name)
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}
