package collector

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/Vodeneev/evledger/internal/pkg/config"
	"github.com/Vodeneev/evledger/internal/pkg/interfaces"
)

// Factory builds the collectors of one kind from config. A kind may yield
// several collectors (one per configured feed).
type Factory func(cfg *config.Config) ([]interfaces.Collector, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, f Factory) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		panic("collector: empty name in Register")
	}
	if f == nil {
		panic("collector: nil factory in Register for " + n)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[n]; exists {
		panic("collector: duplicate registration for " + n)
	}
	registry[n] = f
}

func FactoryByName(name string) (Factory, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[n]
	return f, ok
}

func AvailableNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build instantiates every enabled collector kind.
func Build(cfg *config.Config) ([]interfaces.Collector, error) {
	var out []interfaces.Collector
	for _, name := range cfg.Collector.Enabled {
		f, ok := FactoryByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown collector %q (available: %v)", name, AvailableNames())
		}
		cs, err := f(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build collector %q: %w", name, err)
		}
		out = append(out, cs...)
	}

	names := make([]string, 0, len(out))
	for _, c := range out {
		names = append(names, c.Name())
	}
	slog.Info("Collectors built", "count", len(out), "collectors", names)
	return out, nil
}
