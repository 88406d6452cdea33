package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Vodeneev/evledger/internal/pkg/enums"
	"github.com/Vodeneev/evledger/internal/pkg/models"
)

// EntitySource is where the registry is populated from at startup.
type EntitySource interface {
	LoadEntities(ctx context.Context) ([]models.CanonicalEntity, error)
	LoadAliases(ctx context.Context) ([]models.NameAlias, error)
}

type partitionKey struct {
	kind   enums.EntityKind
	domain string
}

type partition struct {
	aliases  map[string]string                   // normalized alias -> canonical name
	entities map[string]*models.CanonicalEntity // canonical name -> entity
}

func newPartition() *partition {
	return &partition{
		aliases:  make(map[string]string),
		entities: make(map[string]*models.CanonicalEntity),
	}
}

// Registry indexes known subjects, teams and markets per (kind, domain).
// Within a partition every alias maps to exactly one entity, and every
// entity's canonical name is an alias of itself.
type Registry struct {
	mu    sync.RWMutex
	parts map[partitionKey]*partition
}

func NewRegistry() *Registry {
	return &Registry{parts: make(map[partitionKey]*partition)}
}

// Load populates the registry from persisted records. Aliases pointing at
// unknown entities are skipped.
func (r *Registry) Load(ctx context.Context, src EntitySource) error {
	entities, err := src.LoadEntities(ctx)
	if err != nil {
		return fmt.Errorf("failed to load canonical entities: %w", err)
	}
	aliases, err := src.LoadAliases(ctx)
	if err != nil {
		return fmt.Errorf("failed to load name aliases: %w", err)
	}

	for _, e := range entities {
		r.Add(e)
	}
	skipped := 0
	for _, a := range aliases {
		if err := r.AddAlias(a.Kind, a.Domain, a.Alias, a.CanonicalName); err != nil {
			skipped++
			slog.Debug("Skipping alias", "alias", a.Alias, "domain", a.Domain, "error", err)
		}
	}

	slog.Info("Canonical registry loaded", "entities", len(entities), "aliases", len(aliases)-skipped, "skipped_aliases", skipped)
	return nil
}

func (r *Registry) partition(kind enums.EntityKind, domain string, create bool) *partition {
	key := partitionKey{kind: kind, domain: domain}
	p := r.parts[key]
	if p == nil && create {
		p = newPartition()
		r.parts[key] = p
	}
	return p
}

// Lookup resolves a surface name through the alias table.
func (r *Registry) Lookup(kind enums.EntityKind, domain, name string) (models.CanonicalEntity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p := r.partition(kind, domain, false)
	if p == nil {
		return models.CanonicalEntity{}, false
	}
	canonical, ok := p.aliases[NormalizeName(name)]
	if !ok {
		return models.CanonicalEntity{}, false
	}
	return *p.entities[canonical], true
}

// Entity returns an entity by its canonical name.
func (r *Registry) Entity(kind enums.EntityKind, domain, canonical string) (models.CanonicalEntity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p := r.partition(kind, domain, false)
	if p == nil {
		return models.CanonicalEntity{}, false
	}
	e, ok := p.entities[canonical]
	if !ok {
		return models.CanonicalEntity{}, false
	}
	return *e, true
}

// Add registers an entity together with its canonical name as an alias.
// It reports false if the entity already existed.
func (r *Registry) Add(e models.CanonicalEntity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.partition(e.Kind, e.Domain, true)
	if _, exists := p.entities[e.CanonicalName]; exists {
		return false
	}
	stored := e
	p.entities[e.CanonicalName] = &stored
	key := NormalizeName(e.CanonicalName)
	if _, taken := p.aliases[key]; !taken {
		p.aliases[key] = e.CanonicalName
	}
	return true
}

// AddAlias maps name onto an existing entity. Re-registering the same
// mapping is a no-op; mapping an alias to a second entity is an error.
func (r *Registry) AddAlias(kind enums.EntityKind, domain, name, canonical string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.partition(kind, domain, false)
	if p == nil || p.entities[canonical] == nil {
		return fmt.Errorf("unknown %s %q in %s", kind, canonical, domain)
	}
	key := NormalizeName(name)
	if existing, ok := p.aliases[key]; ok {
		if existing == canonical {
			return nil
		}
		return fmt.Errorf("alias %q already maps to %q in %s", name, existing, domain)
	}
	p.aliases[key] = canonical
	return nil
}

// Enrich fills unknown attributes of an entity and returns the updated
// entity if anything changed.
func (r *Registry) Enrich(kind enums.EntityKind, domain, canonical string, attrs models.Attrs) (models.CanonicalEntity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.partition(kind, domain, false)
	if p == nil {
		return models.CanonicalEntity{}, false
	}
	e := p.entities[canonical]
	if e == nil || !e.Attrs.Enrich(attrs) {
		return models.CanonicalEntity{}, false
	}
	return *e, true
}

// candidate is an entity with every normalized alias pointing at it.
type candidate struct {
	entity  models.CanonicalEntity
	aliases []string
}

// candidates lists the partition's entities, sorted by canonical name.
func (r *Registry) candidates(kind enums.EntityKind, domain string) []candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p := r.partition(kind, domain, false)
	if p == nil {
		return nil
	}
	byName := make(map[string]*candidate, len(p.entities))
	for name, e := range p.entities {
		byName[name] = &candidate{entity: *e}
	}
	for alias, name := range p.aliases {
		if c := byName[name]; c != nil {
			c.aliases = append(c.aliases, alias)
		}
	}

	out := make([]candidate, 0, len(byName))
	for _, c := range byName {
		sort.Strings(c.aliases)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].entity.CanonicalName < out[j].entity.CanonicalName })
	return out
}

// Entities lists a partition's entities sorted by canonical name. An empty
// domain lists every domain of the kind.
func (r *Registry) Entities(kind enums.EntityKind, domain string) []models.CanonicalEntity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.CanonicalEntity
	for key, p := range r.parts {
		if key.kind != kind || (domain != "" && key.domain != domain) {
			continue
		}
		for _, e := range p.entities {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Domain != out[j].Domain {
			return out[i].Domain < out[j].Domain
		}
		return out[i].CanonicalName < out[j].CanonicalName
	})
	return out
}

// Len returns the number of entities across all partitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, p := range r.parts {
		n += len(p.entities)
	}
	return n
}
