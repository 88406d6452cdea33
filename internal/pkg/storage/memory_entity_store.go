package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/Vodeneev/evledger/internal/pkg/enums"
	"github.com/Vodeneev/evledger/internal/pkg/models"
)

// Ensure MemoryEntityStore implements EntityStore
var _ EntityStore = (*MemoryEntityStore)(nil)

type entityID struct {
	kind   enums.EntityKind
	domain string
	name   string
}

// MemoryEntityStore keeps canonical entities in process memory.
type MemoryEntityStore struct {
	mu       sync.RWMutex
	entities map[entityID]models.CanonicalEntity
	aliases  map[entityID]models.NameAlias
}

func NewMemoryEntityStore() *MemoryEntityStore {
	return &MemoryEntityStore{
		entities: make(map[entityID]models.CanonicalEntity),
		aliases:  make(map[entityID]models.NameAlias),
	}
}

func (s *MemoryEntityStore) LoadEntities(ctx context.Context) ([]models.CanonicalEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.CanonicalEntity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CanonicalName < out[j].CanonicalName })
	return out, nil
}

func (s *MemoryEntityStore) LoadAliases(ctx context.Context) ([]models.NameAlias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.NameAlias, 0, len(s.aliases))
	for _, a := range s.aliases {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out, nil
}

func (s *MemoryEntityStore) SaveEntity(ctx context.Context, e models.CanonicalEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := entityID{e.Kind, e.Domain, e.CanonicalName}
	if existing, ok := s.entities[id]; ok {
		existing.Attrs.Enrich(e.Attrs)
		s.entities[id] = existing
		return nil
	}
	s.entities[id] = e
	return nil
}

func (s *MemoryEntityStore) SaveAlias(ctx context.Context, a models.NameAlias) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := entityID{a.Kind, a.Domain, a.Alias}
	if _, ok := s.aliases[id]; !ok {
		s.aliases[id] = a
	}
	return nil
}

func (s *MemoryEntityStore) Close() error {
	return nil
}
