package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Vodeneev/evledger/internal/pkg/config"
	"github.com/Vodeneev/evledger/internal/pkg/enums"
	"github.com/Vodeneev/evledger/internal/pkg/models"
)

// Ensure PostgresEntityStore implements EntityStore
var _ EntityStore = (*PostgresEntityStore)(nil)

// PostgresEntityStore persists the canonical registry.
type PostgresEntityStore struct {
	db *sql.DB
}

// NewPostgresEntityStore creates a new PostgreSQL entity store.
func NewPostgresEntityStore(cfg *config.PostgresConfig) (*PostgresEntityStore, error) {
	db, err := openPostgres(cfg)
	if err != nil {
		return nil, err
	}

	s := &PostgresEntityStore{db: db}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("PostgreSQL entity store initialized successfully")
	return s, nil
}

func (s *PostgresEntityStore) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS canonical_entities (
		kind VARCHAR(20) NOT NULL,
		domain VARCHAR(50) NOT NULL,
		canonical_name VARCHAR(200) NOT NULL,
		team_abbr VARCHAR(20) NOT NULL DEFAULT '',
		position VARCHAR(20) NOT NULL DEFAULT '',
		jersey_number VARCHAR(10) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (kind, domain, canonical_name)
	);

	CREATE TABLE IF NOT EXISTS name_aliases (
		kind VARCHAR(20) NOT NULL,
		domain VARCHAR(50) NOT NULL,
		alias VARCHAR(200) NOT NULL,
		canonical_name VARCHAR(200) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (kind, domain, alias)
	);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *PostgresEntityStore) LoadEntities(ctx context.Context) ([]models.CanonicalEntity, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT kind, domain, canonical_name, team_abbr, position, jersey_number, created_at
	FROM canonical_entities
	ORDER BY kind, domain, canonical_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query canonical entities: %w", err)
	}
	defer rows.Close()

	var out []models.CanonicalEntity
	for rows.Next() {
		var e models.CanonicalEntity
		var kind string
		if err := rows.Scan(&kind, &e.Domain, &e.CanonicalName, &e.TeamAbbr, &e.Position, &e.JerseyNumber, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan canonical entity: %w", err)
		}
		e.Kind = enums.EntityKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresEntityStore) LoadAliases(ctx context.Context) ([]models.NameAlias, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, domain, alias, canonical_name FROM name_aliases ORDER BY kind, domain, alias`)
	if err != nil {
		return nil, fmt.Errorf("failed to query name aliases: %w", err)
	}
	defer rows.Close()

	var out []models.NameAlias
	for rows.Next() {
		var a models.NameAlias
		var kind string
		if err := rows.Scan(&kind, &a.Domain, &a.Alias, &a.CanonicalName); err != nil {
			return nil, fmt.Errorf("failed to scan name alias: %w", err)
		}
		a.Kind = enums.EntityKind(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}

// SaveEntity upserts an entity. Attributes already stored win over new ones.
func (s *PostgresEntityStore) SaveEntity(ctx context.Context, e models.CanonicalEntity) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO canonical_entities (kind, domain, canonical_name, team_abbr, position, jersey_number, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (kind, domain, canonical_name) DO UPDATE SET
		team_abbr = COALESCE(NULLIF(canonical_entities.team_abbr, ''), EXCLUDED.team_abbr),
		position = COALESCE(NULLIF(canonical_entities.position, ''), EXCLUDED.position),
		jersey_number = COALESCE(NULLIF(canonical_entities.jersey_number, ''), EXCLUDED.jersey_number),
		updated_at = NOW()
	`, string(e.Kind), e.Domain, e.CanonicalName, e.TeamAbbr, e.Position, e.JerseyNumber, createdAt)
	if err != nil {
		return fmt.Errorf("failed to save canonical entity: %w", err)
	}
	return nil
}

func (s *PostgresEntityStore) SaveAlias(ctx context.Context, a models.NameAlias) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO name_aliases (kind, domain, alias, canonical_name)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (kind, domain, alias) DO NOTHING
	`, string(a.Kind), a.Domain, a.Alias, a.CanonicalName)
	if err != nil {
		return fmt.Errorf("failed to save name alias: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresEntityStore) Close() error {
	return s.db.Close()
}
