package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Vodeneev/evledger/internal/pkg/config"
	"github.com/Vodeneev/evledger/internal/pkg/models"
	"github.com/Vodeneev/evledger/internal/pkg/validation"
)

// Ensure PostgresLineStore implements LineStore
var _ LineStore = (*PostgresLineStore)(nil)

// PostgresLineStore keeps one JSONB document per line. A batch is merged
// inside a single transaction, so a failed batch leaves nothing behind.
type PostgresLineStore struct {
	db        *sql.DB
	validator *validation.Validator
	now       func() time.Time
}

// NewPostgresLineStore creates a new PostgreSQL line store.
func NewPostgresLineStore(cfg *config.PostgresConfig) (*PostgresLineStore, error) {
	db, err := openPostgres(cfg)
	if err != nil {
		return nil, err
	}

	s := &PostgresLineStore{db: db, validator: validation.NewValidator(), now: time.Now}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("PostgreSQL line store initialized successfully")
	return s, nil
}

func openPostgres(cfg *config.PostgresConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

func (s *PostgresLineStore) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS betting_lines (
		id VARCHAR(500) PRIMARY KEY,
		bookmaker VARCHAR(100) NOT NULL,
		league VARCHAR(50) NOT NULL,
		market_domain VARCHAR(20) NOT NULL,
		market VARCHAR(200) NOT NULL,
		subject VARCHAR(200) NOT NULL,
		label VARCHAR(100) NOT NULL,
		game_id VARCHAR(200) NOT NULL,
		doc JSONB NOT NULL,
		last_batch_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_betting_lines_league_market ON betting_lines(league, market);
	CREATE INDEX IF NOT EXISTS idx_betting_lines_game ON betting_lines(game_id);
	CREATE INDEX IF NOT EXISTS idx_betting_lines_last_batch ON betting_lines(last_batch_at);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// StoreBatch validates the batch, then locks the affected documents, merges
// and upserts them in one transaction.
func (s *PostgresLineStore) StoreBatch(ctx context.Context, lines []models.BettingLine) error {
	prepared, err := prepareBatch(s.validator, lines)
	if err != nil {
		return err
	}
	if len(prepared) == 0 {
		return nil
	}

	batch := s.now().UTC().Truncate(time.Microsecond)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Rollback if commit doesn't happen

	ids := make([]string, 0, len(prepared))
	for i := range prepared {
		ids = append(ids, prepared[i].ID)
	}
	existing, err := s.loadForUpdate(ctx, tx, ids)
	if err != nil {
		return err
	}

	upsert, err := tx.PrepareContext(ctx, `
	INSERT INTO betting_lines (
		id, bookmaker, league, market_domain, market, subject, label, game_id, doc, last_batch_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	ON CONFLICT (id) DO UPDATE SET
		market_domain = EXCLUDED.market_domain,
		game_id = EXCLUDED.game_id,
		doc = EXCLUDED.doc,
		last_batch_at = EXCLUDED.last_batch_at,
		updated_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer upsert.Close()

	var stats MergeStats
	for i := range prepared {
		l := &prepared[i]
		doc, res := MergeLine(existing[l.ID], l, batch)
		existing[l.ID] = &doc
		stats.add(res)

		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal line %s: %w", l.ID, err)
		}
		if _, err := upsert.ExecContext(ctx,
			doc.ID, doc.Bookmaker, doc.League, string(doc.MarketDomain), doc.Market,
			doc.Subject, doc.Label, doc.Game.ID, data, batch,
		); err != nil {
			return fmt.Errorf("failed to upsert line %s: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	slog.Info("Batch stored", "lines", len(prepared), "inserted", stats.Inserted, "heartbeats", stats.Heartbeats, "changed", stats.Changed)
	return nil
}

func (s *PostgresLineStore) loadForUpdate(ctx context.Context, tx *sql.Tx, ids []string) (map[string]*models.StoredBettingLine, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, doc FROM betting_lines WHERE id = ANY($1) FOR UPDATE`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load stored lines: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*models.StoredBettingLine, len(ids))
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan stored line: %w", err)
		}
		var doc models.StoredBettingLine
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode stored line %s: %w", id, err)
		}
		out[id] = &doc
	}
	return out, rows.Err()
}

func (s *PostgresLineStore) Get(ctx context.Context, q LineQuery, previousBatchOnly bool) ([]models.StoredBettingLine, error) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if q.League != "" {
		add("UPPER(league) = UPPER($%d)", q.League)
	}
	if q.Market != "" {
		add("market = $%d", q.Market)
	}
	if q.Bookmaker != "" {
		add("LOWER(bookmaker) = LOWER($%d)", q.Bookmaker)
	}
	if q.Subject != "" {
		add("subject = $%d", q.Subject)
	}
	if q.Label != "" {
		add("label = $%d", q.Label)
	}
	if q.GameID != "" {
		add("game_id = $%d", q.GameID)
	}
	if q.MarketDomain != "" {
		add("market_domain = $%d", string(q.MarketDomain))
	}
	if previousBatchOnly {
		conds = append(conds, "last_batch_at = (SELECT MAX(last_batch_at) FROM betting_lines)")
	}

	query := "SELECT doc FROM betting_lines"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	var out []models.StoredBettingLine
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		var doc models.StoredBettingLine
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode line: %w", err)
		}
		if previousBatchOnly {
			doc = doc.Snapshot()
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// DeleteByGame deletes every line of a completed game.
func (s *PostgresLineStore) DeleteByGame(ctx context.Context, gameID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM betting_lines WHERE game_id = $1`, gameID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete lines for game %s: %w", gameID, err)
	}
	rows, _ := res.RowsAffected()
	if rows > 0 {
		slog.Info("Deleted lines for completed game", "game_id", gameID, "rows_deleted", rows)
	}
	return int(rows), nil
}

// Close closes the database connection.
func (s *PostgresLineStore) Close() error {
	return s.db.Close()
}
