package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Vodeneev/evledger/internal/pkg/config"
	"github.com/Vodeneev/evledger/internal/pkg/models"
)

// Ensure RedisSnapshotCache implements SnapshotCache
var _ SnapshotCache = (*RedisSnapshotCache)(nil)

const (
	snapshotIndexKey = "evledger:snapshot:ids"
	snapshotLineKey  = "evledger:snapshot:line:"
)

// RedisSnapshotCache caches the flat snapshot of the latest batch so
// previous-batch reads skip the database.
type RedisSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSnapshotCache(cfg *config.RedisConfig) (*RedisSnapshotCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Check connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	slog.Info("Redis snapshot cache initialized", "addr", cfg.Addr, "ttl", ttl)
	return &RedisSnapshotCache{client: client, ttl: ttl}, nil
}

// PutLatest replaces the cached snapshot in one MULTI/EXEC.
func (r *RedisSnapshotCache) PutLatest(ctx context.Context, lines []models.StoredBettingLine) error {
	payloads := make(map[string][]byte, len(lines))
	for i := range lines {
		data, err := json.Marshal(lines[i])
		if err != nil {
			return fmt.Errorf("failed to marshal line %s: %w", lines[i].ID, err)
		}
		payloads[lines[i].ID] = data
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, snapshotIndexKey)
		for id, data := range payloads {
			pipe.Set(ctx, snapshotLineKey+id, data, r.ttl)
			pipe.SAdd(ctx, snapshotIndexKey, id)
		}
		pipe.Expire(ctx, snapshotIndexKey, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	return nil
}

// Latest returns cached lines matching q. Lines whose key expired are skipped.
func (r *RedisSnapshotCache) Latest(ctx context.Context, q LineQuery) ([]models.StoredBettingLine, bool, error) {
	ids, err := r.client.SMembers(ctx, snapshotIndexKey).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read snapshot index: %w", err)
	}
	if len(ids) == 0 {
		return nil, false, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = snapshotLineKey + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read snapshot lines: %w", err)
	}

	var out []models.StoredBettingLine
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue // expired
		}
		var line models.StoredBettingLine
		if err := json.Unmarshal([]byte(s), &line); err != nil {
			continue // Skip invalid data
		}
		if q.Matches(&line) {
			out = append(out, line)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, true, nil
}

func (r *RedisSnapshotCache) Close() error {
	return r.client.Close()
}
