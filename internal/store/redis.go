package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedStore wraps a primary Store (PostgreSQL or SQLite) with a Redis
// read-through cache. Writes go to the primary store and refresh the
// cache; reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, refresh cache) ---

func (s *CachedStore) Save(ctx context.Context, playerID string, data []byte) error {
	if err := s.primary.Save(ctx, playerID, data); err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, saveKey(playerID), data, s.ttl).Err(); err != nil {
		// A stale entry would shadow the new save; drop it instead.
		s.rdb.Del(ctx, saveKey(playerID))
		slog.Warn("cache refresh failed", "player", playerID, "err", err)
	}
	return nil
}

func (s *CachedStore) Delete(ctx context.Context, playerID string) error {
	if err := s.primary.Delete(ctx, playerID); err != nil {
		return err
	}
	s.rdb.Del(ctx, saveKey(playerID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) Load(ctx context.Context, playerID string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, saveKey(playerID)).Bytes()
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, redis.Nil) {
		slog.Warn("cache read failed", "player", playerID, "err", err)
	}

	// Cache miss: read from primary.
	data, err = s.primary.Load(ctx, playerID)
	if err != nil {
		return nil, err
	}
	s.rdb.Set(ctx, saveKey(playerID), data, s.ttl)
	return data, nil
}

func saveKey(id string) string { return fmt.Sprintf("save:%s", id) }
