package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Saves are kept as JSONB so they can be inspected with SQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the saves table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS saves (
			player_id  TEXT PRIMARY KEY,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("migrate saves: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, playerID string, data []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO saves (player_id, data, updated_at)
		 VALUES ($1, $2::JSONB, now())
		 ON CONFLICT (player_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		playerID, string(data))
	if err != nil {
		return fmt.Errorf("save %s: %w", playerID, err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, playerID string) ([]byte, error) {
	var data string
	err := s.pool.QueryRow(ctx,
		`SELECT data::TEXT FROM saves WHERE player_id = $1`, playerID).
		Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", playerID, err)
	}
	return []byte(data), nil
}

func (s *PostgresStore) Delete(ctx context.Context, playerID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM saves WHERE player_id = $1`, playerID); err != nil {
		return fmt.Errorf("delete %s: %w", playerID, err)
	}
	return nil
}
