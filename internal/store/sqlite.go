package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore implements Store on a local SQLite file. It is the default
// durable store for single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and ensures
// the schema exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS saves (
		player_id  TEXT PRIMARY KEY,
		data       TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, playerID string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO saves (player_id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(player_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		playerID, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save %s: %w", playerID, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, playerID string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM saves WHERE player_id = ?`, playerID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", playerID, err)
	}
	return []byte(data), nil
}

func (s *SQLiteStore) Delete(ctx context.Context, playerID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM saves WHERE player_id = ?`, playerID); err != nil {
		return fmt.Errorf("delete %s: %w", playerID, err)
	}
	return nil
}
