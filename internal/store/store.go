// Package store defines the persistence interface for saved games.
// Implementations include PostgreSQL and SQLite (sources of truth), Redis
// (read-through cache) and in-memory (for testing).
//
// Stores deal in opaque serialized records; encoding is the persist
// package's concern.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no save exists for the player.
var ErrNotFound = errors.New("store: save not found")

// Store persists one serialized save per player. Saves are last-writer-wins.
type Store interface {
	// Save writes (or replaces) the player's record.
	Save(ctx context.Context, playerID string, data []byte) error

	// Load returns the player's record or ErrNotFound.
	Load(ctx context.Context, playerID string) ([]byte, error)

	// Delete removes the player's record. Deleting a missing record is not
	// an error.
	Delete(ctx context.Context, playerID string) error
}
