package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/moneyclicker/idle-engine/internal/engine"
)

// ErrSessionNotFound is returned for ids with neither a running session nor
// a save.
var ErrSessionNotFound = errors.New("api: session not found")

// Factory builds a stopped session for a player id.
type Factory func(id string) *engine.Session

// Registry tracks running sessions. Sessions outlive the requests that
// create them; they run under the registry's base context.
type Registry struct {
	base    context.Context
	factory Factory

	mu       sync.Mutex
	sessions map[string]*engine.Session
}

// NewRegistry creates an empty registry.
func NewRegistry(base context.Context, factory Factory) *Registry {
	return &Registry{
		base:     base,
		factory:  factory,
		sessions: make(map[string]*engine.Session),
	}
}

// Create starts a fresh session under a new id.
func (r *Registry) Create() (*engine.Session, error) {
	id := uuid.New().String()
	s := r.factory(id)
	if err := s.Start(r.base); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return s, nil
}

// Get returns the running session, resuming it from its save when it is
// not running. The store is read without holding the registry lock, so a
// slow load only delays requests for that id; when two requests resume the
// same id, the first one registered wins.
func (r *Registry) Get(ctx context.Context, id string) (*engine.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}
	if s, ok := r.running(id); ok {
		return s, nil
	}

	s := r.factory(id)
	ok, err := s.Resume(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[id]; ok {
		return existing, nil
	}
	if err := s.Start(r.base); err != nil {
		return nil, err
	}
	r.sessions[id] = s
	return s, nil
}

func (r *Registry) running(id string) (*engine.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove stops a running session after a final save.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	return s.Stop(ctx)
}

// Purge stops the session if it is running and deletes its save. Purging
// an id without a save is not an error.
func (r *Registry) Purge(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrSessionNotFound
	}
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		s = r.factory(id)
	}
	return s.Discard(ctx)
}

// Len returns the number of running sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// StopAll stops every session, saving each one.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*engine.Session)
	r.mu.Unlock()

	var errs []error
	for id, s := range sessions {
		if err := s.Stop(ctx); err != nil {
			slog.Error("final save failed", "session", id, "err", err)
			errs = append(errs, fmt.Errorf("session %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
