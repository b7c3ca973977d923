package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/moneyclicker/idle-engine/internal/clock"
	"github.com/moneyclicker/idle-engine/internal/metrics"
	"github.com/moneyclicker/idle-engine/internal/news"
	"github.com/moneyclicker/idle-engine/internal/persist"
	"github.com/moneyclicker/idle-engine/internal/store"
)

var (
	// ErrRunning is returned by Start on a running session.
	ErrRunning = errors.New("engine: session already running")

	// ErrNewsDisabled is returned by RequestNews without a news service.
	ErrNewsDisabled = errors.New("engine: headlines disabled")
)

// Timing holds the session cadences.
type Timing struct {
	Tick     time.Duration // simulation tick
	Save     time.Duration // persistence flush
	Rotation time.Duration // fallback headline rotation; 0 disables
}

// DefaultTiming returns the reference cadences: tick every 100 ms, save
// every 5 s, rotate the fallback headline every minute.
func DefaultTiming() Timing {
	return Timing{
		Tick:     100 * time.Millisecond,
		Save:     5 * time.Second,
		Rotation: time.Minute,
	}
}

// Session owns the timers that drive one Engine: the tick loop and an
// independent save loop. It is created stopped.
type Session struct {
	id     string
	engine *Engine
	store  store.Store
	news   *news.Service
	clock  clock.Clock
	timing Timing

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSession binds an engine to its store. news may be nil.
func NewSession(id string, e *Engine, st store.Store, nw *news.Service, clk clock.Clock, timing Timing) *Session {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Session{
		id:     id,
		engine: e,
		store:  st,
		news:   nw,
		clock:  clk,
		timing: timing,
	}
}

func (s *Session) ID() string      { return s.id }
func (s *Session) Engine() *Engine { return s.engine }

// Running reports whether the loops have been started and not stopped.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Resume loads the player's save into the engine. It reports false when no
// save exists.
func (s *Session) Resume(ctx context.Context) (bool, error) {
	data, err := s.store.Load(ctx, s.id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("resume %s: %w", s.id, err)
	}
	s.engine.Load(data)
	slog.Info("session resumed", "session", s.id)
	return true, nil
}

// Start launches the tick and save loops. They run until Stop is called
// or ctx is cancelled.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(2)
	go s.tickLoop(ctx)
	go s.saveLoop(ctx)

	metrics.ActiveSessions.Inc()
	slog.Info("session started", "session", s.id, "tick", s.timing.Tick, "save", s.timing.Save)
	return nil
}

// Stop halts both loops, waits for them and writes a final save.
// Stopping a stopped session only saves.
func (s *Session) Stop(ctx context.Context) error {
	s.halt()
	return s.Save(ctx)
}

// Discard halts both loops and deletes the save instead of writing one.
func (s *Session) Discard(ctx context.Context) error {
	s.halt()
	if err := s.store.Delete(ctx, s.id); err != nil {
		return fmt.Errorf("discard %s: %w", s.id, err)
	}
	slog.Info("session discarded", "session", s.id)
	return nil
}

func (s *Session) halt() {
	s.mu.Lock()
	wasRunning := s.running
	if wasRunning {
		s.cancel()
		s.running = false
	}
	s.mu.Unlock()

	if wasRunning {
		s.wg.Wait()
		metrics.ActiveSessions.Dec()
		slog.Info("session stopped", "session", s.id)
	}
}

func (s *Session) tickLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.timing.Tick)
	defer ticker.Stop()

	var rotate <-chan time.Time
	if s.timing.Rotation > 0 {
		rt := time.NewTicker(s.timing.Rotation)
		defer rt.Stop()
		rotate = rt.C
	}

	last := s.clock.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.clock.Now()
			s.engine.Tick(now, now.Sub(last))
			last = now
		case <-rotate:
			if s.news == nil || !s.news.InFlight() {
				s.engine.RotateHeadline()
			}
		}
	}
}

func (s *Session) saveLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.timing.Save)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Save(ctx); err != nil && ctx.Err() == nil {
				slog.Error("periodic save failed", "session", s.id, "err", err)
			}
		}
	}
}

// Save writes the current progression to the store.
func (s *Session) Save(ctx context.Context) error {
	data, err := persist.Encode(s.engine.State(), s.clock.Now())
	if err != nil {
		metrics.SavesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("encode %s: %w", s.id, err)
	}
	if err := s.store.Save(ctx, s.id, data); err != nil {
		metrics.SavesTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.SavesTotal.WithLabelValues("ok").Inc()
	return nil
}

// RequestNews asks the headline service for a fresh headline. The outcome
// is applied to the engine either way; the error only informs the caller.
func (s *Session) RequestNews(ctx context.Context) error {
	if s.news == nil {
		return ErrNewsDisabled
	}
	st := s.engine.State()
	return s.news.Refresh(ctx, st.Ledger.Balance, st.Ledger.ProductionRate, s.engine)
}

// NewsRemaining returns the headline cooldown left, 0 without a service.
func (s *Session) NewsRemaining() time.Duration {
	if s.news == nil {
		return 0
	}
	return s.news.Remaining()
}
