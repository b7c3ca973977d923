package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneyclicker/idle-engine/internal/clock"
	"github.com/moneyclicker/idle-engine/internal/model"
	"github.com/moneyclicker/idle-engine/internal/news"
	"github.com/moneyclicker/idle-engine/internal/persist"
	"github.com/moneyclicker/idle-engine/internal/store"
)

var fastTiming = Timing{Tick: 2 * time.Millisecond, Save: 5 * time.Millisecond}

func producingEngine() *Engine {
	g := newGame()
	withState(g, func(st *model.State) { st.Ledger.Owned["bank"] = 1 })
	return New(g, nil)
}

func TestSession_TicksAndSaves(t *testing.T) {
	st := store.NewMemoryStore()
	s := NewSession("p1", producingEngine(), st, nil, nil, fastTiming)

	require.NoError(t, s.Start(context.Background()))
	require.ErrorIs(t, s.Start(context.Background()), ErrRunning)
	assert.True(t, s.Running())

	require.Eventually(t, func() bool {
		return s.Engine().State().Ledger.Balance.IsPositive()
	}, 2*time.Second, 2*time.Millisecond)
	require.Eventually(t, func() bool { return st.Len() == 1 }, 2*time.Second, 2*time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.Running())

	// The final save matches the stopped state exactly.
	final := s.Engine().State()
	data, err := st.Load(context.Background(), "p1")
	require.NoError(t, err)
	saved := persist.Load(data, s.Engine().game.Catalog())
	assert.True(t, final.Ledger.Balance.Equal(saved.Ledger.Balance))

	// Nothing moves after Stop.
	time.Sleep(10 * time.Millisecond)
	assert.True(t, final.Ledger.Balance.Equal(s.Engine().State().Ledger.Balance))
}

func TestSession_StopWithoutStartSaves(t *testing.T) {
	st := store.NewMemoryStore()
	s := NewSession("p2", New(newGame(), nil), st, nil, nil, fastTiming)
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, 1, st.Len())
}

func TestSession_DiscardDeletesSave(t *testing.T) {
	st := store.NewMemoryStore()
	s := NewSession("p4", producingEngine(), st, nil, nil, fastTiming)
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return st.Len() == 1 }, 2*time.Second, 2*time.Millisecond)

	require.NoError(t, s.Discard(context.Background()))
	assert.False(t, s.Running())
	assert.Equal(t, 0, st.Len())

	ok, err := NewSession("p4", New(newGame(), nil), st, nil, nil, fastTiming).Resume(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSession_ContextCancelStopsLoops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSession("p3", producingEngine(), store.NewMemoryStore(), nil, nil, fastTiming)
	require.NoError(t, s.Start(ctx))
	cancel()
	require.NoError(t, s.Stop(context.Background()))
}

func TestSession_Resume(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	s := NewSession("p4", New(newGame(), nil), st, nil, nil, fastTiming)
	ok, err := s.Resume(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.Save(ctx, "p4", []byte(`{"balance":"777","spin_count":2}`)))
	ok, err = s.Resume(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	snap := s.Engine().Snapshot()
	assert.True(t, snap.State.Ledger.Balance.Equal(decimal.NewFromInt(777)))
	assert.Equal(t, int64(25), snap.GambleCost)
}

func TestSession_RotatesFallbackHeadline(t *testing.T) {
	timing := fastTiming
	timing.Rotation = 3 * time.Millisecond
	s := NewSession("p5", New(newGame(), nil), store.NewMemoryStore(), nil, nil, timing)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	require.Eventually(t, func() bool {
		return s.Engine().State().FlavorText != ""
	}, 2*time.Second, 2*time.Millisecond)
	assert.Contains(t, news.Fallbacks, s.Engine().State().FlavorText)
}

type fixedGen string

func (g fixedGen) Generate(context.Context, decimal.Decimal, decimal.Decimal) (string, error) {
	return string(g), nil
}

func TestSession_RequestNews(t *testing.T) {
	s := NewSession("p6", New(newGame(), nil), store.NewMemoryStore(), nil, nil, fastTiming)
	require.ErrorIs(t, s.RequestNews(context.Background()), ErrNewsDisabled)
	assert.Zero(t, s.NewsRemaining())

	clk := clock.NewFake(t0)
	svc := news.NewService(fixedGen("Bulls everywhere"), news.DefaultPolicy(), clk, nil)
	s = NewSession("p6", New(newGame(), nil), store.NewMemoryStore(), svc, nil, fastTiming)

	require.NoError(t, s.RequestNews(context.Background()))
	assert.Equal(t, "Bulls everywhere", s.Engine().State().FlavorText)

	require.ErrorIs(t, s.RequestNews(context.Background()), news.ErrCoolingDown)
	assert.Contains(t, s.Engine().State().FlavorText, "5 min left")
	assert.Equal(t, 5*time.Minute, s.NewsRemaining())
}
