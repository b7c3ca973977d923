package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneyclicker/idle-engine/internal/clock"
	"github.com/moneyclicker/idle-engine/internal/model"
	"github.com/moneyclicker/idle-engine/internal/news"
	"github.com/moneyclicker/idle-engine/internal/pricing"
)

type collector struct {
	mu    sync.Mutex
	snaps []model.Snapshot
}

func (c *collector) Notify(s model.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, s)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snaps)
}

func newEngine(samples ...float64) (*Engine, *collector) {
	e := New(newGame(samples...), clock.NewFake(t0))
	c := &collector{}
	e.Subscribe(c)
	return e, c
}

func TestEngine_VersionOnlyMovesOnChange(t *testing.T) {
	e, c := newEngine()

	_, snap := e.Click(model.Point{})
	assert.Equal(t, uint64(1), snap.Version)

	snap, err := e.Buy("lemonade")
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, uint64(1), snap.Version, "rejections do not bump the version")
	assert.Equal(t, 1, c.count(), "rejections are not published")

	rep := e.Tick(t0, 100*time.Millisecond)
	assert.False(t, rep.Changed)
	assert.Equal(t, uint64(1), e.Snapshot().Version)
	assert.Equal(t, 1, c.count())
}

func TestEngine_PublishesAfterEachIntent(t *testing.T) {
	e, c := newEngine(0.5)
	e.Restore(func() model.State {
		st := model.NewState(e.game.Catalog().Boosters)
		st.Ledger.Balance = d("1000")
		st.SpendableTokens = 5
		return st
	}())

	_, err := e.Buy("lemonade")
	require.NoError(t, err)
	_, err = e.ToggleAutoBuy("lemonade")
	require.NoError(t, err)
	out, snap, err := e.SpinGamble()
	require.NoError(t, err)
	assert.Equal(t, 3, out.Multiplier)
	assert.True(t, snap.State.Ledger.Balance.Equal(d("2700")))

	require.Equal(t, 4, c.count())
	for i, s := range c.snaps {
		assert.Equal(t, uint64(i+1), s.Version)
	}
}

func TestEngine_CollectAndUnlock(t *testing.T) {
	e, _ := newEngine()
	for range 3 {
		tok := spawnToken(e.game, t0)
		c, _, err := e.CollectToken(tok.ID)
		require.NoError(t, err)
		assert.True(t, c.Bonus.Equal(d("1000")))
	}
	_, _, err := e.CollectToken(999)
	require.ErrorIs(t, err, ErrUnknownToken)

	snap, err := e.UnlockSkill("luck_boost")
	require.NoError(t, err)
	assert.True(t, snap.SkillsVisible)
	assert.Equal(t, int64(0), snap.State.SpendableTokens)
	assert.Equal(t, []string{"luck_boost"}, snap.State.UnlockedSkills)
}

func TestEngine_ConcurrentClicksAreSerialized(t *testing.T) {
	e, c := newEngine()
	const workers, clicks = 16, 200

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range clicks {
				e.Click(model.Point{})
			}
		}()
	}
	wg.Wait()

	snap := e.Snapshot()
	assert.True(t, snap.State.Ledger.Balance.Equal(d("3200")), "balance %s", snap.State.Ledger.Balance)
	assert.Equal(t, uint64(workers*clicks), snap.Version)
	assert.Equal(t, workers*clicks, c.count())
}

func TestEngine_NewsSink(t *testing.T) {
	e, _ := newEngine()

	e.Headline("Gold hits record")
	assert.Equal(t, "Gold hits record", e.State().FlavorText)

	e.FetchFailed(errors.Join(errors.New("upstream"), news.ErrRateLimited), 15*time.Minute)
	assert.Contains(t, e.State().FlavorText, "15-minute")

	e.FetchFailed(news.ErrCoolingDown, 3*time.Minute)
	assert.Contains(t, e.State().FlavorText, "3 min left")

	e.RotateHeadline()
	assert.Contains(t, news.Fallbacks, e.State().FlavorText)
}

func TestEngine_LoadMergesSave(t *testing.T) {
	e, c := newEngine()
	snap := e.Load([]byte(`{"balance":"250","owned":{"lemonade":4,"retired":9},"unlocked_skills":["skill_master"]}`))

	assert.True(t, snap.State.Ledger.Balance.Equal(d("250")))
	assert.Equal(t, int64(4), snap.State.Ledger.Owned["lemonade"])
	assert.NotContains(t, snap.State.Ledger.Owned, "retired")
	assert.True(t, snap.EffectiveRate.Equal(d("4.4")))
	assert.Equal(t, 1, c.count())

	snap = e.Load([]byte(`corrupt`))
	assert.True(t, snap.State.Ledger.Balance.IsZero(), "corrupt save restores defaults")
}

func TestEngine_LoadHugeOwnedCountStaysResponsive(t *testing.T) {
	e, _ := newEngine()

	done := make(chan model.Snapshot, 1)
	go func() { done <- e.Load([]byte(`{"owned":{"lemonade":1e12}}`)) }()

	select {
	case snap := <-done:
		assert.Equal(t, pricing.MaxOwned, snap.State.Ledger.Owned["lemonade"])
		assert.False(t, snap.Affordable["lemonade"])
	case <-time.After(5 * time.Second):
		t.Fatal("loading a save with a huge owned count did not return")
	}

	// The lock is free again.
	_, snap := e.Click(model.Point{})
	assert.True(t, snap.State.Ledger.Balance.IsPositive())
}

func TestEngine_SetRegion(t *testing.T) {
	e, _ := newEngine()
	assert.Equal(t, DefaultRegion, e.Snapshot().Region)

	snap, err := e.SetRegion(model.Region{Width: -1, Height: 10})
	require.Error(t, err)
	assert.Equal(t, DefaultRegion, snap.Region)

	snap, err = e.SetRegion(model.Region{Width: 1024, Height: 768})
	require.NoError(t, err)
	assert.Equal(t, model.Region{Width: 1024, Height: 768}, snap.Region)
}
