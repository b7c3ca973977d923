package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/moneyclicker/idle-engine/internal/clock"
	"github.com/moneyclicker/idle-engine/internal/gamble"
	"github.com/moneyclicker/idle-engine/internal/metrics"
	"github.com/moneyclicker/idle-engine/internal/model"
	"github.com/moneyclicker/idle-engine/internal/news"
	"github.com/moneyclicker/idle-engine/internal/persist"
)

// Intent names a player transition.
type Intent string

const (
	IntentClick         Intent = "click"
	IntentBuy           Intent = "buy"
	IntentToggleAutoBuy Intent = "toggle_auto_buy"
	IntentCollectToken  Intent = "collect_token"
	IntentUnlockSkill   Intent = "unlock_skill"
	IntentSpinGamble    Intent = "spin_gamble"
)

// Notifier receives a snapshot after every observable change. Snapshots
// from concurrent transitions may arrive out of order; use Version.
type Notifier interface {
	Notify(model.Snapshot)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(model.Snapshot)

func (f NotifierFunc) Notify(s model.Snapshot) { f(s) }

// Engine serializes every transition of one Game behind a single mutex
// and publishes the resulting snapshots.
type Engine struct {
	mu      sync.Mutex
	game    *Game
	clock   clock.Clock
	version uint64

	nmu       sync.RWMutex
	notifiers []Notifier
}

// New wraps game. A nil clock uses the system clock.
func New(game *Game, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Engine{game: game, clock: clk}
}

// Subscribe registers n for every future snapshot.
func (e *Engine) Subscribe(n Notifier) {
	e.nmu.Lock()
	defer e.nmu.Unlock()
	e.notifiers = append(e.notifiers, n)
}

func (e *Engine) notify(s model.Snapshot) {
	e.nmu.RLock()
	defer e.nmu.RUnlock()
	for _, n := range e.notifiers {
		n.Notify(s)
	}
}

// apply runs fn as one critical section. Successful transitions bump the
// version and are published after the lock is released.
func (e *Engine) apply(intent Intent, fn func(g *Game) error) (model.Snapshot, error) {
	e.mu.Lock()
	err := fn(e.game)
	if err == nil {
		e.version++
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()

	if intent != "" {
		metrics.IntentsTotal.WithLabelValues(string(intent), metrics.Result(err)).Inc()
	}
	if err == nil {
		e.notify(snap)
	}
	return snap, err
}

func (e *Engine) snapshotLocked() model.Snapshot {
	s := e.game.Snapshot(e.clock.Now())
	s.Version = e.version
	return s
}

// Snapshot returns the current view.
func (e *Engine) Snapshot() model.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// State returns a copy of the progression for persistence.
func (e *Engine) State() model.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game.State()
}

// Restore replaces the progression and publishes the result.
func (e *Engine) Restore(st model.State) model.Snapshot {
	snap, _ := e.apply("", func(g *Game) error {
		g.Restore(st)
		return nil
	})
	return snap
}

// Load restores the progression from a saved record, merged against the
// game's catalog. Unreadable saves fall back to defaults.
func (e *Engine) Load(data []byte) model.Snapshot {
	return e.Restore(persist.Load(data, e.game.Catalog()))
}

// Tick advances the simulation by elapsed at now. A tick that changed
// nothing is not published.
func (e *Engine) Tick(now time.Time, elapsed time.Duration) TickReport {
	start := time.Now()
	e.mu.Lock()
	rep := e.game.Tick(now, elapsed)
	var snap model.Snapshot
	if rep.Changed {
		e.version++
		snap = e.game.Snapshot(now)
		snap.Version = e.version
	}
	e.mu.Unlock()

	metrics.TicksTotal.Inc()
	metrics.TickLatency.Observe(time.Since(start).Seconds())
	if rep.AutoPurchased != "" {
		metrics.BoostersBought.WithLabelValues(rep.AutoPurchased, "auto").Inc()
	}
	if rep.Spawned != nil {
		metrics.TokensTotal.WithLabelValues("spawned").Inc()
	}
	metrics.TokensTotal.WithLabelValues("expired").Add(float64(len(rep.Expired) - len(rep.AutoCollected)))
	for _, c := range rep.AutoCollected {
		metrics.TokensTotal.WithLabelValues("auto_collected").Inc()
		if c.BoosterID != "" {
			metrics.BoostersBought.WithLabelValues(c.BoosterID, "token").Inc()
		}
	}

	if rep.Changed {
		e.notify(snap)
	}
	return rep
}

// Click applies the manual production action. It always succeeds.
func (e *Engine) Click(at model.Point) (ClickResult, model.Snapshot) {
	var res ClickResult
	snap, _ := e.apply(IntentClick, func(g *Game) error {
		res = g.Click(at)
		return nil
	})
	return res, snap
}

// Buy purchases one unit of a booster.
func (e *Engine) Buy(id string) (model.Snapshot, error) {
	snap, err := e.apply(IntentBuy, func(g *Game) error {
		_, err := g.Buy(id)
		return err
	})
	if err == nil {
		metrics.BoostersBought.WithLabelValues(id, "manual").Inc()
	}
	return snap, err
}

// ToggleAutoBuy sets or clears the auto-purchase target.
func (e *Engine) ToggleAutoBuy(id string) (model.Snapshot, error) {
	return e.apply(IntentToggleAutoBuy, func(g *Game) error {
		_, err := g.ToggleAutoBuy(id)
		return err
	})
}

// CollectToken collects an active bonus token.
func (e *Engine) CollectToken(id uint64) (Collection, model.Snapshot, error) {
	var c Collection
	snap, err := e.apply(IntentCollectToken, func(g *Game) error {
		var err error
		c, err = g.CollectToken(id)
		return err
	})
	if err == nil {
		metrics.TokensTotal.WithLabelValues("collected").Inc()
		if c.BoosterID != "" {
			metrics.BoostersBought.WithLabelValues(c.BoosterID, "token").Inc()
		}
	}
	return c, snap, err
}

// UnlockSkill buys a skill with bonus currency.
func (e *Engine) UnlockSkill(id string) (model.Snapshot, error) {
	return e.apply(IntentUnlockSkill, func(g *Game) error {
		_, err := g.Unlock(id)
		return err
	})
}

// SpinGamble plays the roulette.
func (e *Engine) SpinGamble() (gamble.Outcome, model.Snapshot, error) {
	var out gamble.Outcome
	snap, err := e.apply(IntentSpinGamble, func(g *Game) error {
		var err error
		out, err = g.Spin()
		return err
	})
	if err == nil {
		metrics.SpinsTotal.WithLabelValues(metrics.Multiplier(out.Multiplier)).Inc()
	}
	return out, snap, err
}

// SetRegion updates the token spawn region.
func (e *Engine) SetRegion(r model.Region) (model.Snapshot, error) {
	return e.apply("", func(g *Game) error {
		return g.SetRegion(r)
	})
}

// RotateHeadline shows a random fallback headline.
func (e *Engine) RotateHeadline() {
	e.apply("", func(g *Game) error {
		g.SetFlavorText(news.Fallback(g.src))
		return nil
	})
}

// Headline implements news.Sink.
func (e *Engine) Headline(text string) {
	e.apply("", func(g *Game) error {
		g.SetFlavorText(text)
		return nil
	})
}

// FetchFailed implements news.Sink.
func (e *Engine) FetchFailed(err error, retryIn time.Duration) {
	kind := FetchTransient
	switch {
	case errors.Is(err, news.ErrRateLimited):
		kind = FetchRateLimited
	case errors.Is(err, news.ErrCoolingDown):
		kind = FetchBlocked
	}
	e.apply("", func(g *Game) error {
		g.FlavorTextFailed(kind, retryIn)
		return nil
	})
}

var _ news.Sink = (*Engine)(nil)
