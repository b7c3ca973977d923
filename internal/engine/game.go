// Package engine runs the idle-economy simulation.
//
// Game holds one player's state and applies transitions synchronously: the
// time-driven Tick and the closed set of player intents. Engine serializes
// access to a Game and publishes snapshots; Session drives an Engine with
// tick and save timers.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/moneyclicker/idle-engine/internal/catalog"
	"github.com/moneyclicker/idle-engine/internal/config"
	"github.com/moneyclicker/idle-engine/internal/gamble"
	"github.com/moneyclicker/idle-engine/internal/ledger"
	"github.com/moneyclicker/idle-engine/internal/model"
	"github.com/moneyclicker/idle-engine/internal/pricing"
	"github.com/moneyclicker/idle-engine/internal/rng"
	"github.com/moneyclicker/idle-engine/internal/skill"
	"github.com/moneyclicker/idle-engine/internal/token"
)

// Rejections. A rejected intent returns one of these (possibly wrapped) and
// leaves the state untouched.
var (
	ErrInsufficientFunds  = ledger.ErrInsufficientFunds
	ErrUnknownBooster     = ledger.ErrUnknownBooster
	ErrUnknownSkill       = skill.ErrUnknownSkill
	ErrAlreadyUnlocked    = skill.ErrAlreadyUnlocked
	ErrOwnedLimit         = ledger.ErrOwnedLimit
	ErrUnknownToken       = errors.New("engine: token not active")
	ErrInsufficientTokens = errors.New("engine: not enough bonus currency")
)

// DefaultRegion is used until the presentation reports its own.
var DefaultRegion = model.Region{Width: 800, Height: 600}

// TickReport describes what one tick changed.
type TickReport struct {
	Produced      decimal.Decimal
	AutoPurchased string // booster id, "" when nothing was bought
	Spawned       *model.BonusToken
	Expired       []model.BonusToken
	AutoCollected []Collection
	Changed       bool
}

// Collection is the reward resolved for one collected token.
type Collection struct {
	TokenID   uint64          `json:"token_id"`
	Automatic bool            `json:"automatic"`
	Dividend  decimal.Decimal `json:"dividend"`
	Bonus     decimal.Decimal `json:"bonus"`      // flat bonus when nothing is owned
	BoosterID string          `json:"booster_id"` // booster granted, "" for the flat bonus
}

// ClickResult echoes a manual action so the presentation can animate it.
type ClickResult struct {
	Yield decimal.Decimal `json:"yield"`
	At    model.Point     `json:"at"`
}

// FetchFailure classifies a failed headline fetch.
type FetchFailure int

const (
	FetchTransient FetchFailure = iota
	FetchRateLimited
	FetchBlocked // still inside a cooldown or blackout
)

// Game is one player's simulation. It is not safe for concurrent use.
type Game struct {
	cat    catalog.Catalog
	bal    config.Balance
	book   *ledger.Book
	skills *skill.Registry
	tokens *token.Manager
	table  gamble.Table
	src    rng.Source
	state  model.State
}

// NewGame starts a fresh progression over the catalog.
func NewGame(cat catalog.Catalog, bal config.Balance, src rng.Source) *Game {
	return &Game{
		cat:    cat,
		bal:    bal,
		book:   ledger.NewBook(cat.Boosters),
		skills: skill.NewRegistry(cat.Skills),
		tokens: token.NewManager(bal.TokenPolicy(), DefaultRegion),
		table:  bal.GambleTable(),
		src:    src,
		state:  model.NewState(cat.Boosters),
	}
}

// Restore replaces the progression, e.g. with a loaded save. Active tokens
// are not part of the progression and are kept.
func (g *Game) Restore(st model.State) {
	g.state = st.Clone()
	g.book.Recompute(&g.state.Ledger)
}

// Catalog returns the booster and skill catalog the game runs on.
func (g *Game) Catalog() catalog.Catalog {
	return g.cat
}

// State returns a deep copy of the progression.
func (g *Game) State() model.State {
	return g.state.Clone()
}

// Tokens returns the active bonus tokens.
func (g *Game) Tokens() []model.BonusToken {
	return g.tokens.Active()
}

func (g *Game) effects() skill.Effects {
	return g.skills.Effects(g.state.UnlockedSkills)
}

// Tick advances the simulation by elapsed, in this order: production,
// one auto-purchase attempt, one spawn draw, expiry sweep.
func (g *Game) Tick(now time.Time, elapsed time.Duration) TickReport {
	l := &g.state.Ledger
	eff := g.effects()
	var rep TickReport

	if elapsed > 0 {
		rep.Produced = g.book.Credit(l, l.ProductionRate.
			Mul(decimal.NewFromFloat(elapsed.Seconds())).
			Mul(decimal.NewFromFloat(eff.ProductionMultiplier)))
	}

	if id := l.AutoPurchaseTarget; id != "" {
		if _, err := g.book.Buy(l, id); err == nil {
			rep.AutoPurchased = id
		}
	}

	policy := g.tokens.Policy()
	chance := policy.Chance(g.book.SpawnChanceBonus(l), eff.SpawnChanceMultiplier)
	if tok, ok := g.tokens.MaybeSpawn(now, g.src, chance, policy.TTL(eff.TokenLifetimeMultiplier)); ok {
		rep.Spawned = &tok
	}

	rep.Expired = g.tokens.Sweep(now)
	if eff.AutoCollect() {
		for _, tok := range rep.Expired {
			if g.src.Float64() < eff.AutoCollectChance {
				rep.AutoCollected = append(rep.AutoCollected, g.reward(tok.ID, true))
			}
		}
	}

	rep.Changed = !rep.Produced.IsZero() || rep.AutoPurchased != "" || rep.Spawned != nil || len(rep.Expired) > 0
	return rep
}

// Click performs the manual production action.
func (g *Game) Click(at model.Point) ClickResult {
	yield := g.book.Credit(&g.state.Ledger, g.book.ManualYield(&g.state.Ledger))
	return ClickResult{Yield: yield, At: at}
}

// Buy purchases one unit of a booster at its current price.
func (g *Game) Buy(id string) (decimal.Decimal, error) {
	return g.book.Buy(&g.state.Ledger, id)
}

// ToggleAutoBuy makes id the auto-purchase target, or clears the target
// when id already is it. It returns the new target.
func (g *Game) ToggleAutoBuy(id string) (string, error) {
	if _, ok := g.book.Booster(id); !ok {
		return g.state.Ledger.AutoPurchaseTarget, ErrUnknownBooster
	}
	l := &g.state.Ledger
	if l.AutoPurchaseTarget == id {
		l.AutoPurchaseTarget = ""
	} else {
		l.AutoPurchaseTarget = id
	}
	return l.AutoPurchaseTarget, nil
}

// CollectToken collects an active token manually. Collecting a token that
// was already collected or has expired is rejected with ErrUnknownToken.
func (g *Game) CollectToken(id uint64) (Collection, error) {
	if !g.tokens.Remove(id) {
		return Collection{}, ErrUnknownToken
	}
	return g.reward(id, false), nil
}

// reward credits one collected token: one unit of bonus currency, the
// dividend if unlocked, then either a random owned booster or the flat
// bonus.
func (g *Game) reward(id uint64, automatic bool) Collection {
	st := &g.state
	l := &st.Ledger
	eff := g.effects()
	c := Collection{TokenID: id, Automatic: automatic}

	st.TotalTokensCollected++
	st.SpendableTokens++

	if eff.DividendRate > 0 {
		c.Dividend = g.book.Credit(l, l.Balance.Mul(decimal.NewFromFloat(eff.DividendRate)))
	}

	owned := g.book.GrantableIDs(l)
	if len(owned) == 0 {
		c.Bonus = decimal.NewFromInt(g.bal.FlatBonus)
		g.book.Credit(l, c.Bonus)
		st.FlavorText = fmt.Sprintf("Special dividend! A one-off bonus of $%s has been paid out.", formatMoney(c.Bonus))
		return c
	}

	c.BoosterID = owned[rng.IntN(g.src, len(owned))]
	_ = g.book.Grant(l, c.BoosterID)
	b, _ := g.book.Booster(c.BoosterID)
	if automatic {
		st.FlavorText = fmt.Sprintf("Auto-collected! %s expands its business.", b.Name)
	} else {
		st.FlavorText = fmt.Sprintf("Investment success! %s expands its business.", b.Name)
	}
	return c
}

// Unlock buys a skill with bonus currency.
func (g *Game) Unlock(id string) (model.Skill, error) {
	s, err := g.skills.Unlock(&g.state, id)
	if errors.Is(err, skill.ErrInsufficientTokens) {
		return s, fmt.Errorf("%w: %s costs %d", ErrInsufficientTokens, id, s.Cost)
	}
	if err != nil {
		return s, err
	}
	g.state.FlavorText = fmt.Sprintf("Learned! The %s skill is now active.", s.Name)
	return s, nil
}

// Spin plays the roulette. The whole outcome is applied at once or not at
// all.
func (g *Game) Spin() (gamble.Outcome, error) {
	st := &g.state
	out, err := g.table.Spin(st.Ledger.Balance, st.SpendableTokens, st.SpinCount, g.src)
	if err != nil {
		return out, fmt.Errorf("%w: spin costs %d", ErrInsufficientTokens, out.Cost)
	}
	st.SpendableTokens -= out.Cost
	st.Ledger.Balance = out.NewBalance
	st.Ledger.LifetimeEarned = st.Ledger.LifetimeEarned.Add(out.Gain)
	st.SpinCount++
	st.LastMultiplier = out.Multiplier
	if out.Multiplier > 1 {
		st.FlavorText = fmt.Sprintf("Portfolio surged! Your assets grew x%d.", out.Multiplier)
	} else {
		st.FlavorText = "The roulette stops at x1. Your assets hold steady."
	}
	return out, nil
}

// SetFlavorText shows a generated headline.
func (g *Game) SetFlavorText(text string) {
	g.state.FlavorText = text
}

// FlavorTextFailed replaces the headline with a message describing why no
// headline could be fetched.
func (g *Game) FlavorTextFailed(kind FetchFailure, retryIn time.Duration) {
	switch kind {
	case FetchRateLimited:
		g.state.FlavorText = "Trading restrictions in place (15-minute break)."
	case FetchBlocked:
		mins := int((retryIn + time.Minute - 1) / time.Minute)
		g.state.FlavorText = fmt.Sprintf("Analysts are still at work... (%d min left)", max(mins, 1))
	default:
		g.state.FlavorText = "The market is closed for now..."
	}
}

// SetRegion updates the spawn region for future tokens.
func (g *Game) SetRegion(r model.Region) error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("engine: invalid region %vx%v", r.Width, r.Height)
	}
	g.tokens.SetRegion(r)
	return nil
}

// formatMoney renders whole currency units with thousands separators.
func formatMoney(v decimal.Decimal) string {
	return humanize.BigComma(v.Floor().BigInt())
}

// Snapshot builds the read-only view of the game at now. Version is left
// for the caller to fill.
func (g *Game) Snapshot(now time.Time) model.Snapshot {
	st := g.state.Clone()
	eff := g.effects()
	prices := g.book.Prices(&st.Ledger)
	return model.Snapshot{
		State:         st,
		Tokens:        g.tokens.Active(),
		Region:        g.tokens.Region(),
		EffectiveRate: st.Ledger.ProductionRate.Mul(decimal.NewFromFloat(eff.ProductionMultiplier)),
		ManualYield:   g.book.ManualYield(&st.Ledger),
		Prices:        prices,
		Affordable:    pricing.Affordability(st.Ledger.Balance, prices),
		SkillsVisible: st.TotalTokensCollected >= g.bal.SkillUnlockThreshold,
		GambleVisible: st.TotalTokensCollected >= g.bal.GambleUnlockThreshold,
		GambleCost:    g.table.Cost(st.SpinCount),
		TakenAt:       now,
	}
}
