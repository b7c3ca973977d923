// Package model defines the core domain types shared across the game engine.
// All primary-currency values use shopspring/decimal — never float64 for money.
package model

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Booster is an immutable catalog entry bought with primary currency.
// Any combination of the three increase effects may be non-zero.
type Booster struct {
	ID                       string          `json:"id" yaml:"id"`
	Name                     string          `json:"name" yaml:"name"`
	Description              string          `json:"description" yaml:"description"`
	Icon                     string          `json:"icon" yaml:"icon"`
	BasePrice                decimal.Decimal `json:"base_price" yaml:"base_price"`
	ProductionIncrease       decimal.Decimal `json:"production_increase" yaml:"production_increase"`
	ManualActionIncrease     decimal.Decimal `json:"manual_action_increase" yaml:"manual_action_increase"`
	TokenSpawnChanceIncrease float64         `json:"token_spawn_chance_increase" yaml:"token_spawn_chance_increase"`
}

// EffectKind names what a skill modifies.
type EffectKind string

const (
	EffectProductionMultiplier    EffectKind = "production_multiplier"
	EffectSpawnChanceMultiplier   EffectKind = "spawn_chance_multiplier"
	EffectTokenLifetimeMultiplier EffectKind = "token_lifetime_multiplier"
	EffectAutoCollect             EffectKind = "auto_collect"     // Factor = per-token probability
	EffectCollectDividend         EffectKind = "collect_dividend" // Factor = share of balance
)

// Effect describes a skill's permanent modification of an engine constant.
type Effect struct {
	Kind   EffectKind `json:"kind" yaml:"kind"`
	Factor float64    `json:"factor" yaml:"factor"`
}

// Skill is a meta-upgrade bought once with secondary currency.
type Skill struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Icon        string `json:"icon" yaml:"icon"`
	Cost        int64  `json:"cost" yaml:"cost"`
	Effect      Effect `json:"effect" yaml:"effect"`
}

// Point is a position inside the presentation's spawn region.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Region is the bounding box supplied by the presentation layer.
type Region struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// BonusToken is a transient collectible. Tokens are never mutated after
// spawning; they are only removed.
type BonusToken struct {
	ID        uint64    `json:"id"`
	Position  Point     `json:"position"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Ledger holds the primary-currency side of a player's progression.
// ProductionRate is derived from Owned and is recomputed on every change.
type Ledger struct {
	Balance            decimal.Decimal  `json:"balance"`
	LifetimeEarned     decimal.Decimal  `json:"lifetime_earned"`
	Owned              map[string]int64 `json:"owned"`
	ProductionRate     decimal.Decimal  `json:"production_rate"`
	AutoPurchaseTarget string           `json:"auto_purchase_target,omitempty"` // "" = none
}

// State is the aggregate root: the unit of persistence and of snapshots.
type State struct {
	Ledger               Ledger   `json:"ledger"`
	TotalTokensCollected int64    `json:"total_tokens_collected"`
	SpendableTokens      int64    `json:"spendable_tokens"`
	UnlockedSkills       []string `json:"unlocked_skills"`
	SpinCount            int64    `json:"spin_count"`
	LastMultiplier       int      `json:"last_multiplier,omitempty"` // 0 = never spun
	FlavorText           string   `json:"flavor_text"`
}

// NewState returns the zero progression with one ownership entry per
// catalog booster.
func NewState(boosters []Booster) State {
	owned := make(map[string]int64, len(boosters))
	for _, b := range boosters {
		owned[b.ID] = 0
	}
	return State{
		Ledger: Ledger{
			Balance:        decimal.Zero,
			LifetimeEarned: decimal.Zero,
			Owned:          owned,
			ProductionRate: decimal.Zero,
		},
		UnlockedSkills: []string{},
	}
}

// HasSkill reports whether the skill id has been unlocked.
func (s *State) HasSkill(id string) bool {
	return slices.Contains(s.UnlockedSkills, id)
}

// Clone returns a deep copy safe to hand across goroutines.
func (s State) Clone() State {
	c := s
	c.Ledger.Owned = make(map[string]int64, len(s.Ledger.Owned))
	for k, v := range s.Ledger.Owned {
		c.Ledger.Owned[k] = v
	}
	c.UnlockedSkills = slices.Clone(s.UnlockedSkills)
	if c.UnlockedSkills == nil {
		c.UnlockedSkills = []string{}
	}
	return c
}

// Snapshot is the read-only view handed to the presentation layer after
// every mutation.
type Snapshot struct {
	Version       uint64                     `json:"version"`
	State         State                      `json:"state"`
	Tokens        []BonusToken               `json:"tokens"`
	Region        Region                     `json:"region"`         // where new tokens are placed
	EffectiveRate decimal.Decimal            `json:"effective_rate"` // production rate incl. skill multiplier
	ManualYield   decimal.Decimal            `json:"manual_yield"`
	Prices        map[string]decimal.Decimal `json:"prices"`
	Affordable    map[string]bool            `json:"affordable"`
	SkillsVisible bool                       `json:"skills_visible"`
	GambleVisible bool                       `json:"gamble_visible"`
	GambleCost    int64                      `json:"gamble_cost"`
	TakenAt       time.Time                  `json:"taken_at"`
}
