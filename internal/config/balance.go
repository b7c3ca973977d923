package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/moneyclicker/idle-engine/internal/gamble"
	"github.com/moneyclicker/idle-engine/internal/token"
)

// Balance holds gameplay balance configuration
type Balance struct {
	// Bonus tokens
	BaseSpawnChance float64       `yaml:"base_spawn_chance" json:"base_spawn_chance"`
	MaxSpawnChance  float64       `yaml:"max_spawn_chance" json:"max_spawn_chance"`
	TokenLifetime   time.Duration `yaml:"token_lifetime" json:"token_lifetime"`
	FlatBonus       int64         `yaml:"flat_bonus" json:"flat_bonus"`

	// Visibility gates
	SkillUnlockThreshold  int64 `yaml:"skill_unlock_threshold" json:"skill_unlock_threshold"`
	GambleUnlockThreshold int64 `yaml:"gamble_unlock_threshold" json:"gamble_unlock_threshold"`

	// Roulette
	GambleBaseCost      int64 `yaml:"gamble_base_cost" json:"gamble_base_cost"`
	GambleCostStep      int64 `yaml:"gamble_cost_step" json:"gamble_cost_step"`
	GambleMinMultiplier int   `yaml:"gamble_min_multiplier" json:"gamble_min_multiplier"`
	GambleMaxMultiplier int   `yaml:"gamble_max_multiplier" json:"gamble_max_multiplier"`

	// Flavor text
	NewsCooldown     time.Duration `yaml:"news_cooldown" json:"news_cooldown"`
	NewsBlackout     time.Duration `yaml:"news_blackout" json:"news_blackout"`
	NewsTimeout      time.Duration `yaml:"news_timeout" json:"news_timeout"`
	FallbackRotation time.Duration `yaml:"fallback_rotation" json:"fallback_rotation"`
}

// DefaultBalance returns the reference balance configuration.
func DefaultBalance() Balance {
	return Balance{
		BaseSpawnChance:       0.002,
		MaxSpawnChance:        0.5,
		TokenLifetime:         5 * time.Second,
		FlatBonus:             1000,
		SkillUnlockThreshold:  3,
		GambleUnlockThreshold: 10,
		GambleBaseCost:        5,
		GambleCostStep:        10,
		GambleMinMultiplier:   1,
		GambleMaxMultiplier:   5,
		NewsCooldown:          5 * time.Minute,
		NewsBlackout:          15 * time.Minute,
		NewsTimeout:           20 * time.Second,
		FallbackRotation:      time.Minute,
	}
}

// LoadBalance reads a YAML balance file over the defaults: keys absent from
// the file keep their reference values.
func LoadBalance(path string) (Balance, error) {
	b := DefaultBalance()
	if path == "" {
		return b, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Balance{}, fmt.Errorf("read balance %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Balance{}, fmt.Errorf("parse balance %s: %w", path, err)
	}
	if err := b.Validate(); err != nil {
		return Balance{}, err
	}
	return b, nil
}

// Validate rejects constants that would break engine invariants.
func (b Balance) Validate() error {
	switch {
	case b.BaseSpawnChance < 0 || b.BaseSpawnChance > 1:
		return fmt.Errorf("balance: base_spawn_chance must be within [0,1]")
	case b.MaxSpawnChance < 0 || b.MaxSpawnChance > 1:
		return fmt.Errorf("balance: max_spawn_chance must be within [0,1]")
	case b.TokenLifetime <= 0:
		return fmt.Errorf("balance: token_lifetime must be positive")
	case b.FlatBonus < 0:
		return fmt.Errorf("balance: flat_bonus must not be negative")
	case b.GambleBaseCost < 0 || b.GambleCostStep < 0:
		return fmt.Errorf("balance: gamble costs must not be negative")
	case b.GambleMinMultiplier < 1 || b.GambleMaxMultiplier < b.GambleMinMultiplier:
		return fmt.Errorf("balance: gamble multipliers must satisfy 1 <= min <= max")
	}
	return nil
}

// TokenPolicy derives the bonus-token spawn policy.
func (b Balance) TokenPolicy() token.Policy {
	p := token.DefaultPolicy()
	p.BaseChance = b.BaseSpawnChance
	p.MaxChance = b.MaxSpawnChance
	p.Lifetime = b.TokenLifetime
	return p
}

// GambleTable derives the roulette constants.
func (b Balance) GambleTable() gamble.Table {
	return gamble.Table{
		BaseCost:      b.GambleBaseCost,
		CostStep:      b.GambleCostStep,
		MinMultiplier: b.GambleMinMultiplier,
		MaxMultiplier: b.GambleMaxMultiplier,
	}
}
