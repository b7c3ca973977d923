// Package catalog defines the reference booster and skill catalogs and
// loads replacement catalogs from YAML.
package catalog

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/moneyclicker/idle-engine/internal/model"
	"github.com/moneyclicker/idle-engine/internal/pricing"
)

// Reference skill ids.
const (
	SkillMaster    = "skill_master"
	SkillLuckBoost = "luck_boost"
	SkillTime      = "time_stretch"
	SkillAuto      = "auto_collect"
	SkillDividend  = "dividend_frenzy"
)

var (
	ErrEmptyID      = errors.New("catalog: entry id must not be empty")
	ErrDuplicateID  = errors.New("catalog: duplicate id")
	ErrInvalidSkill = errors.New("catalog: invalid skill")
)

// Catalog is the immutable set of boosters and skills defined at startup.
type Catalog struct {
	Boosters []model.Booster `yaml:"boosters" json:"boosters"`
	Skills   []model.Skill   `yaml:"skills" json:"skills"`
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Default returns the reference catalog.
func Default() Catalog {
	return Catalog{
		Boosters: []model.Booster{
			{ID: "clicker", Name: "Premium Mouse", Description: "Every click earns one more dollar.", Icon: "fa-computer-mouse",
				BasePrice: dec("15"), ManualActionIncrease: dec("1")},
			{ID: "lemonade", Name: "Lemonade Stand", Description: "A humble start in retail.", Icon: "fa-lemon",
				BasePrice: dec("100"), ProductionIncrease: dec("1")},
			{ID: "magnet", Name: "Lucky Magnet", Description: "Attracts golden coins more often.", Icon: "fa-magnet",
				BasePrice: dec("500"), TokenSpawnChanceIncrease: 0.001},
			{ID: "vending", Name: "Vending Machine", Description: "Sells snacks while you sleep.", Icon: "fa-cash-register",
				BasePrice: dec("1100"), ProductionIncrease: dec("8")},
			{ID: "cafe", Name: "Coffee Shop", Description: "Caffeine is a reliable business.", Icon: "fa-mug-hot",
				BasePrice: dec("12000"), ProductionIncrease: dec("47")},
			{ID: "startup", Name: "Tech Startup", Description: "Disrupts something every quarter.", Icon: "fa-rocket",
				BasePrice: dec("130000"), ProductionIncrease: dec("260")},
			{ID: "bank", Name: "Private Bank", Description: "Lends your money back to you.", Icon: "fa-building-columns",
				BasePrice: dec("1400000"), ProductionIncrease: dec("1400")},
			{ID: "exchange", Name: "Stock Exchange", Description: "Owns the market outright.", Icon: "fa-chart-line",
				BasePrice: dec("20000000"), ProductionIncrease: dec("7800")},
		},
		Skills: []model.Skill{
			{ID: SkillLuckBoost, Name: "Lucky Streak", Description: "Golden coins appear 25% more often.", Icon: "fa-clover",
				Cost: 3, Effect: model.Effect{Kind: model.EffectSpawnChanceMultiplier, Factor: 1.25}},
			{ID: SkillTime, Name: "Time Stretch", Description: "Golden coins stay twice as long.", Icon: "fa-hourglass-half",
				Cost: 3, Effect: model.Effect{Kind: model.EffectTokenLifetimeMultiplier, Factor: 2.0}},
			{ID: SkillMaster, Name: "Market Master", Description: "All passive income +10%.", Icon: "fa-crown",
				Cost: 5, Effect: model.Effect{Kind: model.EffectProductionMultiplier, Factor: 1.10}},
			{ID: SkillAuto, Name: "Auto Collector", Description: "Expiring coins have a 50% chance to collect themselves.", Icon: "fa-robot",
				Cost: 8, Effect: model.Effect{Kind: model.EffectAutoCollect, Factor: 0.5}},
			{ID: SkillDividend, Name: "Dividend Frenzy", Description: "Each coin also pays 5% of your balance.", Icon: "fa-sack-dollar",
				Cost: 10, Effect: model.Effect{Kind: model.EffectCollectDividend, Factor: 0.05}},
		},
	}
}

// Load reads a catalog from a YAML file. Sections missing from the file
// fall back to the reference catalog.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	def := Default()
	if len(c.Boosters) == 0 {
		c.Boosters = def.Boosters
	}
	if len(c.Skills) == 0 {
		c.Skills = def.Skills
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate checks id uniqueness, the pricing constraints of every booster
// and the effect descriptor of every skill.
func (c Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Boosters))
	for _, b := range c.Boosters {
		if b.ID == "" {
			return ErrEmptyID
		}
		if seen[b.ID] {
			return fmt.Errorf("%w: booster %s", ErrDuplicateID, b.ID)
		}
		seen[b.ID] = true
		if err := pricing.ValidateBooster(b); err != nil {
			return fmt.Errorf("booster %s: %w", b.ID, err)
		}
	}

	seen = make(map[string]bool, len(c.Skills))
	for _, s := range c.Skills {
		if s.ID == "" {
			return ErrEmptyID
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: skill %s", ErrDuplicateID, s.ID)
		}
		seen[s.ID] = true
		if s.Cost < 0 {
			return fmt.Errorf("%w: %s has negative cost", ErrInvalidSkill, s.ID)
		}
		switch s.Effect.Kind {
		case model.EffectProductionMultiplier, model.EffectSpawnChanceMultiplier, model.EffectTokenLifetimeMultiplier:
			if s.Effect.Factor <= 0 {
				return fmt.Errorf("%w: %s multiplier must be positive", ErrInvalidSkill, s.ID)
			}
		case model.EffectAutoCollect, model.EffectCollectDividend:
			if s.Effect.Factor < 0 || s.Effect.Factor > 1 {
				return fmt.Errorf("%w: %s factor must be within [0,1]", ErrInvalidSkill, s.ID)
			}
		default:
			return fmt.Errorf("%w: %s has unknown effect %q", ErrInvalidSkill, s.ID, s.Effect.Kind)
		}
	}
	return nil
}
