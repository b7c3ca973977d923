// Package skill implements the meta-upgrade registry: the static skill
// catalog, the unlock transaction against secondary currency, and the
// effect multipliers other components read from the unlocked set.
package skill

import (
	"errors"

	"github.com/moneyclicker/idle-engine/internal/model"
)

var (
	ErrUnknownSkill       = errors.New("skill: unknown skill")
	ErrAlreadyUnlocked    = errors.New("skill: already unlocked")
	ErrInsufficientTokens = errors.New("skill: not enough bonus currency")
)

// Effects is the combined modification of engine constants by the
// unlocked skills. The zero value is not neutral; use Neutral.
type Effects struct {
	ProductionMultiplier    float64
	SpawnChanceMultiplier   float64
	TokenLifetimeMultiplier float64
	AutoCollectChance       float64 // 0 = auto-collect not unlocked
	DividendRate            float64 // 0 = no dividend on collection
}

// Neutral returns effects with every multiplier at 1 and every chance at 0.
func Neutral() Effects {
	return Effects{
		ProductionMultiplier:    1,
		SpawnChanceMultiplier:   1,
		TokenLifetimeMultiplier: 1,
	}
}

// AutoCollect reports whether expiring tokens may collect themselves.
func (e Effects) AutoCollect() bool {
	return e.AutoCollectChance > 0
}

// Registry is the immutable skill catalog.
type Registry struct {
	byID map[string]model.Skill
}

// NewRegistry indexes the catalog.
func NewRegistry(skills []model.Skill) *Registry {
	byID := make(map[string]model.Skill, len(skills))
	for _, s := range skills {
		byID[s.ID] = s
	}
	return &Registry{byID: byID}
}

// Unlock spends the skill's cost from the state's spendable bonus currency
// and records the id. The unlocked set is append-only: a skill is never
// recorded twice and never revoked. On error the state is unchanged.
func (r *Registry) Unlock(st *model.State, id string) (model.Skill, error) {
	s, ok := r.byID[id]
	if !ok {
		return model.Skill{}, ErrUnknownSkill
	}
	if st.HasSkill(id) {
		return s, ErrAlreadyUnlocked
	}
	if st.SpendableTokens < s.Cost {
		return s, ErrInsufficientTokens
	}
	st.SpendableTokens -= s.Cost
	st.UnlockedSkills = append(st.UnlockedSkills, id)
	return s, nil
}

// Effects folds the unlocked skills into engine modifiers. Multipliers of
// the same kind compound; chances of the same kind take the maximum.
// Unknown ids are ignored.
func (r *Registry) Effects(unlocked []string) Effects {
	e := Neutral()
	for _, id := range unlocked {
		s, ok := r.byID[id]
		if !ok {
			continue
		}
		f := s.Effect.Factor
		switch s.Effect.Kind {
		case model.EffectProductionMultiplier:
			e.ProductionMultiplier *= f
		case model.EffectSpawnChanceMultiplier:
			e.SpawnChanceMultiplier *= f
		case model.EffectTokenLifetimeMultiplier:
			e.TokenLifetimeMultiplier *= f
		case model.EffectAutoCollect:
			e.AutoCollectChance = max(e.AutoCollectChance, f)
		case model.EffectCollectDividend:
			e.DividendRate = max(e.DividendRate, f)
		}
	}
	return e
}
