package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneyclicker/idle-engine/internal/model"
	"github.com/moneyclicker/idle-engine/internal/pricing"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDefault_ReferenceSkillFactors(t *testing.T) {
	factors := map[string]float64{}
	for _, s := range Default().Skills {
		factors[s.ID] = s.Effect.Factor
	}
	assert.Equal(t, 1.10, factors[SkillMaster])
	assert.Equal(t, 1.25, factors[SkillLuckBoost])
	assert.Equal(t, 2.0, factors[SkillTime])
	assert.Equal(t, 0.5, factors[SkillAuto])
	assert.Equal(t, 0.05, factors[SkillDividend])
}

func TestParse_YAMLOverridesBoosters(t *testing.T) {
	data := []byte(`
boosters:
  - id: stand
    name: Stand
    base_price: 100
    production_increase: 1.5
  - id: magnet
    base_price: 250
    token_spawn_chance_increase: 0.002
`)
	c, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, c.Boosters, 2)

	assert.Equal(t, "stand", c.Boosters[0].ID)
	assert.Equal(t, "1.5", c.Boosters[0].ProductionIncrease.String())
	assert.Equal(t, 0.002, c.Boosters[1].TokenSpawnChanceIncrease)
	assert.Equal(t, "100", pricing.PriceOf(c.Boosters[0], 0).String())

	// Skills fall back to the reference set.
	assert.Len(t, c.Skills, len(Default().Skills))
}

func TestParse_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"duplicate booster", "boosters:\n  - {id: a, base_price: 10}\n  - {id: a, base_price: 20}\n"},
		{"cheap booster", "boosters:\n  - {id: a, base_price: 2}\n"},
		{"empty id", "boosters:\n  - {base_price: 20}\n"},
		{"unknown effect", "skills:\n  - {id: s, cost: 1, effect: {kind: teleport, factor: 1}}\n"},
		{"chance above one", "skills:\n  - {id: s, cost: 1, effect: {kind: auto_collect, factor: 1.5}}\n"},
		{"malformed", "boosters: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
skills:
  - id: luck_boost
    cost: 1
    effect:
      kind: spawn_chance_multiplier
      factor: 3
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.Len(t, c.Skills, 1)
	assert.Equal(t, model.EffectSpawnChanceMultiplier, c.Skills[0].Effect.Kind)
	assert.Equal(t, int64(1), c.Skills[0].Cost)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
