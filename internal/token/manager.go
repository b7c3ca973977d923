// Package token manages the lifecycle of bonus tokens: the spawn-chance
// policy, spawning inside the presentation's region, expiry sweeps and
// removal on collection.
//
// Token ids are assigned monotonically and never reused, so removing an id
// twice is a harmless no-op. A Manager is not safe for concurrent use; the
// engine serializes access.
package token

import (
	"math"
	"sort"
	"time"

	"github.com/moneyclicker/idle-engine/internal/model"
	"github.com/moneyclicker/idle-engine/internal/rng"
)

// Policy holds the spawn constants.
type Policy struct {
	BaseChance float64       // per-tick chance before boosters and skills
	MaxChance  float64       // cap applied after all modifiers
	Lifetime   time.Duration // token lifetime before skill modifiers
	Margin     float64       // minimum distance from the region edge
	AnchorY    float64       // vertical centre of the spawn band
	SpreadY    float64       // vertical spread of the spawn band
	SpreadX    float64       // horizontal spread as a share of region width
}

// DefaultPolicy returns the reference constants.
func DefaultPolicy() Policy {
	return Policy{
		BaseChance: 0.002,
		MaxChance:  0.5,
		Lifetime:   5 * time.Second,
		Margin:     40,
		AnchorY:    240,
		SpreadY:    300,
		SpreadX:    0.8,
	}
}

// Chance computes the per-tick spawn probability:
//
//	min(MaxChance, (BaseChance + boosterBonus) * luck)
func (p Policy) Chance(boosterBonus, luck float64) float64 {
	c := (p.BaseChance + boosterBonus) * luck
	if p.MaxChance > 0 && c > p.MaxChance {
		c = p.MaxChance
	}
	return math.Max(0, c)
}

// TTL returns the token lifetime under the given duration multiplier.
func (p Policy) TTL(durationMultiplier float64) time.Duration {
	return time.Duration(float64(p.Lifetime) * durationMultiplier)
}

// Manager owns the active token set.
type Manager struct {
	policy Policy
	region model.Region
	nextID uint64
	active map[uint64]model.BonusToken
}

// NewManager creates an empty token manager.
func NewManager(policy Policy, region model.Region) *Manager {
	return &Manager{
		policy: policy,
		region: region,
		nextID: 1,
		active: make(map[uint64]model.BonusToken),
	}
}

// Policy returns the spawn constants.
func (m *Manager) Policy() Policy {
	return m.policy
}

// SetRegion replaces the spawn region for future tokens.
func (m *Manager) SetRegion(r model.Region) {
	m.region = r
}

// Region returns the current spawn region.
func (m *Manager) Region() model.Region {
	return m.region
}

// MaybeSpawn draws one sample and spawns a token when it falls below chance.
func (m *Manager) MaybeSpawn(now time.Time, src rng.Source, chance float64, ttl time.Duration) (model.BonusToken, bool) {
	if src.Float64() >= chance {
		return model.BonusToken{}, false
	}
	return m.Spawn(now, src, ttl), true
}

// Spawn creates a token expiring ttl after now, positioned inside the region.
func (m *Manager) Spawn(now time.Time, src rng.Source, ttl time.Duration) model.BonusToken {
	tok := model.BonusToken{
		ID:        m.nextID,
		Position:  m.position(src),
		ExpiresAt: now.Add(ttl),
	}
	m.nextID++
	m.active[tok.ID] = tok
	return tok
}

// position places a token around the horizontal centre of the region and
// the vertical anchor, clamped to the margin.
func (m *Manager) position(src rng.Source) model.Point {
	w, h := m.region.Width, m.region.Height
	x := w/2 + (src.Float64()-0.5)*w*m.policy.SpreadX
	y := m.policy.AnchorY + (src.Float64()-0.5)*m.policy.SpreadY
	return model.Point{
		X: clamp(x, m.policy.Margin, w-m.policy.Margin),
		Y: clamp(y, m.policy.Margin, h-m.policy.Margin),
	}
}

// clamp bounds v to [lo, hi]; when the region is narrower than two margins
// it collapses onto the midpoint.
func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return (lo + hi) / 2
	}
	return math.Max(lo, math.Min(hi, v))
}

// Sweep removes and returns every token whose expiry is at or before now,
// ordered by id.
func (m *Manager) Sweep(now time.Time) []model.BonusToken {
	var expired []model.BonusToken
	for id, tok := range m.active {
		if !tok.ExpiresAt.After(now) {
			expired = append(expired, tok)
			delete(m.active, id)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })
	return expired
}

// Remove deletes the token and reports whether it was still active.
func (m *Manager) Remove(id uint64) bool {
	if _, ok := m.active[id]; !ok {
		return false
	}
	delete(m.active, id)
	return true
}

// Active returns the active tokens ordered by id.
func (m *Manager) Active() []model.BonusToken {
	out := make([]model.BonusToken, 0, len(m.active))
	for _, tok := range m.active {
		out = append(out, tok)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of active tokens.
func (m *Manager) Len() int {
	return len(m.active)
}
