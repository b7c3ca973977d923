// Package gamble implements the roulette: an escalating-cost spin paid in
// bonus currency that multiplies the primary balance by a random integer.
//
// The package computes the outcome; applying it to the player's state is
// the engine's job and happens as one atomic transition.
package gamble

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/moneyclicker/idle-engine/internal/rng"
)

// ErrInsufficientTokens is returned when spendable bonus currency does not
// cover the spin cost.
var ErrInsufficientTokens = errors.New("gamble: not enough bonus currency")

// Table holds the roulette constants.
type Table struct {
	BaseCost      int64
	CostStep      int64
	MinMultiplier int
	MaxMultiplier int
}

// DefaultTable returns the reference roulette: base cost 5, +10 per prior
// spin, multiplier uniform in [1, 5].
func DefaultTable() Table {
	return Table{
		BaseCost:      5,
		CostStep:      10,
		MinMultiplier: 1,
		MaxMultiplier: 5,
	}
}

// Cost returns the price of the next spin after spins prior spins.
func (t Table) Cost(spins int64) int64 {
	if spins < 0 {
		spins = 0
	}
	return t.BaseCost + spins*t.CostStep
}

// Draw picks a uniform integer multiplier in [MinMultiplier, MaxMultiplier].
func (t Table) Draw(src rng.Source) int {
	span := t.MaxMultiplier - t.MinMultiplier + 1
	if span <= 1 {
		return t.MinMultiplier
	}
	return t.MinMultiplier + rng.IntN(src, span)
}

// Outcome is the full result of one spin, computed before anything is
// applied.
type Outcome struct {
	Cost       int64
	Multiplier int
	OldBalance decimal.Decimal
	NewBalance decimal.Decimal
	Gain       decimal.Decimal // NewBalance - OldBalance, never negative
}

// Spin prices the next spin and resolves it against balance. On error no
// sample is drawn.
func (t Table) Spin(balance decimal.Decimal, spendable, spins int64, src rng.Source) (Outcome, error) {
	cost := t.Cost(spins)
	if spendable < cost {
		return Outcome{Cost: cost}, ErrInsufficientTokens
	}
	return t.Resolve(balance, cost, t.Draw(src)), nil
}

// Resolve applies a known multiplier to balance.
func (t Table) Resolve(balance decimal.Decimal, cost int64, multiplier int) Outcome {
	next := balance.Mul(decimal.NewFromInt(int64(multiplier)))
	gain := next.Sub(balance)
	if gain.IsNegative() {
		gain = decimal.Zero
	}
	return Outcome{
		Cost:       cost,
		Multiplier: multiplier,
		OldBalance: balance,
		NewBalance: next,
		Gain:       gain,
	}
}
