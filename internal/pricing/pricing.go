// Package pricing implements the compounding booster cost curve and the
// aggregate rates derived from owned booster quantities.
//
// The model is stateless: quantities and catalogs are passed as arguments,
// never stored. All monetary values use shopspring/decimal, never float64.
// The growth factor is applied with exact integer-exponent arithmetic up to
// MaxOwned units; the curve is flat beyond that.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/moneyclicker/idle-engine/internal/model"
)

// MaxOwned is the largest owned count of a single booster. Prices are
// exact and strictly increasing up to it; PriceOf treats larger counts as
// MaxOwned. The exact power costs O(n) digits, so the cap also bounds the
// work of every snapshot.
const MaxOwned int64 = 10_000

var (
	// ErrBasePriceTooLow is returned when a base price is too small for
	// floor(base * 1.15^n) to be strictly increasing in n.
	ErrBasePriceTooLow = errors.New("pricing: base price must be at least MinBasePrice")

	// ErrNegativeIncrease is returned when a booster decreases a rate.
	ErrNegativeIncrease = errors.New("pricing: increase effects must be non-negative")

	// GrowthFactor is the per-unit price multiplier (1.15).
	GrowthFactor = decimal.New(115, -2)

	// MinBasePrice is the smallest base price for which every step of the
	// cost curve adds at least one whole currency unit (0.15 * 7 >= 1).
	MinBasePrice = decimal.NewFromInt(7)

	// BaseManualYield is the manual action yield with no boosters owned.
	BaseManualYield = decimal.NewFromInt(1)
)

// PriceOf returns the cost of the next unit of b when owned units are
// already held:
//
//	price = floor(basePrice * 1.15^owned)
//
// Negative owned counts are treated as zero and counts above MaxOwned as
// MaxOwned.
func PriceOf(b model.Booster, owned int64) decimal.Decimal {
	owned = min(max(owned, 0), MaxOwned)
	factor := GrowthFactor.Pow(decimal.NewFromInt(owned))
	return b.BasePrice.Mul(factor).Floor()
}

// CanAfford reports whether balance covers price.
func CanAfford(balance, price decimal.Decimal) bool {
	return balance.GreaterThanOrEqual(price)
}

// Affordability maps every priced booster to CanAfford.
func Affordability(balance decimal.Decimal, prices map[string]decimal.Decimal) map[string]bool {
	out := make(map[string]bool, len(prices))
	for id, p := range prices {
		out[id] = CanAfford(balance, p)
	}
	return out
}

// ProductionRate computes the passive production per second:
//
//	rate = Σ owned[b] * b.ProductionIncrease
//
// Boosters missing from owned count as zero; owned ids missing from the
// catalog contribute nothing.
func ProductionRate(owned map[string]int64, catalog []model.Booster) decimal.Decimal {
	rate := decimal.Zero
	for _, b := range catalog {
		n := owned[b.ID]
		if n <= 0 {
			continue
		}
		rate = rate.Add(b.ProductionIncrease.Mul(decimal.NewFromInt(n)))
	}
	return rate
}

// ManualYield returns the currency granted by one manual action:
//
//	yield = 1 + Σ owned[b] * b.ManualActionIncrease
func ManualYield(owned map[string]int64, catalog []model.Booster) decimal.Decimal {
	yield := BaseManualYield
	for _, b := range catalog {
		n := owned[b.ID]
		if n <= 0 || b.ManualActionIncrease.IsZero() {
			continue
		}
		yield = yield.Add(b.ManualActionIncrease.Mul(decimal.NewFromInt(n)))
	}
	return yield
}

// SpawnChanceBonus returns the additive bonus-token spawn probability
// contributed by owned boosters: Σ owned[b] * b.TokenSpawnChanceIncrease.
func SpawnChanceBonus(owned map[string]int64, catalog []model.Booster) float64 {
	var bonus float64
	for _, b := range catalog {
		n := owned[b.ID]
		if n <= 0 {
			continue
		}
		bonus += float64(n) * b.TokenSpawnChanceIncrease
	}
	return bonus
}

// Prices returns the current next-unit price of every catalog booster.
func Prices(owned map[string]int64, catalog []model.Booster) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(catalog))
	for _, b := range catalog {
		prices[b.ID] = PriceOf(b, owned[b.ID])
	}
	return prices
}

// ValidateBooster checks that b produces a strictly increasing cost curve
// and never decreases any rate.
func ValidateBooster(b model.Booster) error {
	if b.BasePrice.LessThan(MinBasePrice) {
		return ErrBasePriceTooLow
	}
	if b.ProductionIncrease.IsNegative() || b.ManualActionIncrease.IsNegative() || b.TokenSpawnChanceIncrease < 0 {
		return ErrNegativeIncrease
	}
	return nil
}
