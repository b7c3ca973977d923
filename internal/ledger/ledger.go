// Package ledger implements the primary-currency operations on a player's
// production ledger. Every ownership change recomputes the production rate
// eagerly, so the rate stored on model.Ledger is never stale.
package ledger

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/moneyclicker/idle-engine/internal/model"
	"github.com/moneyclicker/idle-engine/internal/pricing"
)

var (
	// ErrInsufficientFunds is returned when the balance does not cover a price.
	ErrInsufficientFunds = errors.New("ledger: insufficient balance")

	// ErrUnknownBooster is returned for booster ids not in the catalog.
	ErrUnknownBooster = errors.New("ledger: unknown booster")

	// ErrOwnedLimit is returned when a booster is already held MaxOwned times.
	ErrOwnedLimit = errors.New("ledger: booster owned limit reached")
)

// MoneyScale is the number of fractional digits kept on credited money.
// Amounts are floored to it, so products of fractional rates never grow
// the balance's precision.
const MoneyScale = 8

// RoundMoney floors amount to MoneyScale fractional digits.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.RoundFloor(MoneyScale)
}

// Book applies ledger operations against a fixed booster catalog.
type Book struct {
	catalog []model.Booster
	byID    map[string]model.Booster
}

// NewBook creates a Book over the given catalog. The catalog is not copied
// and must not be modified afterwards.
func NewBook(catalog []model.Booster) *Book {
	byID := make(map[string]model.Booster, len(catalog))
	for _, b := range catalog {
		byID[b.ID] = b
	}
	return &Book{catalog: catalog, byID: byID}
}

// Catalog returns the booster catalog in display order.
func (k *Book) Catalog() []model.Booster {
	return k.catalog
}

// Booster looks up a catalog entry.
func (k *Book) Booster(id string) (model.Booster, bool) {
	b, ok := k.byID[id]
	return b, ok
}

// Credit adds amount, floored to MoneyScale, to both balance and lifetime
// earned and returns what was credited. Zero and negative amounts are
// ignored so lifetime earned never decreases.
func (k *Book) Credit(l *model.Ledger, amount decimal.Decimal) decimal.Decimal {
	amount = RoundMoney(amount)
	if !amount.IsPositive() {
		return decimal.Zero
	}
	l.Balance = l.Balance.Add(amount)
	l.LifetimeEarned = l.LifetimeEarned.Add(amount)
	return amount
}

// Buy purchases one unit of the booster at its current price. On error the
// ledger is left untouched.
func (k *Book) Buy(l *model.Ledger, id string) (decimal.Decimal, error) {
	b, ok := k.byID[id]
	if !ok {
		return decimal.Zero, ErrUnknownBooster
	}
	owned := l.Owned[id]
	if owned >= pricing.MaxOwned {
		return decimal.Zero, ErrOwnedLimit
	}
	price := pricing.PriceOf(b, owned)
	if !pricing.CanAfford(l.Balance, price) {
		return price, ErrInsufficientFunds
	}
	l.Balance = l.Balance.Sub(price)
	k.grant(l, id)
	return price, nil
}

// Grant adds one unit of the booster without charging for it. A booster
// held MaxOwned times is left as is.
func (k *Book) Grant(l *model.Ledger, id string) error {
	if _, ok := k.byID[id]; !ok {
		return ErrUnknownBooster
	}
	if l.Owned[id] >= pricing.MaxOwned {
		return ErrOwnedLimit
	}
	k.grant(l, id)
	return nil
}

func (k *Book) grant(l *model.Ledger, id string) {
	if l.Owned == nil {
		l.Owned = make(map[string]int64, len(k.catalog))
	}
	l.Owned[id]++
	k.Recompute(l)
}

// Recompute refreshes the derived production rate from ownership.
func (k *Book) Recompute(l *model.Ledger) {
	l.ProductionRate = pricing.ProductionRate(l.Owned, k.catalog)
}

// GrantableIDs returns the catalog ids with a positive owned count below
// MaxOwned, in catalog order, so that random selection over them is
// reproducible.
func (k *Book) GrantableIDs(l *model.Ledger) []string {
	var ids []string
	for _, b := range k.catalog {
		if n := l.Owned[b.ID]; n > 0 && n < pricing.MaxOwned {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// ManualYield returns the value of one manual action for this ledger.
func (k *Book) ManualYield(l *model.Ledger) decimal.Decimal {
	return pricing.ManualYield(l.Owned, k.catalog)
}

// SpawnChanceBonus returns the additive token spawn chance from boosters.
func (k *Book) SpawnChanceBonus(l *model.Ledger) float64 {
	return pricing.SpawnChanceBonus(l.Owned, k.catalog)
}

// Prices returns the next-unit price for every catalog booster.
func (k *Book) Prices(l *model.Ledger) map[string]decimal.Decimal {
	return pricing.Prices(l.Owned, k.catalog)
}
