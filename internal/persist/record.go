// Package persist converts the player's progression to and from its saved
// form.
//
// Loading never fails: a missing, partial or corrupted save yields defaults
// for whatever could not be read, and ownership is merged against the
// current catalog so boosters added after the save start at zero.
package persist

import (
	"encoding/json"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/moneyclicker/idle-engine/internal/catalog"
	"github.com/moneyclicker/idle-engine/internal/ledger"
	"github.com/moneyclicker/idle-engine/internal/model"
	"github.com/moneyclicker/idle-engine/internal/pricing"
)

// Version of the save format written by Encode.
const Version = 1

// Record is the saved form of model.State. Pointer fields distinguish an
// absent field from a zero one.
type Record struct {
	Version              int              `json:"version"`
	Balance              *decimal.Decimal `json:"balance,omitempty"`
	LifetimeEarned       *decimal.Decimal `json:"lifetime_earned,omitempty"`
	Owned                map[string]int64 `json:"owned,omitempty"`
	AutoPurchaseTarget   *string          `json:"auto_purchase_target,omitempty"`
	TotalTokensCollected *int64           `json:"total_tokens_collected,omitempty"`
	SpendableTokens      *int64           `json:"spendable_tokens,omitempty"`
	UnlockedSkills       []string         `json:"unlocked_skills,omitempty"`
	SpinCount            *int64           `json:"spin_count,omitempty"`
	LastMultiplier       *int             `json:"last_multiplier,omitempty"`
	FlavorText           *string          `json:"flavor_text,omitempty"`
	SavedAt              *time.Time       `json:"saved_at,omitempty"`
}

// FromState captures st. The production rate is derived and not saved.
func FromState(st model.State, now time.Time) Record {
	st = st.Clone()
	return Record{
		Version:              Version,
		Balance:              &st.Ledger.Balance,
		LifetimeEarned:       &st.Ledger.LifetimeEarned,
		Owned:                st.Ledger.Owned,
		AutoPurchaseTarget:   &st.Ledger.AutoPurchaseTarget,
		TotalTokensCollected: &st.TotalTokensCollected,
		SpendableTokens:      &st.SpendableTokens,
		UnlockedSkills:       st.UnlockedSkills,
		SpinCount:            &st.SpinCount,
		LastMultiplier:       &st.LastMultiplier,
		FlavorText:           &st.FlavorText,
		SavedAt:              &now,
	}
}

// Encode serializes st.
func Encode(st model.State, now time.Time) ([]byte, error) {
	return json.Marshal(FromState(st, now))
}

// Decode reads a saved record field by field. Malformed input yields an
// empty record; a field of the wrong type is dropped on its own; unknown
// fields are ignored.
func Decode(data []byte) Record {
	var rec Record
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		if len(data) > 0 {
			slog.Warn("discarding unreadable save", "err", err)
		}
		return rec
	}

	field(fields, "version", &rec.Version)
	field(fields, "balance", &rec.Balance)
	field(fields, "lifetime_earned", &rec.LifetimeEarned)
	field(fields, "auto_purchase_target", &rec.AutoPurchaseTarget)
	field(fields, "total_tokens_collected", &rec.TotalTokensCollected)
	field(fields, "spendable_tokens", &rec.SpendableTokens)
	field(fields, "spin_count", &rec.SpinCount)
	field(fields, "last_multiplier", &rec.LastMultiplier)
	field(fields, "flavor_text", &rec.FlavorText)
	field(fields, "saved_at", &rec.SavedAt)
	rec.UnlockedSkills = stringList(fields["unlocked_skills"])
	rec.Owned = counts(fields["owned"])
	return rec
}

func field[T any](fields map[string]json.RawMessage, key string, dst *T) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		slog.Warn("discarding unreadable save field", "field", key, "err", err)
		return
	}
	*dst = v
}

// stringList keeps the string elements of a JSON array.
func stringList(raw json.RawMessage) []string {
	var items []json.RawMessage
	if raw == nil || json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		var s string
		if json.Unmarshal(it, &s) == nil {
			out = append(out, s)
		}
	}
	return out
}

// counts keeps the numeric entries of a JSON object, truncating fractions.
func counts(raw json.RawMessage) map[string]int64 {
	var items map[string]json.RawMessage
	if raw == nil || json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make(map[string]int64, len(items))
	for id, it := range items {
		var f float64
		if json.Unmarshal(it, &f) != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		if f >= math.MaxInt64 {
			out[id] = math.MaxInt64
			continue
		}
		out[id] = int64(f)
	}
	return out
}

// Restore rebuilds a progression from rec over the current catalog.
// Negative values are clamped to zero, owned counts to pricing.MaxOwned and
// money to ledger.MoneyScale; booster and skill ids no longer in the
// catalog are dropped.
func Restore(rec Record, cat catalog.Catalog) model.State {
	st := model.NewState(cat.Boosters)
	l := &st.Ledger

	if rec.Balance != nil && rec.Balance.IsPositive() {
		l.Balance = ledger.RoundMoney(*rec.Balance)
	}
	if rec.LifetimeEarned != nil && rec.LifetimeEarned.IsPositive() {
		l.LifetimeEarned = ledger.RoundMoney(*rec.LifetimeEarned)
	}
	for _, b := range cat.Boosters {
		if n := rec.Owned[b.ID]; n > 0 {
			l.Owned[b.ID] = min(n, pricing.MaxOwned)
		}
	}
	if rec.AutoPurchaseTarget != nil {
		if _, ok := l.Owned[*rec.AutoPurchaseTarget]; ok {
			l.AutoPurchaseTarget = *rec.AutoPurchaseTarget
		}
	}

	st.TotalTokensCollected = nonNegative(rec.TotalTokensCollected)
	st.SpendableTokens = nonNegative(rec.SpendableTokens)
	st.SpinCount = nonNegative(rec.SpinCount)
	if rec.LastMultiplier != nil && *rec.LastMultiplier > 0 {
		st.LastMultiplier = *rec.LastMultiplier
	}
	if rec.FlavorText != nil {
		st.FlavorText = *rec.FlavorText
	}

	known := make(map[string]bool, len(cat.Skills))
	for _, s := range cat.Skills {
		known[s.ID] = true
	}
	for _, id := range rec.UnlockedSkills {
		if known[id] && !slices.Contains(st.UnlockedSkills, id) {
			st.UnlockedSkills = append(st.UnlockedSkills, id)
		}
	}

	ledger.NewBook(cat.Boosters).Recompute(l)
	return st
}

// Load decodes and restores in one step.
func Load(data []byte, cat catalog.Catalog) model.State {
	return Restore(Decode(data), cat)
}

func nonNegative(v *int64) int64 {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}
