package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/moneyclicker/idle-engine/internal/model"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func booster(id string, base, prod float64) model.Booster {
	return model.Booster{ID: id, BasePrice: d(base), ProductionIncrease: d(prod)}
}

// --- PriceOf tests ---

func TestPriceOf_FirstUnitIsBasePrice(t *testing.T) {
	b := booster("stand", 100, 1)
	if got := PriceOf(b, 0); !got.Equal(d(100)) {
		t.Errorf("expected 100, got %s", got)
	}
}

func TestPriceOf_KnownValues(t *testing.T) {
	b := booster("mouse", 15, 0)
	tests := []struct {
		owned int64
		want  float64
	}{
		{0, 15},
		{1, 17},  // 17.25
		{2, 19},  // 19.8375
		{3, 22},  // 22.813125
		{10, 60}, // 60.683...
	}
	for _, tt := range tests {
		if got := PriceOf(b, tt.owned); !got.Equal(d(tt.want)) {
			t.Errorf("PriceOf(15, %d) = %s, want %v", tt.owned, got, tt.want)
		}
	}
}

func TestPriceOf_StrictlyIncreasing(t *testing.T) {
	for _, base := range []float64{7, 15, 100, 1100, 12000} {
		b := booster("b", base, 0)
		prev := PriceOf(b, 0)
		for n := int64(1); n <= 300; n++ {
			next := PriceOf(b, n)
			if next.LessThanOrEqual(prev) {
				t.Fatalf("base %v: price(%d)=%s not > price(%d)=%s", base, n, next, n-1, prev)
			}
			prev = next
		}
	}
}

func TestPriceOf_LargeExponentNoOverflow(t *testing.T) {
	b := booster("b", 15, 0)
	// 1.15^10000 is far beyond float64 range (~1e607).
	low := PriceOf(b, MaxOwned-1)
	high := PriceOf(b, MaxOwned)
	if !high.GreaterThan(low) {
		t.Errorf("expected strict increase up to MaxOwned")
	}
	if high.Exponent() > 0 || len(high.String()) < 600 {
		t.Errorf("expected a ~608 digit integer price, got %d chars", len(high.String()))
	}
}

func TestPriceOf_SaturatesAboveMaxOwned(t *testing.T) {
	b := booster("b", 100, 0)
	atCap := PriceOf(b, MaxOwned)

	done := make(chan decimal.Decimal, 1)
	go func() { done <- PriceOf(b, 1_000_000_000_000) }()
	select {
	case got := <-done:
		if !got.Equal(atCap) {
			t.Errorf("expected the MaxOwned price beyond the cap")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("PriceOf(1e12) did not saturate")
	}
}

func TestPriceOf_NegativeOwnedTreatedAsZero(t *testing.T) {
	b := booster("b", 50, 0)
	if got := PriceOf(b, -3); !got.Equal(d(50)) {
		t.Errorf("expected 50, got %s", got)
	}
}

func TestCanAfford(t *testing.T) {
	price := PriceOf(booster("b", 100, 0), 0)
	if !CanAfford(d(100), price) {
		t.Error("exact balance should afford")
	}
	if CanAfford(d(99.99), price) {
		t.Error("short balance should not afford")
	}
}

func TestAffordability(t *testing.T) {
	got := Affordability(d(150), map[string]decimal.Decimal{"a": d(100), "b": d(150), "c": d(151)})
	want := map[string]bool{"a": true, "b": true, "c": false}
	for id, ok := range want {
		if got[id] != ok {
			t.Errorf("%s: got %v, want %v", id, got[id], ok)
		}
	}
}

// --- Rate tests ---

func TestProductionRate_SumsOwned(t *testing.T) {
	catalog := []model.Booster{
		booster("a", 100, 1),
		booster("b", 1100, 8),
		booster("c", 12000, 47),
	}
	owned := map[string]int64{"a": 3, "b": 2, "ghost": 99}
	if got := ProductionRate(owned, catalog); !got.Equal(d(19)) {
		t.Errorf("expected 19, got %s", got)
	}
}

func TestProductionRate_EmptyIsZero(t *testing.T) {
	if got := ProductionRate(nil, nil); !got.IsZero() {
		t.Errorf("expected 0, got %s", got)
	}
}

func TestManualYield(t *testing.T) {
	catalog := []model.Booster{
		{ID: "mouse", BasePrice: d(15), ManualActionIncrease: d(1)},
		booster("a", 100, 1),
	}
	tests := []struct {
		name  string
		owned map[string]int64
		want  float64
	}{
		{"none owned", map[string]int64{}, 1},
		{"three mice", map[string]int64{"mouse": 3}, 4},
		{"producer ignored", map[string]int64{"a": 10}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ManualYield(tt.owned, catalog); !got.Equal(d(tt.want)) {
				t.Errorf("expected %v, got %s", tt.want, got)
			}
		})
	}
}

func TestSpawnChanceBonus(t *testing.T) {
	catalog := []model.Booster{
		{ID: "magnet", BasePrice: d(500), TokenSpawnChanceIncrease: 0.001},
	}
	got := SpawnChanceBonus(map[string]int64{"magnet": 4}, catalog)
	if got < 0.00399 || got > 0.00401 {
		t.Errorf("expected 0.004, got %v", got)
	}
}

func TestPrices_CoversCatalog(t *testing.T) {
	catalog := []model.Booster{booster("a", 100, 1), booster("b", 20, 1)}
	prices := Prices(map[string]int64{"a": 1}, catalog)
	if len(prices) != 2 {
		t.Fatalf("expected 2 prices, got %d", len(prices))
	}
	if !prices["a"].Equal(d(115)) {
		t.Errorf("expected a=115, got %s", prices["a"])
	}
	if !prices["b"].Equal(d(20)) {
		t.Errorf("expected b=20, got %s", prices["b"])
	}
}

// --- Validation ---

func TestValidateBooster(t *testing.T) {
	tests := []struct {
		name string
		b    model.Booster
		want error
	}{
		{"valid", booster("a", 15, 1), nil},
		{"base too low", booster("a", 6, 1), ErrBasePriceTooLow},
		{"negative production", booster("a", 15, -1), ErrNegativeIncrease},
		{"negative chance", model.Booster{ID: "m", BasePrice: d(15), TokenSpawnChanceIncrease: -0.1}, ErrNegativeIncrease},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateBooster(tt.b); err != tt.want {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
