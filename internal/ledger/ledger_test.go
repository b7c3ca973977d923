package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneyclicker/idle-engine/internal/model"
	"github.com/moneyclicker/idle-engine/internal/pricing"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func testBook() *Book {
	return NewBook([]model.Booster{
		{ID: "mouse", BasePrice: d(15), ManualActionIncrease: d(1)},
		{ID: "stand", BasePrice: d(100), ProductionIncrease: d(1)},
		{ID: "vending", BasePrice: d(1100), ProductionIncrease: d(8)},
	})
}

func TestBuy_DeductsPriceAndRecomputesRate(t *testing.T) {
	k := testBook()
	st := model.NewState(k.Catalog())
	st.Ledger.Balance = d(250)

	price, err := k.Buy(&st.Ledger, "stand")
	require.NoError(t, err)
	assert.True(t, price.Equal(d(100)))
	assert.True(t, st.Ledger.Balance.Equal(d(150)), "balance %s", st.Ledger.Balance)
	assert.Equal(t, int64(1), st.Ledger.Owned["stand"])
	assert.True(t, st.Ledger.ProductionRate.Equal(d(1)))

	price, err = k.Buy(&st.Ledger, "stand")
	require.NoError(t, err)
	assert.True(t, price.Equal(d(115)))
	assert.True(t, st.Ledger.Balance.Equal(d(35)))
	assert.True(t, st.Ledger.ProductionRate.Equal(d(2)))
}

func TestBuy_InsufficientFundsLeavesLedgerUnchanged(t *testing.T) {
	k := testBook()
	st := model.NewState(k.Catalog())
	st.Ledger.Balance = d(99)
	before := st.Clone()

	for range 5 {
		_, err := k.Buy(&st.Ledger, "stand")
		require.ErrorIs(t, err, ErrInsufficientFunds)
	}
	assert.Equal(t, before, st)
}

func TestBuy_UnknownBooster(t *testing.T) {
	k := testBook()
	st := model.NewState(k.Catalog())
	st.Ledger.Balance = d(1e9)

	_, err := k.Buy(&st.Ledger, "castle")
	require.ErrorIs(t, err, ErrUnknownBooster)
	assert.True(t, st.Ledger.Balance.Equal(d(1e9)))
}

func TestBuy_LifetimeUnaffectedBySpending(t *testing.T) {
	k := testBook()
	st := model.NewState(k.Catalog())
	k.Credit(&st.Ledger, d(500))

	_, err := k.Buy(&st.Ledger, "stand")
	require.NoError(t, err)
	assert.True(t, st.Ledger.LifetimeEarned.Equal(d(500)))
}

func TestCredit_IgnoresNonPositive(t *testing.T) {
	k := testBook()
	st := model.NewState(k.Catalog())
	k.Credit(&st.Ledger, d(10))
	k.Credit(&st.Ledger, d(-5))
	k.Credit(&st.Ledger, decimal.Zero)

	assert.True(t, st.Ledger.Balance.Equal(d(10)))
	assert.True(t, st.Ledger.LifetimeEarned.Equal(d(10)))
}

func TestGrant_RateMatchesRecomputedSum(t *testing.T) {
	k := testBook()
	st := model.NewState(k.Catalog())

	require.NoError(t, k.Grant(&st.Ledger, "vending"))
	require.NoError(t, k.Grant(&st.Ledger, "stand"))
	require.NoError(t, k.Grant(&st.Ledger, "vending"))

	want := pricing.ProductionRate(st.Ledger.Owned, k.Catalog())
	assert.True(t, st.Ledger.ProductionRate.Equal(want))
	assert.True(t, want.Equal(d(17)))
	assert.True(t, st.Ledger.Balance.IsZero(), "grants are free")
}

func TestGrant_NilOwnedMap(t *testing.T) {
	k := testBook()
	var l model.Ledger
	require.NoError(t, k.Grant(&l, "stand"))
	assert.Equal(t, int64(1), l.Owned["stand"])
}

func TestGrantableIDs_CatalogOrderBelowCap(t *testing.T) {
	k := testBook()
	st := model.NewState(k.Catalog())
	st.Ledger.Owned["vending"] = 2
	st.Ledger.Owned["mouse"] = 1
	assert.Equal(t, []string{"mouse", "vending"}, k.GrantableIDs(&st.Ledger))

	st.Ledger.Owned["mouse"] = pricing.MaxOwned
	assert.Equal(t, []string{"vending"}, k.GrantableIDs(&st.Ledger))
}

func TestBuyAndGrant_StopAtOwnedLimit(t *testing.T) {
	k := testBook()
	st := model.NewState(k.Catalog())
	st.Ledger.Owned["stand"] = pricing.MaxOwned
	st.Ledger.Balance = pricing.PriceOf(k.Catalog()[1], pricing.MaxOwned).Mul(d(2))
	k.Recompute(&st.Ledger)
	before := st.Clone()

	_, err := k.Buy(&st.Ledger, "stand")
	require.ErrorIs(t, err, ErrOwnedLimit)
	require.ErrorIs(t, k.Grant(&st.Ledger, "stand"), ErrOwnedLimit)
	assert.Equal(t, before, st)
}

func TestCredit_FloorsToMoneyScale(t *testing.T) {
	k := testBook()
	st := model.NewState(k.Catalog())

	got := k.Credit(&st.Ledger, decimal.RequireFromString("0.123456789999"))
	assert.Equal(t, "0.12345678", got.String())
	assert.True(t, st.Ledger.Balance.Equal(got))

	// Below the smallest unit nothing is credited.
	assert.True(t, k.Credit(&st.Ledger, decimal.RequireFromString("0.000000001")).IsZero())
	assert.True(t, st.Ledger.LifetimeEarned.Equal(got))
}

func TestCredit_RepeatedFractionsKeepScaleBounded(t *testing.T) {
	k := testBook()
	st := model.NewState(k.Catalog())
	k.Credit(&st.Ledger, d(2000))

	for range 5000 {
		k.Credit(&st.Ledger, st.Ledger.Balance.Mul(d(0.05)))
		k.Credit(&st.Ledger, d(1).Div(d(3)))
	}
	assert.GreaterOrEqual(t, st.Ledger.Balance.Exponent(), int32(-MoneyScale))
	assert.GreaterOrEqual(t, st.Ledger.LifetimeEarned.Exponent(), int32(-MoneyScale))
}

func TestManualYield_FromMouse(t *testing.T) {
	k := testBook()
	st := model.NewState(k.Catalog())
	st.Ledger.Owned["mouse"] = 4
	assert.True(t, k.ManualYield(&st.Ledger).Equal(d(5)))
}
