package gamble

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneyclicker/idle-engine/internal/rng"
)

func TestCost_EscalatesLinearly(t *testing.T) {
	tbl := DefaultTable()
	assert.Equal(t, int64(5), tbl.Cost(0))
	assert.Equal(t, int64(15), tbl.Cost(1))
	assert.Equal(t, int64(105), tbl.Cost(10))
	assert.Equal(t, int64(5), tbl.Cost(-1))
}

func TestDraw_CoversInclusiveRange(t *testing.T) {
	tbl := DefaultTable()
	seen := map[int]bool{}
	for _, s := range []float64{0, 0.2, 0.4, 0.6, 0.8, 0.999999} {
		m := tbl.Draw(rng.NewSequence(s))
		require.GreaterOrEqual(t, m, 1)
		require.LessOrEqual(t, m, 5)
		seen[m] = true
	}
	assert.Len(t, seen, 5)
}

func TestDraw_Uniform(t *testing.T) {
	tbl := DefaultTable()
	src := rng.New(7)
	counts := map[int]int{}
	const n = 50000
	for range n {
		counts[tbl.Draw(src)]++
	}
	for m := 1; m <= 5; m++ {
		assert.InDelta(t, n/5, counts[m], n*0.02, "multiplier %d", m)
	}
}

func TestSpin_Triples(t *testing.T) {
	tbl := DefaultTable()
	out, err := tbl.Spin(decimal.NewFromInt(100), 5, 0, rng.NewSequence(0.5))
	require.NoError(t, err)
	assert.Equal(t, 3, out.Multiplier)
	assert.Equal(t, int64(5), out.Cost)
	assert.True(t, out.NewBalance.Equal(decimal.NewFromInt(300)))
	assert.True(t, out.Gain.Equal(decimal.NewFromInt(200)))
}

func TestSpin_TimesOneGainsNothing(t *testing.T) {
	out := DefaultTable().Resolve(decimal.NewFromInt(100), 5, 1)
	assert.True(t, out.Gain.IsZero())
	assert.True(t, out.NewBalance.Equal(out.OldBalance))
}

func TestSpin_InsufficientTokensDrawsNothing(t *testing.T) {
	src := rng.NewSequence(0.5)
	_, err := DefaultTable().Spin(decimal.NewFromInt(100), 14, 1, src)
	require.ErrorIs(t, err, ErrInsufficientTokens)
	assert.Equal(t, 0, src.Draws())
}
