package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundCentsBankersRounding(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1.005", "1.00"}, // round-half-to-even: 1.00 is even at the cent
		{"1.015", "1.02"},
		{"1.025", "1.02"},
		{"2.5", "2.50"},
	}
	for _, c := range cases {
		in, err := Parse(c.in)
		require.NoError(t, err)
		got := RoundCents(in)
		assert.Equal(t, c.want, got.StringFixed(2), "RoundCents(%s)", c.in)
	}
}

func TestNewFeeModelRejectsMalformedConstant(t *testing.T) {
	_, err := NewFeeModel("not-a-number", "0.0154", "0.25")
	assert.Error(t, err)
}

func TestNetRevenueDeductsFeeAndPlatformCut(t *testing.T) {
	f, err := NewFeeModel("0.008", "0.0154", "0.25")
	require.NoError(t, err)

	grossCPM := decimal.NewFromFloat(2.0)
	net := f.NetRevenue(grossCPM, 100000, f.CleanIOFeePerImpression)

	// gross = 2.0 * 100000 / 1000 = 200
	// networkFee = 0.008 * 100000 = 800 -- exceeds gross, clamps to zero revenue
	assert.True(t, net.IsZero())
}

func TestNetRevenuePositiveCase(t *testing.T) {
	f, err := NewFeeModel("0.0001", "0.0001", "0.25")
	require.NoError(t, err)

	grossCPM := decimal.NewFromFloat(10.0)
	net := f.NetRevenue(grossCPM, 100000, f.CleanIOFeePerImpression)

	// gross = 10 * 100000/1000 = 1000
	// networkFee = 0.0001 * 100000 = 10
	// afterFee = 990, net = 990 * 0.75 = 742.5 -> banker's round -> 742.50 (even)
	assert.Equal(t, "742.50", net.StringFixed(2))
}

func TestSplitEqualSumsExactly(t *testing.T) {
	total, err := Parse("100.00")
	require.NoError(t, err)

	shares := SplitEqual(total, 3)
	require.Len(t, shares, 3)

	sum := Zero
	for _, s := range shares {
		sum = sum.Add(s)
	}
	assert.True(t, sum.Equal(total))
}

func TestSplitWeightedSumsExactly(t *testing.T) {
	total, err := Parse("100.00")
	require.NoError(t, err)
	w1, _ := Parse("1")
	w2, _ := Parse("2")
	w3, _ := Parse("3")

	shares := SplitWeighted(total, []Amount{w1, w2, w3})
	require.Len(t, shares, 3)

	sum := Zero
	for _, s := range shares {
		sum = sum.Add(s)
	}
	assert.True(t, sum.Equal(total))
	// The 3/6 weight share should be the largest.
	assert.True(t, shares[2].GreaterThanOrEqual(shares[1]))
	assert.True(t, shares[1].GreaterThanOrEqual(shares[0]))
}

func TestSplitWeightedAllZeroFallsBackToEqual(t *testing.T) {
	total, err := Parse("9.00")
	require.NoError(t, err)

	shares := SplitWeighted(total, []Amount{Zero, Zero, Zero})
	require.Len(t, shares, 3)
	for _, s := range shares {
		assert.Equal(t, "3.00", s.StringFixed(2))
	}
}
