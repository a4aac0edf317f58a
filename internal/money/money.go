// Package money implements HearthForge's payout fee model on top of
// github.com/shopspring/decimal. All payout/fee arithmetic goes through
// here; float64 is never used for currency, per the platform's invariant
// that monetary math must be exact and use banker's rounding at the cent.
package money

import (
	"github.com/shopspring/decimal"
)

// Amount is a non-negative or signed monetary value, always base-10 exact.
type Amount = decimal.Decimal

// Zero is the additive identity.
var Zero = decimal.Zero

// Parse parses a decimal string (e.g. a config value like "0.008") into an
// Amount. It returns an error for malformed input rather than silently
// truncating, since a bad fee constant would otherwise corrupt every payout.
func Parse(s string) (Amount, error) {
	return decimal.NewFromString(s)
}

// MustParse is Parse but panics on error; intended for constants validated
// once at startup (config.finalize), never for user-supplied input.
func MustParse(s string) Amount {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic("money: invalid decimal constant " + s + ": " + err.Error())
	}
	return d
}

// RoundCents rounds a to 2 decimal places using banker's rounding
// (round-half-to-even), matching the original system's rounding mode for
// all payout splits and fee deductions.
func RoundCents(a Amount) Amount {
	return a.RoundBank(2)
}

// FeeModel holds the constants that drive the ad-revenue payout pipeline's
// fee deduction: a CPM-style fee (charged per 1000 impressions) from each of
// the two ad networks, plus a platform cut taken off what remains.
type FeeModel struct {
	CleanIOFeePerImpression Amount // e.g. 0.008 per 1000 impressions
	GAMFeePerImpression     Amount // e.g. 0.0154 per 1000 impressions
	PlatformCut             Amount // e.g. 0.25 (25%)
}

// NewFeeModel parses the three fee constants, typically sourced from
// config.PayoutsConfig's decimal-string fields.
func NewFeeModel(cleanIOFee, gamFee, platformCut string) (FeeModel, error) {
	c, err := Parse(cleanIOFee)
	if err != nil {
		return FeeModel{}, err
	}
	g, err := Parse(gamFee)
	if err != nil {
		return FeeModel{}, err
	}
	p, err := Parse(platformCut)
	if err != nil {
		return FeeModel{}, err
	}
	return FeeModel{CleanIOFeePerImpression: c, GAMFeePerImpression: g, PlatformCut: p}, nil
}

// NetRevenue computes the creator-facing revenue for a given impression
// count from one ad network, after that network's per-impression fee and
// the platform's cut. Impressions is the raw served count; grossCPM is the
// network-reported cost-per-mille for the period.
//
//	gross = grossCPM * impressions / 1000
//	networkFee = feePerImpression * impressions
//	net = (gross - networkFee) * (1 - platformCut)
func (f FeeModel) NetRevenue(grossCPM Amount, impressions int64, feePerImpression Amount) Amount {
	n := decimal.NewFromInt(impressions)
	gross := grossCPM.Mul(n).Div(decimal.NewFromInt(1000))
	networkFee := feePerImpression.Mul(n)
	afterNetworkFee := gross.Sub(networkFee)
	if afterNetworkFee.IsNegative() {
		afterNetworkFee = Zero
	}
	platformShare := decimal.NewFromInt(1).Sub(f.PlatformCut)
	return RoundCents(afterNetworkFee.Mul(platformShare))
}

// NetRevenueFromReported implements the nightly batch job's exact formula
// (spec §4.F step 7): given Aditude's reported total revenue and impression
// count for the period, deduct both ad-network per-impression fees and then
// the platform's cut, yielding the pool split across qualifying projects.
//
//	net = revenue - (cleanIOFee + gamFee) * impressions / 1000
//	pool = net * (1 - platformCut)
func (f FeeModel) NetRevenueFromReported(revenue Amount, impressions int64) Amount {
	n := decimal.NewFromInt(impressions)
	combinedFee := f.CleanIOFeePerImpression.Add(f.GAMFeePerImpression)
	feeTotal := combinedFee.Mul(n).Div(decimal.NewFromInt(1000))
	net := revenue.Sub(feeTotal)
	if net.IsNegative() {
		net = Zero
	}
	platformShare := decimal.NewFromInt(1).Sub(f.PlatformCut)
	return RoundCents(net.Mul(platformShare))
}

// SplitEqual divides total into n equal shares, each rounded to the cent,
// with any remainder from rounding assigned to the first share so the sum
// of the shares always equals total exactly.
func SplitEqual(total Amount, n int) []Amount {
	if n <= 0 {
		return nil
	}
	shares := make([]Amount, n)
	per := RoundCents(total.Div(decimal.NewFromInt(int64(n))))
	sum := per.Mul(decimal.NewFromInt(int64(n)))
	remainder := total.Sub(sum)
	for i := range shares {
		shares[i] = per
	}
	shares[0] = shares[0].Add(remainder)
	return shares
}

// SplitWeighted divides total proportionally to weights (which need not sum
// to 1), rounding each share to the cent and assigning the rounding
// remainder to the largest share so the parts always sum to total exactly.
func SplitWeighted(total Amount, weights []Amount) []Amount {
	if len(weights) == 0 {
		return nil
	}
	weightSum := Zero
	for _, w := range weights {
		weightSum = weightSum.Add(w)
	}
	if weightSum.IsZero() {
		return SplitEqual(total, len(weights))
	}

	shares := make([]Amount, len(weights))
	sum := Zero
	largest := 0
	for i, w := range weights {
		shares[i] = RoundCents(total.Mul(w).Div(weightSum))
		sum = sum.Add(shares[i])
		if shares[i].GreaterThan(shares[largest]) {
			largest = i
		}
	}
	remainder := total.Sub(sum)
	shares[largest] = shares[largest].Add(remainder)
	return shares
}
