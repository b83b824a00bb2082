package kalshi

import "github.com/shopspring/decimal"

// The venue charges per-contract trading fees proportional to the price
// variance, fee = rate * p * (1-p) of the notional, rounded to a cent
// with a one-cent minimum. Exact decimal math so the admission gate and
// the paper grader agree with the venue's bill to the cent.

// DefaultFeeRate is the published taker fee rate.
const DefaultFeeRate = 0.0175

// FeeCents returns the one-way fee in cents for a single contract at
// priceCents, using the default rate.
func FeeCents(priceCents int) int {
	return FeeCentsAtRate(DefaultFeeRate, priceCents)
}

// FeeCentsAtRate returns the one-way single-contract fee at an explicit
// rate.
func FeeCentsAtRate(rate float64, priceCents int) int {
	if priceCents <= 0 || priceCents >= 100 {
		return 1
	}
	p := decimal.New(int64(priceCents), -2) // price as probability
	fee := decimal.NewFromFloat(rate).
		Mul(p).
		Mul(decimal.NewFromInt(1).Sub(p)).
		Mul(decimal.NewFromInt(100))

	cents := fee.Round(0).IntPart()
	if cents < 1 {
		cents = 1
	}
	return int(cents)
}

// RoundTripFeeCents returns entry plus exit fees for count contracts at
// priceCents.
func RoundTripFeeCents(priceCents, count int) int {
	return 2 * FeeCents(priceCents) * count
}
