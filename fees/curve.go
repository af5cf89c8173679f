/*
curve.go - Acceleration curve calculator

PURPOSE:
  Pure function from (tier ladder, cumulative usage) to a fee amount.
  Deterministic by construction: no clock, no state, no randomness - every
  validator recomputing the same transaction gets the same decimal.

TIER SELECTION:
  Tiers are scanned from the highest threshold down. A tier whose threshold
  exceeds the new cumulative usage is skipped; the first tier that does not
  exceed it is the active tier and the scan stops - only one tier ever
  contributes to a charge. Custom tiers are placeholders for caller-supplied
  amounts and are treated as not matched.

FORMULAS (chargeable = cumulativeUses - activeTier.threshold):
  additive:        base + chargeable * rate
  multiplicative:  base * (chargeable * rate)
  exponential:     base * rate^chargeable
  logarithmic:     base + ln(chargeable * rate)
  anything else:   additive

FLOAT CAVEAT:
  exponential and logarithmic go through float64 math.Pow/math.Log on values
  extracted from the decimals, then back through decimal.NewFromFloat, in
  exactly this order of operations. Do not replace this with a fixed-point
  algorithm: validators must reproduce the same bits, and the float path is
  what they run today.

  The float term can leave the finite range: ln(0) is -Inf when a use lands
  exactly on a logarithmic tier's threshold, and a large exponent overflows
  Pow to +Inf. decimal.NewFromFloat panics on non-finite input, so each
  branch resolves the result first: NaN and -Inf price as no charge (the
  router stops on fee <= 0), +Inf saturates to the largest finite float so
  an overflowed curve still demands settlement instead of charging nothing.
*/
package fees

import (
	"math"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROUNDING - Explicit parameter, not ambient process state
// =============================================================================

// Rounding selects how a computed fee is brought to DecimalPrecision.
type Rounding int

const (
	// RoundHalfUp rounds the digit after the precision half away from zero.
	RoundHalfUp Rounding = iota

	// RoundTruncate drops everything after the precision.
	RoundTruncate
)

// RoundAmount brings an amount to the given number of fractional digits.
func RoundAmount(d decimal.Decimal, precision int32, mode Rounding) decimal.Decimal {
	if mode == RoundTruncate {
		return d.Truncate(precision)
	}
	return d.Round(precision)
}

// =============================================================================
// CURVE CALCULATOR
// =============================================================================

// ComputeFee returns the fee for the cumulative usage count against a tier
// ladder sorted ascending by threshold, rounded to precision. Zero when no
// non-Custom tier matches (including an empty ladder - missing configuration
// never blocks the action).
func ComputeFee(tiers []FeeActionSchedule, cumulativeUses decimal.Decimal, precision int32, mode Rounding) decimal.Decimal {
	for i := len(tiers) - 1; i >= 0; i-- {
		tier := tiers[i]
		if tier.UsageThreshold.GreaterThan(cumulativeUses) {
			continue
		}
		if tier.Kind == KindCustom {
			continue
		}
		chargeable := cumulativeUses.Sub(tier.UsageThreshold)
		return RoundAmount(tierFee(tier, chargeable), precision, mode)
	}
	return decimal.Zero
}

// tierFee dispatches over the closed set of acceleration kinds.
func tierFee(tier FeeActionSchedule, chargeable decimal.Decimal) decimal.Decimal {
	switch tier.Kind {
	case KindMultiplicative:
		return tier.BasePrice.Mul(chargeable.Mul(tier.AccelerationRate))
	case KindExponential:
		power := math.Pow(tier.AccelerationRate.InexactFloat64(), chargeable.InexactFloat64())
		if math.IsNaN(power) || math.IsInf(power, -1) {
			return decimal.Zero
		}
		if math.IsInf(power, 1) {
			// Overflowed curve: saturate so the fee still demands settlement.
			return tier.BasePrice.Mul(decimal.NewFromFloat(math.MaxFloat64))
		}
		return tier.BasePrice.Mul(decimal.NewFromFloat(power))
	case KindLogarithmic:
		ln := math.Log(chargeable.Mul(tier.AccelerationRate).InexactFloat64())
		if math.IsNaN(ln) || math.IsInf(ln, -1) {
			// ln(0) when the use lands exactly on the threshold: the float
			// arithmetic says -Inf, which is no charge.
			return decimal.Zero
		}
		if math.IsInf(ln, 1) {
			return tier.BasePrice.Add(decimal.NewFromFloat(math.MaxFloat64))
		}
		return tier.BasePrice.Add(decimal.NewFromFloat(ln))
	case KindAdditive:
		return tier.BasePrice.Add(chargeable.Mul(tier.AccelerationRate))
	default:
		// Unrecognized kinds price like additive.
		return tier.BasePrice.Add(chargeable.Mul(tier.AccelerationRate))
	}
}
