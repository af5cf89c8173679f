package fees_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/warp/metering-engine/fees"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func tier(threshold, base string, kind fees.AccelerationKind, rate string) fees.FeeActionSchedule {
	return fees.FeeActionSchedule{
		ActionCode:       "test-action",
		UsageThreshold:   dec(threshold),
		BasePrice:        dec(base),
		Kind:             kind,
		AccelerationRate: dec(rate),
	}
}

func computeFee(tiers []fees.FeeActionSchedule, uses string) decimal.Decimal {
	return fees.ComputeFee(tiers, dec(uses), fees.DecimalPrecision, fees.RoundHalfUp)
}

// =============================================================================
// FORMULA TESTS - base=2, rate=2, 4th use
// =============================================================================

func TestComputeFee_Additive(t *testing.T) {
	tiers := []fees.FeeActionSchedule{tier("0", "2", fees.KindAdditive, "2")}
	// fee = 2 + 4*2 = 10
	got := computeFee(tiers, "4")
	if !got.Equal(dec("10")) {
		t.Errorf("expected 10, got %v", got)
	}
}

func TestComputeFee_Multiplicative(t *testing.T) {
	tiers := []fees.FeeActionSchedule{tier("0", "2", fees.KindMultiplicative, "2")}
	// fee = 2 * (4*2) = 16
	got := computeFee(tiers, "4")
	if !got.Equal(dec("16")) {
		t.Errorf("expected 16, got %v", got)
	}
}

func TestComputeFee_Exponential(t *testing.T) {
	tiers := []fees.FeeActionSchedule{tier("0", "2", fees.KindExponential, "2")}
	// fee = 2 * 2^4 = 32
	got := computeFee(tiers, "4")
	if !got.Equal(dec("32")) {
		t.Errorf("expected 32, got %v", got)
	}
}

func TestComputeFee_Logarithmic(t *testing.T) {
	tiers := []fees.FeeActionSchedule{tier("0", "2", fees.KindLogarithmic, "2")}
	// fee = 2 + ln(2*4) = 4.0794415416798357..., rounded to 8 places
	got := computeFee(tiers, "4")
	if !got.Equal(dec("4.07944154")) {
		t.Errorf("expected 4.07944154, got %v", got)
	}
}

func TestComputeFee_Logarithmic_ExactThresholdHit_NoCharge(t *testing.T) {
	// A use landing exactly on the tier's threshold gives chargeable = 0 and
	// ln(0) = -Inf. That must price as no charge, never panic.
	tiers := []fees.FeeActionSchedule{tier("10", "2", fees.KindLogarithmic, "2")}
	if got := computeFee(tiers, "10"); !got.IsZero() {
		t.Errorf("expected 0 at exact threshold, got %v", got)
	}
}

func TestComputeFee_Logarithmic_NegativeRate_NoCharge(t *testing.T) {
	// ln of a negative argument is NaN; prices as no charge.
	tiers := []fees.FeeActionSchedule{tier("0", "2", fees.KindLogarithmic, "-2")}
	if got := computeFee(tiers, "4"); !got.IsZero() {
		t.Errorf("expected 0 for NaN curve term, got %v", got)
	}
}

func TestComputeFee_Exponential_Overflow_Saturates(t *testing.T) {
	// rate^chargeable overflows float64 past chargeable ~1024 at rate 2. The
	// fee saturates to an uncollectable amount instead of panicking or
	// charging nothing.
	tiers := []fees.FeeActionSchedule{tier("0", "2", fees.KindExponential, "2")}
	got := computeFee(tiers, "1100")
	if got.Sign() <= 0 {
		t.Fatalf("overflowed curve must still charge, got %v", got)
	}
	if !got.GreaterThan(dec("1e308")) {
		t.Errorf("expected saturated fee above 1e308, got %v", got)
	}
}

func TestComputeFee_UnrecognizedKind_PricesAdditive(t *testing.T) {
	tiers := []fees.FeeActionSchedule{tier("0", "2", fees.AccelerationKind("bogus"), "2")}
	got := computeFee(tiers, "4")
	if !got.Equal(dec("10")) {
		t.Errorf("expected additive fallback 10, got %v", got)
	}
}

// =============================================================================
// TIER SELECTION
// =============================================================================

func TestComputeFee_TierCrossing(t *testing.T) {
	// GIVEN: tier A {threshold=10, base=1, rate=0}, tier B {threshold=20, base=100}
	tiers := []fees.FeeActionSchedule{
		tier("10", "1", fees.KindAdditive, "0"),
		tier("20", "100", fees.KindAdditive, "0"),
	}

	// 10th use lands exactly on tier A
	if got := computeFee(tiers, "10"); !got.Equal(dec("1")) {
		t.Errorf("10th use: expected 1, got %v", got)
	}
	// 20th use lands exactly on tier B
	if got := computeFee(tiers, "20"); !got.Equal(dec("100")) {
		t.Errorf("20th use: expected 100, got %v", got)
	}
	// Between the thresholds tier A still applies
	if got := computeFee(tiers, "15"); !got.Equal(dec("1")) {
		t.Errorf("15th use: expected 1, got %v", got)
	}
	// Below every threshold nothing applies
	if got := computeFee(tiers, "9"); !got.IsZero() {
		t.Errorf("9th use: expected 0, got %v", got)
	}
}

func TestComputeFee_CustomTier_SkippedToLowerTier(t *testing.T) {
	// A Custom tier is a placeholder for a caller-supplied amount; the scan
	// falls through to the next lower tier.
	tiers := []fees.FeeActionSchedule{
		tier("0", "5", fees.KindAdditive, "1"),
		tier("10", "0", fees.KindCustom, "0"),
	}
	// 12th use matches the Custom tier first, then falls to the base tier:
	// fee = 5 + 12*1 = 17
	got := computeFee(tiers, "12")
	if !got.Equal(dec("17")) {
		t.Errorf("expected 17, got %v", got)
	}
}

func TestComputeFee_OnlyCustomTiers_ZeroFee(t *testing.T) {
	tiers := []fees.FeeActionSchedule{tier("0", "0", fees.KindCustom, "0")}
	if got := computeFee(tiers, "3"); !got.IsZero() {
		t.Errorf("expected 0, got %v", got)
	}
}

func TestComputeFee_EmptyLadder_ZeroFee(t *testing.T) {
	if got := computeFee(nil, "100"); !got.IsZero() {
		t.Errorf("expected 0 for empty ladder, got %v", got)
	}
}

// =============================================================================
// DETERMINISM
// =============================================================================

func TestComputeFee_Deterministic_AllKinds(t *testing.T) {
	kinds := []fees.AccelerationKind{
		fees.KindAdditive,
		fees.KindMultiplicative,
		fees.KindExponential,
		fees.KindLogarithmic,
	}
	for _, kind := range kinds {
		tiers := []fees.FeeActionSchedule{tier("3", "1.5", kind, "1.25")}
		first := computeFee(tiers, "17")
		for i := 0; i < 100; i++ {
			again := computeFee(tiers, "17")
			if !again.Equal(first) {
				t.Fatalf("%s: call %d returned %v, first call returned %v", kind, i, again, first)
			}
		}
	}
}

// =============================================================================
// ROUNDING
// =============================================================================

func TestRoundAmount_Modes(t *testing.T) {
	value := dec("1.999999995")
	if got := fees.RoundAmount(value, fees.DecimalPrecision, fees.RoundHalfUp); !got.Equal(dec("2")) {
		t.Errorf("half-up: expected 2, got %v", got)
	}
	if got := fees.RoundAmount(value, fees.DecimalPrecision, fees.RoundTruncate); !got.Equal(dec("1.99999999")) {
		t.Errorf("truncate: expected 1.99999999, got %v", got)
	}
}
