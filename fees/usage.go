/*
usage.go - Usage tracker and fee schedule resolver

PURPOSE:
  Loads the tier ladder for an action code, advances the caller's usage
  counter by exactly one use, computes the fee for the new count, and
  persists the counter. Always executed as one unit: a non-exempt charge
  never records usage without pricing it, and never prices without
  recording.

FAIL-OPEN:
  An action code with no schedule at all still advances the counter and
  charges zero. Missing pricing configuration must never block the
  underlying action or silently drop a usage record.
*/
package fees

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/metering-engine/ledger"
)

var one = decimal.NewFromInt(1)

// =============================================================================
// SCHEDULE RESOLVER
// =============================================================================

// LoadSchedules returns every tier configured for an action code, sorted
// ascending by usage threshold. An empty slice is valid configuration.
func LoadSchedules(ctx context.Context, store ledger.RecordStore, actionCode string) ([]FeeActionSchedule, error) {
	var tiers []FeeActionSchedule
	err := store.Scan(ctx, SchedulePrefix(actionCode), func(_ string, value []byte) error {
		var tier FeeActionSchedule
		if err := json.Unmarshal(value, &tier); err != nil {
			return err
		}
		tiers = append(tiers, tier)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(tiers, func(i, j int) bool {
		return tiers[i].UsageThreshold.LessThan(tiers[j].UsageThreshold)
	})
	return tiers, nil
}

// PutSchedule installs or replaces one tier. Administrative write.
func PutSchedule(ctx context.Context, store ledger.RecordStore, tier FeeActionSchedule) error {
	return store.Put(ctx, ScheduleKey(tier.ActionCode, tier.UsageThreshold), tier)
}

// =============================================================================
// USAGE TRACKER
// =============================================================================

// LoadUsage returns the user's counter for an action code, default-
// constructed with zero totals when the user has never performed it.
func LoadUsage(ctx context.Context, store ledger.RecordStore, actionCode, user string) (UsageCounter, error) {
	var counter UsageCounter
	err := store.Get(ctx, UsageKey(actionCode, user), &counter)
	if ledger.IsNotFound(err) {
		return UsageCounter{
			ActionCode:        actionCode,
			User:              user,
			CumulativeUses:    decimal.Zero,
			CumulativeFeePaid: decimal.Zero,
		}, nil
	}
	if err != nil {
		return UsageCounter{}, err
	}
	return counter, nil
}

// trackAndPrice advances the counter by one use, prices the new count, adds
// the fee (plus any caller-supplied add-on) to the paid total, and persists
// the counter. Returns the rounded fee, the sorted ladder, and the new
// cumulative count.
func trackAndPrice(ctx context.Context, store ledger.RecordStore, actionCode, user string, addOn decimal.Decimal, mode Rounding) (decimal.Decimal, []FeeActionSchedule, decimal.Decimal, error) {
	tiers, err := LoadSchedules(ctx, store, actionCode)
	if err != nil {
		return decimal.Zero, nil, decimal.Zero, err
	}

	counter, err := LoadUsage(ctx, store, actionCode, user)
	if err != nil {
		return decimal.Zero, nil, decimal.Zero, err
	}

	// Usage quantity is always 1 per call. Callers needing several charges
	// call once per unit.
	counter.CumulativeUses = counter.CumulativeUses.Add(one)

	fee := ComputeFee(tiers, counter.CumulativeUses, DecimalPrecision, mode)
	if !addOn.IsZero() {
		fee = RoundAmount(fee.Add(addOn), DecimalPrecision, mode)
	}

	counter.CumulativeFeePaid = counter.CumulativeFeePaid.Add(fee)
	if err := store.Put(ctx, UsageKey(actionCode, user), counter); err != nil {
		return decimal.Zero, nil, decimal.Zero, err
	}
	return fee, tiers, counter.CumulativeUses, nil
}
