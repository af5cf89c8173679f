/*
Package fees implements the fee metering and settlement engine.

PURPOSE:
  Turns a "user performed billable action X" signal into three durable
  effects inside one host transaction:

  1. A per-(action code, user) usage counter advanced by exactly one use.
  2. A fee amount computed deterministically from pluggable progressive
     pricing curves (tiered schedules with acceleration formulas).
  3. An atomic settlement: immediate burn/split against the payer's live
     balance, or a debit of a pre-funded escrow when the action's effect
     spans two independently-committed ledger partitions.

KEY CONCEPTS IN THIS FILE (types.go):
  - FeeActionSchedule: One pricing tier; an action code's tiers form an
    ascending-by-threshold ladder
  - UsageCounter:      Monotonic per-user usage + fee totals, never deleted
  - FeeExemption:      Opts a user out of some or all action codes
  - EscrowBalance:     Pre-funded balance for cross-channel settlement
  - PaymentReceipt:    One payment fact, filed under two index projections
  - SplitFormula:      Optional fee split between burn and recipients
  - FeeCurrency:       Ledger-wide singleton naming the fee token

DESIGN PRINCIPLES:
  1. Determinism: Fees are a pure function of state read at invocation
     start; no wall-clock time, no randomness.
  2. Precision: decimal.Decimal for every amount and counter.
  3. Fail-open: Missing administrative configuration skips the charge but
     never blocks the underlying action or loses the usage record.
  4. Host atomicity: All writes of one charge commit together or not at
     all; the engine carries no transaction logic of its own.

SEE ALSO:
  - curve.go:      acceleration formulas
  - engine.go:     the charge flow end to end
  - settlement.go: escrow and immediate settlement
  - receipts.go:   the two receipt projections
*/
package fees

import (
	"github.com/shopspring/decimal"
	"github.com/warp/metering-engine/ledger"
)

// =============================================================================
// WORLD-STATE INDEXES
// =============================================================================

const (
	indexSchedule    = "fee-schedule"
	indexUsage       = "fee-usage"
	indexExemption   = "fee-exemption"
	indexEscrow      = "fee-escrow"
	indexReceiptDate = "fee-receipt-date"
	indexReceiptUser = "fee-receipt-user"
	indexCurrency    = "fee-currency"
)

// DecimalPrecision is the number of fractional digits every fee amount is
// rounded to before being applied or recorded. One value for all schedules.
const DecimalPrecision int32 = 8

// =============================================================================
// FEE ACTION SCHEDULE - One pricing tier
// =============================================================================

// AccelerationKind selects the formula a tier prices with. Closed set;
// the calculator dispatches exhaustively over it.
type AccelerationKind string

const (
	KindAdditive       AccelerationKind = "additive"
	KindMultiplicative AccelerationKind = "multiplicative"
	KindExponential    AccelerationKind = "exponential"
	KindLogarithmic    AccelerationKind = "logarithmic"

	// KindCustom marks a placeholder tier whose amount is computed outside
	// the engine and supplied by the caller as an add-on fee. The calculator
	// treats a Custom tier as not matched and keeps scanning.
	KindCustom AccelerationKind = "custom"
)

// FeeActionSchedule is one tier of an action code's pricing ladder. The tier
// applies once the user's cumulative usage reaches UsageThreshold, until a
// higher tier takes over.
type FeeActionSchedule struct {
	ActionCode       string
	UsageThreshold   decimal.Decimal
	BasePrice        decimal.Decimal
	Kind             AccelerationKind
	AccelerationRate decimal.Decimal

	// CrossChannel on the lowest-threshold tier selects escrow settlement
	// for the whole action code.
	CrossChannel bool
}

// ScheduleKey keys one tier. The threshold is part of the key so an action
// code can carry a whole ladder.
func ScheduleKey(actionCode string, threshold decimal.Decimal) string {
	return ledger.CompositeKey(indexSchedule, actionCode, threshold.String())
}

// SchedulePrefix bounds a scan over every tier of one action code.
func SchedulePrefix(actionCode string) string {
	return ledger.CompositePrefix(indexSchedule, actionCode)
}

// =============================================================================
// USAGE COUNTER - Monotonic per-(action code, user) state
// =============================================================================

// UsageCounter records how often a user performed an action and what they
// have paid for it in total. CumulativeUses advances by exactly 1 per
// non-exempt invocation; neither field ever decreases, and counters are
// never deleted. CumulativeFeePaid accumulates charged amounts only; it is
// not recomputed from history.
type UsageCounter struct {
	ActionCode        string
	User              string
	CumulativeUses    decimal.Decimal
	CumulativeFeePaid decimal.Decimal
}

func UsageKey(actionCode, user string) string {
	return ledger.CompositeKey(indexUsage, actionCode, user)
}

// =============================================================================
// FEE EXEMPTION
// =============================================================================

// FeeExemption opts a user out of fee metering. An empty LimitedTo exempts
// the user from every action code; otherwise only the listed codes.
type FeeExemption struct {
	User      string
	LimitedTo []string
}

// Covers reports whether the exemption applies to actionCode.
func (e FeeExemption) Covers(actionCode string) bool {
	if len(e.LimitedTo) == 0 {
		return true
	}
	for _, code := range e.LimitedTo {
		if code == actionCode {
			return true
		}
	}
	return false
}

func ExemptionKey(user string) string {
	return ledger.CompositeKey(indexExemption, user)
}

// =============================================================================
// ESCROW BALANCE - Pre-funded cross-channel settlement balance
// =============================================================================

// EscrowBalance is credited by an external two-phase authorize step and only
// ever decremented here.
type EscrowBalance struct {
	Owner  string
	Amount decimal.Decimal
}

func EscrowKey(owner string) string {
	return ledger.CompositeKey(indexEscrow, owner)
}

// =============================================================================
// PAYMENT RECEIPT - One fact, two index projections
// =============================================================================

type ReceiptStatus string

const (
	// StatusOpen marks a cross-channel receipt awaiting reconciliation by
	// the external credit step on the other partition.
	StatusOpen ReceiptStatus = "open"

	// StatusSettled marks an immediately settled payment.
	StatusSettled ReceiptStatus = "settled"
)

// PaymentReceipt records one fee payment. The same value is written under a
// date-ordered key and a user-ordered key so both "payments in a period" and
// "payments by a user" are range scans.
type PaymentReceipt struct {
	Year       int
	Month      int
	Day        int
	ActionCode string
	Payer      string
	TxID       string
	Amount     decimal.Decimal
	Status     ReceiptStatus
}

// =============================================================================
// SPLIT FORMULA - Optional burn/transfer fee split per action code
// =============================================================================

// SplitTransfer is one recipient's share of a split fee.
type SplitTransfer struct {
	Recipient string
	Amount    decimal.Decimal
}

// SplitFormula divides a total fee into a burn portion and transfer
// portions, rounded to the fee currency's decimals. Portions need not sum to
// the total; any remainder simply goes uncharged.
type SplitFormula func(totalFee decimal.Decimal, currencyDecimals int32) (burn decimal.Decimal, transfers []SplitTransfer, err error)

// SplitResolver looks up the split formula for an action code, if one is
// configured.
type SplitResolver interface {
	SplitFor(actionCode string) (SplitFormula, bool)
}

// SplitMap is a SplitResolver over a plain map.
type SplitMap map[string]SplitFormula

func (m SplitMap) SplitFor(actionCode string) (SplitFormula, bool) {
	f, ok := m[actionCode]
	return f, ok
}

// =============================================================================
// FEE CURRENCY - Ledger-wide singleton
// =============================================================================

// FeeCurrency identifies the token every fee is denominated in. Stored at a
// fixed key; its absence makes immediate settlement fail open.
type FeeCurrency struct {
	TokenKey string
	Decimals int32
}

// currencySingleton is the fixed identifier of the FeeCurrency record.
const currencySingleton = "properties"

func CurrencyKey() string {
	return ledger.CompositeKey(indexCurrency, currencySingleton)
}
