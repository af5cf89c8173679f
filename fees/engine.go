/*
engine.go - The charge flow end to end

PURPOSE:
  Engine wires the components into the per-invocation control flow:

    Exemption Gate
      -> Usage Tracker + Schedule Resolver + Curve Calculator (one unit)
      -> Settlement Router
      -> {Cross-Channel | Immediate} Settlement
      -> Receipt Ledger

  The engine is a pure function-call layer: per-action contract handlers
  construct an Engine over the invocation's RecordStore and call Charge.
  There is no transaction logic here - all writes are buffered by the host
  and commit atomically iff the invocation returns nil. Any error anywhere
  in the chain discards everything, including the usage-counter increment.

STATE MACHINE (per invocation):
  Start -> [Exempt: Stop]
        -> UsageRecorded -> FeeComputed -> [Fee=0: Stop]
        -> {CrossChannelDebited | Burned/Transferred}
        -> ReceiptsWritten -> Stop

SEE ALSO:
  - usage.go:      tracking + pricing unit
  - settlement.go: the two strategies
  - batch.go:      charging several payers in one invocation
*/
package fees

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/metering-engine/ledger"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine executes fee charges inside one invocation. Construct one per
// invocation over the invocation's record store.
type Engine struct {
	Store  ledger.RecordStore
	Tokens ledger.TokenService

	// Splits resolves optional per-action split formulas. Nil means no
	// action has a split; the whole fee burns.
	Splits SplitResolver

	// Rounding for computed fees. Zero value is half-up.
	Rounding Rounding
}

// ChargeRequest is what a per-action contract handler supplies.
type ChargeRequest struct {
	ActionCode string

	// Payer overrides the metered identity. Empty means the invoking
	// caller. Cross-channel settlement debits the caller's escrow either
	// way; see settleCrossChannel.
	Payer string

	// AddOn is a flat caller-computed amount added to the curve fee,
	// typically paired with a Custom tier. Zero means none.
	AddOn decimal.Decimal
}

// ChargeResult reports what one charge did.
type ChargeResult struct {
	ActionCode     string
	Payer          string
	Exempt         bool
	Fee            decimal.Decimal
	CumulativeUses decimal.Decimal
	Settlement     Settlement
}

// =============================================================================
// CHARGE - One billable use
// =============================================================================

// Charge meters one use of an action by a payer and settles the resulting
// fee. Returns a payment-required error when settlement cannot collect;
// every other error is a fatal host/storage failure. In both cases the host
// discards the invocation's buffered writes.
func (e *Engine) Charge(ctx context.Context, inv ledger.Invocation, req ChargeRequest) (*ChargeResult, error) {
	payer := req.Payer
	if payer == "" {
		payer = inv.Caller
	}
	result := &ChargeResult{
		ActionCode: req.ActionCode,
		Payer:      payer,
		Fee:        decimal.Zero,
		Settlement: SettlementNone,
	}

	// Exemption gate: exempt users leave no trace, not even usage.
	exempt, err := Exempt(ctx, e.Store, payer, req.ActionCode)
	if err != nil {
		return nil, err
	}
	if exempt {
		result.Exempt = true
		return result, nil
	}

	// Track and price as one unit; persists the counter.
	fee, tiers, uses, err := trackAndPrice(ctx, e.Store, req.ActionCode, payer, req.AddOn, e.Rounding)
	if err != nil {
		return nil, err
	}
	result.Fee = fee
	result.CumulativeUses = uses

	// Nothing to settle. The usage record stands.
	if fee.Sign() <= 0 {
		return result, nil
	}

	// Route on the lowest-threshold tier's flag. A fee with no tiers at all
	// (pure add-on charge) settles immediately.
	if len(tiers) > 0 && tiers[0].CrossChannel {
		if err := e.settleCrossChannel(ctx, inv, req.ActionCode, payer, fee); err != nil {
			return nil, err
		}
		result.Settlement = SettlementEscrow
		return result, nil
	}

	settlement, err := e.settleImmediate(ctx, inv, req.ActionCode, payer, fee)
	if err != nil {
		return nil, err
	}
	result.Settlement = settlement
	return result, nil
}

// =============================================================================
// ADMIN WRITES - Currency singleton and escrow funding
// =============================================================================

// PutCurrency installs the ledger-wide fee currency. Administrative write.
func PutCurrency(ctx context.Context, store ledger.RecordStore, currency FeeCurrency) error {
	return store.Put(ctx, CurrencyKey(), currency)
}

// CreditEscrow adds to an owner's escrow balance, creating the record on
// first credit. This is the landing point of the external two-phase
// authorize step; the engine itself only ever debits.
func CreditEscrow(ctx context.Context, store ledger.RecordStore, owner string, amount decimal.Decimal) (EscrowBalance, error) {
	var escrow EscrowBalance
	err := store.Get(ctx, EscrowKey(owner), &escrow)
	if ledger.IsNotFound(err) {
		escrow = EscrowBalance{Owner: owner, Amount: decimal.Zero}
	} else if err != nil {
		return EscrowBalance{}, err
	}
	escrow.Amount = escrow.Amount.Add(amount)
	if err := store.Put(ctx, EscrowKey(owner), escrow); err != nil {
		return EscrowBalance{}, err
	}
	return escrow, nil
}

// LoadEscrow returns an owner's escrow balance.
func LoadEscrow(ctx context.Context, store ledger.RecordStore, owner string) (EscrowBalance, error) {
	var escrow EscrowBalance
	err := store.Get(ctx, EscrowKey(owner), &escrow)
	return escrow, err
}
