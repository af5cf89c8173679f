/*
settlement.go - Settlement router and the two settlement strategies

PURPOSE:
  Once a positive fee is computed, exactly one of two strategies collects
  it, then both file the same pair of receipt projections:

  CROSS-CHANNEL (escrow debit, receipts Open):
    The payer's spendable funds live on a different ledger partition than
    the one executing the action, so the fee is debited from a pre-funded
    escrow balance. Absence of the escrow record, or a balance short of the
    fee, is a payment-required failure. Final reconciliation happens in an
    external credit step on the other partition.

  IMMEDIATE (burn / split, receipts Settled):
    The fee is collected against the payer's live balance via the external
    token collaborators. Without a split formula the whole fee burns; with
    one, the formula divides it into a burn portion and transfer portions.
    Any collaborator failure is re-raised as payment-required with context.

ROUTING:
  The lowest-threshold tier's CrossChannel flag decides for the whole
  action code. When tiers disagree, the flag of the first tier after the
  ascending sort wins; that ordering dependence is intentional and pinned
  by tests.

FAIL-OPEN ASYMMETRY:
  Immediate settlement silently skips the charge when the fee currency
  singleton is absent (unconfigured ledger, no error, no receipts). The
  cross-channel path has no such escape: it always requires funding.
*/
package fees

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/metering-engine/ledger"
)

// =============================================================================
// SETTLEMENT OUTCOMES
// =============================================================================

// Settlement says how (or whether) a computed fee was collected.
type Settlement string

const (
	// SettlementNone: fee was zero or the user exempt; nothing to collect.
	SettlementNone Settlement = "none"

	// SettlementSkipped: fee currency unconfigured; charge skipped open.
	SettlementSkipped Settlement = "skipped"

	SettlementEscrow    Settlement = "escrow"
	SettlementImmediate Settlement = "immediate"
)

// =============================================================================
// CROSS-CHANNEL SETTLEMENT - Escrow debit
// =============================================================================

// settleCrossChannel debits the invoking caller's escrow balance by the fee
// and files receipts with status Open.
//
// Note the identity: the escrow owner is inv.Caller even when the usage was
// tracked for an override payer. Callers charging on behalf of another user
// pay from their own escrow.
func (e *Engine) settleCrossChannel(ctx context.Context, inv ledger.Invocation, actionCode, payer string, fee decimal.Decimal) error {
	owner := inv.Caller
	var escrow EscrowBalance
	err := e.Store.Get(ctx, EscrowKey(owner), &escrow)
	if ledger.IsNotFound(err) {
		return &PaymentRequiredError{
			ActionCode: actionCode,
			Payer:      owner,
			Required:   fee,
			Detail:     "no escrow balance authorized",
		}
	}
	if err != nil {
		return err
	}
	if escrow.Amount.LessThan(fee) {
		return &PaymentRequiredError{
			ActionCode:   actionCode,
			Payer:        owner,
			Required:     fee,
			Available:    escrow.Amount,
			HasAvailable: true,
			Detail:       "escrow balance below fee",
		}
	}

	escrow.Amount = escrow.Amount.Sub(fee)
	if err := e.Store.Put(ctx, EscrowKey(owner), escrow); err != nil {
		return err
	}
	return e.fileReceipts(ctx, inv, actionCode, payer, fee, StatusOpen)
}

// =============================================================================
// IMMEDIATE SETTLEMENT - Burn / split against the live balance
// =============================================================================

// settleImmediate collects the fee via the token collaborators and files
// receipts with status Settled. Returns SettlementSkipped without error when
// the fee currency is unconfigured.
func (e *Engine) settleImmediate(ctx context.Context, inv ledger.Invocation, actionCode, payer string, fee decimal.Decimal) (Settlement, error) {
	var currency FeeCurrency
	err := e.Store.Get(ctx, CurrencyKey(), &currency)
	if ledger.IsNotFound(err) {
		// Unconfigured fee currency: skip the charge entirely. No error, no
		// receipts - the usage record above still stands.
		return SettlementSkipped, nil
	}
	if err != nil {
		return SettlementNone, err
	}

	split, hasSplit := e.splitFor(actionCode)
	if !hasSplit {
		if err := e.Tokens.Burn(ctx, payer, currency.TokenKey, fee); err != nil {
			return SettlementNone, &PaymentRequiredError{
				ActionCode: actionCode,
				Payer:      payer,
				Required:   fee,
				Detail:     err.Error(),
			}
		}
	} else {
		burn, transfers, err := split(fee, currency.Decimals)
		if err != nil {
			return SettlementNone, err
		}
		if burn.IsPositive() {
			if err := e.Tokens.Burn(ctx, payer, currency.TokenKey, burn); err != nil {
				return SettlementNone, &PaymentRequiredError{
					ActionCode: actionCode,
					Payer:      payer,
					Required:   burn,
					Detail:     fmt.Sprintf("burn of split portion failed: %v", err),
				}
			}
		}
		for _, t := range transfers {
			if err := e.Tokens.Transfer(ctx, payer, t.Recipient, currency.TokenKey, t.Amount); err != nil {
				return SettlementNone, &PaymentRequiredError{
					ActionCode: actionCode,
					Payer:      payer,
					Required:   t.Amount,
					Detail:     fmt.Sprintf("transfer of split portion to %s failed: %v", t.Recipient, err),
				}
			}
		}
	}

	if err := e.fileReceipts(ctx, inv, actionCode, payer, fee, StatusSettled); err != nil {
		return SettlementNone, err
	}
	return SettlementImmediate, nil
}

func (e *Engine) splitFor(actionCode string) (SplitFormula, bool) {
	if e.Splits == nil {
		return nil, false
	}
	return e.Splits.SplitFor(actionCode)
}

// fileReceipts builds the receipt from the invocation's logical timestamp
// and fans it out to both projections.
func (e *Engine) fileReceipts(ctx context.Context, inv ledger.Invocation, actionCode, payer string, amount decimal.Decimal, status ReceiptStatus) error {
	p := ledger.PartitionOf(inv.Timestamp)
	return writeReceipts(ctx, e.Store, PaymentReceipt{
		Year:       p.Year,
		Month:      p.Month,
		Day:        p.Day,
		ActionCode: actionCode,
		Payer:      payer,
		TxID:       inv.TxID,
		Amount:     amount,
		Status:     status,
	})
}
