/*
receipts.go - The two payment receipt projections

PURPOSE:
  Every settlement files one payment fact under two composite orderings:

    date-ordered: (year, month, day, actionCode, payer, txId)
    user-ordered: (payer, year, month, day, actionCode, txId)

  so "all payments in a period" and "all payments by a user" are both
  single prefix scans. The two writes are one fan-out of one receipt event:
  they are always issued together, never one without the other.

KEY ENCODING:
  Calendar parts are zero-padded to fixed width so byte order equals
  chronological order within a projection.
*/
package fees

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/warp/metering-engine/ledger"
)

// =============================================================================
// RECEIPT KEYS
// =============================================================================

func receiptDateKey(p ledger.DatePartition, actionCode, payer, txID string) string {
	return ledger.CompositeKey(indexReceiptDate,
		fmt.Sprintf("%04d", p.Year), fmt.Sprintf("%02d", p.Month), fmt.Sprintf("%02d", p.Day),
		actionCode, payer, txID)
}

func receiptUserKey(p ledger.DatePartition, actionCode, payer, txID string) string {
	return ledger.CompositeKey(indexReceiptUser,
		payer,
		fmt.Sprintf("%04d", p.Year), fmt.Sprintf("%02d", p.Month), fmt.Sprintf("%02d", p.Day),
		actionCode, txID)
}

// =============================================================================
// WRITE - One event, two projections
// =============================================================================

// writeReceipts files the receipt under both orderings. Both writes share
// the invocation's write-set, so the host commits both or neither.
func writeReceipts(ctx context.Context, store ledger.RecordStore, receipt PaymentReceipt) error {
	p := ledger.DatePartition{Year: receipt.Year, Month: receipt.Month, Day: receipt.Day}
	if err := store.Put(ctx, receiptDateKey(p, receipt.ActionCode, receipt.Payer, receipt.TxID), receipt); err != nil {
		return err
	}
	return store.Put(ctx, receiptUserKey(p, receipt.ActionCode, receipt.Payer, receipt.TxID), receipt)
}

// =============================================================================
// QUERIES - Range reads over the projections
// =============================================================================

// ReceiptsByPeriod returns receipts filed in a year, narrowed by month and
// day when given (pass 0 to leave a level open).
func ReceiptsByPeriod(ctx context.Context, store ledger.RecordStore, year, month, day int) ([]PaymentReceipt, error) {
	parts := []string{fmt.Sprintf("%04d", year)}
	if month > 0 {
		parts = append(parts, fmt.Sprintf("%02d", month))
		if day > 0 {
			parts = append(parts, fmt.Sprintf("%02d", day))
		}
	}
	return scanReceipts(ctx, store, ledger.CompositePrefix(indexReceiptDate, parts...))
}

// ReceiptsByPayer returns every receipt filed for one payer, oldest first.
func ReceiptsByPayer(ctx context.Context, store ledger.RecordStore, payer string) ([]PaymentReceipt, error) {
	return scanReceipts(ctx, store, ledger.CompositePrefix(indexReceiptUser, payer))
}

func scanReceipts(ctx context.Context, store ledger.RecordStore, prefix string) ([]PaymentReceipt, error) {
	var receipts []PaymentReceipt
	err := store.Scan(ctx, prefix, func(_ string, value []byte) error {
		var r PaymentReceipt
		if err := json.Unmarshal(value, &r); err != nil {
			return err
		}
		receipts = append(receipts, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipts, nil
}
