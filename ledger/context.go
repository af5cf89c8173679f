package ledger

import "time"

// =============================================================================
// INVOCATION - Identity and logical time supplied by the host
// =============================================================================

// Invocation carries what the host attaches to every contract call: the
// authenticated caller, a unique transaction id, and the logical transaction
// timestamp agreed by the ordering service. Read-only to the engine.
type Invocation struct {
	Caller    string
	TxID      string
	Timestamp time.Time
}

// =============================================================================
// DATE PARTITION - Deterministic calendar bucket for receipt keys
// =============================================================================

// DatePartition is the calendar bucket a payment receipt is filed under.
// It derives from the invocation's logical timestamp only, never from the
// executor's wall clock, so every validator computes identical receipt keys.
type DatePartition struct {
	Year  int
	Month int
	Day   int
}

// PartitionOf buckets a logical transaction timestamp, in UTC.
func PartitionOf(ts time.Time) DatePartition {
	utc := ts.UTC()
	return DatePartition{Year: utc.Year(), Month: int(utc.Month()), Day: utc.Day()}
}
