/*
errors.go - Error taxonomy for the fee engine

PURPOSE:
  Three classes of failure, matching how callers react:

  1. Payment-required: recoverable by funding first. Every settlement
     failure raises this kind, carrying the required amount and context.
  2. Not-found on an administrative record: an in-band configuration
     signal, raised by the ledger package (ledger.ErrNotFound) and mostly
     consumed inside the engine as fail-open branches.
  3. Anything else: fatal; propagates unmodified and aborts the invocation,
     discarding every buffered write.

  Batch call sites collect per-item payment failures and raise one
  AggregatedPaymentError after every item has been attempted.

USAGE:
  if fees.IsPaymentRequired(err) {
      var pr *fees.PaymentRequiredError
      errors.As(err, &pr)
      // surface pr.Required / pr.Available to the caller
  }
*/
package fees

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPaymentRequired is the class of every settlement failure the caller
	// can recover from by supplying funds first.
	ErrPaymentRequired = errors.New("payment required")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PaymentRequiredError reports a settlement failure with the amounts the
// caller needs to react programmatically.
type PaymentRequiredError struct {
	ActionCode string
	Payer      string
	Required   decimal.Decimal

	// Available is the balance found, when one was found at all.
	Available    decimal.Decimal
	HasAvailable bool

	// Detail carries the underlying collaborator message (burn/transfer
	// failures) or a short machine-readable reason.
	Detail string
}

func (e *PaymentRequiredError) Error() string {
	msg := fmt.Sprintf("payment required: %s needs %s for %s",
		e.Payer, e.Required.String(), e.ActionCode)
	if e.HasAvailable {
		msg += fmt.Sprintf(" (available %s)", e.Available.String())
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *PaymentRequiredError) Unwrap() error { return ErrPaymentRequired }

// AggregatedPaymentError is raised once by batch call sites after every item
// was attempted, exposing the full list of per-item failures.
type AggregatedPaymentError struct {
	ActionCode string
	Failures   []*PaymentRequiredError
}

func (e *AggregatedPaymentError) Error() string {
	return fmt.Sprintf("payment required for %d of the charged payers (%s)",
		len(e.Failures), e.ActionCode)
}

func (e *AggregatedPaymentError) Unwrap() error { return ErrPaymentRequired }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsPaymentRequired reports whether err is a (possibly aggregated)
// payment-required failure.
func IsPaymentRequired(err error) bool {
	return errors.Is(err, ErrPaymentRequired)
}
