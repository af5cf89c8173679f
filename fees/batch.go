/*
batch.go - Charging one action code for several payers in one invocation

PURPOSE:
  Batch callers (for example a handler minting to many beneficiaries)
  charge every payer even after one fails, collect the individual
  payment-required failures, and raise one aggregated error at the end.

  This keep-going behavior is safe precisely because the surrounding
  invocation is atomic: whether zero or many items "succeeded" before the
  aggregated error, the host discards all of their writes together. The
  aggregate exists to report the complete list of underfunded payers in a
  single round trip, not to partially apply.

  A non-payment failure on any item is fatal immediately, as everywhere
  else in the engine.
*/
package fees

import (
	"context"
	"errors"

	"github.com/warp/metering-engine/ledger"
)

// BatchResult reports the per-payer outcomes of a batch charge.
type BatchResult struct {
	ActionCode string
	Results    []*ChargeResult
}

// ChargeBatch meters one use of actionCode for every payer. All payers are
// attempted; payment-required failures are accumulated and returned once as
// an AggregatedPaymentError alongside the successful results.
func (e *Engine) ChargeBatch(ctx context.Context, inv ledger.Invocation, actionCode string, payers []string) (*BatchResult, error) {
	batch := &BatchResult{ActionCode: actionCode}
	var failures []*PaymentRequiredError

	for _, payer := range payers {
		result, err := e.Charge(ctx, inv, ChargeRequest{ActionCode: actionCode, Payer: payer})
		if err != nil {
			var pr *PaymentRequiredError
			if errors.As(err, &pr) {
				failures = append(failures, pr)
				continue
			}
			return nil, err
		}
		batch.Results = append(batch.Results, result)
	}

	if len(failures) > 0 {
		return batch, &AggregatedPaymentError{ActionCode: actionCode, Failures: failures}
	}
	return batch, nil
}
