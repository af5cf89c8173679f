package fees

import (
	"context"

	"github.com/warp/metering-engine/ledger"
)

// =============================================================================
// EXEMPTION GATE - Short-circuits the whole engine for exempt users
// =============================================================================

// Exempt reports whether the user is exempt from fees for the action code.
// No exemption record means not exempt; any lookup failure other than
// absence is fatal and aborts the invocation.
//
// When the gate fires, the engine does nothing further - in particular, no
// usage record is written for the call.
func Exempt(ctx context.Context, store ledger.RecordStore, user, actionCode string) (bool, error) {
	var exemption FeeExemption
	err := store.Get(ctx, ExemptionKey(user), &exemption)
	if ledger.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return exemption.Covers(actionCode), nil
}

// PutExemption installs or replaces a user's exemption. Administrative write.
func PutExemption(ctx context.Context, store ledger.RecordStore, exemption FeeExemption) error {
	return store.Put(ctx, ExemptionKey(exemption.User), exemption)
}
