package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TOKEN COLLABORATORS - External burn/transfer contracts the engine consumes
// =============================================================================

// TokenBurner destroys token quantity irreversibly. Fails when the owner's
// balance (or allowance) cannot cover the quantity.
type TokenBurner interface {
	Burn(ctx context.Context, owner, tokenKey string, quantity decimal.Decimal) error
}

// TokenMover transfers token quantity between holders. Fails when the
// sender's balance (or allowance) cannot cover the quantity.
type TokenMover interface {
	Transfer(ctx context.Context, from, to, tokenKey string, quantity decimal.Decimal) error
}

// TokenService is the full collaborator surface immediate settlement needs.
type TokenService interface {
	TokenBurner
	TokenMover
}
