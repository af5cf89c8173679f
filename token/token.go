/*
Package token implements the burn/transfer collaborators over the same
world state the fee engine writes to.

PURPOSE:
  On a real peer the token contract and the fee engine share one buffered
  write-set, so a settlement's burn and the usage-counter increment commit
  or abort together. This package reproduces that: balances are plain
  records in the invocation's RecordStore, keyed by (token, owner).

OPERATIONS:
  Burn:     destroy quantity from an owner's balance (irreversible)
  Transfer: move quantity between holders
  Mint:     credit an owner (admin/dev seeding; the external issuance step)

  Burn and Transfer fail with InsufficientBalanceError when the owner
  cannot cover the quantity; the fee engine re-raises those as
  payment-required.
*/
package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/metering-engine/ledger"
)

const indexBalance = "token-balance"

var (
	// ErrInsufficientBalance is returned when a burn or transfer exceeds the
	// owner's balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidQuantity is returned for zero or negative quantities.
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	Owner     string
	TokenKey  string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: %s holds %s of %s, requested %s",
		e.Owner, e.Available.String(), e.TokenKey, e.Requested.String())
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// =============================================================================
// BALANCE RECORDS
// =============================================================================

// Balance is one holder's position in one token.
type Balance struct {
	TokenKey string
	Owner    string
	Amount   decimal.Decimal
}

func balanceKey(tokenKey, owner string) string {
	return ledger.CompositeKey(indexBalance, tokenKey, owner)
}

// =============================================================================
// SERVICE
// =============================================================================

// Service is a ledger.TokenService bound to one invocation's record store.
type Service struct {
	Store ledger.RecordStore
}

var _ ledger.TokenService = (*Service)(nil)

func New(store ledger.RecordStore) *Service {
	return &Service{Store: store}
}

// BalanceOf returns the owner's balance, zero when no record exists.
func (s *Service) BalanceOf(ctx context.Context, owner, tokenKey string) (decimal.Decimal, error) {
	var bal Balance
	err := s.Store.Get(ctx, balanceKey(tokenKey, owner), &bal)
	if ledger.IsNotFound(err) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return bal.Amount, nil
}

// Mint credits an owner, creating the balance record on first credit.
func (s *Service) Mint(ctx context.Context, owner, tokenKey string, quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	current, err := s.BalanceOf(ctx, owner, tokenKey)
	if err != nil {
		return err
	}
	return s.Store.Put(ctx, balanceKey(tokenKey, owner), Balance{
		TokenKey: tokenKey,
		Owner:    owner,
		Amount:   current.Add(quantity),
	})
}

// Burn destroys quantity from the owner's balance.
func (s *Service) Burn(ctx context.Context, owner, tokenKey string, quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	return s.debit(ctx, owner, tokenKey, quantity)
}

// Transfer moves quantity from one holder to another.
func (s *Service) Transfer(ctx context.Context, from, to, tokenKey string, quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if err := s.debit(ctx, from, tokenKey, quantity); err != nil {
		return err
	}
	current, err := s.BalanceOf(ctx, to, tokenKey)
	if err != nil {
		return err
	}
	return s.Store.Put(ctx, balanceKey(tokenKey, to), Balance{
		TokenKey: tokenKey,
		Owner:    to,
		Amount:   current.Add(quantity),
	})
}

func (s *Service) debit(ctx context.Context, owner, tokenKey string, quantity decimal.Decimal) error {
	current, err := s.BalanceOf(ctx, owner, tokenKey)
	if err != nil {
		return err
	}
	if current.LessThan(quantity) {
		return &InsufficientBalanceError{
			Owner:     owner,
			TokenKey:  tokenKey,
			Available: current,
			Requested: quantity,
		}
	}
	return s.Store.Put(ctx, balanceKey(tokenKey, owner), Balance{
		TokenKey: tokenKey,
		Owner:    owner,
		Amount:   current.Sub(quantity),
	})
}
