package balance

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stakehaus/bankroll/internal/infra/pgutils"
	"github.com/stakehaus/bankroll/internal/repos/accounts"
	pgaccounts "github.com/stakehaus/bankroll/internal/repos/accounts/postgres"
	"github.com/stakehaus/bankroll/internal/repos/ledger"
	pgledger "github.com/stakehaus/bankroll/internal/repos/ledger/postgres"
)

// Service is the only path through which balances mutate. Every successful
// change writes the new balance and exactly one ledger row in the same
// transaction.
type Service struct {
	db       *sql.DB
	accounts accounts.Accounts
	ledger   ledger.Ledger
}

func New(db *sql.DB) *Service {
	return &Service{
		db:       db,
		accounts: pgaccounts.New(db),
		ledger:   pgledger.New(db),
	}
}

// EnsureAccount creates the account on first contact. Idempotent.
func (s *Service) EnsureAccount(ctx context.Context, userID int64, referredBy *int64) error {
	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.accounts.Ensure(tx, userID, referredBy)
	})
	if err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}

	return nil
}

// ApplyDelta runs the full read-check-write-append flow in one transaction:
//
// 1) Ensure the account exists.
// 2) Lock the account row (FOR UPDATE).
// 3) Reject if the result would go negative without AllowNegative.
// 4) Write the balance and append the matching ledger row.
func (s *Service) ApplyDelta(ctx context.Context, change Change) (Result, error) {
	var res Result

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var txErr error
		res, txErr = s.ApplyDeltaTx(tx, change)
		return txErr
	})
	if err != nil {
		return Result{}, fmt.Errorf("apply delta: %w", err)
	}

	return res, nil
}

// ApplyDeltaTx is ApplyDelta inside a caller-owned transaction, so a contest
// transition and its payout commit atomically. The caller commits or rolls
// back.
func (s *Service) ApplyDeltaTx(tx *sql.Tx, change Change) (Result, error) {
	err := s.accounts.Ensure(tx, change.UserID, nil)
	if err != nil {
		return Result{}, fmt.Errorf("ensure account: %w", err)
	}

	before, err := s.accounts.LockAndGetBalance(tx, change.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("lock and get balance: %w", err)
	}

	after := before.Add(change.Delta)
	if after.IsNegative() && !change.AllowNegative {
		return Result{}, fmt.Errorf("balance %s + delta %s: %w",
			before, change.Delta, accounts.ErrInsufficientFunds)
	}

	err = s.accounts.SetBalance(tx, change.UserID, after)
	if err != nil {
		return Result{}, fmt.Errorf("set balance: %w", err)
	}

	_, err = s.ledger.Insert(tx, ledger.Entry{
		UserID: change.UserID,
		Amount: change.Delta,
		Type:   change.Type,
		Method: change.Method,
		Before: before,
		After:  after,
		Meta:   change.Meta,
	})
	if err != nil {
		return Result{}, fmt.Errorf("append ledger entry: %w", err)
	}

	return Result{Before: before, After: after}, nil
}

// Profile reads the full account row: balance, bonus, referral stats.
func (s *Service) Profile(ctx context.Context, userID int64) (accounts.Account, error) {
	acc, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return accounts.Account{}, fmt.Errorf("get account: %w", err)
	}

	return acc, nil
}

// GrantBonus credits the secondary bonus balance. Bonus money is
// non-withdrawable and deliberately bypasses the ledger.
func (s *Service) GrantBonus(ctx context.Context, userID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("bonus amount must be positive, got %s", amount)
	}

	err := s.EnsureAccount(ctx, userID, nil)
	if err != nil {
		return err
	}

	err = s.accounts.AddBonus(ctx, userID, amount)
	if err != nil {
		return fmt.Errorf("grant bonus: %w", err)
	}

	return nil
}

// GetBalance is a lock-free point read (suitable for the GET endpoint).
func (s *Service) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	bal, err := s.accounts.GetBalance(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}

	return bal, nil
}

// History returns the most recent ledger entries for a user.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]ledger.Entry, error) {
	entries, err := s.ledger.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger history: %w", err)
	}

	return entries, nil
}

// LedgerSum recomputes the balance from the audit trail. For a consistent
// store it equals GetBalance.
func (s *Service) LedgerSum(ctx context.Context, userID int64) (decimal.Decimal, error) {
	sum, err := s.ledger.SumByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger sum: %w", err)
	}

	return sum, nil
}
