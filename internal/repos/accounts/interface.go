package accounts

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInsufficientFunds = errors.New("insufficient funds")
var ErrAccountNotFound = errors.New("account not found")

// Account is the authoritative per-user money state. The bonus balance is a
// secondary, non-withdrawable amount and is not ledgered.
type Account struct {
	UserID     int64
	Balance    decimal.Decimal
	Bonus      decimal.Decimal
	ReferredBy *int64
	RefsTotal  int
	RefsEarned decimal.Decimal
}

type Accounts interface {
	Ensure(tx *sql.Tx, userID int64, referredBy *int64) error
	Get(ctx context.Context, userID int64) (Account, error)
	GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
	LockAndGetBalance(tx *sql.Tx, userID int64) (decimal.Decimal, error)
	SetBalance(tx *sql.Tx, userID int64, balance decimal.Decimal) error
	AddBonus(ctx context.Context, userID int64, amount decimal.Decimal) error
	ReferrerOf(ctx context.Context, userID int64) (int64, bool, error)
	AddReferralEarnings(tx *sql.Tx, userID int64, amount decimal.Decimal) error
}
