package withdrawals

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrWithdrawalNotFound = errors.New("withdrawal not found")

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Withdrawal struct {
	ID          int64
	UserID      int64
	Amount      decimal.Decimal
	Wallet      string
	Status      Status
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

type Withdrawals interface {
	Insert(tx *sql.Tx, userID int64, amount decimal.Decimal, wallet string) (int64, error)
	Get(ctx context.Context, id int64) (Withdrawal, error)
	SetStatus(tx *sql.Tx, id int64, to Status) (Withdrawal, bool, error)
}
