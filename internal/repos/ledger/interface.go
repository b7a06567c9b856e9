package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Entry is one immutable row of the audit trail. Amount is a signed delta;
// Before/After snapshot the balance around it.
type Entry struct {
	ID        int64
	UserID    int64
	Amount    decimal.Decimal
	Type      string
	Method    string
	Before    decimal.Decimal
	After     decimal.Decimal
	Meta      map[string]any
	CreatedAt time.Time
}

type Ledger interface {
	Insert(tx *sql.Tx, entry Entry) (int64, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]Entry, error)
	SumByUser(ctx context.Context, userID int64) (decimal.Decimal, error)
	ExistsByMeta(tx *sql.Tx, entryType, method, metaKey, metaValue string) (bool, error)
}
