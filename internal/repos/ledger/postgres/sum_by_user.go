package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// SumByUser computes the running sum of all deltas for one user. Used by the
// audit surface; for any user it must equal the stored balance.
func (r *ledgerRepo) SumByUser(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal

	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE user_id = $1
	`, userID).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum ledger entries: %w", err)
	}

	return sum, nil
}
