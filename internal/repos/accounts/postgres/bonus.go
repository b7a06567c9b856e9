package accounts

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stakehaus/bankroll/internal/repos/accounts"
)

// AddBonus adjusts the secondary bonus balance. Bonus money is tracked with
// looser consistency and never goes through the ledger.
func (r *accountsRepo) AddBonus(ctx context.Context, userID int64, amount decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET bonus = bonus + $2, updated_at = now()
		WHERE user_id = $1
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("add bonus: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return accounts.ErrAccountNotFound
	}

	return nil
}
