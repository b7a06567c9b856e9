package accounts

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stakehaus/bankroll/internal/repos/accounts"
)

// SetBalance writes the new balance computed under the row lock taken by
// LockAndGetBalance. Callers enforce the non-negative invariant.
func (r *accountsRepo) SetBalance(tx *sql.Tx, userID int64, balance decimal.Decimal) error {
	res, err := tx.Exec(`
		UPDATE accounts
		SET balance = $2, updated_at = now()
		WHERE user_id = $1
	`, userID, balance)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
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
