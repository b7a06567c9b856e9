package accounts

import (
	"database/sql"
	"fmt"
)

// Ensure creates the account on first contact. Idempotent; a referrer is
// recorded only once (first write wins) and the referrer's counter is bumped
// only when the attribution actually lands.
func (r *accountsRepo) Ensure(tx *sql.Tx, userID int64, referredBy *int64) error {
	_, err := tx.Exec(`
		INSERT INTO accounts (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}

	if referredBy == nil || *referredBy == userID {
		return nil
	}

	res, err := tx.Exec(`
		UPDATE accounts
		SET referred_by = $2, updated_at = now()
		WHERE user_id = $1
		  AND referred_by IS NULL
	`, userID, *referredBy)
	if err != nil {
		return fmt.Errorf("set referrer: %w", err)
	}

	attributed, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if attributed == 1 {
		_, err = tx.Exec(`
			UPDATE accounts
			SET refs_total = refs_total + 1, updated_at = now()
			WHERE user_id = $1
		`, *referredBy)
		if err != nil {
			return fmt.Errorf("bump referrer total: %w", err)
		}
	}

	return nil
}
