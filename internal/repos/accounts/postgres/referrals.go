package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stakehaus/bankroll/internal/repos/accounts"
)

// ReferrerOf reads the user's current referrer. Attribution is read at
// settlement time, not frozen at account creation.
func (r *accountsRepo) ReferrerOf(ctx context.Context, userID int64) (int64, bool, error) {
	var referredBy sql.NullInt64

	err := r.db.QueryRowContext(ctx, `
		SELECT referred_by
		FROM accounts
		WHERE user_id = $1
	`, userID).Scan(&referredBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, accounts.ErrAccountNotFound
		}

		return 0, false, fmt.Errorf("get referrer: %w", err)
	}

	if !referredBy.Valid {
		return 0, false, nil
	}

	return referredBy.Int64, true, nil
}

func (r *accountsRepo) AddReferralEarnings(tx *sql.Tx, userID int64, amount decimal.Decimal) error {
	_, err := tx.Exec(`
		UPDATE accounts
		SET refs_earned = refs_earned + $2, updated_at = now()
		WHERE user_id = $1
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("add referral earnings: %w", err)
	}

	return nil
}
