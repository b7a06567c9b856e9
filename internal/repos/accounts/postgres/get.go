package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stakehaus/bankroll/internal/repos/accounts"
)

func (r *accountsRepo) Get(ctx context.Context, userID int64) (accounts.Account, error) {
	var acc accounts.Account

	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, balance, bonus, referred_by, refs_total, refs_earned
		FROM accounts
		WHERE user_id = $1
	`, userID).Scan(&acc.UserID, &acc.Balance, &acc.Bonus, &acc.ReferredBy, &acc.RefsTotal, &acc.RefsEarned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accounts.Account{}, accounts.ErrAccountNotFound
		}

		return accounts.Account{}, fmt.Errorf("get account: %w", err)
	}

	return acc, nil
}
