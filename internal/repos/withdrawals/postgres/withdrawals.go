package withdrawals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stakehaus/bankroll/internal/repos/withdrawals"
)

var _ withdrawals.Withdrawals = (*withdrawalsRepo)(nil)

type withdrawalsRepo struct{ db *sql.DB }

func New(db *sql.DB) *withdrawalsRepo {
	return &withdrawalsRepo{db: db}
}

func (r *withdrawalsRepo) Insert(tx *sql.Tx, userID int64, amount decimal.Decimal, wallet string) (int64, error) {
	var id int64

	err := tx.QueryRow(`
		INSERT INTO withdrawals (user_id, amount, wallet, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING id
	`, userID, amount, wallet).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert withdrawal: %w", err)
	}

	return id, nil
}

func (r *withdrawalsRepo) Get(ctx context.Context, id int64) (withdrawals.Withdrawal, error) {
	var w withdrawals.Withdrawal

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, amount, wallet, status, created_at, processed_at
		FROM withdrawals
		WHERE id = $1
	`, id).Scan(&w.ID, &w.UserID, &w.Amount, &w.Wallet, &w.Status, &w.CreatedAt, &w.ProcessedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return withdrawals.Withdrawal{}, withdrawals.ErrWithdrawalNotFound
		}

		return withdrawals.Withdrawal{}, fmt.Errorf("get withdrawal: %w", err)
	}

	return w, nil
}

// SetStatus moves a pending withdrawal to a terminal state. The pending
// guard sits inside the UPDATE, so approve/reject races resolve to exactly
// one winner.
func (r *withdrawalsRepo) SetStatus(tx *sql.Tx, id int64, to withdrawals.Status) (withdrawals.Withdrawal, bool, error) {
	var w withdrawals.Withdrawal

	err := tx.QueryRow(`
		UPDATE withdrawals
		SET status = $2, processed_at = now()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING id, user_id, amount, wallet, status, created_at, processed_at
	`, id, to).Scan(&w.ID, &w.UserID, &w.Amount, &w.Wallet, &w.Status, &w.CreatedAt, &w.ProcessedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return withdrawals.Withdrawal{}, false, nil
		}

		return withdrawals.Withdrawal{}, false, fmt.Errorf("set withdrawal status: %w", err)
	}

	return w, true, nil
}
