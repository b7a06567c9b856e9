package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stakehaus/bankroll/internal/repos/payments"
)

func (r *paymentsRepo) Get(ctx context.Context, method, externalID string) (payments.PendingPayment, error) {
	var p payments.PendingPayment

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, method, external_id, amount, status, created_at, updated_at
		FROM pending_payments
		WHERE method = $1 AND external_id = $2
	`, method, externalID).Scan(
		&p.ID, &p.UserID, &p.Method, &p.ExternalID, &p.Amount, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return payments.PendingPayment{}, payments.ErrPaymentNotFound
		}

		return payments.PendingPayment{}, fmt.Errorf("get pending payment: %w", err)
	}

	return p, nil
}
