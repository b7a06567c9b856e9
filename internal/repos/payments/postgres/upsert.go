package payments

import (
	"context"
	"fmt"

	"github.com/stakehaus/bankroll/internal/repos/payments"
)

// Upsert registers a pending payment or refreshes an existing reference.
// Providers resend the same external id with updated status; the conflict
// path absorbs those retries. A row already marked paid is never downgraded.
func (r *paymentsRepo) Upsert(ctx context.Context, p payments.PendingPayment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_payments (user_id, method, external_id, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (method, external_id) DO UPDATE SET
			amount = excluded.amount,
			status = excluded.status,
			updated_at = now()
		WHERE pending_payments.status <> 'paid'
	`, p.UserID, p.Method, p.ExternalID, p.Amount, p.Status)
	if err != nil {
		return fmt.Errorf("upsert pending payment: %w", err)
	}

	return nil
}
