package payments

import (
	"context"
	"fmt"

	"github.com/stakehaus/bankroll/internal/repos/payments"
)

// FindUncredited returns paid payments that have no matching deposit in the
// ledger. Each one is a reconciliation gap: the paid transition committed but
// the credit did not.
func (r *paymentsRepo) FindUncredited(ctx context.Context, limit int) ([]payments.PendingPayment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.user_id, p.method, p.external_id, p.amount, p.status, p.created_at, p.updated_at
		FROM pending_payments p
		WHERE p.status = 'paid'
		  AND NOT EXISTS (
			SELECT 1 FROM ledger_entries l
			WHERE l.type = 'deposit'
			  AND l.meta ->> 'external_id' = p.external_id
			  AND l.method = p.method
		  )
		ORDER BY p.updated_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("find uncredited payments: %w", err)
	}
	defer rows.Close()

	var out []payments.PendingPayment
	for rows.Next() {
		var p payments.PendingPayment

		err = rows.Scan(&p.ID, &p.UserID, &p.Method, &p.ExternalID, &p.Amount, &p.Status, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan pending payment: %w", err)
		}

		out = append(out, p)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return out, nil
}
