package payments

import (
	"context"
	"fmt"
)

// MarkPaid flips pending -> paid with the guard inside the UPDATE itself, so
// exactly one of any number of concurrent callers observes the transition.
// Missing row and already-paid row both report false with no error.
func (r *paymentsRepo) MarkPaid(ctx context.Context, method, externalID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pending_payments
		SET status = 'paid', updated_at = now()
		WHERE method = $1
		  AND external_id = $2
		  AND status <> 'paid'
	`, method, externalID)
	if err != nil {
		return false, fmt.Errorf("mark paid: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}
