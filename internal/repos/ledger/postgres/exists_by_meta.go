package ledger

import (
	"database/sql"
	"fmt"
)

// ExistsByMeta reports whether an entry of the given type and method carries
// the given meta value. This is the guard behind idempotent refunds
// (attempt_id) and reconciliation-gap replays, where the dedup key is
// (method, external_id) and type alone would match a different provider's
// payment with a colliding external id.
func (r *ledgerRepo) ExistsByMeta(tx *sql.Tx, entryType, method, metaKey, metaValue string) (bool, error) {
	var exists bool

	err := tx.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM ledger_entries
			WHERE type = $1 AND method = $2 AND meta ->> $3 = $4
		)
	`, entryType, method, metaKey, metaValue).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ledger meta: %w", err)
	}

	return exists, nil
}
