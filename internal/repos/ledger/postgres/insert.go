package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/stakehaus/bankroll/internal/repos/ledger"
)

func (r *ledgerRepo) Insert(tx *sql.Tx, entry ledger.Entry) (int64, error) {
	var meta any
	if entry.Meta != nil {
		raw, err := json.Marshal(entry.Meta)
		if err != nil {
			return 0, fmt.Errorf("marshal meta: %w", err)
		}
		meta = raw
	}

	var method any
	if entry.Method != "" {
		method = entry.Method
	}

	var id int64
	err := tx.QueryRow(`
		INSERT INTO ledger_entries (user_id, amount, type, method, before, after, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, entry.UserID, entry.Amount, entry.Type, method, entry.Before, entry.After, meta).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert ledger entry: %w", err)
	}

	return id, nil
}
