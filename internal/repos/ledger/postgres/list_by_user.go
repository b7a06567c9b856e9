package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/stakehaus/bankroll/internal/repos/ledger"
)

func (r *ledgerRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]ledger.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, amount, type, method, before, after, meta, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			e      ledger.Entry
			method sql.NullString
			meta   []byte
		)

		err = rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Type, &method, &e.Before, &e.After, &meta, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}

		e.Method = method.String
		if len(meta) > 0 {
			err = json.Unmarshal(meta, &e.Meta)
			if err != nil {
				return nil, fmt.Errorf("unmarshal meta: %w", err)
			}
		}

		entries = append(entries, e)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return entries, nil
}
