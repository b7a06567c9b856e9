package raffles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stakehaus/bankroll/internal/repos/raffles"
)

func (r *rafflesRepo) Insert(tx *sql.Tx, creatorID int64, entryAmount decimal.Decimal) (int64, error) {
	var id int64

	err := tx.QueryRow(`
		INSERT INTO raffles (creator_id, entry_amount, pot, status)
		VALUES ($1, $2, $2, 'open')
		RETURNING id
	`, creatorID, entryAmount).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert raffle: %w", err)
	}

	return id, nil
}

func (r *rafflesRepo) Get(ctx context.Context, id int64) (raffles.Raffle, error) {
	return scanRaffle(r.db.QueryRowContext(ctx, getQuery, id))
}

// LockAndGet takes the raffle row lock, serializing joins and the draw
// against each other.
func (r *rafflesRepo) LockAndGet(tx *sql.Tx, id int64) (raffles.Raffle, error) {
	return scanRaffle(tx.QueryRow(getQuery+" FOR UPDATE", id))
}

const getQuery = `
	SELECT id, creator_id, entry_amount, pot, status, winner_id, created_at, updated_at
	FROM raffles
	WHERE id = $1`

func scanRaffle(row *sql.Row) (raffles.Raffle, error) {
	var rf raffles.Raffle

	err := row.Scan(
		&rf.ID, &rf.CreatorID, &rf.EntryAmount, &rf.Pot, &rf.Status,
		&rf.WinnerID, &rf.CreatedAt, &rf.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return raffles.Raffle{}, raffles.ErrRaffleNotFound
		}

		return raffles.Raffle{}, fmt.Errorf("get raffle: %w", err)
	}

	return rf, nil
}

// AddParticipant reports false for a duplicate (raffle_id, user_id) pair
// instead of erroring, so duplicate joins refund cleanly.
func (r *rafflesRepo) AddParticipant(tx *sql.Tx, raffleID, userID int64) (bool, error) {
	res, err := tx.Exec(`
		INSERT INTO raffle_participants (raffle_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (raffle_id, user_id) DO NOTHING
	`, raffleID, userID)
	if err != nil {
		return false, fmt.Errorf("add participant: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}

func (r *rafflesRepo) AddToPot(tx *sql.Tx, raffleID int64, amount decimal.Decimal) error {
	res, err := tx.Exec(`
		UPDATE raffles
		SET pot = pot + $2, updated_at = now()
		WHERE id = $1
		  AND status = 'open'
	`, raffleID, amount)
	if err != nil {
		return fmt.Errorf("add to pot: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return raffles.ErrRaffleNotFound
	}

	return nil
}

func (r *rafflesRepo) Participants(tx *sql.Tx, raffleID int64) ([]int64, error) {
	rows, err := tx.Query(`
		SELECT user_id
		FROM raffle_participants
		WHERE raffle_id = $1
		ORDER BY joined_at
	`, raffleID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64

		err = rows.Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}

		ids = append(ids, id)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return ids, nil
}

func (r *rafflesRepo) Close(tx *sql.Tx, id, winnerID int64) (bool, error) {
	res, err := tx.Exec(`
		UPDATE raffles
		SET status = 'closed', winner_id = $2, updated_at = now()
		WHERE id = $1
		  AND status = 'open'
	`, id, winnerID)
	if err != nil {
		return false, fmt.Errorf("close raffle: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}
