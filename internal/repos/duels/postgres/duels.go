package duels

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stakehaus/bankroll/internal/repos/duels"
)

func (r *duelsRepo) Insert(tx *sql.Tx, creatorID int64, bet decimal.Decimal, game string) (int64, error) {
	var id int64

	err := tx.QueryRow(`
		INSERT INTO duels (creator_id, bet, pot, game, status)
		VALUES ($1, $2, $2, $3, 'waiting')
		RETURNING id
	`, creatorID, bet, game).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert duel: %w", err)
	}

	return id, nil
}

func (r *duelsRepo) Get(ctx context.Context, id int64) (duels.Duel, error) {
	var d duels.Duel

	err := r.db.QueryRowContext(ctx, `
		SELECT id, creator_id, opponent_id, bet, pot, game, status, winner_id, created_at, updated_at
		FROM duels
		WHERE id = $1
	`, id).Scan(
		&d.ID, &d.CreatorID, &d.OpponentID, &d.Bet, &d.Pot, &d.Game, &d.Status,
		&d.WinnerID, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return duels.Duel{}, duels.ErrDuelNotFound
		}

		return duels.Duel{}, fmt.Errorf("get duel: %w", err)
	}

	return d, nil
}

// Join is the single statement that settles the join race: only one caller
// sees the waiting row, everyone else gets zero rows back.
func (r *duelsRepo) Join(ctx context.Context, id, opponentID int64) (decimal.Decimal, bool, error) {
	var pot decimal.Decimal

	err := r.db.QueryRowContext(ctx, `
		UPDATE duels
		SET opponent_id = $2, pot = pot + bet, status = 'active', updated_at = now()
		WHERE id = $1
		  AND status = 'waiting'
		RETURNING pot
	`, id, opponentID).Scan(&pot)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, false, nil
		}

		return decimal.Zero, false, fmt.Errorf("join duel: %w", err)
	}

	return pot, true, nil
}

// Finish returns the duel row as the guarded UPDATE committed it, so the
// caller settles against the pot and parties that actually won the race,
// not a snapshot read earlier.
func (r *duelsRepo) Finish(tx *sql.Tx, id, winnerID int64) (duels.Duel, bool, error) {
	var d duels.Duel

	err := tx.QueryRow(`
		UPDATE duels
		SET status = 'finished', winner_id = $2, updated_at = now()
		WHERE id = $1
		  AND status = 'active'
		RETURNING id, creator_id, opponent_id, bet, pot, game, status, winner_id, created_at, updated_at
	`, id, winnerID).Scan(
		&d.ID, &d.CreatorID, &d.OpponentID, &d.Bet, &d.Pot, &d.Game, &d.Status,
		&d.WinnerID, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return duels.Duel{}, false, nil
		}

		return duels.Duel{}, false, fmt.Errorf("finish duel: %w", err)
	}

	return d, true, nil
}

func (r *duelsRepo) Cancel(tx *sql.Tx, id, creatorID int64) (decimal.Decimal, bool, error) {
	var bet decimal.Decimal

	err := tx.QueryRow(`
		UPDATE duels
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1
		  AND creator_id = $2
		  AND status = 'waiting'
		RETURNING bet
	`, id, creatorID).Scan(&bet)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, false, nil
		}

		return decimal.Zero, false, fmt.Errorf("cancel duel: %w", err)
	}

	return bet, true, nil
}
