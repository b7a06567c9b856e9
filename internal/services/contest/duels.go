package contest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stakehaus/bankroll/internal/events"
	"github.com/stakehaus/bankroll/internal/infra/pgutils"
	"github.com/stakehaus/bankroll/internal/repos/duels"
	"github.com/stakehaus/bankroll/internal/services/balance"
)

type DuelJoinStatus string

const (
	DuelJoined   DuelJoinStatus = "joined"
	DuelBusy     DuelJoinStatus = "busy"
	DuelNotFound DuelJoinStatus = "not_found"
)

// CreateDuel debits the creator's bet and opens the duel in one transaction.
// The duel id is available via RETURNING before commit, so no compensation
// path is needed on create.
func (s *Service) CreateDuel(ctx context.Context, creatorID int64, bet decimal.Decimal, game string) (int64, error) {
	if !bet.IsPositive() {
		return 0, fmt.Errorf("bet must be positive, got %s", bet)
	}

	var duelID int64
	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var txErr error
		duelID, txErr = s.duels.Insert(tx, creatorID, bet, game)
		if txErr != nil {
			return txErr
		}

		_, txErr = s.balances.ApplyDeltaTx(tx, balance.Change{
			UserID: creatorID,
			Delta:  bet.Neg(),
			Type:   balance.TypeDuelBet,
			Method: balance.MethodSystem,
			Meta:   map[string]any{"duel_id": duelID, "role": "creator", "game": game},
		})
		return txErr
	})
	if err != nil {
		return 0, fmt.Errorf("create duel: %w", err)
	}

	s.publish(ctx, events.New(events.KindDuelCreated, creatorID, bet.String(), map[string]any{
		"duel_id": duelID,
		"game":    game,
	}))

	return duelID, nil
}

func (s *Service) GetDuel(ctx context.Context, id int64) (duels.Duel, error) {
	return s.duels.Get(ctx, id)
}

// JoinDuel debits the opponent's bet first, then attempts the guarded join.
// Exactly one concurrent joiner wins; every loser's debit is refunded via an
// attempt-id-idempotent compensating credit. There is deliberately no status
// precheck between the read and the debit: the guard inside the join UPDATE
// is the only authority, so every loser follows the same debit-refund path.
func (s *Service) JoinDuel(ctx context.Context, duelID, opponentID int64) (DuelJoinStatus, decimal.Decimal, error) {
	d, err := s.duels.Get(ctx, duelID)
	if err != nil {
		if errors.Is(err, duels.ErrDuelNotFound) {
			return DuelNotFound, decimal.Zero, nil
		}
		return "", decimal.Zero, fmt.Errorf("load duel: %w", err)
	}

	if d.CreatorID == opponentID {
		return DuelBusy, d.Pot, nil
	}

	attemptID := newAttemptID()

	_, err = s.balances.ApplyDelta(ctx, balance.Change{
		UserID: opponentID,
		Delta:  d.Bet.Neg(),
		Type:   balance.TypeDuelBet,
		Method: balance.MethodSystem,
		Meta:   map[string]any{"duel_id": duelID, "role": "opponent", "attempt_id": attemptID},
	})
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("debit opponent bet: %w", err)
	}

	pot, joined, err := s.duels.Join(ctx, duelID, opponentID)
	if err != nil {
		// Join outcome unknown; the debit stands only if the refund below
		// also fails, which the caller sees as an error to retry.
		refundErr := s.refundCompensation(ctx, opponentID, d.Bet, balance.TypeDuelRefund, attemptID,
			map[string]any{"duel_id": duelID})
		if refundErr != nil {
			return "", decimal.Zero, fmt.Errorf("join duel: %w (refund also failed: %w)", err, refundErr)
		}
		return "", decimal.Zero, fmt.Errorf("join duel: %w", err)
	}

	if !joined {
		err = s.refundCompensation(ctx, opponentID, d.Bet, balance.TypeDuelRefund, attemptID,
			map[string]any{"duel_id": duelID})
		if err != nil {
			return DuelBusy, d.Pot, err
		}
		return DuelBusy, d.Pot, nil
	}

	return DuelJoined, pot, nil
}

// ResolveDuel pays the full pot to the winner and finishes the duel in one
// transaction. The active-status guard makes resolution exactly-once: a
// second call observes zero rows and gets ErrConflictingState. Pot, parties
// and game come back from the finishing UPDATE itself, so a join that
// commits just before the guard is settled in full rather than against an
// earlier snapshot of the row.
func (s *Service) ResolveDuel(ctx context.Context, duelID, winnerID int64) (decimal.Decimal, error) {
	var d duels.Duel

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var finished bool
		var txErr error

		d, finished, txErr = s.duels.Finish(tx, duelID, winnerID)
		if txErr != nil {
			return txErr
		}
		if !finished {
			return fmt.Errorf("duel %d is not active: %w", duelID, ErrConflictingState)
		}

		// Rolling back here leaves the duel active.
		if winnerID != d.CreatorID && (d.OpponentID == nil || winnerID != *d.OpponentID) {
			return ErrNotParticipant
		}

		_, txErr = s.balances.ApplyDeltaTx(tx, balance.Change{
			UserID: winnerID,
			Delta:  d.Pot,
			Type:   balance.TypeDuelWin,
			Method: balance.MethodSystem,
			Meta:   map[string]any{"duel_id": duelID, "game": d.Game},
		})
		return txErr
	})
	if err != nil {
		if errors.Is(err, ErrConflictingState) {
			if _, gerr := s.duels.Get(ctx, duelID); errors.Is(gerr, duels.ErrDuelNotFound) {
				return decimal.Zero, fmt.Errorf("resolve duel: %w", gerr)
			}
		}

		return decimal.Zero, fmt.Errorf("resolve duel: %w", err)
	}

	loserID := d.CreatorID
	if winnerID == d.CreatorID && d.OpponentID != nil {
		loserID = *d.OpponentID
	}

	// Best-effort side effects; a committed settlement never rolls back
	// because of them.
	s.referrals.AwardLossCommission(ctx, loserID, d.Bet)
	s.publish(ctx, events.New(events.KindDuelFinished, winnerID, d.Pot.String(), map[string]any{
		"duel_id":  duelID,
		"game":     d.Game,
		"loser_id": loserID,
	}))

	return d.Pot, nil
}

// CancelDuel is creator-only and only possible while the duel is waiting.
// The status transition and the refund commit together.
func (s *Service) CancelDuel(ctx context.Context, duelID, creatorID int64) error {
	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		bet, cancelled, txErr := s.duels.Cancel(tx, duelID, creatorID)
		if txErr != nil {
			return txErr
		}
		if !cancelled {
			return fmt.Errorf("duel %d cannot be cancelled: %w", duelID, ErrConflictingState)
		}

		_, txErr = s.balances.ApplyDeltaTx(tx, balance.Change{
			UserID: creatorID,
			Delta:  bet,
			Type:   balance.TypeDuelRefund,
			Method: balance.MethodSystem,
			Meta:   map[string]any{"duel_id": duelID, "reason": "cancelled"},
		})
		return txErr
	})
	if err != nil {
		return fmt.Errorf("cancel duel: %w", err)
	}

	s.publish(ctx, events.New(events.KindDuelCancelled, creatorID, "", map[string]any{
		"duel_id": duelID,
	}))

	return nil
}
