package contest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/stakehaus/bankroll/internal/events"
	"github.com/stakehaus/bankroll/internal/infra/pgutils"
	"github.com/stakehaus/bankroll/internal/repos/raffles"
	"github.com/stakehaus/bankroll/internal/services/balance"
)

type RaffleJoinStatus string

const (
	RaffleJoined   RaffleJoinStatus = "joined"
	RaffleClosed   RaffleJoinStatus = "closed"
	RaffleAlready  RaffleJoinStatus = "already"
	RaffleNotFound RaffleJoinStatus = "not_found"
)

// CreateRaffle opens the raffle with the creator as first participant and
// debits the entry fee, all in one transaction.
func (s *Service) CreateRaffle(ctx context.Context, creatorID int64, entry decimal.Decimal) (int64, error) {
	if !entry.IsPositive() {
		return 0, fmt.Errorf("entry amount must be positive, got %s", entry)
	}

	var raffleID int64
	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var txErr error
		raffleID, txErr = s.raffles.Insert(tx, creatorID, entry)
		if txErr != nil {
			return txErr
		}

		_, txErr = s.raffles.AddParticipant(tx, raffleID, creatorID)
		if txErr != nil {
			return txErr
		}

		_, txErr = s.balances.ApplyDeltaTx(tx, balance.Change{
			UserID: creatorID,
			Delta:  entry.Neg(),
			Type:   balance.TypeRaffleEntry,
			Method: balance.MethodSystem,
			Meta:   map[string]any{"raffle_id": raffleID, "role": "creator"},
		})
		return txErr
	})
	if err != nil {
		return 0, fmt.Errorf("create raffle: %w", err)
	}

	s.publish(ctx, events.New(events.KindRaffleCreated, creatorID, entry.String(), map[string]any{
		"raffle_id": raffleID,
	}))

	return raffleID, nil
}

func (s *Service) GetRaffle(ctx context.Context, id int64) (raffles.Raffle, error) {
	return s.raffles.Get(ctx, id)
}

// JoinRaffle debits the entry fee first, then records participation under
// the raffle row lock. Three outcomes refund the debit: raffle missing,
// raffle closed, and duplicate join. Only a genuinely new participant grows
// the pot.
func (s *Service) JoinRaffle(ctx context.Context, raffleID, userID int64) (RaffleJoinStatus, decimal.Decimal, error) {
	rf, err := s.raffles.Get(ctx, raffleID)
	if err != nil {
		if errors.Is(err, raffles.ErrRaffleNotFound) {
			return RaffleNotFound, decimal.Zero, nil
		}
		return "", decimal.Zero, fmt.Errorf("load raffle: %w", err)
	}
	if rf.Status != raffles.StatusOpen {
		return RaffleClosed, rf.Pot, nil
	}

	attemptID := newAttemptID()

	_, err = s.balances.ApplyDelta(ctx, balance.Change{
		UserID: userID,
		Delta:  rf.EntryAmount.Neg(),
		Type:   balance.TypeRaffleEntry,
		Method: balance.MethodSystem,
		Meta:   map[string]any{"raffle_id": raffleID, "attempt_id": attemptID},
	})
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("debit entry fee: %w", err)
	}

	status := RaffleJoined
	var pot decimal.Decimal

	err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		locked, txErr := s.raffles.LockAndGet(tx, raffleID)
		if txErr != nil {
			if errors.Is(txErr, raffles.ErrRaffleNotFound) {
				status = RaffleNotFound
				return nil
			}
			return txErr
		}

		if locked.Status != raffles.StatusOpen {
			status = RaffleClosed
			pot = locked.Pot
			return nil
		}

		added, txErr := s.raffles.AddParticipant(tx, raffleID, userID)
		if txErr != nil {
			return txErr
		}
		if !added {
			status = RaffleAlready
			pot = locked.Pot
			return nil
		}

		txErr = s.raffles.AddToPot(tx, raffleID, locked.EntryAmount)
		if txErr != nil {
			return txErr
		}

		pot = locked.Pot.Add(locked.EntryAmount)
		return nil
	})
	if err != nil {
		refundErr := s.refundCompensation(ctx, userID, rf.EntryAmount, balance.TypeRaffleRefund, attemptID,
			map[string]any{"raffle_id": raffleID})
		if refundErr != nil {
			return "", decimal.Zero, fmt.Errorf("join raffle: %w (refund also failed: %w)", err, refundErr)
		}
		return "", decimal.Zero, fmt.Errorf("join raffle: %w", err)
	}

	if status != RaffleJoined {
		meta := map[string]any{"raffle_id": raffleID}
		if status == RaffleAlready {
			meta["reason"] = "duplicate"
		}
		err = s.refundCompensation(ctx, userID, rf.EntryAmount, balance.TypeRaffleRefund, attemptID, meta)
		if err != nil {
			return status, pot, err
		}
	}

	return status, pot, nil
}

// DrawRaffle closes the raffle and pays the full pot to one winner picked
// uniformly from the participants, all in one transaction. Closing under the
// row lock means any join racing the draw either lands before the
// participant read or observes closed and refunds.
func (s *Service) DrawRaffle(ctx context.Context, raffleID, callerID int64) (winnerID int64, pot decimal.Decimal, err error) {
	err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		rf, txErr := s.raffles.LockAndGet(tx, raffleID)
		if txErr != nil {
			return txErr
		}

		if rf.CreatorID != callerID {
			return fmt.Errorf("only the creator may draw raffle %d: %w", raffleID, ErrConflictingState)
		}
		if rf.Status != raffles.StatusOpen {
			return fmt.Errorf("raffle %d already closed: %w", raffleID, ErrConflictingState)
		}

		participants, txErr := s.raffles.Participants(tx, raffleID)
		if txErr != nil {
			return txErr
		}

		// The creator joins at create time, so an empty set should not
		// happen; fall back to the creator rather than strand the pot.
		if len(participants) == 0 {
			winnerID = rf.CreatorID
		} else {
			winnerID = participants[rand.Intn(len(participants))]
		}
		pot = rf.Pot

		closed, txErr := s.raffles.Close(tx, raffleID, winnerID)
		if txErr != nil {
			return txErr
		}
		if !closed {
			return fmt.Errorf("raffle %d already closed: %w", raffleID, ErrConflictingState)
		}

		_, txErr = s.balances.ApplyDeltaTx(tx, balance.Change{
			UserID: winnerID,
			Delta:  pot,
			Type:   balance.TypeRaffleWin,
			Method: balance.MethodSystem,
			Meta:   map[string]any{"raffle_id": raffleID},
		})
		return txErr
	})
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("draw raffle: %w", err)
	}

	s.publish(ctx, events.New(events.KindRaffleClosed, winnerID, pot.String(), map[string]any{
		"raffle_id": raffleID,
	}))

	return winnerID, pot, nil
}
