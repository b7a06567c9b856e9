// Package contest coordinates multi-party pots (duels and raffles) over the
// balance engine. Contest rows are the single source of truth; there is no
// in-memory session state.
package contest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stakehaus/bankroll/internal/events"
	"github.com/stakehaus/bankroll/internal/infra/pgutils"
	"github.com/stakehaus/bankroll/internal/repos/duels"
	pgduels "github.com/stakehaus/bankroll/internal/repos/duels/postgres"
	"github.com/stakehaus/bankroll/internal/repos/ledger"
	pgledger "github.com/stakehaus/bankroll/internal/repos/ledger/postgres"
	"github.com/stakehaus/bankroll/internal/repos/raffles"
	pgraffles "github.com/stakehaus/bankroll/internal/repos/raffles/postgres"
	"github.com/stakehaus/bankroll/internal/services/balance"
	"github.com/stakehaus/bankroll/internal/services/referrals"
)

// ErrConflictingState covers transitions that lost a race or targeted a
// terminal state: duel already joined or cancelled, raffle already closed.
// Callers refund any already-taken debit and inform the user.
var ErrConflictingState = errors.New("conflicting contest state")

// ErrNotParticipant rejects a resolve call naming a winner who is not one of
// the duel's two parties.
var ErrNotParticipant = errors.New("winner is not a duel participant")

const refundAttempts = 3

type Service struct {
	db        *sql.DB
	duels     duels.Duels
	raffles   raffles.Raffles
	ledger    ledger.Ledger
	balances  *balance.Service
	referrals *referrals.Service
	events    events.Publisher
}

func New(db *sql.DB, balances *balance.Service, refs *referrals.Service, pub events.Publisher) *Service {
	return &Service{
		db:        db,
		duels:     pgduels.New(db),
		raffles:   pgraffles.New(db),
		ledger:    pgledger.New(db),
		balances:  balances,
		referrals: refs,
		events:    pub,
	}
}

// refundCompensation credits back a debit whose follow-up step lost a race.
// At-least-once with bounded retries, idempotent per attempt id: the ledger
// is checked for an existing refund carrying the same attempt id inside the
// same transaction as the credit.
func (s *Service) refundCompensation(ctx context.Context, userID int64, amount decimal.Decimal, refundType, attemptID string, meta map[string]any) error {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["attempt_id"] = attemptID

	var lastErr error
	for i := 0; i < refundAttempts; i++ {
		err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			exists, txErr := s.ledger.ExistsByMeta(tx, refundType, balance.MethodSystem, "attempt_id", attemptID)
			if txErr != nil {
				return fmt.Errorf("check refund attempt: %w", txErr)
			}
			if exists {
				return nil
			}

			_, txErr = s.balances.ApplyDeltaTx(tx, balance.Change{
				UserID: userID,
				Delta:  amount,
				Type:   refundType,
				Method: balance.MethodSystem,
				Meta:   meta,
			})
			return txErr
		})
		if err == nil {
			return nil
		}

		lastErr = err
		slog.Warn("compensating refund attempt failed",
			"user_id", userID, "type", refundType, "attempt_id", attemptID,
			"try", i+1, "error", err)
	}

	return fmt.Errorf("refund %s for user %d (attempt %s): %w", refundType, userID, attemptID, lastErr)
}

func newAttemptID() string {
	return uuid.NewString()
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	err := s.events.Publish(ctx, e)
	if err != nil {
		slog.Warn("event publish failed", "kind", e.Kind, "error", err)
	}
}
