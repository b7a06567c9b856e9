// Package withdrawals handles the hold/approve/reject flow for cashing out.
// The hold debit and the withdrawal row commit together; reject refunds the
// held amount.
package withdrawals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/stakehaus/bankroll/internal/events"
	"github.com/stakehaus/bankroll/internal/infra/pgutils"
	"github.com/stakehaus/bankroll/internal/repos/withdrawals"
	pgwithdrawals "github.com/stakehaus/bankroll/internal/repos/withdrawals/postgres"
	"github.com/stakehaus/bankroll/internal/services/balance"
)

// ErrAlreadyProcessed covers approve/reject on a withdrawal that left the
// pending state.
var ErrAlreadyProcessed = errors.New("withdrawal already processed")

// ErrBelowMinimum rejects requests under the configured floor.
var ErrBelowMinimum = errors.New("withdrawal below minimum")

var minimumAmount = decimal.NewFromInt(5)

type Service struct {
	db          *sql.DB
	withdrawals withdrawals.Withdrawals
	balances    *balance.Service
	events      events.Publisher
}

func New(db *sql.DB, balances *balance.Service, pub events.Publisher) *Service {
	return &Service{
		db:          db,
		withdrawals: pgwithdrawals.New(db),
		balances:    balances,
		events:      pub,
	}
}

// Request places a hold: the amount leaves the balance immediately
// (withdraw_hold) and a pending withdrawal row is created, atomically.
func (s *Service) Request(ctx context.Context, userID int64, amount decimal.Decimal, wallet string) (int64, error) {
	if amount.LessThan(minimumAmount) {
		return 0, fmt.Errorf("minimum is %s: %w", minimumAmount, ErrBelowMinimum)
	}

	var id int64
	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var txErr error
		id, txErr = s.withdrawals.Insert(tx, userID, amount, wallet)
		if txErr != nil {
			return txErr
		}

		_, txErr = s.balances.ApplyDeltaTx(tx, balance.Change{
			UserID: userID,
			Delta:  amount.Neg(),
			Type:   balance.TypeWithdrawHold,
			Method: balance.MethodSystem,
			Meta:   map[string]any{"withdrawal_id": id, "wallet": wallet},
		})
		return txErr
	})
	if err != nil {
		return 0, fmt.Errorf("request withdrawal: %w", err)
	}

	s.publish(ctx, events.New(events.KindWithdrawRequested, userID, amount.String(), map[string]any{
		"withdrawal_id": id,
	}))

	return id, nil
}

func (s *Service) Get(ctx context.Context, id int64) (withdrawals.Withdrawal, error) {
	return s.withdrawals.Get(ctx, id)
}

// Approve marks the withdrawal paid out. The held amount stays debited.
func (s *Service) Approve(ctx context.Context, id int64) error {
	var w withdrawals.Withdrawal

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var ok bool
		var txErr error
		w, ok, txErr = s.withdrawals.SetStatus(tx, id, withdrawals.StatusApproved)
		if txErr != nil {
			return txErr
		}
		if !ok {
			return s.classifyGuardMiss(ctx, id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("approve withdrawal %d: %w", id, err)
	}

	s.publish(ctx, events.New(events.KindWithdrawProcessed, w.UserID, w.Amount.String(), map[string]any{
		"withdrawal_id": id,
		"status":        string(withdrawals.StatusApproved),
	}))

	return nil
}

// Reject releases the hold: the status transition and the refund credit
// commit together.
func (s *Service) Reject(ctx context.Context, id int64) error {
	var w withdrawals.Withdrawal

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var ok bool
		var txErr error
		w, ok, txErr = s.withdrawals.SetStatus(tx, id, withdrawals.StatusRejected)
		if txErr != nil {
			return txErr
		}
		if !ok {
			return s.classifyGuardMiss(ctx, id)
		}

		_, txErr = s.balances.ApplyDeltaTx(tx, balance.Change{
			UserID: w.UserID,
			Delta:  w.Amount,
			Type:   balance.TypeWithdrawRefund,
			Method: balance.MethodSystem,
			Meta:   map[string]any{"withdrawal_id": id},
		})
		return txErr
	})
	if err != nil {
		return fmt.Errorf("reject withdrawal %d: %w", id, err)
	}

	s.publish(ctx, events.New(events.KindWithdrawProcessed, w.UserID, w.Amount.String(), map[string]any{
		"withdrawal_id": id,
		"status":        string(withdrawals.StatusRejected),
	}))

	return nil
}

// classifyGuardMiss turns a failed pending-only transition into the right
// sentinel: missing row vs already processed.
func (s *Service) classifyGuardMiss(ctx context.Context, id int64) error {
	_, err := s.withdrawals.Get(ctx, id)
	if err != nil {
		if errors.Is(err, withdrawals.ErrWithdrawalNotFound) {
			return withdrawals.ErrWithdrawalNotFound
		}
		return err
	}

	return ErrAlreadyProcessed
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	err := s.events.Publish(ctx, e)
	if err != nil {
		slog.Warn("event publish failed", "kind", e.Kind, "error", err)
	}
}
