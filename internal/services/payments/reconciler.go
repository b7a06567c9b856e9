// Package payments guarantees at-most-once crediting per (method,
// external_id) payment reference, and repairs the one failure mode that
// survives it: a payment marked paid whose credit never committed.
package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/stakehaus/bankroll/internal/events"
	"github.com/stakehaus/bankroll/internal/infra/pgutils"
	"github.com/stakehaus/bankroll/internal/repos/accounts"
	pgaccounts "github.com/stakehaus/bankroll/internal/repos/accounts/postgres"
	"github.com/stakehaus/bankroll/internal/repos/ledger"
	pgledger "github.com/stakehaus/bankroll/internal/repos/ledger/postgres"
	"github.com/stakehaus/bankroll/internal/repos/payments"
	pgpayments "github.com/stakehaus/bankroll/internal/repos/payments/postgres"
	"github.com/stakehaus/bankroll/internal/services/balance"
)

// ErrReconciliationGap marks a payment that is paid but could not be
// credited. It is surfaced to operators and repaired by the sweeper; it is
// never silently retried inline.
var ErrReconciliationGap = errors.New("payment marked paid but credit failed")

type Reconciler struct {
	db       *sql.DB
	payments payments.Payments
	ledger   ledger.Ledger
	accounts accounts.Accounts
	balances *balance.Service
	events   events.Publisher
}

func NewReconciler(db *sql.DB, balances *balance.Service, pub events.Publisher) *Reconciler {
	return &Reconciler{
		db:       db,
		payments: pgpayments.New(db),
		ledger:   pgledger.New(db),
		accounts: pgaccounts.New(db),
		balances: balances,
		events:   pub,
	}
}

// RegisterPending upserts a payment reference. Safe to call for every
// provider retry; amount and status are refreshed, the paid state is never
// overwritten.
func (r *Reconciler) RegisterPending(ctx context.Context, userID int64, method, externalID string, amount decimal.Decimal, status payments.Status) error {
	if status == "" {
		status = payments.StatusPending
	}

	err := r.balances.EnsureAccount(ctx, userID, nil)
	if err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}

	err = r.payments.Upsert(ctx, payments.PendingPayment{
		UserID:     userID,
		Method:     method,
		ExternalID: externalID,
		Amount:     amount,
		Status:     status,
	})
	if err != nil {
		return fmt.Errorf("register pending payment: %w", err)
	}

	return nil
}

// MarkPaid reports whether this call performed the pending -> paid
// transition. False is a designed no-op (missing or already paid), not an
// error.
func (r *Reconciler) MarkPaid(ctx context.Context, method, externalID string) (bool, error) {
	changed, err := r.payments.MarkPaid(ctx, method, externalID)
	if err != nil {
		return false, fmt.Errorf("mark paid: %w", err)
	}

	return changed, nil
}

// ConfirmPayment drives the full deposit flow: mark paid, then credit the
// stored amount tagged with the external id. Exactly one of any number of
// concurrent confirmations credits; the rest report credited=false.
//
// The caller has already talked to the provider before calling this; no
// transaction is held across that network hop.
func (r *Reconciler) ConfirmPayment(ctx context.Context, method, externalID string) (credited bool, err error) {
	p, err := r.payments.Get(ctx, method, externalID)
	if err != nil {
		return false, fmt.Errorf("load payment: %w", err)
	}

	changed, err := r.MarkPaid(ctx, method, externalID)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	_, err = r.balances.ApplyDelta(ctx, balance.Change{
		UserID: p.UserID,
		Delta:  p.Amount,
		Type:   balance.TypeDeposit,
		Method: p.Method,
		Meta:   map[string]any{"external_id": p.ExternalID},
	})
	if err != nil {
		// The paid transition committed but the credit did not. The stored
		// amount makes a targeted replay possible; surface the gap instead
		// of retrying here.
		slog.Error("reconciliation gap",
			"method", method, "external_id", externalID,
			"user_id", p.UserID, "amount", p.Amount.String(), "error", err)
		r.publish(ctx, events.New(events.KindReconciliationGap, p.UserID, p.Amount.String(), map[string]any{
			"method":      method,
			"external_id": externalID,
		}))

		return false, fmt.Errorf("%w: %w", ErrReconciliationGap, err)
	}

	r.publish(ctx, events.New(events.KindDepositCredited, p.UserID, p.Amount.String(), map[string]any{
		"method":      method,
		"external_id": externalID,
	}))

	return true, nil
}

// FindGaps lists paid payments whose credit is missing from the ledger.
func (r *Reconciler) FindGaps(ctx context.Context, limit int) ([]payments.PendingPayment, error) {
	gaps, err := r.payments.FindUncredited(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("find gaps: %w", err)
	}

	return gaps, nil
}

// ReplayGap re-runs only the credit step for one gap. The account row lock
// is taken before the ledger lookup: a late original credit holds that lock
// until it commits, so once we get it the lookup sees the committed entry
// and the replay becomes a no-op instead of a double credit.
func (r *Reconciler) ReplayGap(ctx context.Context, p payments.PendingPayment) (replayed bool, err error) {
	err = pgutils.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		txErr := r.accounts.Ensure(tx, p.UserID, nil)
		if txErr != nil {
			return fmt.Errorf("ensure account: %w", txErr)
		}

		_, txErr = r.accounts.LockAndGetBalance(tx, p.UserID)
		if txErr != nil {
			return fmt.Errorf("lock account: %w", txErr)
		}

		exists, txErr := r.ledger.ExistsByMeta(tx, balance.TypeDeposit, p.Method, "external_id", p.ExternalID)
		if txErr != nil {
			return fmt.Errorf("check existing credit: %w", txErr)
		}
		if exists {
			return nil
		}

		_, txErr = r.balances.ApplyDeltaTx(tx, balance.Change{
			UserID: p.UserID,
			Delta:  p.Amount,
			Type:   balance.TypeDeposit,
			Method: p.Method,
			Meta:   map[string]any{"external_id": p.ExternalID, "replayed": true},
		})
		if txErr != nil {
			return fmt.Errorf("replay credit: %w", txErr)
		}

		replayed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("replay gap %s/%s: %w", p.Method, p.ExternalID, err)
	}

	if replayed {
		r.publish(ctx, events.New(events.KindDepositCredited, p.UserID, p.Amount.String(), map[string]any{
			"method":      p.Method,
			"external_id": p.ExternalID,
			"replayed":    true,
		}))
	}

	return replayed, nil
}

func (r *Reconciler) publish(ctx context.Context, e events.Event) {
	err := r.events.Publish(ctx, e)
	if err != nil {
		slog.Warn("event publish failed", "kind", e.Kind, "error", err)
	}
}
