// Package workers hosts scheduled background jobs.
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/stakehaus/bankroll/internal/services/payments"
)

const gapBatchSize = 100

// ReconcileWorker periodically scans for reconciliation gaps (payments
// marked paid with no matching deposit in the ledger) and replays the
// missing credit.
type ReconcileWorker struct {
	reconciler *payments.Reconciler
	interval   time.Duration
	scheduler  gocron.Scheduler
}

func NewReconcileWorker(reconciler *payments.Reconciler, interval time.Duration) *ReconcileWorker {
	return &ReconcileWorker{reconciler: reconciler, interval: interval}
}

func (w *ReconcileWorker) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("new scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() { w.sweep(ctx) }),
	)
	if err != nil {
		return fmt.Errorf("schedule reconcile job: %w", err)
	}

	sched.Start()
	w.scheduler = sched

	slog.Info("reconcile worker started", "interval", w.interval)
	return nil
}

func (w *ReconcileWorker) Stop() error {
	if w.scheduler == nil {
		return nil
	}

	err := w.scheduler.Shutdown()
	if err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}

	return nil
}

func (w *ReconcileWorker) sweep(ctx context.Context) {
	gaps, err := w.reconciler.FindGaps(ctx, gapBatchSize)
	if err != nil {
		slog.Error("gap scan failed", "error", err)
		return
	}

	if len(gaps) == 0 {
		return
	}

	slog.Warn("reconciliation gaps found", "count", len(gaps))

	for _, gap := range gaps {
		replayed, err := w.reconciler.ReplayGap(ctx, gap)
		if err != nil {
			slog.Error("gap replay failed",
				"method", gap.Method, "external_id", gap.ExternalID, "error", err)
			continue
		}

		if replayed {
			slog.Info("gap replayed",
				"method", gap.Method, "external_id", gap.ExternalID,
				"user_id", gap.UserID, "amount", gap.Amount.String())
		}
	}
}
