package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/stakehaus/bankroll/internal/api"
	"github.com/stakehaus/bankroll/internal/events"
	"github.com/stakehaus/bankroll/internal/infra/logging"
	"github.com/stakehaus/bankroll/internal/infra/pgutils"
	"github.com/stakehaus/bankroll/internal/services/balance"
	"github.com/stakehaus/bankroll/internal/services/contest"
	"github.com/stakehaus/bankroll/internal/services/payments"
	"github.com/stakehaus/bankroll/internal/services/referrals"
	"github.com/stakehaus/bankroll/internal/services/settings"
	"github.com/stakehaus/bankroll/internal/services/withdrawals"
	"github.com/stakehaus/bankroll/internal/workers"
	"github.com/stakehaus/bankroll/pkg/envconf"
	"github.com/stakehaus/bankroll/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	db, err := pgutils.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	shutdownqueue.Add(func(context.Context) error {
		slog.Info("Close db")
		return db.Close()
	})

	var pub events.Publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		amqpPub, perr := events.NewAMQPPublisher(cfg.AMQPURL)
		if perr != nil {
			return fmt.Errorf("connect amqp: %w", perr)
		}
		pub = amqpPub

		shutdownqueue.Add(func(context.Context) error {
			slog.Info("Close event publisher")
			return amqpPub.Close()
		})
	}

	// --- Services ---
	balanceSrv := balance.New(db)
	referralSrv := referrals.New(db, balanceSrv)
	reconciler := payments.NewReconciler(db, balanceSrv, pub)
	contestSrv := contest.New(db, balanceSrv, referralSrv, pub)
	withdrawalSrv := withdrawals.New(db, balanceSrv, pub)
	settingsSrv := settings.New(db)

	// --- Background workers ---
	reconcileWorker := workers.NewReconcileWorker(reconciler, cfg.ReconcileInterval)

	err = reconcileWorker.Start(ctx)
	if err != nil {
		return fmt.Errorf("start reconcile worker: %w", err)
	}

	shutdownqueue.Add(func(context.Context) error {
		slog.Info("Stop reconcile worker")
		return reconcileWorker.Stop()
	})

	// --- HTTP server ---
	handler := api.NewHandler(balanceSrv, reconciler, contestSrv, withdrawalSrv, settingsSrv)
	srv := api.NewServer(cfg.Port, handler)

	shutdownqueue.Add(func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	// Run server
	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.Port)

	// --- Wait until either context cancels or server errors out ---
	select {
	case <-ctx.Done():
		// graceful path; deferred shutdownqueue.Shutdown will run
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}
