package payments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stakehaus/bankroll/internal/events"
	"github.com/stakehaus/bankroll/internal/infra/pgtestutil"
	repopayments "github.com/stakehaus/bankroll/internal/repos/payments"
	"github.com/stakehaus/bankroll/internal/services/balance"
)

func newTestReconciler(t *testing.T) (*Reconciler, *balance.Service, func()) {
	t.Helper()

	db, cleanup := pgtestutil.NewTestDB(t)
	balances := balance.New(db)

	return NewReconciler(db, balances, events.Noop{}), balances, cleanup
}

func TestConfirmPayment_CreditsExactlyOnce(t *testing.T) {
	t.Parallel()

	rec, balances, cleanup := newTestReconciler(t)
	defer cleanup()

	ctx := context.Background()
	const userID int64 = 10
	amount := decimal.RequireFromString("42.00")

	err := rec.RegisterPending(ctx, userID, "crypto", "inv-1", amount, "")
	if err != nil {
		t.Fatalf("register pending: %v", err)
	}

	credited, err := rec.ConfirmPayment(ctx, "crypto", "inv-1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !credited {
		t.Fatal("first confirmation should credit")
	}

	// Second confirmation of the same reference is a designed no-op.
	credited, err = rec.ConfirmPayment(ctx, "crypto", "inv-1")
	if err != nil {
		t.Fatalf("repeat confirm: %v", err)
	}
	if credited {
		t.Fatal("repeat confirmation must not credit again")
	}

	bal, err := balances.GetBalance(ctx, userID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if !bal.Equal(amount) {
		t.Fatalf("balance: want %s, got %s", amount, bal)
	}
}

func TestConfirmPayment_Concurrent(t *testing.T) {
	t.Parallel()

	rec, balances, cleanup := newTestReconciler(t)
	defer cleanup()

	ctx := context.Background()
	const userID int64 = 11
	const confirmers = 10
	amount := decimal.RequireFromString("15.50")

	err := rec.RegisterPending(ctx, userID, "rocket", "inv-race", amount, "")
	if err != nil {
		t.Fatalf("register pending: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan bool, confirmers)
	errCh := make(chan error, confirmers)

	for i := 0; i < confirmers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			credited, err := rec.ConfirmPayment(ctx, "rocket", "inv-race")
			if err != nil {
				errCh <- err
				return
			}
			results <- credited
		}()
	}

	wg.Wait()
	close(results)
	close(errCh)

	for err := range errCh {
		t.Fatalf("concurrent confirm: %v", err)
	}

	creditedCount := 0
	for credited := range results {
		if credited {
			creditedCount++
		}
	}
	if creditedCount != 1 {
		t.Fatalf("credited count: want 1, got %d", creditedCount)
	}

	bal, err := balances.GetBalance(ctx, userID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if !bal.Equal(amount) {
		t.Fatalf("balance: want %s, got %s", amount, bal)
	}
}

func TestConfirmPayment_Missing(t *testing.T) {
	t.Parallel()

	rec, _, cleanup := newTestReconciler(t)
	defer cleanup()

	_, err := rec.ConfirmPayment(context.Background(), "crypto", "no-such")
	if !errors.Is(err, repopayments.ErrPaymentNotFound) {
		t.Fatalf("want ErrPaymentNotFound, got %v", err)
	}
}

func TestRegisterPending_RefreshKeepsPaid(t *testing.T) {
	t.Parallel()

	rec, _, cleanup := newTestReconciler(t)
	defer cleanup()

	ctx := context.Background()
	const userID int64 = 12
	amount := decimal.RequireFromString("5.00")

	err := rec.RegisterPending(ctx, userID, "stars", "inv-2", amount, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	changed, err := rec.MarkPaid(ctx, "stars", "inv-2")
	if err != nil || !changed {
		t.Fatalf("mark paid: changed=%v err=%v", changed, err)
	}

	// A late provider retry must not knock the payment back to pending.
	err = rec.RegisterPending(ctx, userID, "stars", "inv-2", amount, repopayments.StatusPending)
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}

	changed, err = rec.MarkPaid(ctx, "stars", "inv-2")
	if err != nil {
		t.Fatalf("second mark paid: %v", err)
	}
	if changed {
		t.Fatal("paid state was overwritten by a pending upsert")
	}
}

func TestReplayGap(t *testing.T) {
	t.Parallel()

	rec, balances, cleanup := newTestReconciler(t)
	defer cleanup()

	ctx := context.Background()
	const userID int64 = 13
	amount := decimal.RequireFromString("77.00")

	err := rec.RegisterPending(ctx, userID, "crypto", "inv-gap", amount, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// Simulate the failure mode: the paid transition committed but the credit
	// never happened.
	changed, err := rec.MarkPaid(ctx, "crypto", "inv-gap")
	if err != nil || !changed {
		t.Fatalf("mark paid: changed=%v err=%v", changed, err)
	}

	gaps, err := rec.FindGaps(ctx, 10)
	if err != nil {
		t.Fatalf("find gaps: %v", err)
	}
	if len(gaps) != 1 || gaps[0].ExternalID != "inv-gap" {
		t.Fatalf("gaps: want [inv-gap], got %+v", gaps)
	}

	replayed, err := rec.ReplayGap(ctx, gaps[0])
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !replayed {
		t.Fatal("first replay should credit")
	}

	// A replay racing a replay must not double-pay.
	replayed, err = rec.ReplayGap(ctx, gaps[0])
	if err != nil {
		t.Fatalf("second replay: %v", err)
	}
	if replayed {
		t.Fatal("second replay must be a no-op")
	}

	bal, err := balances.GetBalance(ctx, userID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if !bal.Equal(amount) {
		t.Fatalf("balance: want %s, got %s", amount, bal)
	}

	gaps, err = rec.FindGaps(ctx, 10)
	if err != nil {
		t.Fatalf("find gaps after replay: %v", err)
	}
	if len(gaps) != 0 {
		t.Fatalf("gaps after replay: want none, got %+v", gaps)
	}
}

// A sweeper replay racing a slow in-flight confirm credit must not pay
// twice. The replay takes the account row lock before its ledger lookup, so
// it blocks until the credit commits and then sees the entry.
func TestReplayGap_RacingConfirmCredit(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	balances := balance.New(db)
	rec := NewReconciler(db, balances, events.Noop{})

	ctx := context.Background()
	const userID int64 = 15
	amount := decimal.RequireFromString("30.00")

	err := rec.RegisterPending(ctx, userID, "crypto", "inv-slow", amount, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	changed, err := rec.MarkPaid(ctx, "crypto", "inv-slow")
	if err != nil || !changed {
		t.Fatalf("mark paid: changed=%v err=%v", changed, err)
	}
	gaps, err := rec.FindGaps(ctx, 10)
	if err != nil || len(gaps) != 1 {
		t.Fatalf("find gaps: gaps=%+v err=%v", gaps, err)
	}

	// The original credit, not yet committed: it holds the account row lock.
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	_, err = balances.ApplyDeltaTx(tx, balance.Change{
		UserID: userID,
		Delta:  amount,
		Type:   balance.TypeDeposit,
		Method: "crypto",
		Meta:   map[string]any{"external_id": "inv-slow"},
	})
	if err != nil {
		t.Fatalf("in-flight credit: %v", err)
	}

	type replayResult struct {
		replayed bool
		err      error
	}
	done := make(chan replayResult, 1)
	go func() {
		replayed, rerr := rec.ReplayGap(ctx, gaps[0])
		done <- replayResult{replayed: replayed, err: rerr}
	}()

	// Let the replay reach the row lock before the credit commits.
	time.Sleep(200 * time.Millisecond)
	err = tx.Commit()
	if err != nil {
		t.Fatalf("commit credit: %v", err)
	}

	res := <-done
	if res.err != nil {
		t.Fatalf("replay: %v", res.err)
	}
	if res.replayed {
		t.Fatal("replay must observe the committed credit and no-op")
	}

	bal, err := balances.GetBalance(ctx, userID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if !bal.Equal(amount) {
		t.Fatalf("balance: want %s, got %s", amount, bal)
	}

	var credits int
	err = db.QueryRow(`SELECT COUNT(*) FROM ledger_entries WHERE type = $1 AND meta ->> 'external_id' = $2`,
		balance.TypeDeposit, "inv-slow").Scan(&credits)
	if err != nil {
		t.Fatalf("count credits: %v", err)
	}
	if credits != 1 {
		t.Fatalf("credits: want 1, got %d", credits)
	}
}

// Providers issue their own external ids, so two payments can share one.
// The replay guard is keyed by (method, external_id) just like the gap
// query, so a credit under one method never masks a gap under another.
func TestReplayGap_SameExternalIDOtherMethod(t *testing.T) {
	t.Parallel()

	rec, balances, cleanup := newTestReconciler(t)
	defer cleanup()

	ctx := context.Background()
	const alice, bob int64 = 16, 17

	err := rec.RegisterPending(ctx, alice, "crypto", "inv-shared", decimal.RequireFromString("10.00"), "")
	if err != nil {
		t.Fatalf("register crypto: %v", err)
	}
	credited, err := rec.ConfirmPayment(ctx, "crypto", "inv-shared")
	if err != nil || !credited {
		t.Fatalf("confirm crypto: credited=%v err=%v", credited, err)
	}

	err = rec.RegisterPending(ctx, bob, "rocket", "inv-shared", decimal.RequireFromString("15.00"), "")
	if err != nil {
		t.Fatalf("register rocket: %v", err)
	}
	changed, err := rec.MarkPaid(ctx, "rocket", "inv-shared")
	if err != nil || !changed {
		t.Fatalf("mark paid rocket: changed=%v err=%v", changed, err)
	}

	gaps, err := rec.FindGaps(ctx, 10)
	if err != nil {
		t.Fatalf("find gaps: %v", err)
	}
	if len(gaps) != 1 || gaps[0].Method != "rocket" {
		t.Fatalf("gaps: want the rocket payment, got %+v", gaps)
	}

	replayed, err := rec.ReplayGap(ctx, gaps[0])
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !replayed {
		t.Fatal("the crypto credit must not mask the rocket gap")
	}

	requireUserBalance := func(userID int64, want string) {
		t.Helper()
		bal, err := balances.GetBalance(ctx, userID)
		if err != nil {
			t.Fatalf("get balance %d: %v", userID, err)
		}
		if !bal.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("balance of %d: want %s, got %s", userID, want, bal)
		}
	}
	requireUserBalance(alice, "10.00")
	requireUserBalance(bob, "15.00")

	gaps, err = rec.FindGaps(ctx, 10)
	if err != nil {
		t.Fatalf("find gaps after replay: %v", err)
	}
	if len(gaps) != 0 {
		t.Fatalf("gaps after replay: want none, got %+v", gaps)
	}
}
