package contest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stakehaus/bankroll/internal/repos/raffles"
	"github.com/stakehaus/bankroll/internal/services/balance"
)

func TestRaffleLifecycle(t *testing.T) {
	t.Parallel()

	svc, balances, _, cleanup := newTestService(t)
	defer cleanup()

	ctx := context.Background()
	const creator int64 = 500
	participants := []int64{501, 502}
	entry := decimal.RequireFromString("10.00")

	seedBalance(t, balances, creator, "50.00")
	for _, p := range participants {
		seedBalance(t, balances, p, "50.00")
	}

	raffleID, err := svc.CreateRaffle(ctx, creator, entry)
	if err != nil {
		t.Fatalf("create raffle: %v", err)
	}
	requireBalance(t, balances, creator, "40.00")

	for _, p := range participants {
		status, _, err := svc.JoinRaffle(ctx, raffleID, p)
		if err != nil {
			t.Fatalf("join %d: %v", p, err)
		}
		if status != RaffleJoined {
			t.Fatalf("join %d: want joined, got %s", p, status)
		}
		requireBalance(t, balances, p, "40.00")
	}

	rf, err := svc.GetRaffle(ctx, raffleID)
	if err != nil {
		t.Fatalf("get raffle: %v", err)
	}
	if !rf.Pot.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("pot: want 30.00, got %s", rf.Pot)
	}

	winnerID, pot, err := svc.DrawRaffle(ctx, raffleID, creator)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if !pot.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("drawn pot: want 30.00, got %s", pot)
	}

	// The winner is one of the three entrants and holds entry debit + pot.
	switch winnerID {
	case creator, participants[0], participants[1]:
	default:
		t.Fatalf("winner %d is not an entrant", winnerID)
	}
	requireBalance(t, balances, winnerID, "70.00")

	rf, err = svc.GetRaffle(ctx, raffleID)
	if err != nil {
		t.Fatalf("get raffle after draw: %v", err)
	}
	if rf.Status != raffles.StatusClosed {
		t.Fatalf("status after draw: want closed, got %s", rf.Status)
	}
	if rf.WinnerID == nil || *rf.WinnerID != winnerID {
		t.Fatalf("stored winner: want %d, got %v", winnerID, rf.WinnerID)
	}

	_, _, err = svc.DrawRaffle(ctx, raffleID, creator)
	if !errors.Is(err, ErrConflictingState) {
		t.Fatalf("repeat draw: want ErrConflictingState, got %v", err)
	}
}

func TestJoinRaffle_Duplicate(t *testing.T) {
	t.Parallel()

	svc, balances, db, cleanup := newTestService(t)
	defer cleanup()

	ctx := context.Background()
	const creator, joiner int64 = 510, 511
	entry := decimal.RequireFromString("5.00")

	seedBalance(t, balances, creator, "20.00")
	seedBalance(t, balances, joiner, "20.00")

	raffleID, err := svc.CreateRaffle(ctx, creator, entry)
	if err != nil {
		t.Fatalf("create raffle: %v", err)
	}

	status, _, err := svc.JoinRaffle(ctx, raffleID, joiner)
	if err != nil || status != RaffleJoined {
		t.Fatalf("first join: status=%s err=%v", status, err)
	}

	status, _, err = svc.JoinRaffle(ctx, raffleID, joiner)
	if err != nil {
		t.Fatalf("duplicate join: %v", err)
	}
	if status != RaffleAlready {
		t.Fatalf("duplicate join: want already, got %s", status)
	}

	// The duplicate fee was debited and refunded; net is a single entry fee.
	requireBalance(t, balances, joiner, "15.00")

	var refunds int
	err = db.QueryRow(`SELECT COUNT(*) FROM ledger_entries WHERE type = $1 AND user_id = $2`,
		balance.TypeRaffleRefund, joiner).Scan(&refunds)
	if err != nil {
		t.Fatalf("count refunds: %v", err)
	}
	if refunds != 1 {
		t.Fatalf("refunds: want 1, got %d", refunds)
	}

	// Pot grew once, not twice.
	rf, err := svc.GetRaffle(ctx, raffleID)
	if err != nil {
		t.Fatalf("get raffle: %v", err)
	}
	if !rf.Pot.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("pot: want 10.00, got %s", rf.Pot)
	}
}

func TestJoinRaffle_AfterDraw(t *testing.T) {
	t.Parallel()

	svc, balances, _, cleanup := newTestService(t)
	defer cleanup()

	ctx := context.Background()
	const creator, late int64 = 520, 521
	entry := decimal.RequireFromString("5.00")

	seedBalance(t, balances, creator, "10.00")
	seedBalance(t, balances, late, "10.00")

	raffleID, err := svc.CreateRaffle(ctx, creator, entry)
	if err != nil {
		t.Fatalf("create raffle: %v", err)
	}
	_, _, err = svc.DrawRaffle(ctx, raffleID, creator)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}

	status, _, err := svc.JoinRaffle(ctx, raffleID, late)
	if err != nil {
		t.Fatalf("late join: %v", err)
	}
	if status != RaffleClosed {
		t.Fatalf("late join: want closed, got %s", status)
	}
	requireBalance(t, balances, late, "10.00")
}

func TestDrawRaffle_NonCreator(t *testing.T) {
	t.Parallel()

	svc, balances, _, cleanup := newTestService(t)
	defer cleanup()

	ctx := context.Background()
	const creator, stranger int64 = 530, 531

	seedBalance(t, balances, creator, "10.00")

	raffleID, err := svc.CreateRaffle(ctx, creator, decimal.RequireFromString("10.00"))
	if err != nil {
		t.Fatalf("create raffle: %v", err)
	}

	_, _, err = svc.DrawRaffle(ctx, raffleID, stranger)
	if !errors.Is(err, ErrConflictingState) {
		t.Fatalf("non-creator draw: want ErrConflictingState, got %v", err)
	}
}

func TestJoinRaffle_NotFound(t *testing.T) {
	t.Parallel()

	svc, balances, _, cleanup := newTestService(t)
	defer cleanup()

	const joiner int64 = 540
	seedBalance(t, balances, joiner, "10.00")

	status, _, err := svc.JoinRaffle(context.Background(), 99999, joiner)
	if err != nil {
		t.Fatalf("join missing raffle: %v", err)
	}
	if status != RaffleNotFound {
		t.Fatalf("want not_found, got %s", status)
	}
	requireBalance(t, balances, joiner, "10.00")
}

// Joins racing the draw either land before the raffle closes or report
// closed with their entry compensated. The drawn pot covers exactly the
// entrants the close saw, and no money is created or destroyed.
func TestRaffle_ConcurrentJoinDraw(t *testing.T) {
	t.Parallel()

	svc, balances, db, cleanup := newTestService(t)
	defer cleanup()

	ctx := context.Background()
	const creator int64 = 550
	const joiners = 8
	entry := decimal.RequireFromString("5.00")

	seedBalance(t, balances, creator, "50.00")
	for i := int64(1); i <= joiners; i++ {
		seedBalance(t, balances, creator+i, "50.00")
	}

	raffleID, err := svc.CreateRaffle(ctx, creator, entry)
	if err != nil {
		t.Fatalf("create raffle: %v", err)
	}

	type joinResult struct {
		userID int64
		status RaffleJoinStatus
	}
	results := make(chan joinResult, joiners)
	errCh := make(chan error, joiners+1)

	var winnerID int64
	var pot decimal.Decimal

	var wg sync.WaitGroup
	for i := int64(1); i <= joiners; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()

			status, _, err := svc.JoinRaffle(ctx, raffleID, userID)
			if err != nil {
				errCh <- err
				return
			}
			results <- joinResult{userID: userID, status: status}
		}(creator + i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()

		var derr error
		winnerID, pot, derr = svc.DrawRaffle(ctx, raffleID, creator)
		if derr != nil {
			errCh <- derr
		}
	}()

	wg.Wait()
	close(results)
	close(errCh)

	for err := range errCh {
		t.Fatalf("concurrent raffle op: %v", err)
	}

	joined := 0
	for res := range results {
		switch res.status {
		case RaffleJoined:
			joined++
			requireBalance(t, balances, res.userID, "45.00")
		case RaffleClosed:
			// Lost the race to the draw; any debit must be compensated.
			requireBalance(t, balances, res.userID, "50.00")
		default:
			t.Fatalf("unexpected status %s for user %d", res.status, res.userID)
		}
	}

	wantPot := entry.Mul(decimal.NewFromInt(int64(joined) + 1))
	if !pot.Equal(wantPot) {
		t.Fatalf("pot: want %s for %d entrants, got %s", wantPot, joined+1, pot)
	}

	// The winner entered (one debit) and took the whole pot.
	wantWinner := decimal.RequireFromString("45.00").Add(wantPot)
	bal, err := balances.GetBalance(ctx, winnerID)
	if err != nil {
		t.Fatalf("winner balance: %v", err)
	}
	if !bal.Equal(wantWinner) {
		t.Fatalf("winner %d balance: want %s, got %s", winnerID, wantWinner, bal)
	}

	// The pot only moved money between entrants.
	total := decimal.Zero
	for i := int64(0); i <= joiners; i++ {
		b, err := balances.GetBalance(ctx, creator+i)
		if err != nil {
			t.Fatalf("balance of %d: %v", creator+i, err)
		}
		total = total.Add(b)
	}
	seeded := decimal.RequireFromString("50.00").Mul(decimal.NewFromInt(joiners + 1))
	if !total.Equal(seeded) {
		t.Fatalf("total held: want %s, got %s", seeded, total)
	}

	// Joins that debited after the close each got exactly one refund.
	var debits, refunds int
	err = db.QueryRow(`SELECT COUNT(*) FROM ledger_entries WHERE type = $1 AND (meta ->> 'raffle_id')::bigint = $2 AND user_id <> $3`,
		balance.TypeRaffleEntry, raffleID, creator).Scan(&debits)
	if err != nil {
		t.Fatalf("count debits: %v", err)
	}
	err = db.QueryRow(`SELECT COUNT(*) FROM ledger_entries WHERE type = $1 AND (meta ->> 'raffle_id')::bigint = $2`,
		balance.TypeRaffleRefund, raffleID).Scan(&refunds)
	if err != nil {
		t.Fatalf("count refunds: %v", err)
	}
	if debits-refunds != joined {
		t.Fatalf("net entries: want %d, got %d debits - %d refunds", joined, debits, refunds)
	}

	rf, err := svc.GetRaffle(ctx, raffleID)
	if err != nil {
		t.Fatalf("get raffle: %v", err)
	}
	if rf.Status != raffles.StatusClosed {
		t.Fatalf("status: want closed, got %s", rf.Status)
	}
	if rf.WinnerID == nil || *rf.WinnerID != winnerID {
		t.Fatalf("stored winner: want %d, got %v", winnerID, rf.WinnerID)
	}
}
