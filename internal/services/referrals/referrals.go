// Package referrals credits a referrer with a share of their referee's
// losses. Everything here is best-effort: a failed commission is logged and
// dropped so it can never abort a settled monetary transaction.
package referrals

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/stakehaus/bankroll/internal/infra/pgutils"
	"github.com/stakehaus/bankroll/internal/repos/accounts"
	pgaccounts "github.com/stakehaus/bankroll/internal/repos/accounts/postgres"
	"github.com/stakehaus/bankroll/internal/services/balance"
)

var commissionRate = decimal.NewFromFloat(0.10)

type Service struct {
	db       *sql.DB
	accounts accounts.Accounts
	balances *balance.Service
}

func New(db *sql.DB, balances *balance.Service) *Service {
	return &Service{
		db:       db,
		accounts: pgaccounts.New(db),
		balances: balances,
	}
}

// AwardLossCommission pays 10% of the loser's stake to their current
// referrer. The referrer is read at settlement time. Never returns an error;
// failures are logged and swallowed.
func (s *Service) AwardLossCommission(ctx context.Context, loserID int64, loss decimal.Decimal) {
	if !loss.IsPositive() {
		return
	}

	refID, ok, err := s.accounts.ReferrerOf(ctx, loserID)
	if err != nil {
		slog.Warn("referral lookup failed", "user_id", loserID, "error", err)
		return
	}
	if !ok {
		return
	}

	bonus := loss.Mul(commissionRate).Round(2)
	if !bonus.IsPositive() {
		return
	}

	err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, txErr := s.balances.ApplyDeltaTx(tx, balance.Change{
			UserID: refID,
			Delta:  bonus,
			Type:   balance.TypeReferralLossBonus,
			Method: balance.MethodSystem,
			Meta:   map[string]any{"source_user": loserID, "loss": loss.String()},
		})
		if txErr != nil {
			return fmt.Errorf("credit commission: %w", txErr)
		}

		return s.accounts.AddReferralEarnings(tx, refID, bonus)
	})
	if err != nil {
		slog.Warn("referral commission failed",
			"referrer_id", refID, "loser_id", loserID, "bonus", bonus.String(), "error", err)
	}
}
