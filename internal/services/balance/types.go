package balance

import (
	"github.com/shopspring/decimal"
)

// Ledger entry types. Handlers pick from this fixed vocabulary; callers
// never supply free-form state transitions.
const (
	TypeDeposit           = "deposit"
	TypeWithdrawHold      = "withdraw_hold"
	TypeWithdrawRefund    = "withdraw_refund"
	TypeDuelBet           = "duel_bet"
	TypeDuelWin           = "duel_win"
	TypeDuelRefund        = "duel_refund"
	TypeRaffleEntry       = "raffle_entry"
	TypeRaffleWin         = "raffle_win"
	TypeRaffleRefund      = "raffle_refund"
	TypeReferralLossBonus = "referral_loss_bonus"
	TypeAdminAdjustment   = "admin_adjustment"
)

// Origin of a balance change.
const (
	MethodSystem = "system"
	MethodCrypto = "crypto"
	MethodRocket = "rocket"
	MethodStars  = "stars"
	MethodAdmin  = "admin"
)

// Change describes one signed balance delta. AllowNegative is a typed escape
// hatch reserved for administrative adjustments; gameplay code leaves it
// false.
type Change struct {
	UserID        int64
	Delta         decimal.Decimal
	Type          string
	Method        string
	Meta          map[string]any
	AllowNegative bool
}

// Result snapshots the balance around a committed change.
type Result struct {
	Before decimal.Decimal
	After  decimal.Decimal
}
