// Package events delivers settlement notifications to external
// collaborators. Delivery is fire-and-forget: a failed publish is logged and
// dropped, never propagated into the money path.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindDepositCredited    Kind = "deposit.credited"
	KindReconciliationGap  Kind = "payment.reconciliation_gap"
	KindDuelCreated        Kind = "duel.created"
	KindDuelFinished       Kind = "duel.finished"
	KindDuelCancelled      Kind = "duel.cancelled"
	KindRaffleCreated      Kind = "raffle.created"
	KindRaffleClosed       Kind = "raffle.closed"
	KindWithdrawRequested  Kind = "withdraw.requested"
	KindWithdrawProcessed  Kind = "withdraw.processed"
)

type Event struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	UserID     int64          `json:"user_id,omitempty"`
	Amount     string         `json:"amount,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func New(kind Kind, userID int64, amount string, payload map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		UserID:     userID,
		Amount:     amount,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
