package payments

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrPaymentNotFound = errors.New("payment not found")

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusExpired Status = "expired"
)

// PendingPayment tracks one external payment reference. (Method, ExternalID)
// is the idempotency key: the pending -> paid transition happens at most once.
type PendingPayment struct {
	ID         int64
	UserID     int64
	Method     string
	ExternalID string
	Amount     decimal.Decimal
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Payments interface {
	Upsert(ctx context.Context, p PendingPayment) error
	Get(ctx context.Context, method, externalID string) (PendingPayment, error)
	MarkPaid(ctx context.Context, method, externalID string) (bool, error)
	FindUncredited(ctx context.Context, limit int) ([]PendingPayment, error)
}
