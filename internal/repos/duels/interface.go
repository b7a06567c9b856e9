package duels

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrDuelNotFound = errors.New("duel not found")

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusFinished  Status = "finished"
	StatusCancelled Status = "cancelled"
)

type Duel struct {
	ID         int64
	CreatorID  int64
	OpponentID *int64
	Bet        decimal.Decimal
	Pot        decimal.Decimal
	Game       string
	Status     Status
	WinnerID   *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Join, Finish and Cancel are guarded conditional updates: the expected
// status is part of the WHERE clause and the row count decides who won a
// race. There is no separate read-then-write window.
type Duels interface {
	Insert(tx *sql.Tx, creatorID int64, bet decimal.Decimal, game string) (int64, error)
	Get(ctx context.Context, id int64) (Duel, error)
	Join(ctx context.Context, id, opponentID int64) (decimal.Decimal, bool, error)
	Finish(tx *sql.Tx, id, winnerID int64) (Duel, bool, error)
	Cancel(tx *sql.Tx, id, creatorID int64) (decimal.Decimal, bool, error)
}
