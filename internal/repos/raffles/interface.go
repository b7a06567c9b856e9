package raffles

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrRaffleNotFound = errors.New("raffle not found")

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

type Raffle struct {
	ID          int64
	CreatorID   int64
	EntryAmount decimal.Decimal
	Pot         decimal.Decimal
	Status      Status
	WinnerID    *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Raffles interface {
	Insert(tx *sql.Tx, creatorID int64, entryAmount decimal.Decimal) (int64, error)
	Get(ctx context.Context, id int64) (Raffle, error)
	LockAndGet(tx *sql.Tx, id int64) (Raffle, error)
	AddParticipant(tx *sql.Tx, raffleID, userID int64) (bool, error)
	AddToPot(tx *sql.Tx, raffleID int64, amount decimal.Decimal) error
	Participants(tx *sql.Tx, raffleID int64) ([]int64, error)
	Close(tx *sql.Tx, id, winnerID int64) (bool, error)
}
