package duels

import (
	"database/sql"

	"github.com/stakehaus/bankroll/internal/repos/duels"
)

var _ duels.Duels = (*duelsRepo)(nil)

type duelsRepo struct{ db *sql.DB }

func New(db *sql.DB) *duelsRepo {
	return &duelsRepo{db: db}
}
