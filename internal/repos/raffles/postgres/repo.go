package raffles

import (
	"database/sql"

	"github.com/stakehaus/bankroll/internal/repos/raffles"
)

var _ raffles.Raffles = (*rafflesRepo)(nil)

type rafflesRepo struct{ db *sql.DB }

func New(db *sql.DB) *rafflesRepo {
	return &rafflesRepo{db: db}
}
