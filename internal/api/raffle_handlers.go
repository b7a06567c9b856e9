package api

import (
	"errors"
	"net/http"

	"github.com/stakehaus/bankroll/internal/repos/accounts"
	"github.com/stakehaus/bankroll/internal/repos/raffles"
	"github.com/stakehaus/bankroll/internal/services/contest"
)

type createRaffleRequest struct {
	CreatorID   int64  `json:"creatorId" validate:"required,gt=0"`
	EntryAmount string `json:"entryAmount" validate:"required"`
}

type raffleDTO struct {
	ID          int64  `json:"id"`
	CreatorID   int64  `json:"creatorId"`
	EntryAmount string `json:"entryAmount"`
	Pot         string `json:"pot"`
	Status      string `json:"status"`
	WinnerID    *int64 `json:"winnerId,omitempty"`
}

func toRaffleDTO(rf raffles.Raffle) raffleDTO {
	return raffleDTO{
		ID:          rf.ID,
		CreatorID:   rf.CreatorID,
		EntryAmount: rf.EntryAmount.StringFixed(2),
		Pot:         rf.Pot.StringFixed(2),
		Status:      string(rf.Status),
		WinnerID:    rf.WinnerID,
	}
}

// CreateRaffleHandler handles POST /raffles
func (h *HandlerProvider) CreateRaffleHandler(w http.ResponseWriter, r *http.Request) {
	var req createRaffleRequest
	err := h.decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := parseAmount(req.EntryAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.contests.CreateRaffle(r.Context(), req.CreatorID, entry)
	if err != nil {
		if errors.Is(err, accounts.ErrInsufficientFunds) {
			writeError(w, http.StatusConflict, "insufficient funds")
			return
		}

		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"raffleId": id})
}

// GetRaffleHandler handles GET /raffles/{raffleId}
func (h *HandlerProvider) GetRaffleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "raffleId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rf, err := h.contests.GetRaffle(r.Context(), id)
	if err != nil {
		if errors.Is(err, raffles.ErrRaffleNotFound) {
			writeError(w, http.StatusNotFound, "raffle not found")
			return
		}

		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toRaffleDTO(rf))
}

type joinRaffleRequest struct {
	UserID int64 `json:"userId" validate:"required,gt=0"`
}

// JoinRaffleHandler handles POST /raffles/{raffleId}/join. A duplicate join
// or a join against a closed raffle is a 409 with the debit already refunded.
func (h *HandlerProvider) JoinRaffleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "raffleId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req joinRaffleRequest
	err = h.decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, pot, err := h.contests.JoinRaffle(r.Context(), id, req.UserID)
	if err != nil {
		if errors.Is(err, accounts.ErrInsufficientFunds) {
			writeError(w, http.StatusConflict, "insufficient funds")
			return
		}

		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	switch status {
	case contest.RaffleJoined:
		writeJSON(w, http.StatusOK, map[string]any{"status": string(status), "pot": pot.StringFixed(2)})
	case contest.RaffleNotFound:
		writeError(w, http.StatusNotFound, "raffle not found")
	case contest.RaffleAlready:
		writeError(w, http.StatusConflict, "already participating")
	default:
		writeError(w, http.StatusConflict, "raffle is closed")
	}
}

type drawRaffleRequest struct {
	CreatorID int64 `json:"creatorId" validate:"required,gt=0"`
}

// DrawRaffleHandler handles POST /raffles/{raffleId}/draw
func (h *HandlerProvider) DrawRaffleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "raffleId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req drawRaffleRequest
	err = h.decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	winnerID, pot, err := h.contests.DrawRaffle(r.Context(), id, req.CreatorID)
	if err != nil {
		switch {
		case errors.Is(err, raffles.ErrRaffleNotFound):
			writeError(w, http.StatusNotFound, "raffle not found")
		case errors.Is(err, contest.ErrConflictingState):
			writeError(w, http.StatusConflict, "raffle cannot be drawn")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"winnerId": winnerID, "pot": pot.StringFixed(2)})
}
