package api

import (
	"errors"
	"net/http"

	"github.com/stakehaus/bankroll/internal/repos/accounts"
	"github.com/stakehaus/bankroll/internal/repos/duels"
	"github.com/stakehaus/bankroll/internal/services/contest"
)

type createDuelRequest struct {
	CreatorID int64  `json:"creatorId" validate:"required,gt=0"`
	Bet       string `json:"bet" validate:"required"`
	Game      string `json:"game" validate:"required,max=64"`
}

type duelDTO struct {
	ID         int64  `json:"id"`
	CreatorID  int64  `json:"creatorId"`
	OpponentID *int64 `json:"opponentId,omitempty"`
	Bet        string `json:"bet"`
	Pot        string `json:"pot"`
	Game       string `json:"game"`
	Status     string `json:"status"`
	WinnerID   *int64 `json:"winnerId,omitempty"`
}

func toDuelDTO(d duels.Duel) duelDTO {
	return duelDTO{
		ID:         d.ID,
		CreatorID:  d.CreatorID,
		OpponentID: d.OpponentID,
		Bet:        d.Bet.StringFixed(2),
		Pot:        d.Pot.StringFixed(2),
		Game:       d.Game,
		Status:     string(d.Status),
		WinnerID:   d.WinnerID,
	}
}

// CreateDuelHandler handles POST /duels
func (h *HandlerProvider) CreateDuelHandler(w http.ResponseWriter, r *http.Request) {
	var req createDuelRequest
	err := h.decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bet, err := parseAmount(req.Bet)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.contests.CreateDuel(r.Context(), req.CreatorID, bet, req.Game)
	if err != nil {
		if errors.Is(err, accounts.ErrInsufficientFunds) {
			writeError(w, http.StatusConflict, "insufficient funds")
			return
		}

		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"duelId": id})
}

// GetDuelHandler handles GET /duels/{duelId}
func (h *HandlerProvider) GetDuelHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "duelId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := h.contests.GetDuel(r.Context(), id)
	if err != nil {
		if errors.Is(err, duels.ErrDuelNotFound) {
			writeError(w, http.StatusNotFound, "duel not found")
			return
		}

		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toDuelDTO(d))
}

type joinDuelRequest struct {
	UserID int64 `json:"userId" validate:"required,gt=0"`
}

// JoinDuelHandler handles POST /duels/{duelId}/join. Losing the join race is
// a 409, not an error: the debit has already been refunded.
func (h *HandlerProvider) JoinDuelHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "duelId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req joinDuelRequest
	err = h.decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, pot, err := h.contests.JoinDuel(r.Context(), id, req.UserID)
	if err != nil {
		if errors.Is(err, accounts.ErrInsufficientFunds) {
			writeError(w, http.StatusConflict, "insufficient funds")
			return
		}

		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	switch status {
	case contest.DuelJoined:
		writeJSON(w, http.StatusOK, map[string]any{"status": string(status), "pot": pot.StringFixed(2)})
	case contest.DuelNotFound:
		writeError(w, http.StatusNotFound, "duel not found")
	default:
		writeError(w, http.StatusConflict, "duel is not open for joining")
	}
}

type resolveDuelRequest struct {
	WinnerID int64 `json:"winnerId" validate:"required,gt=0"`
}

// ResolveDuelHandler handles POST /duels/{duelId}/resolve
func (h *HandlerProvider) ResolveDuelHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "duelId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req resolveDuelRequest
	err = h.decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pot, err := h.contests.ResolveDuel(r.Context(), id, req.WinnerID)
	if err != nil {
		switch {
		case errors.Is(err, duels.ErrDuelNotFound):
			writeError(w, http.StatusNotFound, "duel not found")
		case errors.Is(err, contest.ErrNotParticipant):
			writeError(w, http.StatusUnprocessableEntity, "winner is not a participant")
		case errors.Is(err, contest.ErrConflictingState):
			writeError(w, http.StatusConflict, "duel is not active")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"winnerId": req.WinnerID, "pot": pot.StringFixed(2)})
}

type cancelDuelRequest struct {
	CreatorID int64 `json:"creatorId" validate:"required,gt=0"`
}

// CancelDuelHandler handles POST /duels/{duelId}/cancel
func (h *HandlerProvider) CancelDuelHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "duelId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req cancelDuelRequest
	err = h.decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.contests.CancelDuel(r.Context(), id, req.CreatorID)
	if err != nil {
		if errors.Is(err, contest.ErrConflictingState) {
			writeError(w, http.StatusConflict, "duel cannot be cancelled")
			return
		}

		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
