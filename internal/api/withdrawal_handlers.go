package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/stakehaus/bankroll/internal/repos/accounts"
	repowithdrawals "github.com/stakehaus/bankroll/internal/repos/withdrawals"
	"github.com/stakehaus/bankroll/internal/services/withdrawals"
)

type requestWithdrawalRequest struct {
	UserID int64  `json:"userId" validate:"required,gt=0"`
	Amount string `json:"amount" validate:"required"`
	Wallet string `json:"wallet" validate:"required,max=128"`
}

// RequestWithdrawalHandler handles POST /withdrawals
func (h *HandlerProvider) RequestWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	var req requestWithdrawalRequest
	err := h.decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.withdrawals.Request(r.Context(), req.UserID, amount, req.Wallet)
	if err != nil {
		switch {
		case errors.Is(err, withdrawals.ErrBelowMinimum):
			writeError(w, http.StatusUnprocessableEntity, "amount below minimum")
		case errors.Is(err, accounts.ErrInsufficientFunds):
			writeError(w, http.StatusConflict, "insufficient funds")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"withdrawalId": id})
}

// ApproveWithdrawalHandler handles POST /withdrawals/{withdrawalId}/approve
func (h *HandlerProvider) ApproveWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	h.setWithdrawalStatus(w, r, h.withdrawals.Approve, "approved")
}

// RejectWithdrawalHandler handles POST /withdrawals/{withdrawalId}/reject
func (h *HandlerProvider) RejectWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	h.setWithdrawalStatus(w, r, h.withdrawals.Reject, "rejected")
}

func (h *HandlerProvider) setWithdrawalStatus(w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, id int64) error, status string,
) {
	id, err := pathID(r, "withdrawalId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = apply(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, repowithdrawals.ErrWithdrawalNotFound):
			writeError(w, http.StatusNotFound, "withdrawal not found")
		case errors.Is(err, withdrawals.ErrAlreadyProcessed):
			writeError(w, http.StatusConflict, "withdrawal already processed")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}
