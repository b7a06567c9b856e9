package api

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/stakehaus/bankroll/internal/repos/accounts"
	"github.com/stakehaus/bankroll/internal/services/balance"
)

// GetBalanceHandler handles GET /user/{userId}/balance
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	bal, err := h.balances.GetBalance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}

		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":  userID,
		"balance": bal.StringFixed(2),
	})
}

// GetLedgerHandler handles GET /user/{userId}/ledger
func (h *HandlerProvider) GetLedgerHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	entries, err := h.balances.History(r.Context(), userID, 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	type entryDTO struct {
		ID     int64          `json:"id"`
		Amount string         `json:"amount"`
		Type   string         `json:"type"`
		Method string         `json:"method,omitempty"`
		Before string         `json:"before"`
		After  string         `json:"after"`
		Meta   map[string]any `json:"meta,omitempty"`
	}

	out := make([]entryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryDTO{
			ID:     e.ID,
			Amount: e.Amount.StringFixed(2),
			Type:   e.Type,
			Method: e.Method,
			Before: e.Before.StringFixed(2),
			After:  e.After.StringFixed(2),
			Meta:   e.Meta,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"userId": userID, "entries": out})
}

type adjustmentRequest struct {
	Delta         string `json:"delta" validate:"required"`
	Reason        string `json:"reason" validate:"required"`
	AllowNegative bool   `json:"allowNegative"`
}

// AdminAdjustmentHandler handles POST /user/{userId}/adjustment. This is
// the only path where AllowNegative is honored.
func (h *HandlerProvider) AdminAdjustmentHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userId in path")
		return
	}

	var req adjustmentRequest
	err = h.decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	delta, err := decimal.NewFromString(req.Delta)
	if err != nil || delta.IsZero() || delta.Exponent() < -2 {
		writeError(w, http.StatusBadRequest, "invalid delta")
		return
	}

	res, err := h.balances.ApplyDelta(r.Context(), balance.Change{
		UserID:        userID,
		Delta:         delta,
		Type:          balance.TypeAdminAdjustment,
		Method:        balance.MethodAdmin,
		Meta:          map[string]any{"reason": req.Reason},
		AllowNegative: req.AllowNegative,
	})
	if err != nil {
		if errors.Is(err, accounts.ErrInsufficientFunds) {
			writeError(w, http.StatusConflict, "insufficient funds")
			return
		}

		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"before": res.Before.StringFixed(2),
		"after":  res.After.StringFixed(2),
	})
}

// GetProfileHandler handles GET /user/{userId}/profile
func (h *HandlerProvider) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	acc, err := h.balances.Profile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}

		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":     acc.UserID,
		"balance":    acc.Balance.StringFixed(2),
		"bonus":      acc.Bonus.StringFixed(2),
		"referredBy": acc.ReferredBy,
		"refsTotal":  acc.RefsTotal,
		"refsEarned": acc.RefsEarned.StringFixed(2),
	})
}

type grantBonusRequest struct {
	Amount string `json:"amount" validate:"required"`
}

// GrantBonusHandler handles POST /user/{userId}/bonus
func (h *HandlerProvider) GrantBonusHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req grantBonusRequest
	err = h.decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.balances.GrantBonus(r.Context(), userID, amount)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}
