package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	repopayments "github.com/stakehaus/bankroll/internal/repos/payments"
	"github.com/stakehaus/bankroll/internal/services/payments"
)

type registerPendingRequest struct {
	UserID     int64  `json:"userId" validate:"required,gt=0"`
	Method     string `json:"method" validate:"required,oneof=crypto rocket stars"`
	ExternalID string `json:"externalId" validate:"required"`
	Amount     string `json:"amount" validate:"required"`
	Status     string `json:"status" validate:"omitempty,oneof=pending paid expired"`
}

// RegisterPendingHandler handles POST /payments/pending
func (h *HandlerProvider) RegisterPendingHandler(w http.ResponseWriter, r *http.Request) {
	var req registerPendingRequest
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

	err = h.reconciler.RegisterPending(r.Context(), req.UserID, req.Method, req.ExternalID,
		amount, repopayments.Status(req.Status))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}

// ConfirmPaymentHandler handles POST /payments/{method}/{externalId}/confirm.
// A repeat confirmation of an already-credited payment is an idempotent
// success with credited=false.
func (h *HandlerProvider) ConfirmPaymentHandler(w http.ResponseWriter, r *http.Request) {
	method := chi.URLParam(r, "method")
	externalID := chi.URLParam(r, "externalId")
	if method == "" || externalID == "" {
		writeError(w, http.StatusBadRequest, "missing method or externalId")
		return
	}

	credited, err := h.reconciler.ConfirmPayment(r.Context(), method, externalID)
	if err != nil {
		if errors.Is(err, repopayments.ErrPaymentNotFound) {
			writeError(w, http.StatusNotFound, "payment not found")
			return
		}
		if errors.Is(err, payments.ErrReconciliationGap) {
			// Credit pending; the sweeper repairs it. The user sees retry.
			writeError(w, http.StatusInternalServerError, "credit pending, try again later")
			return
		}

		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"credited": credited})
}
