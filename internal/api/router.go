package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter registers all API endpoints.
func NewRouter(h *HandlerProvider) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/user/{userId}/balance", h.GetBalanceHandler)
	r.Get("/user/{userId}/ledger", h.GetLedgerHandler)
	r.Get("/user/{userId}/profile", h.GetProfileHandler)
	r.Post("/user/{userId}/adjustment", h.AdminAdjustmentHandler)
	r.Post("/user/{userId}/bonus", h.GrantBonusHandler)

	r.Post("/payments/pending", h.RegisterPendingHandler)
	r.Post("/payments/{method}/{externalId}/confirm", h.ConfirmPaymentHandler)

	r.Post("/duels", h.CreateDuelHandler)
	r.Get("/duels/{duelId}", h.GetDuelHandler)
	r.Post("/duels/{duelId}/join", h.JoinDuelHandler)
	r.Post("/duels/{duelId}/cancel", h.CancelDuelHandler)
	r.Post("/duels/{duelId}/resolve", h.ResolveDuelHandler)

	r.Post("/raffles", h.CreateRaffleHandler)
	r.Get("/raffles/{raffleId}", h.GetRaffleHandler)
	r.Post("/raffles/{raffleId}/join", h.JoinRaffleHandler)
	r.Post("/raffles/{raffleId}/draw", h.DrawRaffleHandler)

	r.Post("/withdrawals", h.RequestWithdrawalHandler)
	r.Post("/withdrawals/{withdrawalId}/approve", h.ApproveWithdrawalHandler)
	r.Post("/withdrawals/{withdrawalId}/reject", h.RejectWithdrawalHandler)

	r.Get("/settings/{key}", h.GetSettingHandler)
	r.Put("/settings/{key}", h.PutSettingHandler)

	return r
}
