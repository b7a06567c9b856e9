package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stakehaus/bankroll/internal/services/balance"
	"github.com/stakehaus/bankroll/internal/services/contest"
	"github.com/stakehaus/bankroll/internal/services/payments"
	"github.com/stakehaus/bankroll/internal/services/settings"
	"github.com/stakehaus/bankroll/internal/services/withdrawals"
)

// HandlerProvider wraps the core services and exposes HTTP handlers.
type HandlerProvider struct {
	balances    *balance.Service
	reconciler  *payments.Reconciler
	contests    *contest.Service
	withdrawals *withdrawals.Service
	settings    *settings.Service
	validate    *validator.Validate
}

func NewHandler(
	balances *balance.Service,
	reconciler *payments.Reconciler,
	contests *contest.Service,
	wdr *withdrawals.Service,
	st *settings.Service,
) *HandlerProvider {
	return &HandlerProvider{
		balances:    balances,
		reconciler:  reconciler,
		contests:    contests,
		withdrawals: wdr,
		settings:    st,
		validate:    validator.New(),
	}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody reads a size-capped JSON body into dst and runs validation.
func (h *HandlerProvider) decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty body")
		}

		return fmt.Errorf("invalid JSON: %w", err)
	}

	err = h.validate.Struct(dst)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return 0, fmt.Errorf("missing %s", name)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}

	return id, nil
}

// parseAmount parses a positive decimal money amount with at most 2
// fractional digits.
func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount")
	}
	if d.Exponent() < -2 {
		return decimal.Zero, fmt.Errorf("amount supports up to 2 decimals")
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be > 0")
	}

	return d, nil
}
