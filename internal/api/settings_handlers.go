package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GetSettingHandler handles GET /settings/{key}. Unset keys come back as an
// empty value rather than 404 so callers can treat settings as optional.
func (h *HandlerProvider) GetSettingHandler(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing key")
		return
	}

	value, err := h.settings.Get(r.Context(), key, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

type putSettingRequest struct {
	Value string `json:"value" validate:"required,max=1024"`
}

// PutSettingHandler handles PUT /settings/{key}
func (h *HandlerProvider) PutSettingHandler(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing key")
		return
	}

	var req putSettingRequest
	err := h.decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.settings.Set(r.Context(), key, req.Value)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": req.Value})
}
