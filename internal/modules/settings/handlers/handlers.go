// Package handlers provides HTTP handlers for currency preferences.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/domain"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/currency"
)

// PreferencesService is what the handlers need from settings.PreferencesService.
type PreferencesService interface {
	Preferences() domain.CurrencyPreferences
	Loaded() bool
	Source() string
	SetDefaultCurrency(ctx context.Context, code string) error
	SetShowConverted(ctx context.Context, show bool) error
}

// Handler provides HTTP handlers for settings endpoints
type Handler struct {
	service PreferencesService
	log     zerolog.Logger
}

// NewHandler creates a new settings handler
func NewHandler(service PreferencesService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "settings").Logger(),
	}
}

// DefaultCurrencyRequest is the body of PUT /api/settings/currency/default
type DefaultCurrencyRequest struct {
	Currency string `json:"currency"`
}

// ShowConvertedRequest is the body of PUT /api/settings/currency/show-converted
type ShowConvertedRequest struct {
	ShowConverted *bool `json:"showConverted"`
}

// RegisterRoutes registers the settings routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/settings/currency", func(r chi.Router) {
		r.Get("/", h.HandleGetCurrency)
		r.Put("/default", h.HandleSetDefaultCurrency)
		r.Put("/show-converted", h.HandleSetShowConverted)
	})
}

// HandleGetCurrency handles GET /api/settings/currency
func (h *Handler) HandleGetCurrency(w http.ResponseWriter, r *http.Request) {
	h.writeEnvelope(w, http.StatusOK, h.payload())
}

// HandleSetDefaultCurrency handles PUT /api/settings/currency/default
func (h *Handler) HandleSetDefaultCurrency(w http.ResponseWriter, r *http.Request) {
	var req DefaultCurrencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Currency == "" {
		http.Error(w, "currency is required", http.StatusBadRequest)
		return
	}

	if err := h.service.SetDefaultCurrency(r.Context(), req.Currency); err != nil {
		if errors.Is(err, currency.ErrUnsupportedCurrency) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Str("currency", req.Currency).Msg("Failed to set default currency")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	h.writeEnvelope(w, http.StatusOK, h.payload())
}

// HandleSetShowConverted handles PUT /api/settings/currency/show-converted
func (h *Handler) HandleSetShowConverted(w http.ResponseWriter, r *http.Request) {
	var req ShowConvertedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ShowConverted == nil {
		http.Error(w, "showConverted is required", http.StatusBadRequest)
		return
	}

	if err := h.service.SetShowConverted(r.Context(), *req.ShowConverted); err != nil {
		h.log.Error().Err(err).Msg("Failed to set show-converted")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	h.writeEnvelope(w, http.StatusOK, h.payload())
}

func (h *Handler) payload() map[string]interface{} {
	prefs := h.service.Preferences()
	return map[string]interface{}{
		"defaultCurrency": prefs.DefaultCurrency,
		"showConverted":   prefs.ShowConverted,
		"loaded":          h.service.Loaded(),
		"source":          h.service.Source(),
	}
}

func (h *Handler) writeEnvelope(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
