// Package handlers provides HTTP handlers for currency operations.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/domain"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/currency"
)

// RateService updates the rate table.
type RateService interface {
	Refresh(ctx context.Context) currency.Source
	SetRate(ctx context.Context, code string, rate float64) (currency.Source, error)
	BulkUpdate(ctx context.Context, table domain.ExchangeRateTable) (currency.Source, error)
}

// Handler handles currency HTTP requests
type Handler struct {
	engine *currency.Engine
	rates  RateService
	log    zerolog.Logger
}

// NewHandler creates a new currency handler
func NewHandler(engine *currency.Engine, rates RateService, log zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		rates:  rates,
		log:    log.With().Str("handler", "currency").Logger(),
	}
}

// ConvertRequest represents a request to convert currency
type ConvertRequest struct {
	FromCurrency string  `json:"from_currency"`
	ToCurrency   string  `json:"to_currency"`
	Amount       float64 `json:"amount"`
}

// FormatRequest represents a request to format an amount
type FormatRequest struct {
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	IncludeSymbol *bool   `json:"include_symbol"`
	DecimalPlaces *int    `json:"decimal_places"`
	Locale        string  `json:"locale"`
}

// SetRateRequest is the body of PUT /api/currency/rates/{code}
type SetRateRequest struct {
	Rate float64 `json:"rate"`
}

// RegisterRoutes registers all currency routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/currency", func(r chi.Router) {
		// Rates
		r.Get("/rates", h.HandleGetRates)
		r.Post("/rates", h.HandleBulkUpdate)
		r.Post("/rates/refresh", h.HandleRefreshRates)
		r.Put("/rates/{code}", h.HandleSetRate)

		// Conversion and display
		r.Post("/convert", h.HandleConvert)
		r.Post("/format", h.HandleFormat)
		r.Get("/available", h.HandleGetAvailableCurrencies)
	})
}

// HandleGetRates handles GET /api/currency/rates. With ?base=XXX the table
// is expressed relative to that currency instead of the display currency.
func (h *Handler) HandleGetRates(w http.ResponseWriter, r *http.Request) {
	table := h.engine.Table()

	if base := currency.NormalizeCode(r.URL.Query().Get("base")); base != "" {
		if !h.engine.Supports(base) {
			http.Error(w, "unsupported base currency", http.StatusBadRequest)
			return
		}
		table.BaseCurrency = base
		table.Rates = h.engine.RatesRelativeTo(base)
	}

	h.writeEnvelope(w, http.StatusOK, table, nil)
}

// HandleRefreshRates handles POST /api/currency/rates/refresh
func (h *Handler) HandleRefreshRates(w http.ResponseWriter, r *http.Request) {
	source := h.rates.Refresh(r.Context())
	h.writeEnvelope(w, http.StatusOK, h.engine.Table(), map[string]interface{}{"source": source})
}

// HandleSetRate handles PUT /api/currency/rates/{code}
func (h *Handler) HandleSetRate(w http.ResponseWriter, r *http.Request) {
	code := currency.NormalizeCode(chi.URLParam(r, "code"))
	if !currency.IsValidCode(code) {
		http.Error(w, "invalid currency code", http.StatusBadRequest)
		return
	}

	var req SetRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Rate <= 0 {
		http.Error(w, "rate must be greater than 0", http.StatusBadRequest)
		return
	}

	source, err := h.rates.SetRate(r.Context(), code, req.Rate)
	if err != nil {
		h.log.Error().Err(err).Str("currency", code).Msg("Failed to set exchange rate")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.writeEnvelope(w, http.StatusOK, h.engine.Table(), map[string]interface{}{"source": source})
}

// HandleBulkUpdate handles POST /api/currency/rates
func (h *Handler) HandleBulkUpdate(w http.ResponseWriter, r *http.Request) {
	var table domain.ExchangeRateTable
	if err := json.NewDecoder(r.Body).Decode(&table); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	table.BaseCurrency = currency.NormalizeCode(table.BaseCurrency)
	if !currency.IsValidCode(table.BaseCurrency) || len(table.Rates) == 0 {
		http.Error(w, "baseCurrency and rates are required", http.StatusBadRequest)
		return
	}

	source, err := h.rates.BulkUpdate(r.Context(), table)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to update exchange rates")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.writeEnvelope(w, http.StatusOK, h.engine.Table(), map[string]interface{}{"source": source})
}

// HandleConvert handles POST /api/currency/convert
func (h *Handler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.FromCurrency == "" {
		http.Error(w, "from_currency is required", http.StatusBadRequest)
		return
	}
	to := req.ToCurrency
	if to == "" {
		to = h.engine.DisplayCurrency()
	}

	rate, known := h.engine.Rate(req.FromCurrency, to)
	data := map[string]interface{}{
		"from_currency": currency.NormalizeCode(req.FromCurrency),
		"to_currency":   currency.NormalizeCode(to),
		"from_amount":   req.Amount,
		"to_amount":     h.engine.Convert(req.Amount, req.FromCurrency, to),
		"rate":          rate,
	}
	var meta map[string]interface{}
	if !known {
		meta = map[string]interface{}{"note": "No rate available, amount returned unchanged"}
	}

	h.writeEnvelope(w, http.StatusOK, data, meta)
}

// HandleFormat handles POST /api/currency/format
func (h *Handler) HandleFormat(w http.ResponseWriter, r *http.Request) {
	var req FormatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	opts := currency.DefaultFormatOptions()
	if req.IncludeSymbol != nil {
		opts.IncludeSymbol = *req.IncludeSymbol
	}
	if req.DecimalPlaces != nil {
		opts.DecimalPlaces = *req.DecimalPlaces
	}
	if req.Locale != "" {
		opts.Locale = req.Locale
	}

	code := currency.NormalizeCode(req.Currency)
	if code == "" {
		code = h.engine.DisplayCurrency()
	}

	h.writeEnvelope(w, http.StatusOK, map[string]interface{}{
		"amount":    req.Amount,
		"currency":  code,
		"formatted": currency.Format(req.Amount, code, opts),
	}, nil)
}

// HandleGetAvailableCurrencies handles GET /api/currency/available
func (h *Handler) HandleGetAvailableCurrencies(w http.ResponseWriter, r *http.Request) {
	codes := h.engine.SupportedCurrencies()
	currencies := make([]map[string]interface{}, 0, len(codes))
	for _, code := range codes {
		symbol, prefix := currency.Symbol(code)
		entry := map[string]interface{}{
			"code":   code,
			"symbol": symbol,
			"prefix": prefix,
		}
		if c := money.GetCurrency(code); c != nil {
			entry["decimals"] = c.Fraction
		}
		currencies = append(currencies, entry)
	}

	h.writeEnvelope(w, http.StatusOK, map[string]interface{}{
		"currencies": currencies,
		"count":      len(currencies),
		"display":    h.engine.DisplayCurrency(),
	}, nil)
}

func (h *Handler) writeEnvelope(w http.ResponseWriter, status int, data interface{}, meta map[string]interface{}) {
	metadata := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
	}
	for k, v := range meta {
		metadata[k] = v
	}
	h.writeJSON(w, status, map[string]interface{}{
		"data":     data,
		"metadata": metadata,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

