// Package handlers exposes the analytics store over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/analytics"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/currency"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/filters"
)

const (
	contentTypeMsgpack = "application/msgpack"
	maxWait            = 60 * time.Second
)

// Store is the analytics state store.
type Store interface {
	Snapshot() analytics.Snapshot
	Filter() filters.FilterState
	SetFilter(f filters.FilterState) uint64
	ApplyPreset(p filters.Preset) (uint64, error)
	SetDateRange(from, to *time.Time) uint64
	SelectAccount(id *int) uint64
	SetInstruments(instruments []string) uint64
	Refresh() uint64
	Await(ctx context.Context, cycle uint64) (analytics.Snapshot, error)
}

// Handler handles analytics HTTP requests
type Handler struct {
	store     Store
	converter analytics.Converter
	log       zerolog.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(store Store, converter analytics.Converter, log zerolog.Logger) *Handler {
	return &Handler{
		store:     store,
		converter: converter,
		log:       log.With().Str("handler", "analytics").Logger(),
	}
}

// PresetRequest is the body of POST /api/analytics/preset
type PresetRequest struct {
	Preset string `json:"preset"`
}

// RangeRequest is the body of POST /api/analytics/range
type RangeRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// AccountRequest is the body of POST /api/analytics/account; a null id
// selects all accounts.
type AccountRequest struct {
	AccountID *int `json:"accountId"`
}

// InstrumentsRequest is the body of POST /api/analytics/instruments
type InstrumentsRequest struct {
	Instruments []string `json:"instruments"`
}

// stateView is the transport form of a snapshot.
type stateView struct {
	analytics.Snapshot
	Filter filters.Wire `json:"filter" msgpack:"filter"`
}

// RegisterRoutes registers the analytics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/state", h.HandleGetState)
		r.Get("/summary", h.HandleGetSummary)
		r.Get("/filter", h.HandleGetFilter)
		r.Put("/filter", h.HandleSetFilter)

		r.Post("/preset", h.HandlePreset)
		r.Post("/range", h.HandleRange)
		r.Post("/account", h.HandleAccount)
		r.Post("/instruments", h.HandleInstruments)
		r.Post("/refresh", h.HandleRefresh)
	})
}

// HandleGetState handles GET /api/analytics/state
func (h *Handler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	view := stateView{Snapshot: snap, Filter: snap.Filter.Wire()}

	if wantsMsgpack(r) {
		body, err := msgpack.Marshal(view)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to encode msgpack state")
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentTypeMsgpack)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	h.writeEnvelope(w, http.StatusOK, view)
}

// HandleGetSummary handles GET /api/analytics/summary
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	opts := currency.DefaultFormatOptions()
	if locale := r.URL.Query().Get("locale"); locale != "" {
		opts.Locale = locale
	}
	summary := analytics.Summarize(h.store.Snapshot(), h.converter, opts)
	h.writeEnvelope(w, http.StatusOK, summary)
}

// HandleGetFilter handles GET /api/analytics/filter
func (h *Handler) HandleGetFilter(w http.ResponseWriter, r *http.Request) {
	h.writeEnvelope(w, http.StatusOK, h.store.Filter())
}

// HandleSetFilter handles PUT /api/analytics/filter
func (h *Handler) HandleSetFilter(w http.ResponseWriter, r *http.Request) {
	var f filters.FilterState
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		http.Error(w, "Invalid filter: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.respondCycle(w, r, h.store.SetFilter(f))
}

// HandlePreset handles POST /api/analytics/preset
func (h *Handler) HandlePreset(w http.ResponseWriter, r *http.Request) {
	var req PresetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	preset, err := filters.ParsePreset(req.Preset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cycle, err := h.store.ApplyPreset(preset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.respondCycle(w, r, cycle)
}

// HandleRange handles POST /api/analytics/range
func (h *Handler) HandleRange(w http.ResponseWriter, r *http.Request) {
	var req RangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	from, err := filters.ParseDate(req.From)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := filters.ParseDate(req.To)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.respondCycle(w, r, h.store.SetDateRange(from, to))
}

// HandleAccount handles POST /api/analytics/account
func (h *Handler) HandleAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.respondCycle(w, r, h.store.SelectAccount(req.AccountID))
}

// HandleInstruments handles POST /api/analytics/instruments
func (h *Handler) HandleInstruments(w http.ResponseWriter, r *http.Request) {
	var req InstrumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.respondCycle(w, r, h.store.SetInstruments(req.Instruments))
}

// HandleRefresh handles POST /api/analytics/refresh
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	h.respondCycle(w, r, h.store.Refresh())
}

// respondCycle returns the issued cycle. With ?wait=true it blocks until
// that cycle is applied and includes the resulting state.
func (h *Handler) respondCycle(w http.ResponseWriter, r *http.Request, cycle uint64) {
	data := map[string]interface{}{
		"cycle":    cycle,
		"deferred": cycle == 0,
	}

	if cycle != 0 && r.URL.Query().Get("wait") == "true" {
		ctx, cancel := context.WithTimeout(r.Context(), maxWait)
		defer cancel()

		snap, err := h.store.Await(ctx, cycle)
		if err != nil {
			h.log.Warn().Err(err).Uint64("cycle", cycle).Msg("Gave up waiting for fetch cycle")
			http.Error(w, "Timed out waiting for fetch cycle", http.StatusGatewayTimeout)
			return
		}
		data["state"] = stateView{Snapshot: snap, Filter: snap.Filter.Wire()}
	}

	h.writeEnvelope(w, http.StatusAccepted, data)
}

func wantsMsgpack(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, contentTypeMsgpack) || strings.Contains(accept, "application/x-msgpack")
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
