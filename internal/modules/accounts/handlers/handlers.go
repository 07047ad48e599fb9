// Package handlers provides HTTP handlers for account administration.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/clients/analytics"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/domain"
)

// listMaxAge bounds how long GET /api/accounts serves the directory without
// refreshing it.
const listMaxAge = 5 * time.Minute

// AdminAPI is the remote account administration surface.
type AdminAPI interface {
	CreateAccount(ctx context.Context, account domain.Account) (domain.Account, error)
	UpdateAccount(ctx context.Context, account domain.Account) (domain.Account, error)
	DeleteAccount(ctx context.Context, id int) error
	ListBrokers(ctx context.Context) ([]domain.Broker, error)
	GetDBStats(ctx context.Context) (domain.DBStats, error)
}

// Directory is the account directory.
type Directory interface {
	Refresh(ctx context.Context) error
	Invalidate()
	List() []domain.Account
	Source() string
	LoadedAt() time.Time
}

// Handler handles account HTTP requests
type Handler struct {
	admin     AdminAPI
	directory Directory
	log       zerolog.Logger
}

// NewHandler creates a new accounts handler
func NewHandler(admin AdminAPI, directory Directory, log zerolog.Logger) *Handler {
	return &Handler{
		admin:     admin,
		directory: directory,
		log:       log.With().Str("handler", "accounts").Logger(),
	}
}

// RegisterRoutes registers the account routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
		r.Get("/brokers", h.HandleListBrokers)
		r.Get("/db-stats", h.HandleDBStats)
	})
}

// HandleList handles GET /api/accounts
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	loadedAt := h.directory.LoadedAt()
	if loadedAt.IsZero() || time.Since(loadedAt) > listMaxAge {
		if err := h.directory.Refresh(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("Serving accounts from previous load")
		}
	}

	accounts := h.directory.List()
	h.writeEnvelope(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
		"source":   h.directory.Source(),
	})
}

// HandleCreate handles POST /api/accounts
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var account domain.Account
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if account.AccountName == "" {
		http.Error(w, "accountName is required", http.StatusBadRequest)
		return
	}

	created, err := h.admin.CreateAccount(r.Context(), account)
	if err != nil {
		h.writeRemoteError(w, err, "Failed to create account")
		return
	}

	h.reload(r.Context())
	h.writeEnvelope(w, http.StatusCreated, created)
}

// HandleUpdate handles PUT /api/accounts/{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var account domain.Account
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	account.AccountID = id

	updated, err := h.admin.UpdateAccount(r.Context(), account)
	if err != nil {
		h.writeRemoteError(w, err, "Failed to update account")
		return
	}

	h.reload(r.Context())
	h.writeEnvelope(w, http.StatusOK, updated)
}

// HandleDelete handles DELETE /api/accounts/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.admin.DeleteAccount(r.Context(), id); err != nil {
		h.writeRemoteError(w, err, "Failed to delete account")
		return
	}

	h.reload(r.Context())
	h.writeEnvelope(w, http.StatusOK, map[string]interface{}{"deleted": id})
}

// HandleListBrokers handles GET /api/accounts/brokers
func (h *Handler) HandleListBrokers(w http.ResponseWriter, r *http.Request) {
	brokers, err := h.admin.ListBrokers(r.Context())
	if err != nil {
		h.writeRemoteError(w, err, "Failed to list brokers")
		return
	}
	h.writeEnvelope(w, http.StatusOK, map[string]interface{}{
		"brokers": brokers,
		"count":   len(brokers),
	})
}

// HandleDBStats handles GET /api/accounts/db-stats
func (h *Handler) HandleDBStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.GetDBStats(r.Context())
	if err != nil {
		h.writeRemoteError(w, err, "Failed to get database stats")
		return
	}
	h.writeEnvelope(w, http.StatusOK, stats)
}

func (h *Handler) reload(ctx context.Context) {
	h.directory.Invalidate()
	if err := h.directory.Refresh(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Failed to reload accounts after change")
	}
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		http.Error(w, "Invalid account id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) writeRemoteError(w http.ResponseWriter, err error, msg string) {
	h.log.Error().Err(err).Msg(msg)
	status := http.StatusBadGateway
	if code := analytics.StatusCodeOf(err); code >= 400 && code < 500 {
		status = code
	}
	http.Error(w, err.Error(), status)
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
