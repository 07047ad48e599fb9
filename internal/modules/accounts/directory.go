// Package accounts keeps the account directory used to resolve an
// account's native currency.
package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/domain"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/events"
)

const (
	cacheTable = "accounts"
	cacheKey   = "all"
	cacheTTL   = 24 * time.Hour
)

// Source of the current directory contents.
const (
	SourceRemote = "remote"
	SourceCache  = "cache"
	SourceNone   = "none"
)

// AccountsAPI lists accounts on the remote service.
type AccountsAPI interface {
	ListAccounts(ctx context.Context) ([]domain.Account, error)
}

// Cache persists the last known account list.
type Cache interface {
	Store(table, key string, data interface{}, ttl time.Duration) error
	Get(table, key string) (json.RawMessage, error)
}

// Directory holds the last known account list.
type Directory struct {
	remote AccountsAPI
	cache  Cache
	events *events.Manager
	log    zerolog.Logger

	mu       sync.RWMutex
	accounts map[int]domain.Account
	source   string
	loadedAt time.Time
}

// NewDirectory creates an empty directory. cache and eventManager may be nil.
func NewDirectory(remote AccountsAPI, cache Cache, eventManager *events.Manager, log zerolog.Logger) *Directory {
	return &Directory{
		remote:   remote,
		cache:    cache,
		events:   eventManager,
		log:      log.With().Str("service", "accounts").Logger(),
		accounts: make(map[int]domain.Account),
		source:   SourceNone,
	}
}

// Refresh reloads the account list. On remote failure the previous list is
// kept, or the cached list is used when nothing is loaded yet. The error is
// returned so callers can log it; a failed refresh never empties the directory.
func (d *Directory) Refresh(ctx context.Context) error {
	list, err := d.remote.ListAccounts(ctx)
	if err == nil {
		d.replace(list, SourceRemote)
		if d.cache != nil {
			if cacheErr := d.cache.Store(cacheTable, cacheKey, list, cacheTTL); cacheErr != nil {
				d.log.Warn().Err(cacheErr).Msg("Failed to cache accounts")
			}
		}
		return nil
	}

	d.log.Warn().Err(err).Msg("Failed to refresh accounts")

	d.mu.RLock()
	empty := len(d.accounts) == 0
	d.mu.RUnlock()

	if empty {
		if cached, ok := d.loadCache(); ok {
			d.replace(cached, SourceCache)
		}
	}
	return fmt.Errorf("failed to refresh accounts: %w", err)
}

// Invalidate forces the next List to be served from a fresh Refresh.
func (d *Directory) Invalidate() {
	d.mu.Lock()
	d.loadedAt = time.Time{}
	d.mu.Unlock()
}

// Get returns the account with the given id.
func (d *Directory) Get(id int) (domain.Account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.accounts[id]
	return a, ok
}

// NativeCurrency returns the account's own currency, if known.
func (d *Directory) NativeCurrency(id int) (string, bool) {
	a, ok := d.Get(id)
	if !ok || a.Currency == "" {
		return "", false
	}
	return a.Currency, true
}

// List returns the accounts ordered by id.
func (d *Directory) List() []domain.Account {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.Account, 0, len(d.accounts))
	for _, a := range d.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out
}

// Source reports where the current list came from.
func (d *Directory) Source() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.source
}

// LoadedAt is the time of the last successful load; zero when invalidated.
func (d *Directory) LoadedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loadedAt
}

func (d *Directory) replace(list []domain.Account, source string) {
	next := make(map[int]domain.Account, len(list))
	for _, a := range list {
		next[a.AccountID] = a
	}

	d.mu.Lock()
	d.accounts = next
	d.source = source
	d.loadedAt = time.Now()
	d.mu.Unlock()

	d.log.Debug().Int("count", len(next)).Str("source", source).Msg("Accounts loaded")

	if d.events != nil {
		d.events.Emit("accounts", &events.AccountsRefreshedData{Count: len(next), Source: source})
	}
}

func (d *Directory) loadCache() ([]domain.Account, bool) {
	if d.cache == nil {
		return nil, false
	}
	raw, err := d.cache.Get(cacheTable, cacheKey)
	if err != nil || raw == nil {
		if err != nil {
			d.log.Warn().Err(err).Msg("Failed to read cached accounts")
		}
		return nil, false
	}
	var list []domain.Account
	if err := json.Unmarshal(raw, &list); err != nil {
		d.log.Warn().Err(err).Msg("Cached accounts are corrupt")
		return nil, false
	}
	return list, true
}
