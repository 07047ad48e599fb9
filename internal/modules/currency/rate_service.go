package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/domain"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/events"
)

const (
	cacheTable = "exchangerate"
	cacheKey   = "table"
	cacheTTL   = time.Hour
)

// RatesAPI is the remote exchange rate settings endpoint.
type RatesAPI interface {
	GetExchangeRates(ctx context.Context) (domain.ExchangeRateTable, error)
	SetExchangeRate(ctx context.Context, code string, rate float64) error
	UpdateExchangeRates(ctx context.Context, table domain.ExchangeRateTable) error
}

// RateCache persists the last good table.
type RateCache interface {
	Store(table, key string, data interface{}, ttl time.Duration) error
	Get(table, key string) (json.RawMessage, error)
}

// RateService refreshes the engine's table with a three tier fallback:
// remote service, then the cached table (stale accepted), then the
// built-in defaults.
type RateService struct {
	remote RatesAPI
	cache  RateCache
	engine *Engine
	events *events.Manager
	log    zerolog.Logger
}

// NewRateService creates a rate service. remote, cache and eventManager may be nil.
func NewRateService(remote RatesAPI, cache RateCache, engine *Engine, eventManager *events.Manager, log zerolog.Logger) *RateService {
	return &RateService{
		remote: remote,
		cache:  cache,
		engine: engine,
		events: eventManager,
		log:    log.With().Str("service", "exchange_rates").Logger(),
	}
}

// Refresh loads the best available table into the engine and reports its
// source. It never fails: the last tier always succeeds.
func (s *RateService) Refresh(ctx context.Context) Source {
	// Tier 1: remote service
	if s.remote != nil {
		table, err := s.remote.GetExchangeRates(ctx)
		if err == nil {
			if err = s.engine.ApplyTable(table, SourceRemote); err == nil {
				s.storeCache(table)
				s.log.Info().
					Str("base", table.BaseCurrency).
					Int("currencies", len(table.Rates)).
					Msg("Exchange rates refreshed from remote")
				s.emit(SourceRemote)
				return SourceRemote
			}
		}
		s.log.Warn().Err(err).Msg("Remote exchange rates unavailable, trying cache")
	}

	// Tier 2: cached table, any age
	if table, ok := s.loadCache(); ok {
		if err := s.engine.ApplyTable(table, SourceCache); err == nil {
			s.log.Warn().
				Str("base", table.BaseCurrency).
				Msg("Using cached exchange rates")
			s.emit(SourceCache)
			return SourceCache
		}
	}

	// Tier 3: built-in defaults
	s.engine.Reset()
	s.log.Warn().Msg("Using built-in fallback exchange rates")
	s.emit(SourceFallback)
	return SourceFallback
}

// SetRate persists a single rate on the remote service, then refreshes.
func (s *RateService) SetRate(ctx context.Context, code string, rate float64) (Source, error) {
	code = NormalizeCode(code)
	if !IsValidCode(code) {
		return s.engine.Source(), fmt.Errorf("%w: %q", ErrUnsupportedCurrency, code)
	}
	if !validRate(rate) {
		return s.engine.Source(), fmt.Errorf("invalid rate %v for %s", rate, code)
	}
	if s.remote == nil {
		return s.engine.Source(), fmt.Errorf("no remote rate source configured")
	}
	if err := s.remote.SetExchangeRate(ctx, code, rate); err != nil {
		return s.engine.Source(), fmt.Errorf("failed to set rate for %s: %w", code, err)
	}
	return s.Refresh(ctx), nil
}

// BulkUpdate replaces the remote table, then refreshes.
func (s *RateService) BulkUpdate(ctx context.Context, table domain.ExchangeRateTable) (Source, error) {
	if !IsValidCode(NormalizeCode(table.BaseCurrency)) {
		return s.engine.Source(), fmt.Errorf("%w: invalid base currency %q", ErrUnsupportedCurrency, table.BaseCurrency)
	}
	for code, rate := range table.Rates {
		if !validRate(rate) {
			return s.engine.Source(), fmt.Errorf("invalid rate %v for %s", rate, code)
		}
	}
	if s.remote == nil {
		return s.engine.Source(), fmt.Errorf("no remote rate source configured")
	}
	if err := s.remote.UpdateExchangeRates(ctx, table); err != nil {
		return s.engine.Source(), fmt.Errorf("failed to update exchange rates: %w", err)
	}
	return s.Refresh(ctx), nil
}

func (s *RateService) storeCache(table domain.ExchangeRateTable) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Store(cacheTable, cacheKey, table, cacheTTL); err != nil {
		s.log.Error().Err(err).Msg("Failed to cache exchange rates")
	}
}

func (s *RateService) loadCache() (domain.ExchangeRateTable, bool) {
	var table domain.ExchangeRateTable
	if s.cache == nil {
		return table, false
	}
	raw, err := s.cache.Get(cacheTable, cacheKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read cached exchange rates")
		return table, false
	}
	if raw == nil {
		return table, false
	}
	if err := json.Unmarshal(raw, &table); err != nil {
		s.log.Warn().Err(err).Msg("Cached exchange rates are corrupt")
		return table, false
	}
	return table, true
}

func (s *RateService) emit(source Source) {
	if s.events == nil {
		return
	}
	t := s.engine.Table()
	s.events.Emit("currency", &events.RatesUpdatedData{
		BaseCurrency: t.BaseCurrency,
		Source:       string(source),
		Currencies:   len(t.Rates),
	})
}

// RefreshJob runs Refresh on a schedule.
type RefreshJob struct {
	service *RateService
	timeout time.Duration
}

// NewRefreshJob creates the scheduled rate refresh job.
func NewRefreshJob(service *RateService, timeout time.Duration) *RefreshJob {
	return &RefreshJob{service: service, timeout: timeout}
}

// Run refreshes the rate table.
func (j *RefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	j.service.Refresh(ctx)
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *RefreshJob) Name() string {
	return "exchange_rate_refresh"
}
