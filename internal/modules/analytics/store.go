package analytics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/clients/analytics"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/domain"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/events"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/filters"
)

// Status is the store lifecycle state.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusLoading       Status = "loading"
	StatusReady         Status = "ready"
)

func (s Status) String() string {
	return string(s)
}

// Trigger reasons.
const (
	ReasonMount       = "mount"
	ReasonFilter      = "filter"
	ReasonPreset      = "preset"
	ReasonDateRange   = "date_range"
	ReasonAccount     = "account"
	ReasonInstruments = "instruments"
	ReasonRefresh     = "refresh"
	ReasonCurrency    = "currency"
)

// Snapshot is a consistent copy of the store.
type Snapshot struct {
	Status          Status                          `json:"status" msgpack:"status"`
	Filter          filters.FilterState             `json:"filter" msgpack:"-"`
	Data            domain.AnalyticsDataState       `json:"data" msgpack:"data"`
	Errors          map[domain.QueryName]QueryError `json:"errors" msgpack:"errors"`
	DisplayCurrency string                          `json:"displayCurrency" msgpack:"displayCurrency"`
	Cycle           uint64                          `json:"cycle" msgpack:"cycle"`
	UpdatedAt       *time.Time                      `json:"updatedAt,omitempty" msgpack:"updatedAt,omitempty"`
}

// CurrencySource supplies the display currency.
type CurrencySource interface {
	DisplayCurrency() string
}

// PreferencesSource supplies the user's currency preferences.
type PreferencesSource interface {
	Preferences() domain.CurrencyPreferences
	Loaded() bool
}

// AccountDirectory resolves account native currencies and is refreshed
// at the start of every cycle.
type AccountDirectory interface {
	Refresh(ctx context.Context) error
	NativeCurrency(accountID int) (string, bool)
}

// StoreConfig wires a Store.
type StoreConfig struct {
	Orchestrator *Orchestrator
	Assembler    *Assembler
	Catalog      Catalog
	Currency     CurrencySource
	Preferences  PreferencesSource
	Accounts     AccountDirectory // optional
	Events       *events.Manager  // optional
	CycleTimeout time.Duration
	Now          func() time.Time
}

// Store holds the filter and the assembled analytics state. Every trigger
// issues a new numbered fetch cycle; only the most recently issued cycle is
// ever applied.
type Store struct {
	orchestrator *Orchestrator
	assembler    *Assembler
	catalog      Catalog
	currency     CurrencySource
	prefs        PreferencesSource
	accounts     AccountDirectory
	events       *events.Manager
	cycleTimeout time.Duration
	now          func() time.Time
	log          zerolog.Logger

	latest atomic.Uint64
	wg     sync.WaitGroup

	// stateMu orders AnalyticsStateChanged events; lastState dedupes them.
	stateMu   sync.Mutex
	lastState events.AnalyticsStateChangedData

	mu              sync.RWMutex
	status          Status
	filter          filters.FilterState
	data            domain.AnalyticsDataState
	errors          map[domain.QueryName]QueryError
	displayCurrency string
	applied         uint64
	updatedAt       *time.Time
	mounted         bool
	prefsReady      bool
	pending         string // reason of a trigger deferred until preferences load
	settled         chan struct{}
	subscriptions   []events.SubscriptionID
}

// NewStore creates an uninitialized store with the default filter.
func NewStore(cfg StoreConfig, log zerolog.Logger) *Store {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	catalog := cfg.Catalog
	if len(catalog) == 0 {
		catalog = AnalyticsCatalog()
	}

	s := &Store{
		orchestrator: cfg.Orchestrator,
		assembler:    cfg.Assembler,
		catalog:      catalog,
		currency:     cfg.Currency,
		prefs:        cfg.Preferences,
		accounts:     cfg.Accounts,
		events:       cfg.Events,
		cycleTimeout: cfg.CycleTimeout,
		now:          now,
		log:          log.With().Str("component", "analytics_store").Logger(),
		status:       StatusUninitialized,
		filter:       filters.New(now()),
		data:         domain.NewAnalyticsDataState(),
		errors:       make(map[domain.QueryName]QueryError),
		settled:      make(chan struct{}),
	}
	if s.assembler == nil {
		s.assembler = NewAssembler(log)
	}

	if s.events != nil {
		bus := s.events.Bus()
		s.subscriptions = append(s.subscriptions,
			bus.Subscribe(events.PreferencesLoaded, func(*events.Event) {
				s.MarkPreferencesReady()
			}),
			bus.Subscribe(events.CurrencyChanged, func(*events.Event) {
				s.trigger(ReasonCurrency, nil)
			}),
		)
	}
	return s
}

// Mount starts the store. The first cycle is deferred until preferences
// have loaded. It returns the issued cycle, or 0 when deferred.
func (s *Store) Mount() uint64 {
	s.mu.Lock()
	if s.mounted {
		s.mu.Unlock()
		return 0
	}
	s.mounted = true
	if !s.prefsReady && s.prefs != nil && s.prefs.Loaded() {
		s.prefsReady = true
	}
	s.mu.Unlock()

	return s.trigger(ReasonMount, nil)
}

// MarkPreferencesReady releases a deferred first cycle.
func (s *Store) MarkPreferencesReady() uint64 {
	s.mu.Lock()
	if s.prefsReady {
		s.mu.Unlock()
		return 0
	}
	s.prefsReady = true
	reason := s.pending
	s.mu.Unlock()

	if reason == "" {
		return 0
	}
	return s.trigger(reason, nil)
}

// SetFilter replaces the whole filter. The preset is reconciled with the
// dates first, so hand-picked dates always end up under custom.
func (s *Store) SetFilter(f filters.FilterState) uint64 {
	return s.trigger(ReasonFilter, func(filters.FilterState) (filters.FilterState, error) {
		return f.Normalize(s.now()), nil
	})
}

// ApplyPreset selects a named preset.
func (s *Store) ApplyPreset(p filters.Preset) (uint64, error) {
	var applyErr error
	cycle := s.trigger(ReasonPreset, func(f filters.FilterState) (filters.FilterState, error) {
		next, err := f.WithPreset(p, s.now())
		applyErr = err
		return next, err
	})
	return cycle, applyErr
}

// SetDateRange sets a custom range.
func (s *Store) SetDateRange(from, to *time.Time) uint64 {
	return s.trigger(ReasonDateRange, func(f filters.FilterState) (filters.FilterState, error) {
		return f.WithDateRange(from, to), nil
	})
}

// SelectAccount selects one account, or all accounts when id is nil.
func (s *Store) SelectAccount(id *int) uint64 {
	return s.trigger(ReasonAccount, func(f filters.FilterState) (filters.FilterState, error) {
		return f.WithAccount(id), nil
	})
}

// SetInstruments replaces the instrument selection.
func (s *Store) SetInstruments(instruments []string) uint64 {
	return s.trigger(ReasonInstruments, func(f filters.FilterState) (filters.FilterState, error) {
		return f.WithInstruments(instruments), nil
	})
}

// Refresh re-resolves a relative preset and refetches everything.
func (s *Store) Refresh() uint64 {
	return s.trigger(ReasonRefresh, func(f filters.FilterState) (filters.FilterState, error) {
		return f.Refresh(s.now()), nil
	})
}

// trigger applies a filter mutation and starts a new cycle. Before mount
// or before preferences load the mutation is kept and the cycle deferred.
func (s *Store) trigger(reason string, mutate func(filters.FilterState) (filters.FilterState, error)) uint64 {
	s.mu.Lock()

	if mutate != nil {
		next, err := mutate(s.filter)
		if err != nil {
			s.mu.Unlock()
			return 0
		}
		s.filter = next
	}
	filter := s.filter

	if !s.mounted || !s.prefsReady {
		if s.mounted {
			s.pending = reason
		}
		s.mu.Unlock()
		if mutate != nil {
			s.emitFilterChanged(reason, filter)
		}
		s.log.Debug().Str("reason", reason).Msg("Fetch deferred until preferences load")
		return 0
	}

	s.pending = ""
	cycle := s.latest.Add(1)
	s.status = StatusLoading
	s.mu.Unlock()

	if mutate != nil {
		s.emitFilterChanged(reason, filter)
	}
	s.emitStateChanged()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runCycle(cycle, reason, filter)
	}()
	return cycle
}

func (s *Store) runCycle(cycle uint64, reason string, filter filters.FilterState) {
	start := time.Now()
	traceID := uuid.NewString()

	ctx := analytics.WithTraceID(context.Background(), traceID)
	if s.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cycleTimeout)
		defer cancel()
	}

	log := s.log.With().Uint64("cycle", cycle).Str("trace_id", traceID).Logger()

	var native NativeCurrencyLookup
	if s.accounts != nil {
		if err := s.accounts.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("Using previous account directory")
		}
		native = s.accounts.NativeCurrency
	}

	display := s.currency.DisplayCurrency()
	prefs := domain.DefaultCurrencyPreferences()
	if s.prefs != nil {
		prefs = s.prefs.Preferences()
	}

	reqs := s.catalog.Build(filter, display, prefs, native)
	if s.events != nil {
		s.events.Emit("analytics", &events.FetchCycleStartedData{
			Cycle:   cycle,
			TraceID: traceID,
			Reason:  reason,
			Queries: len(reqs),
		})
	}

	outcomes := s.orchestrator.RunAll(ctx, reqs)
	s.apply(cycle, traceID, EffectiveCurrency(filter, display, native), outcomes, time.Since(start), log)
}

func (s *Store) apply(
	cycle uint64,
	traceID string,
	displayCurrency string,
	outcomes map[domain.QueryName]Outcome,
	elapsed time.Duration,
	log zerolog.Logger,
) {
	s.mu.Lock()
	latest := s.latest.Load()
	if cycle != latest {
		s.mu.Unlock()
		log.Debug().Uint64("latest", latest).Msg("Discarding superseded fetch cycle")
		if s.events != nil {
			s.events.Emit("analytics", &events.FetchCycleDiscardedData{Cycle: cycle, Latest: latest})
		}
		return
	}

	data, failures := s.assembler.Assemble(s.data, outcomes)
	now := s.now()
	s.data = data
	s.errors = failures
	s.displayCurrency = displayCurrency
	s.status = StatusReady
	s.applied = cycle
	s.updatedAt = &now
	close(s.settled)
	s.settled = make(chan struct{})
	s.mu.Unlock()

	failed := make([]string, 0, len(failures))
	for name := range failures {
		failed = append(failed, string(name))
	}
	sort.Strings(failed)

	log.Info().
		Int("succeeded", len(outcomes)-len(failures)).
		Strs("failed", failed).
		Str("data_currency", data.DataCurrency).
		Dur("elapsed", elapsed).
		Msg("Fetch cycle applied")

	if s.events != nil {
		for _, name := range failed {
			qe := failures[domain.QueryName(name)]
			s.events.Emit("analytics", &events.QueryFailedData{
				Cycle:      cycle,
				Query:      name,
				Message:    qe.Message,
				StatusCode: qe.StatusCode,
			})
		}
		s.events.Emit("analytics", &events.FetchCycleCompletedData{
			Cycle:      cycle,
			TraceID:    traceID,
			Succeeded:  len(outcomes) - len(failures),
			Failed:     failed,
			DurationMs: elapsed.Milliseconds(),
		})
	}
	s.emitStateChanged()
}

// Snapshot returns a consistent copy of the store.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	errs := make(map[domain.QueryName]QueryError, len(s.errors))
	for k, v := range s.errors {
		errs[k] = v
	}
	var updatedAt *time.Time
	if s.updatedAt != nil {
		t := *s.updatedAt
		updatedAt = &t
	}
	return Snapshot{
		Status:          s.status,
		Filter:          s.filter,
		Data:            s.data,
		Errors:          errs,
		DisplayCurrency: s.displayCurrency,
		Cycle:           s.applied,
		UpdatedAt:       updatedAt,
	}
}

// Filter returns the current filter.
func (s *Store) Filter() filters.FilterState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// Status returns the lifecycle state.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// LatestCycle is the most recently issued cycle id.
func (s *Store) LatestCycle() uint64 {
	return s.latest.Load()
}

// Await blocks until the given cycle, or a later one, has been applied.
func (s *Store) Await(ctx context.Context, cycle uint64) (Snapshot, error) {
	for {
		s.mu.RLock()
		if s.applied >= cycle {
			snap := s.snapshotLocked()
			s.mu.RUnlock()
			return snap, nil
		}
		settled := s.settled
		s.mu.RUnlock()

		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-settled:
		}
	}
}

// Subscribe calls fn with a fresh snapshot on every state change.
func (s *Store) Subscribe(fn func(Snapshot)) events.SubscriptionID {
	if s.events == nil {
		return ""
	}
	return s.events.Bus().Subscribe(events.AnalyticsStateChanged, func(*events.Event) {
		fn(s.Snapshot())
	})
}

// Unsubscribe removes subscriptions made with Subscribe.
func (s *Store) Unsubscribe(ids ...events.SubscriptionID) {
	if s.events == nil {
		return
	}
	s.events.Bus().Unsubscribe(ids...)
}

// Close detaches the store from the event bus and waits for running cycles.
func (s *Store) Close() {
	s.mu.Lock()
	subs := s.subscriptions
	s.subscriptions = nil
	s.mu.Unlock()

	if s.events != nil && len(subs) > 0 {
		s.events.Bus().Unsubscribe(subs...)
	}
	s.wg.Wait()
}

func (s *Store) emitFilterChanged(reason string, f filters.FilterState) {
	if s.events == nil {
		return
	}
	s.events.Emit("analytics", &events.FilterChangedData{
		Reason:    reason,
		Preset:    string(f.Preset),
		DateFrom:  f.FromString(),
		DateTo:    f.ToString(),
		AccountID: f.SelectedAccountID,
	})
}

// emitStateChanged publishes the store's state as it is at emit time, so
// the last event always matches Snapshot. Subscribers must not trigger the
// store synchronously from this event.
func (s *Store) emitStateChanged() {
	if s.events == nil {
		return
	}
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	s.mu.RLock()
	data := events.AnalyticsStateChangedData{
		Cycle:        s.latest.Load(),
		Status:       string(s.status),
		DataCurrency: s.data.DataCurrency,
		Errors:       make([]string, 0, len(s.errors)),
	}
	for name := range s.errors {
		data.Errors = append(data.Errors, string(name))
	}
	s.mu.RUnlock()
	sort.Strings(data.Errors)

	if data.Cycle == s.lastState.Cycle && data.Status == s.lastState.Status {
		return
	}
	s.lastState = data
	s.events.Emit("analytics", &data)
}
