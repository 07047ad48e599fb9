package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/domain"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/events"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/currency"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/filters"
)

type fakePrefs struct {
	mu     sync.Mutex
	prefs  domain.CurrencyPreferences
	loaded bool
}

func (p *fakePrefs) Preferences() domain.CurrencyPreferences {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prefs
}

func (p *fakePrefs) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

type fakeAccounts struct {
	mu        sync.Mutex
	native    map[int]string
	refreshes int
}

func (a *fakeAccounts) Refresh(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshes++
	return nil
}

func (a *fakeAccounts) NativeCurrency(id int) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	code, ok := a.native[id]
	return code, ok
}

type storeHarness struct {
	store    *Store
	fetcher  *fakeFetcher
	engine   *currency.Engine
	prefs    *fakePrefs
	accounts *fakeAccounts
	manager  *events.Manager

	mu     sync.Mutex
	events []*events.Event
}

func newStoreHarness(t *testing.T, prefsLoaded bool) *storeHarness {
	log := zerolog.Nop()
	bus := events.NewBus(log)
	h := &storeHarness{
		fetcher:  newFakeFetcher(),
		engine:   currency.NewEngine(log),
		prefs:    &fakePrefs{prefs: domain.DefaultCurrencyPreferences(), loaded: prefsLoaded},
		accounts: &fakeAccounts{native: map[int]string{1: "EUR", 2: "SEK"}},
		manager:  events.NewManager(bus, log),
	}
	bus.SubscribeAll(func(e *events.Event) {
		h.mu.Lock()
		h.events = append(h.events, e)
		h.mu.Unlock()
	})

	h.store = NewStore(StoreConfig{
		Orchestrator: NewOrchestrator(h.fetcher, 0, log),
		Assembler:    NewAssembler(log),
		Catalog:      AnalyticsCatalog(),
		Currency:     h.engine,
		Preferences:  h.prefs,
		Accounts:     h.accounts,
		Events:       h.manager,
		CycleTimeout: 5 * time.Second,
		Now:          testNow,
	}, log)
	t.Cleanup(h.store.Close)
	return h
}

func (h *storeHarness) await(t *testing.T, cycle uint64) Snapshot {
	t.Helper()
	require.NotZero(t, cycle)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := h.store.Await(ctx, cycle)
	require.NoError(t, err)
	return snap
}

func (h *storeHarness) count(eventType events.EventType) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func TestStore_InitialState(t *testing.T) {
	h := newStoreHarness(t, true)

	snap := h.store.Snapshot()
	assert.Equal(t, StatusUninitialized, snap.Status)
	assert.Equal(t, filters.PresetLast30Days, snap.Filter.Preset)
	assert.Empty(t, snap.Errors)
	assert.Equal(t, domain.NewAnalyticsDataState(), snap.Data)
}

func TestStore_FundingFailureScenario(t *testing.T) {
	h := newStoreHarness(t, true)
	for _, e := range AnalyticsCatalog() {
		h.fetcher.bodies[e.Name] = envelopeFor(e.Name, "USD")
	}
	h.fetcher.fail[domain.QueryFunding] = 503

	snap := h.await(t, h.store.Mount())

	assert.Equal(t, StatusReady, snap.Status)
	assert.Equal(t, "USD", snap.Data.DataCurrency)
	assert.Equal(t, []domain.FundingEntry{}, snap.Data.Funding)
	require.Len(t, snap.Errors, 1)
	require.Contains(t, snap.Errors, domain.QueryFunding)
	assert.Contains(t, snap.Errors[domain.QueryFunding].Message, "service unavailable")
	assert.Equal(t, 503, snap.Errors[domain.QueryFunding].StatusCode)
	assert.Len(t, snap.Data.BalanceHistory, 1)
	assert.Equal(t, 18, h.fetcher.callCount())
	assert.Equal(t, 1, h.accounts.refreshes)
}

func TestStore_FailedSlotKeepsPreviousCycleValue(t *testing.T) {
	h := newStoreHarness(t, true)
	for _, e := range AnalyticsCatalog() {
		h.fetcher.bodies[e.Name] = envelopeFor(e.Name, "USD")
	}
	first := h.await(t, h.store.Mount())
	require.Len(t, first.Data.Funding, 1)

	h.fetcher.mu.Lock()
	for _, e := range AnalyticsCatalog() {
		h.fetcher.fail[e.Name] = 500
	}
	h.fetcher.mu.Unlock()

	second := h.await(t, h.store.Refresh())

	assert.Equal(t, StatusReady, second.Status)
	assert.Equal(t, first.Data, second.Data)
	assert.Len(t, second.Errors, 18)
}

func TestStore_WaitsForPreferences(t *testing.T) {
	h := newStoreHarness(t, false)

	assert.Zero(t, h.store.Mount())
	assert.Zero(t, h.store.SetDateRange(nil, nil))
	assert.Equal(t, 0, h.fetcher.callCount())
	assert.Equal(t, StatusUninitialized, h.store.Status())

	h.manager.Emit("settings", &events.PreferencesLoadedData{DefaultCurrency: "USD", ShowConverted: true, Source: "remote"})

	cycle := h.store.LatestCycle()
	snap := h.await(t, cycle)
	assert.Equal(t, StatusReady, snap.Status)
	assert.Equal(t, filters.PresetCustom, snap.Filter.Preset)
	assert.Equal(t, 18, h.fetcher.callCount())
}

func TestStore_EveryTriggerRefetchesEverything(t *testing.T) {
	h := newStoreHarness(t, true)
	h.await(t, h.store.Mount())

	cycle, err := h.store.ApplyPreset(filters.PresetThisYear)
	require.NoError(t, err)
	snap := h.await(t, cycle)
	assert.Equal(t, filters.PresetThisYear, snap.Filter.Preset)

	account := 1
	snap = h.await(t, h.store.SelectAccount(&account))
	assert.Equal(t, "EUR", snap.DisplayCurrency)

	snap = h.await(t, h.store.SetInstruments([]string{"DAX"}))
	assert.Equal(t, []string{"DAX"}, snap.Filter.SelectedInstruments)

	snap = h.await(t, h.store.Refresh())
	assert.Equal(t, uint64(5), snap.Cycle)

	assert.Equal(t, 5*18, h.fetcher.callCount())
	require.Eventually(t, func() bool {
		return h.count(events.FetchCycleCompleted) == 5
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStore_InvalidPresetIsRejected(t *testing.T) {
	h := newStoreHarness(t, true)

	cycle, err := h.store.ApplyPreset(filters.Preset("fortnight"))

	assert.Error(t, err)
	assert.Zero(t, cycle)
	assert.Equal(t, filters.PresetLast30Days, h.store.Filter().Preset)
}

func TestStore_ReversedRangeIsSwappedBeforeFetch(t *testing.T) {
	h := newStoreHarness(t, true)
	h.await(t, h.store.Mount())

	from := time.Date(2024, 3, 10, 0, 0, 0, 0, time.Local)
	to := time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local)
	h.await(t, h.store.SetFilter(filters.FilterState{DateFrom: &from, DateTo: &to, Preset: filters.PresetCustom}))

	h.fetcher.mu.Lock()
	last := h.fetcher.calls[len(h.fetcher.calls)-1]
	h.fetcher.mu.Unlock()
	assert.Equal(t, "2024-03-01", last.From)
	assert.Equal(t, "2024-03-10", last.To)
	assert.NoError(t, h.store.Filter().Validate())
}

func TestStore_SetFilterReconcilesPreset(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		preset   filters.Preset
		from, to string
	}{
		{"preset only", `{"preset":"last30days"}`, filters.PresetLast30Days, "2024-02-15", "2024-03-15"},
		{"preset with hand-picked dates", `{"preset":"last7days","dateFrom":"2020-01-01","dateTo":"2020-02-01"}`, filters.PresetCustom, "2020-01-01", "2020-02-01"},
		{"allTime with reversed dates", `{"preset":"allTime","dateFrom":"2020-02-01","dateTo":"2020-01-01"}`, filters.PresetCustom, "2020-01-01", "2020-02-01"},
		{"allTime only", `{"preset":"allTime"}`, filters.PresetAllTime, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newStoreHarness(t, true)
			h.await(t, h.store.Mount())

			var f filters.FilterState
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &f))
			snap := h.await(t, h.store.SetFilter(f))

			assert.Equal(t, tt.preset, snap.Filter.Preset)
			assert.Equal(t, tt.from, snap.Filter.FromString())
			assert.Equal(t, tt.to, snap.Filter.ToString())

			h.fetcher.mu.Lock()
			last := h.fetcher.calls[len(h.fetcher.calls)-1]
			h.fetcher.mu.Unlock()
			assert.Equal(t, tt.from, last.From)
			assert.Equal(t, tt.to, last.To)

			refreshed := h.await(t, h.store.Refresh())
			assert.True(t, snap.Filter.Equal(refreshed.Filter))
		})
	}
}

func TestStore_StateEventsEndWithStoreState(t *testing.T) {
	h := newStoreHarness(t, true)
	h.await(t, h.store.Mount())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.store.Refresh()
		}()
	}
	wg.Wait()
	h.await(t, h.store.LatestCycle())
	h.store.Close()

	h.mu.Lock()
	var states []*events.AnalyticsStateChangedData
	for _, e := range h.events {
		if d, ok := e.Data.(*events.AnalyticsStateChangedData); ok {
			states = append(states, d)
		}
	}
	h.mu.Unlock()

	require.NotEmpty(t, states)
	last := states[len(states)-1]
	assert.Equal(t, string(StatusReady), last.Status)
	assert.Equal(t, h.store.LatestCycle(), last.Cycle)
	assert.Equal(t, StatusReady, h.store.Status())

	for i := 1; i < len(states); i++ {
		prev, cur := states[i-1], states[i]
		assert.False(t, prev.Cycle == cur.Cycle && prev.Status == cur.Status, "duplicate state event")
		assert.GreaterOrEqual(t, cur.Cycle, prev.Cycle)
	}
}

func TestStore_StaleCycleIsDiscarded(t *testing.T) {
	h := newStoreHarness(t, true)
	h.await(t, h.store.Mount())

	release := make(chan struct{})
	h.fetcher.mu.Lock()
	h.fetcher.gate = func(desc domain.RequestDescriptor) <-chan struct{} {
		if desc.AccountID != nil && *desc.AccountID == 1 {
			return release
		}
		return nil
	}
	h.fetcher.body = func(desc domain.RequestDescriptor) (string, bool) {
		if desc.Query != domain.QueryBalanceHistory || desc.AccountID == nil {
			return "", false
		}
		return fmt.Sprintf(`{"data":[{"date":"2024-03-01","balance":%d}],"currency":%q}`,
			*desc.AccountID*111, desc.Currency), true
	}
	h.fetcher.mu.Unlock()

	one, two := 1, 2
	slow := h.store.SelectAccount(&one)
	fast := h.store.SelectAccount(&two)
	require.Greater(t, fast, slow)

	snap := h.await(t, fast)
	assert.Equal(t, fast, snap.Cycle)
	require.Len(t, snap.Data.BalanceHistory, 1)
	assert.Equal(t, 222.0, snap.Data.BalanceHistory[0].Balance)
	assert.Equal(t, "SEK", snap.Data.DataCurrency)

	close(release)
	require.Eventually(t, func() bool {
		return h.count(events.FetchCycleDiscarded) == 1
	}, 5*time.Second, 10*time.Millisecond)

	after := h.store.Snapshot()
	assert.Equal(t, fast, after.Cycle)
	assert.Equal(t, 222.0, after.Data.BalanceHistory[0].Balance)
	assert.Equal(t, "SEK", after.DisplayCurrency)
}

func TestStore_CurrencyChangeRefetches(t *testing.T) {
	h := newStoreHarness(t, true)
	h.await(t, h.store.Mount())

	require.NoError(t, h.engine.SetDisplayCurrency("GBP"))
	h.manager.Emit("settings", &events.CurrencyChangedData{Previous: "USD", Current: "GBP", ShowConverted: true})

	snap := h.await(t, h.store.LatestCycle())
	assert.Equal(t, uint64(2), snap.Cycle)
	assert.Equal(t, "GBP", snap.DisplayCurrency)

	h.fetcher.mu.Lock()
	last := h.fetcher.calls[len(h.fetcher.calls)-1]
	h.fetcher.mu.Unlock()
	assert.Equal(t, "GBP", last.Currency)
}

func TestStore_Subscribe(t *testing.T) {
	h := newStoreHarness(t, true)

	var (
		mu       sync.Mutex
		statuses []Status
	)
	id := h.store.Subscribe(func(s Snapshot) {
		mu.Lock()
		statuses = append(statuses, s.Status)
		mu.Unlock()
	})
	require.NotEmpty(t, id)

	h.await(t, h.store.Mount())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, StatusReady, statuses[len(statuses)-1])
	mu.Unlock()

	h.store.Unsubscribe(id)
}

func TestStore_IndependentInstances(t *testing.T) {
	a := newStoreHarness(t, true)
	b := newStoreHarness(t, true)

	a.await(t, a.store.Mount())

	assert.Equal(t, StatusReady, a.store.Status())
	assert.Equal(t, StatusUninitialized, b.store.Status())
	assert.Equal(t, 0, b.fetcher.callCount())
}
