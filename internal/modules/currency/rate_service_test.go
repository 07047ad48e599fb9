package currency

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/domain"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/events"
)

type fakeRatesAPI struct {
	table   domain.ExchangeRateTable
	err     error
	setCode string
	setRate float64
	bulk    *domain.ExchangeRateTable
}

func (f *fakeRatesAPI) GetExchangeRates(ctx context.Context) (domain.ExchangeRateTable, error) {
	return f.table, f.err
}

func (f *fakeRatesAPI) SetExchangeRate(ctx context.Context, code string, rate float64) error {
	f.setCode, f.setRate = code, rate
	if f.table.Rates != nil {
		f.table.Rates[code] = rate
	}
	return nil
}

func (f *fakeRatesAPI) UpdateExchangeRates(ctx context.Context, table domain.ExchangeRateTable) error {
	f.bulk = &table
	f.table = table
	return nil
}

type memoryCache struct {
	data map[string]json.RawMessage
	err  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string]json.RawMessage)}
}

func (c *memoryCache) Store(table, key string, data interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.data[table+"/"+key] = raw
	return nil
}

func (c *memoryCache) Get(table, key string) (json.RawMessage, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.data[table+"/"+key], nil
}

func newTestManager() (*events.Manager, *[]events.Event) {
	bus := events.NewBus(zerolog.Nop())
	var received []events.Event
	bus.Subscribe(events.RatesUpdated, func(e *events.Event) {
		received = append(received, *e)
	})
	return events.NewManager(bus, zerolog.Nop()), &received
}

func TestRateService_RemoteTier(t *testing.T) {
	remote := &fakeRatesAPI{table: domain.ExchangeRateTable{
		BaseCurrency: "USD",
		Rates:        map[string]float64{"USD": 1, "EUR": 1.1, "SEK": 0.1},
	}}
	cache := newMemoryCache()
	engine := NewEngine(zerolog.Nop())
	manager, received := newTestManager()

	svc := NewRateService(remote, cache, engine, manager, zerolog.Nop())
	source := svc.Refresh(context.Background())

	assert.Equal(t, SourceRemote, source)
	assert.InDelta(t, 1.1, engine.Convert(1, "EUR", "USD"), 1e-12)
	assert.Contains(t, cache.data, "exchangerate/table")

	require.Len(t, *received, 1)
	data := (*received)[0].Data.(*events.RatesUpdatedData)
	assert.Equal(t, "remote", data.Source)
	assert.Equal(t, "USD", data.BaseCurrency)
}

func TestRateService_CacheTier(t *testing.T) {
	cache := newMemoryCache()
	require.NoError(t, cache.Store("exchangerate", "table", domain.ExchangeRateTable{
		BaseCurrency: "USD",
		Rates:        map[string]float64{"EUR": 1.2},
	}, time.Hour))
	engine := NewEngine(zerolog.Nop())

	svc := NewRateService(&fakeRatesAPI{err: errors.New("connection refused")}, cache, engine, nil, zerolog.Nop())

	assert.Equal(t, SourceCache, svc.Refresh(context.Background()))
	assert.InDelta(t, 1.2, engine.Convert(1, "EUR", "USD"), 1e-12)
}

func TestRateService_FallbackTier(t *testing.T) {
	tests := []struct {
		name  string
		cache *memoryCache
	}{
		{"empty cache", newMemoryCache()},
		{"cache read error", &memoryCache{err: errors.New("disk I/O error")}},
		{"corrupt cache", &memoryCache{data: map[string]json.RawMessage{"exchangerate/table": json.RawMessage(`"nope"`)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(zerolog.Nop())
			require.NoError(t, engine.ApplyTable(domain.ExchangeRateTable{
				BaseCurrency: "USD", Rates: map[string]float64{"EUR": 5},
			}, SourceRemote))

			svc := NewRateService(&fakeRatesAPI{err: errors.New("timeout")}, tt.cache, engine, nil, zerolog.Nop())

			assert.Equal(t, SourceFallback, svc.Refresh(context.Background()))
			assert.InDelta(t, BaseRatesToUSD["EUR"], engine.Convert(1, "EUR", "USD"), 1e-12)
		})
	}
}

func TestRateService_NoRemoteConfigured(t *testing.T) {
	svc := NewRateService(nil, nil, NewEngine(zerolog.Nop()), nil, zerolog.Nop())

	assert.Equal(t, SourceFallback, svc.Refresh(context.Background()))

	_, err := svc.SetRate(context.Background(), "EUR", 1.1)
	assert.Error(t, err)
}

func TestRateService_SetRate(t *testing.T) {
	remote := &fakeRatesAPI{table: domain.ExchangeRateTable{
		BaseCurrency: "USD",
		Rates:        map[string]float64{"USD": 1, "EUR": 1.1},
	}}
	engine := NewEngine(zerolog.Nop())
	svc := NewRateService(remote, nil, engine, nil, zerolog.Nop())

	source, err := svc.SetRate(context.Background(), "eur", 1.25)
	require.NoError(t, err)

	assert.Equal(t, SourceRemote, source)
	assert.Equal(t, "EUR", remote.setCode)
	assert.InDelta(t, 1.25, engine.Convert(1, "EUR", "USD"), 1e-12)
}

func TestRateService_SetRateValidation(t *testing.T) {
	svc := NewRateService(&fakeRatesAPI{}, nil, NewEngine(zerolog.Nop()), nil, zerolog.Nop())

	_, err := svc.SetRate(context.Background(), "EURO", 1)
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)

	_, err = svc.SetRate(context.Background(), "EUR", 0)
	assert.Error(t, err)
}

func TestRateService_BulkUpdate(t *testing.T) {
	remote := &fakeRatesAPI{}
	engine := NewEngine(zerolog.Nop())
	svc := NewRateService(remote, nil, engine, nil, zerolog.Nop())

	table := domain.ExchangeRateTable{BaseCurrency: "EUR", Rates: map[string]float64{"USD": 0.9, "SEK": 0.09}}
	source, err := svc.BulkUpdate(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, SourceRemote, source)
	require.NotNil(t, remote.bulk)
	assert.InDelta(t, 0.9, engine.Convert(1, "USD", "EUR"), 1e-12)

	_, err = svc.BulkUpdate(context.Background(), domain.ExchangeRateTable{BaseCurrency: "EUR", Rates: map[string]float64{"USD": -1}})
	assert.Error(t, err)
}

func TestRefreshJob(t *testing.T) {
	svc := NewRateService(nil, nil, NewEngine(zerolog.Nop()), nil, zerolog.Nop())
	job := NewRefreshJob(svc, time.Second)

	assert.Equal(t, "exchange_rate_refresh", job.Name())
	assert.NoError(t, job.Run())
}
