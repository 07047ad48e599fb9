package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/domain"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/events"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/currency"
)

type fakeRemote struct {
	prefs    domain.CurrencyPreferences
	failGets int
	gets     int
	setErr   error
	stored   domain.CurrencyPreferences
}

func (f *fakeRemote) GetCurrencySettings(ctx context.Context) (domain.CurrencyPreferences, error) {
	f.gets++
	if f.gets <= f.failGets {
		return domain.CurrencyPreferences{}, errors.New("unavailable")
	}
	return f.prefs, nil
}

func (f *fakeRemote) SetDefaultCurrency(ctx context.Context, code string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.stored.DefaultCurrency = code
	return nil
}

func (f *fakeRemote) SetShowConverted(ctx context.Context, show bool) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.stored.ShowConverted = show
	return nil
}

type harness struct {
	service *PreferencesService
	engine  *currency.Engine
	repo    *Repository
	events  []*events.Event
}

func newHarness(t *testing.T, remote RemoteSettings, attempts int) *harness {
	log := zerolog.Nop()
	bus := events.NewBus(log)
	h := &harness{
		engine: currency.NewEngine(log),
		repo:   NewRepository(setupTestDB(t), log),
	}
	bus.SubscribeAll(func(event *events.Event) {
		h.events = append(h.events, event)
	})
	h.service = NewPreferencesService(remote, h.repo, h.engine, events.NewManager(bus, log), PreferencesOptions{
		MaxAttempts: attempts,
		MinBackoff:  time.Millisecond,
		MaxBackoff:  2 * time.Millisecond,
	}, log)
	return h
}

func (h *harness) eventsOf(eventType events.EventType) []*events.Event {
	var out []*events.Event
	for _, e := range h.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestLoad_Remote(t *testing.T) {
	remote := &fakeRemote{prefs: domain.CurrencyPreferences{DefaultCurrency: "eur", ShowConverted: false}}
	h := newHarness(t, remote, 3)

	assert.False(t, h.service.Loaded())
	prefs := h.service.Load(context.Background())

	assert.Equal(t, "EUR", prefs.DefaultCurrency)
	assert.False(t, prefs.ShowConverted)
	assert.True(t, h.service.Loaded())
	assert.Equal(t, SourceRemote, h.service.Source())
	assert.Equal(t, "EUR", h.engine.DisplayCurrency())

	mirrored, err := h.repo.Get(KeyDefaultCurrency)
	require.NoError(t, err)
	require.NotNil(t, mirrored)
	assert.Equal(t, "EUR", *mirrored)

	loaded := h.eventsOf(events.PreferencesLoaded)
	require.Len(t, loaded, 1)
	assert.Equal(t, SourceRemote, loaded[0].Data.(*events.PreferencesLoadedData).Source)
}

func TestLoad_RetriesThenSucceeds(t *testing.T) {
	remote := &fakeRemote{prefs: domain.CurrencyPreferences{DefaultCurrency: "GBP", ShowConverted: true}, failGets: 2}
	h := newHarness(t, remote, 3)

	prefs := h.service.Load(context.Background())

	assert.Equal(t, 3, remote.gets)
	assert.Equal(t, "GBP", prefs.DefaultCurrency)
	assert.Equal(t, SourceRemote, h.service.Source())
}

func TestLoad_FallsBackToLocalMirror(t *testing.T) {
	remote := &fakeRemote{failGets: 10}
	h := newHarness(t, remote, 2)
	require.NoError(t, h.repo.Set(KeyDefaultCurrency, "SEK"))
	require.NoError(t, h.repo.SetBool(KeyShowConverted, false))

	prefs := h.service.Load(context.Background())

	assert.Equal(t, 2, remote.gets)
	assert.Equal(t, domain.CurrencyPreferences{DefaultCurrency: "SEK", ShowConverted: false}, prefs)
	assert.Equal(t, SourceLocal, h.service.Source())
	assert.Equal(t, "SEK", h.engine.DisplayCurrency())
}

func TestLoad_FallsBackToDefaults(t *testing.T) {
	h := newHarness(t, &fakeRemote{failGets: 10}, 1)

	prefs := h.service.Load(context.Background())

	assert.Equal(t, domain.DefaultCurrencyPreferences(), prefs)
	assert.Equal(t, SourceDefault, h.service.Source())
	assert.True(t, h.service.Loaded())
}

func TestLoad_UnsupportedCurrencyUsesUSD(t *testing.T) {
	h := newHarness(t, &fakeRemote{prefs: domain.CurrencyPreferences{DefaultCurrency: "XYZ", ShowConverted: true}}, 1)

	prefs := h.service.Load(context.Background())

	assert.Equal(t, "USD", prefs.DefaultCurrency)
	assert.Equal(t, "USD", h.engine.DisplayCurrency())
}

func TestSetDefaultCurrency(t *testing.T) {
	remote := &fakeRemote{prefs: domain.DefaultCurrencyPreferences()}
	h := newHarness(t, remote, 1)
	h.service.Load(context.Background())

	require.NoError(t, h.service.SetDefaultCurrency(context.Background(), "eur"))

	assert.Equal(t, "EUR", h.service.Preferences().DefaultCurrency)
	assert.Equal(t, "EUR", h.engine.DisplayCurrency())
	assert.Equal(t, "EUR", remote.stored.DefaultCurrency)

	changed := h.eventsOf(events.CurrencyChanged)
	require.Len(t, changed, 1)
	data := changed[0].Data.(*events.CurrencyChangedData)
	assert.Equal(t, "USD", data.Previous)
	assert.Equal(t, "EUR", data.Current)
	assert.False(t, data.RolledBack)
}

func TestSetDefaultCurrency_Unsupported(t *testing.T) {
	h := newHarness(t, &fakeRemote{prefs: domain.DefaultCurrencyPreferences()}, 1)

	err := h.service.SetDefaultCurrency(context.Background(), "XYZ")

	assert.ErrorIs(t, err, currency.ErrUnsupportedCurrency)
	assert.Empty(t, h.eventsOf(events.CurrencyChanged))
}

func TestSetDefaultCurrency_RollsBackOnRemoteFailure(t *testing.T) {
	remote := &fakeRemote{prefs: domain.DefaultCurrencyPreferences()}
	h := newHarness(t, remote, 1)
	h.service.Load(context.Background())
	remote.setErr = errors.New("write failed")

	err := h.service.SetDefaultCurrency(context.Background(), "GBP")

	require.Error(t, err)
	assert.Equal(t, "USD", h.service.Preferences().DefaultCurrency)
	assert.Equal(t, "USD", h.engine.DisplayCurrency())

	changed := h.eventsOf(events.CurrencyChanged)
	require.Len(t, changed, 2)
	assert.Equal(t, "GBP", changed[0].Data.(*events.CurrencyChangedData).Current)
	rollback := changed[1].Data.(*events.CurrencyChangedData)
	assert.Equal(t, "USD", rollback.Current)
	assert.True(t, rollback.RolledBack)
}

func TestSetShowConverted(t *testing.T) {
	remote := &fakeRemote{prefs: domain.DefaultCurrencyPreferences()}
	h := newHarness(t, remote, 1)
	h.service.Load(context.Background())

	require.NoError(t, h.service.SetShowConverted(context.Background(), false))
	assert.False(t, h.service.Preferences().ShowConverted)

	show, ok, err := h.repo.GetBool(KeyShowConverted)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, show)

	remote.setErr = errors.New("write failed")
	require.Error(t, h.service.SetShowConverted(context.Background(), true))
	assert.False(t, h.service.Preferences().ShowConverted)
}
