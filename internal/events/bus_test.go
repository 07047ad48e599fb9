package events

import (
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SubscribeAndEmit(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var received *Event
	bus.Subscribe(CurrencyChanged, func(event *Event) {
		received = event
	})

	bus.Emit(CurrencyChanged, "settings", &CurrencyChangedData{Previous: "USD", Current: "EUR"})

	require.NotNil(t, received)
	assert.Equal(t, CurrencyChanged, received.Type)
	assert.Equal(t, "settings", received.Module)
	assert.False(t, received.Timestamp.IsZero())

	data, ok := received.Data.(*CurrencyChangedData)
	require.True(t, ok)
	assert.Equal(t, "EUR", data.Current)
}

func TestBus_OnlyMatchingTypeIsDelivered(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var calls int32
	bus.Subscribe(RatesUpdated, func(event *Event) {
		atomic.AddInt32(&calls, 1)
	})

	bus.Emit(CurrencyChanged, "settings", nil)
	bus.Emit(RatesUpdated, "currency", nil)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var calls int32
	id := bus.Subscribe(FilterChanged, func(event *Event) {
		atomic.AddInt32(&calls, 1)
	})
	bus.Emit(FilterChanged, "analytics", nil)

	bus.Unsubscribe(id)
	bus.Emit(FilterChanged, "analytics", nil)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 0, bus.SubscriberCount(FilterChanged))
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var seen []EventType
	ids := bus.SubscribeAll(func(event *Event) {
		seen = append(seen, event.Type)
	})
	assert.Len(t, ids, len(AllEventTypes))

	bus.Emit(RatesUpdated, "currency", nil)
	bus.Emit(AnalyticsStateChanged, "analytics", nil)

	assert.Equal(t, []EventType{RatesUpdated, AnalyticsStateChanged}, seen)

	bus.Unsubscribe(ids...)
	bus.Emit(RatesUpdated, "currency", nil)
	assert.Len(t, seen, 2)
}

func TestBus_PanickingHandlerDoesNotStopDelivery(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	delivered := false
	bus.Subscribe(ErrorOccurred, func(event *Event) {
		panic("boom")
	})
	bus.Subscribe(ErrorOccurred, func(event *Event) {
		delivered = true
	})

	assert.NotPanics(t, func() {
		bus.Emit(ErrorOccurred, "test", nil)
	})
	assert.True(t, delivered)
}

func TestBus_HandlerMaySubscribeDuringEmit(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	bus.Subscribe(FetchCycleStarted, func(event *Event) {
		bus.Subscribe(FetchCycleCompleted, func(event *Event) {})
	})

	assert.NotPanics(t, func() {
		bus.Emit(FetchCycleStarted, "analytics", nil)
	})
	assert.Equal(t, 1, bus.SubscriberCount(FetchCycleCompleted))
}

func TestManager_Emit(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	manager := NewManager(bus, zerolog.Nop())

	var received *Event
	bus.Subscribe(PreferencesLoaded, func(event *Event) {
		received = event
	})

	manager.Emit("settings", &PreferencesLoadedData{DefaultCurrency: "SEK", Source: "remote"})
	manager.Emit("settings", nil)

	require.NotNil(t, received)
	assert.Equal(t, PreferencesLoaded, received.Type)
	assert.Equal(t, "settings", received.Module)
	assert.Same(t, bus, manager.Bus())
}

func TestManager_EmitError(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	manager := NewManager(bus, zerolog.Nop())

	var received *Event
	bus.Subscribe(ErrorOccurred, func(event *Event) {
		received = event
	})

	manager.EmitError("currency", assert.AnError, map[string]interface{}{"tier": "remote"})
	manager.EmitError("currency", nil, nil)

	require.NotNil(t, received)
	data := received.Data.(*ErrorEventData)
	assert.Equal(t, assert.AnError.Error(), data.Error)
	assert.Equal(t, "remote", data.Context["tier"])
}
