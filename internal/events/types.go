// Package events provides the in-process event bus used to publish store,
// currency and preference changes to subscribers.
package events

import "time"

// EventType identifies a kind of event.
type EventType string

const (
	// Analytics store
	FilterChanged         EventType = "FILTER_CHANGED"
	FetchCycleStarted     EventType = "FETCH_CYCLE_STARTED"
	FetchCycleCompleted   EventType = "FETCH_CYCLE_COMPLETED"
	FetchCycleDiscarded   EventType = "FETCH_CYCLE_DISCARDED"
	AnalyticsStateChanged EventType = "ANALYTICS_STATE_CHANGED"
	QueryFailed           EventType = "QUERY_FAILED"
	AccountsRefreshed     EventType = "ACCOUNTS_REFRESHED"

	// Currency and preferences
	CurrencyChanged   EventType = "CURRENCY_CHANGED"
	PreferencesLoaded EventType = "PREFERENCES_LOADED"
	RatesUpdated      EventType = "RATES_UPDATED"

	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// AllEventTypes lists every event type, in a stable order.
var AllEventTypes = []EventType{
	FilterChanged,
	FetchCycleStarted,
	FetchCycleCompleted,
	FetchCycleDiscarded,
	AnalyticsStateChanged,
	QueryFailed,
	AccountsRefreshed,
	CurrencyChanged,
	PreferencesLoaded,
	RatesUpdated,
	ErrorOccurred,
}

// Event is a single published event.
type Event struct {
	Type      EventType `json:"type"`
	Module    string    `json:"module"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data,omitempty"`
}
