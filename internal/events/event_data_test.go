package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventDataTypes(t *testing.T) {
	tests := []struct {
		data     EventData
		expected EventType
	}{
		{&FilterChangedData{}, FilterChanged},
		{&FetchCycleStartedData{}, FetchCycleStarted},
		{&FetchCycleCompletedData{}, FetchCycleCompleted},
		{&FetchCycleDiscardedData{}, FetchCycleDiscarded},
		{&AnalyticsStateChangedData{}, AnalyticsStateChanged},
		{&QueryFailedData{}, QueryFailed},
		{&AccountsRefreshedData{}, AccountsRefreshed},
		{&CurrencyChangedData{}, CurrencyChanged},
		{&PreferencesLoadedData{}, PreferencesLoaded},
		{&RatesUpdatedData{}, RatesUpdated},
		{&ErrorEventData{}, ErrorOccurred},
	}

	for _, tt := range tests {
		t.Run(string(tt.expected), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.data.EventType())
			assert.Contains(t, AllEventTypes, tt.expected)
		})
	}
}

func TestQueryFailedDataJSON(t *testing.T) {
	data := &QueryFailedData{Cycle: 3, Query: "funding", Message: "API returned status 503", StatusCode: 503}

	raw, err := json.Marshal(data)
	require.NoError(t, err)

	assert.JSONEq(t, `{"cycle":3,"query":"funding","message":"API returned status 503","statusCode":503}`, string(raw))
}
