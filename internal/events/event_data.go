package events

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// FilterChangedData contains data for FilterChanged events
type FilterChangedData struct {
	Reason    string `json:"reason"`
	Preset    string `json:"preset"`
	DateFrom  string `json:"dateFrom,omitempty"`
	DateTo    string `json:"dateTo,omitempty"`
	AccountID *int   `json:"accountId,omitempty"`
}

// EventType returns the event type for FilterChangedData
func (d *FilterChangedData) EventType() EventType {
	return FilterChanged
}

// FetchCycleStartedData contains data for FetchCycleStarted events
type FetchCycleStartedData struct {
	Cycle   uint64 `json:"cycle"`
	TraceID string `json:"traceId"`
	Reason  string `json:"reason"`
	Queries int    `json:"queries"`
}

// EventType returns the event type for FetchCycleStartedData
func (d *FetchCycleStartedData) EventType() EventType {
	return FetchCycleStarted
}

// FetchCycleCompletedData contains data for FetchCycleCompleted events
type FetchCycleCompletedData struct {
	Cycle      uint64   `json:"cycle"`
	TraceID    string   `json:"traceId"`
	Succeeded  int      `json:"succeeded"`
	Failed     []string `json:"failed"`
	DurationMs int64    `json:"durationMs"`
}

// EventType returns the event type for FetchCycleCompletedData
func (d *FetchCycleCompletedData) EventType() EventType {
	return FetchCycleCompleted
}

// FetchCycleDiscardedData contains data for FetchCycleDiscarded events
type FetchCycleDiscardedData struct {
	Cycle  uint64 `json:"cycle"`
	Latest uint64 `json:"latest"`
}

// EventType returns the event type for FetchCycleDiscardedData
func (d *FetchCycleDiscardedData) EventType() EventType {
	return FetchCycleDiscarded
}

// AnalyticsStateChangedData contains data for AnalyticsStateChanged events
type AnalyticsStateChangedData struct {
	Cycle        uint64   `json:"cycle"`
	Status       string   `json:"status"`
	DataCurrency string   `json:"dataCurrency,omitempty"`
	Errors       []string `json:"errors"`
}

// EventType returns the event type for AnalyticsStateChangedData
func (d *AnalyticsStateChangedData) EventType() EventType {
	return AnalyticsStateChanged
}

// QueryFailedData contains data for QueryFailed events
type QueryFailedData struct {
	Cycle      uint64 `json:"cycle"`
	Query      string `json:"query"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
}

// EventType returns the event type for QueryFailedData
func (d *QueryFailedData) EventType() EventType {
	return QueryFailed
}

// AccountsRefreshedData contains data for AccountsRefreshed events
type AccountsRefreshedData struct {
	Count  int    `json:"count"`
	Source string `json:"source"`
}

// EventType returns the event type for AccountsRefreshedData
func (d *AccountsRefreshedData) EventType() EventType {
	return AccountsRefreshed
}

// CurrencyChangedData contains data for CurrencyChanged events
type CurrencyChangedData struct {
	Previous      string `json:"previous"`
	Current       string `json:"current"`
	ShowConverted bool   `json:"showConverted"`
	RolledBack    bool   `json:"rolledBack,omitempty"`
}

// EventType returns the event type for CurrencyChangedData
func (d *CurrencyChangedData) EventType() EventType {
	return CurrencyChanged
}

// PreferencesLoadedData contains data for PreferencesLoaded events
type PreferencesLoadedData struct {
	DefaultCurrency string `json:"defaultCurrency"`
	ShowConverted   bool   `json:"showConverted"`
	Source          string `json:"source"`
}

// EventType returns the event type for PreferencesLoadedData
func (d *PreferencesLoadedData) EventType() EventType {
	return PreferencesLoaded
}

// RatesUpdatedData contains data for RatesUpdated events
type RatesUpdatedData struct {
	BaseCurrency string `json:"baseCurrency"`
	Source       string `json:"source"`
	Currencies   int    `json:"currencies"`
}

// EventType returns the event type for RatesUpdatedData
func (d *RatesUpdatedData) EventType() EventType {
	return RatesUpdated
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
