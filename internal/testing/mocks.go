package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/domain"
)

// MockAnalyticsAPI is an in-process stand-in for the remote analytics
// service. Every analytics query answers with NewRecordFixture in the
// requested currency unless a body or a failure was set for it.
type MockAnalyticsAPI struct {
	server *httptest.Server

	mu       sync.Mutex
	prefs    domain.CurrencyPreferences
	rates    domain.ExchangeRateTable
	accounts []domain.Account
	bodies   map[domain.QueryName][]byte
	failures map[domain.QueryName]int
	requests map[string][]url.Values
	down     bool
}

// NewMockAnalyticsAPI starts a mock service that is closed when the test ends.
func NewMockAnalyticsAPI(t *testing.T) *MockAnalyticsAPI {
	t.Helper()
	m := &MockAnalyticsAPI{
		prefs:    domain.DefaultCurrencyPreferences(),
		rates:    NewRateTableFixture(),
		accounts: NewAccountFixtures(),
		bodies:   make(map[domain.QueryName][]byte),
		failures: make(map[domain.QueryName]int),
		requests: make(map[string][]url.Values),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.server.Close)
	return m
}

// URL returns the base URL of the mock service.
func (m *MockAnalyticsAPI) URL() string {
	return m.server.URL
}

// SetPreferences sets the stored currency preferences.
func (m *MockAnalyticsAPI) SetPreferences(prefs domain.CurrencyPreferences) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs = prefs
}

// Preferences returns the stored currency preferences.
func (m *MockAnalyticsAPI) Preferences() domain.CurrencyPreferences {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefs
}

// SetQueryBody overrides the response body of one query.
func (m *MockAnalyticsAPI) SetQueryBody(name domain.QueryName, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies[name] = body
}

// FailQuery makes one query answer with status.
func (m *MockAnalyticsAPI) FailQuery(name domain.QueryName, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[name] = status
}

// SetDown makes every endpoint answer 503.
func (m *MockAnalyticsAPI) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

// Requests returns the query parameters of every request made to path.
func (m *MockAnalyticsAPI) Requests(path string) []url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]url.Values(nil), m.requests[path]...)
}

func (m *MockAnalyticsAPI) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests[r.URL.Path] = append(m.requests[r.URL.Path], r.URL.Query())
	if m.down {
		writeMockJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "service unavailable"})
		return
	}

	switch {
	case strings.HasPrefix(r.URL.Path, "/api/analytics/"):
		m.serveQuery(w, r)

	case r.URL.Path == "/api/settings/currency" && r.Method == http.MethodGet:
		writeMockJSON(w, http.StatusOK, m.prefs)

	case r.URL.Path == "/api/settings/currency/default" && r.Method == http.MethodPut:
		var body struct {
			Currency string `json:"currency"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeMockJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
			return
		}
		m.prefs.DefaultCurrency = body.Currency
		writeMockJSON(w, http.StatusOK, m.prefs)

	case r.URL.Path == "/api/settings/currency/show-converted" && r.Method == http.MethodPut:
		var body struct {
			ShowConverted bool `json:"showConverted"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeMockJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
			return
		}
		m.prefs.ShowConverted = body.ShowConverted
		writeMockJSON(w, http.StatusOK, m.prefs)

	case r.URL.Path == "/api/settings/exchange-rates" && r.Method == http.MethodGet:
		writeMockJSON(w, http.StatusOK, m.rates)

	case r.URL.Path == "/api/accounts" && r.Method == http.MethodGet:
		writeMockJSON(w, http.StatusOK, m.accounts)

	default:
		writeMockJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
	}
}

func (m *MockAnalyticsAPI) serveQuery(w http.ResponseWriter, r *http.Request) {
	name := domain.QueryName(strings.ReplaceAll(strings.TrimPrefix(r.URL.Path, "/api/analytics/"), "-", "_"))

	if status, ok := m.failures[name]; ok {
		writeMockJSON(w, status, map[string]string{"detail": "query failed"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if body, ok := m.bodies[name]; ok {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	currency := r.URL.Query().Get("currency")
	if currency == "" {
		currency = m.prefs.DefaultCurrency
	}
	var body []byte
	if record := NewRecordFixture(name); record != nil {
		body = Envelope(currency, record)
	} else {
		body = Envelope(currency)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeMockJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
