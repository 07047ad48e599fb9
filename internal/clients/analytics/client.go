// Package analytics is the REST client for the remote analytics service:
// analytics queries, currency settings, exchange rates and account
// administration.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/domain"
)

const maxResponseBytes = 32 << 20

type traceKey struct{}

// WithTraceID attaches a trace id that is sent as X-Request-ID.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// TraceID returns the trace id attached to ctx, if any.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

// Client talks to the remote analytics service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("client", "analytics-api").Logger(),
	}
}

// BaseURL returns the configured remote host.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Query runs one analytics query and returns the raw response body. The
// body is either a bare JSON array or a {data, currency} envelope.
func (c *Client) Query(ctx context.Context, desc domain.RequestDescriptor) (json.RawMessage, error) {
	body, err := c.do(ctx, string(desc.Query), http.MethodGet, desc.Path, desc.Params(), nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// GetCurrencySettings fetches the stored currency preferences.
func (c *Client) GetCurrencySettings(ctx context.Context) (domain.CurrencyPreferences, error) {
	var prefs domain.CurrencyPreferences
	err := c.getJSON(ctx, "currency_settings", "/api/settings/currency", &prefs)
	return prefs, err
}

// SetDefaultCurrency persists the default currency.
func (c *Client) SetDefaultCurrency(ctx context.Context, code string) error {
	payload := map[string]string{"currency": code}
	_, err := c.do(ctx, "set_default_currency", http.MethodPut, "/api/settings/currency/default", nil, payload)
	return err
}

// SetShowConverted persists the show-converted flag.
func (c *Client) SetShowConverted(ctx context.Context, show bool) error {
	payload := map[string]bool{"showConverted": show}
	_, err := c.do(ctx, "set_show_converted", http.MethodPut, "/api/settings/currency/show-converted", nil, payload)
	return err
}

// GetExchangeRates fetches the stored exchange rate table.
func (c *Client) GetExchangeRates(ctx context.Context) (domain.ExchangeRateTable, error) {
	var table domain.ExchangeRateTable
	err := c.getJSON(ctx, "exchange_rates", "/api/settings/exchange-rates", &table)
	return table, err
}

// SetExchangeRate sets the rate of a single currency against the stored base.
func (c *Client) SetExchangeRate(ctx context.Context, code string, rate float64) error {
	payload := map[string]float64{"rate": rate}
	_, err := c.do(ctx, "set_exchange_rate", http.MethodPut, "/api/settings/exchange-rates/"+url.PathEscape(code), nil, payload)
	return err
}

// UpdateExchangeRates replaces the stored table.
func (c *Client) UpdateExchangeRates(ctx context.Context, table domain.ExchangeRateTable) error {
	_, err := c.do(ctx, "update_exchange_rates", http.MethodPut, "/api/settings/exchange-rates", nil, table)
	return err
}

// ListAccounts fetches every account.
func (c *Client) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	var accounts []domain.Account
	if err := c.getJSON(ctx, "accounts", "/api/accounts", &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// CreateAccount creates an account and returns it as stored.
func (c *Client) CreateAccount(ctx context.Context, account domain.Account) (domain.Account, error) {
	var created domain.Account
	body, err := c.do(ctx, "create_account", http.MethodPost, "/api/accounts", nil, account)
	if err != nil {
		return created, err
	}
	if err := decodeBody(body, &created); err != nil {
		return created, fmt.Errorf("failed to parse created account: %w", err)
	}
	return created, nil
}

// UpdateAccount replaces an account.
func (c *Client) UpdateAccount(ctx context.Context, account domain.Account) (domain.Account, error) {
	var updated domain.Account
	path := "/api/accounts/" + strconv.Itoa(account.AccountID)
	body, err := c.do(ctx, "update_account", http.MethodPut, path, nil, account)
	if err != nil {
		return updated, err
	}
	if err := decodeBody(body, &updated); err != nil {
		return updated, fmt.Errorf("failed to parse updated account: %w", err)
	}
	return updated, nil
}

// DeleteAccount removes an account.
func (c *Client) DeleteAccount(ctx context.Context, id int) error {
	_, err := c.do(ctx, "delete_account", http.MethodDelete, "/api/accounts/"+strconv.Itoa(id), nil, nil)
	return err
}

// ListBrokers fetches the broker list.
func (c *Client) ListBrokers(ctx context.Context) ([]domain.Broker, error) {
	var brokers []domain.Broker
	if err := c.getJSON(ctx, "brokers", "/api/brokers", &brokers); err != nil {
		return nil, err
	}
	return brokers, nil
}

// GetDBStats fetches the database summary.
func (c *Client) GetDBStats(ctx context.Context) (domain.DBStats, error) {
	var stats domain.DBStats
	err := c.getJSON(ctx, "db_stats", "/api/db/stats", &stats)
	return stats, err
}

func (c *Client) getJSON(ctx context.Context, name, path string, out interface{}) error {
	body, err := c.do(ctx, name, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	if err := decodeBody(body, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", name, err)
	}
	return nil
}

// decodeBody accepts either the bare value or a {"data": value} envelope.
func decodeBody(body []byte, out interface{}) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err == nil && len(envelope.Data) > 0 {
			return json.Unmarshal(envelope.Data, out)
		}
	}
	return json.Unmarshal(trimmed, out)
}

func (c *Client) do(ctx context.Context, name, method, path string, params url.Values, payload interface{}) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", name, err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reqBody)
	if err != nil {
		return nil, &TransportError{Query: name, Message: err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := TraceID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Query: name, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Query: name, StatusCode: resp.StatusCode, Message: "failed to read response: " + err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyStr := string(body)
		if len(bodyStr) > 500 {
			bodyStr = bodyStr[:500] + "..."
		}
		c.log.Warn().
			Str("request", name).
			Int("status_code", resp.StatusCode).
			Str("response_body", bodyStr).
			Str("url", requestURL).
			Msg("API returned non-2xx status")
		return nil, &TransportError{Query: name, StatusCode: resp.StatusCode, Message: errorMessage(resp.Status, body)}
	}

	c.log.Debug().
		Str("request", name).
		Int("status_code", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("duration_ms", time.Since(start)).
		Msg("API request completed")

	return body, nil
}

// errorMessage prefers a {"detail"} or {"error"} field from the body.
func errorMessage(status string, body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Detail != "" {
			return payload.Detail
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return status
}
