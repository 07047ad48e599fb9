// Package domain holds the shared data types exchanged between the remote
// analytics service, the analytics store and the presentation bridge.
package domain

import "time"

// Account is a trading account as reported by the remote service.
type Account struct {
	AccountID      int    `json:"accountId"`
	AccountName    string `json:"accountName"`
	BrokerKey      string `json:"brokerKey"`
	Currency       string `json:"currency"`
	IncludeInStats bool   `json:"includeInStats"`
}

// Broker is an entry of the remote broker list.
type Broker struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// DBStats is the remote service's database summary.
type DBStats struct {
	TotalTrades   int        `json:"totalTrades"`
	TotalAccounts int        `json:"totalAccounts"`
	FirstTrade    *string    `json:"firstTrade,omitempty"`
	LastTrade     *string    `json:"lastTrade,omitempty"`
	LastImport    *time.Time `json:"lastImport,omitempty"`
}

// CurrencyPreferences mirrors the user's currency settings.
type CurrencyPreferences struct {
	DefaultCurrency string `json:"defaultCurrency"`
	ShowConverted   bool   `json:"showConverted"`
}

// DefaultCurrencyPreferences is used until the remote settings load.
func DefaultCurrencyPreferences() CurrencyPreferences {
	return CurrencyPreferences{DefaultCurrency: "USD", ShowConverted: true}
}

// ExchangeRateTable is the wire shape of the remote exchange rate settings.
// Rates are the value of one unit of each currency expressed in BaseCurrency.
type ExchangeRateTable struct {
	BaseCurrency string             `json:"baseCurrency"`
	Rates        map[string]float64 `json:"rates"`
	UpdatedAt    *time.Time         `json:"updatedAt,omitempty"`
}
