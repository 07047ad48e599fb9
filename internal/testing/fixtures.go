package testing

import (
	"encoding/json"
	"fmt"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/domain"
)

// NewAccountFixtures returns two accounts with different native currencies.
func NewAccountFixtures() []domain.Account {
	return []domain.Account{
		{AccountID: 1, AccountName: "Main", BrokerKey: "ig", Currency: "GBP", IncludeInStats: true},
		{AccountID: 2, AccountName: "Swing", BrokerKey: "saxo", Currency: "DKK", IncludeInStats: true},
	}
}

// NewRateTableFixture returns a table with EUR as base.
func NewRateTableFixture() domain.ExchangeRateTable {
	return domain.ExchangeRateTable{
		BaseCurrency: "EUR",
		Rates: map[string]float64{
			"EUR": 1.0,
			"USD": 0.92,
			"GBP": 1.17,
			"DKK": 0.134,
			"SEK": 0.087,
			"NOK": 0.085,
		},
	}
}

// NewRecordFixture returns one representative record for a query, or nil
// when the query has no fixture.
func NewRecordFixture(name domain.QueryName) interface{} {
	switch name {
	case domain.QueryBalanceHistory, domain.QueryBalanceHistoryByAccount:
		return domain.BalancePoint{Date: "2024-01-01", Balance: 1000}
	case domain.QueryDailyPnL, domain.QueryDailyPnLByAccount:
		return domain.DailyPnL{Date: "2024-01-01", PnL: 25.5, Trades: 3}
	case domain.QueryFunding, domain.QueryFundingByAccount:
		return domain.FundingEntry{Date: "2024-01-02", Amount: 500, Kind: "deposit"}
	}
	return nil
}

// Envelope encodes records in the {data, currency} response envelope.
func Envelope(currency string, records ...interface{}) []byte {
	if records == nil {
		records = []interface{}{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		panic(fmt.Sprintf("fixture records not encodable: %v", err))
	}
	return []byte(fmt.Sprintf(`{"data":%s,"currency":%q}`, data, currency))
}
