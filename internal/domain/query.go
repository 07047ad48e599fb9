package domain

import (
	"net/url"
	"strconv"
)

// QueryName identifies one analytics query and the result slot it fills.
type QueryName string

const (
	QueryBalanceHistory          QueryName = "balance_history"
	QueryBalanceHistoryByAccount QueryName = "balance_history_by_account"
	QueryMonthlyPnL              QueryName = "monthly_pnl"
	QueryMonthlyPnLByAccount     QueryName = "monthly_pnl_by_account"
	QueryDailyPnL                QueryName = "daily_pnl"
	QueryDailyPnLByAccount       QueryName = "daily_pnl_by_account"
	QueryHourlyPerformance       QueryName = "hourly_performance"
	QueryWeekdayPerformance      QueryName = "weekday_performance"
	QueryStreaks                 QueryName = "streaks"
	QueryTradeDuration           QueryName = "trade_duration"
	QueryPositionSizing          QueryName = "position_sizing"
	QueryFunding                 QueryName = "funding"
	QueryFundingByAccount        QueryName = "funding_by_account"
	QuerySpreadCost              QueryName = "spread_cost"
	QueryTradeFrequency          QueryName = "trade_frequency"
	QueryTradeFrequencyByAccount QueryName = "trade_frequency_by_account"
	QueryPointsByInstrument      QueryName = "points_by_instrument"
	QueryDrawdown                QueryName = "drawdown"
)

// RequestDescriptor names a logical query and the parameters it is issued with.
// Dates are ISO 8601 calendar dates; an empty string means unbounded.
// An empty Currency omits the parameter so the service answers in native currency.
type RequestDescriptor struct {
	Query       QueryName `json:"query"`
	Path        string    `json:"path"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	AccountID   *int      `json:"accountId,omitempty"`
	Instruments []string  `json:"instruments,omitempty"`
}

// Params encodes the descriptor as URL query parameters.
func (d RequestDescriptor) Params() url.Values {
	v := url.Values{}
	if d.From != "" {
		v.Set("from", d.From)
	}
	if d.To != "" {
		v.Set("to", d.To)
	}
	if d.Currency != "" {
		v.Set("currency", d.Currency)
	}
	if d.AccountID != nil {
		v.Set("accountId", strconv.Itoa(*d.AccountID))
	}
	for _, instrument := range d.Instruments {
		v.Add("instruments", instrument)
	}
	return v
}
