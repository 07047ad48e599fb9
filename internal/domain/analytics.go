package domain

// BalancePoint is one point of the balance curve.
type BalancePoint struct {
	Date      string  `json:"date" msgpack:"date"`
	Balance   float64 `json:"balance" msgpack:"balance"`
	AccountID *int    `json:"accountId,omitempty" msgpack:"accountId,omitempty"`
}

// MonthlyPnL aggregates realized P&L per calendar month (YYYY-MM).
type MonthlyPnL struct {
	Month     string  `json:"month" msgpack:"month"`
	PnL       float64 `json:"pnl" msgpack:"pnl"`
	Trades    int     `json:"trades" msgpack:"trades"`
	AccountID *int    `json:"accountId,omitempty" msgpack:"accountId,omitempty"`
}

// DailyPnL aggregates realized P&L per trading day.
type DailyPnL struct {
	Date      string  `json:"date" msgpack:"date"`
	PnL       float64 `json:"pnl" msgpack:"pnl"`
	Trades    int     `json:"trades" msgpack:"trades"`
	AccountID *int    `json:"accountId,omitempty" msgpack:"accountId,omitempty"`
}

// HourlyPerformance buckets trades by hour of day (0-23).
type HourlyPerformance struct {
	Hour    int     `json:"hour" msgpack:"hour"`
	PnL     float64 `json:"pnl" msgpack:"pnl"`
	Trades  int     `json:"trades" msgpack:"trades"`
	WinRate float64 `json:"winRate" msgpack:"winRate"`
}

// WeekdayPerformance buckets trades by weekday name.
type WeekdayPerformance struct {
	Weekday string  `json:"weekday" msgpack:"weekday"`
	PnL     float64 `json:"pnl" msgpack:"pnl"`
	Trades  int     `json:"trades" msgpack:"trades"`
	WinRate float64 `json:"winRate" msgpack:"winRate"`
}

// Streak is a run of consecutive winning or losing trades.
type Streak struct {
	Kind   string  `json:"kind" msgpack:"kind"` // win or loss
	Length int     `json:"length" msgpack:"length"`
	Start  string  `json:"start" msgpack:"start"`
	End    string  `json:"end" msgpack:"end"`
	PnL    float64 `json:"pnl" msgpack:"pnl"`
}

// TradeDuration buckets trades by holding time.
type TradeDuration struct {
	Bucket  string  `json:"bucket" msgpack:"bucket"`
	Trades  int     `json:"trades" msgpack:"trades"`
	AvgPnL  float64 `json:"avgPnl" msgpack:"avgPnl"`
	WinRate float64 `json:"winRate" msgpack:"winRate"`
}

// PositionSize buckets trades by position size.
type PositionSize struct {
	Bucket string  `json:"bucket" msgpack:"bucket"`
	Trades int     `json:"trades" msgpack:"trades"`
	PnL    float64 `json:"pnl" msgpack:"pnl"`
}

// FundingEntry is a deposit, withdrawal or funding charge.
type FundingEntry struct {
	Date      string  `json:"date" msgpack:"date"`
	Amount    float64 `json:"amount" msgpack:"amount"`
	Kind      string  `json:"kind" msgpack:"kind"`
	AccountID *int    `json:"accountId,omitempty" msgpack:"accountId,omitempty"`
}

// SpreadCost is the estimated spread paid per instrument.
type SpreadCost struct {
	Instrument string  `json:"instrument" msgpack:"instrument"`
	Cost       float64 `json:"cost" msgpack:"cost"`
	Trades     int     `json:"trades" msgpack:"trades"`
}

// TradeFrequency counts trades per day.
type TradeFrequency struct {
	Date      string `json:"date" msgpack:"date"`
	Trades    int    `json:"trades" msgpack:"trades"`
	AccountID *int   `json:"accountId,omitempty" msgpack:"accountId,omitempty"`
}

// InstrumentPoints sums points won or lost per instrument.
type InstrumentPoints struct {
	Instrument string  `json:"instrument" msgpack:"instrument"`
	Points     float64 `json:"points" msgpack:"points"`
	Trades     int     `json:"trades" msgpack:"trades"`
}

// DrawdownPoint is the distance from the running equity peak.
type DrawdownPoint struct {
	Date        string  `json:"date" msgpack:"date"`
	Drawdown    float64 `json:"drawdown" msgpack:"drawdown"`
	DrawdownPct float64 `json:"drawdownPct" msgpack:"drawdownPct"`
}

// AnalyticsDataState is the merged view model. Every slot is replaced
// wholesale when its query succeeds and left untouched when it fails.
type AnalyticsDataState struct {
	BalanceHistory          []BalancePoint       `json:"balanceHistory" msgpack:"balanceHistory"`
	BalanceHistoryByAccount []BalancePoint       `json:"balanceHistoryByAccount" msgpack:"balanceHistoryByAccount"`
	MonthlyPnL              []MonthlyPnL         `json:"monthlyPnl" msgpack:"monthlyPnl"`
	MonthlyPnLByAccount     []MonthlyPnL         `json:"monthlyPnlByAccount" msgpack:"monthlyPnlByAccount"`
	DailyPnL                []DailyPnL           `json:"dailyPnl" msgpack:"dailyPnl"`
	DailyPnLByAccount       []DailyPnL           `json:"dailyPnlByAccount" msgpack:"dailyPnlByAccount"`
	HourlyPerformance       []HourlyPerformance  `json:"hourlyPerformance" msgpack:"hourlyPerformance"`
	WeekdayPerformance      []WeekdayPerformance `json:"weekdayPerformance" msgpack:"weekdayPerformance"`
	Streaks                 []Streak             `json:"streaks" msgpack:"streaks"`
	TradeDuration           []TradeDuration      `json:"tradeDuration" msgpack:"tradeDuration"`
	PositionSizing          []PositionSize       `json:"positionSizing" msgpack:"positionSizing"`
	Funding                 []FundingEntry       `json:"funding" msgpack:"funding"`
	FundingByAccount        []FundingEntry       `json:"fundingByAccount" msgpack:"fundingByAccount"`
	SpreadCost              []SpreadCost         `json:"spreadCost" msgpack:"spreadCost"`
	TradeFrequency          []TradeFrequency     `json:"tradeFrequency" msgpack:"tradeFrequency"`
	TradeFrequencyByAccount []TradeFrequency     `json:"tradeFrequencyByAccount" msgpack:"tradeFrequencyByAccount"`
	PointsByInstrument      []InstrumentPoints   `json:"pointsByInstrument" msgpack:"pointsByInstrument"`
	Drawdown                []DrawdownPoint      `json:"drawdown" msgpack:"drawdown"`

	// DataCurrency is the last currency tag reported by any response envelope.
	DataCurrency string `json:"dataCurrency,omitempty" msgpack:"dataCurrency,omitempty"`
}

// NewAnalyticsDataState returns a state with every slot empty.
func NewAnalyticsDataState() AnalyticsDataState {
	return AnalyticsDataState{
		BalanceHistory:          []BalancePoint{},
		BalanceHistoryByAccount: []BalancePoint{},
		MonthlyPnL:              []MonthlyPnL{},
		MonthlyPnLByAccount:     []MonthlyPnL{},
		DailyPnL:                []DailyPnL{},
		DailyPnLByAccount:       []DailyPnL{},
		HourlyPerformance:       []HourlyPerformance{},
		WeekdayPerformance:      []WeekdayPerformance{},
		Streaks:                 []Streak{},
		TradeDuration:           []TradeDuration{},
		PositionSizing:          []PositionSize{},
		Funding:                 []FundingEntry{},
		FundingByAccount:        []FundingEntry{},
		SpreadCost:              []SpreadCost{},
		TradeFrequency:          []TradeFrequency{},
		TradeFrequencyByAccount: []TradeFrequency{},
		PointsByInstrument:      []InstrumentPoints{},
		Drawdown:                []DrawdownPoint{},
	}
}
