package analytics

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/currency"
)

// Converter converts amounts between currencies.
type Converter interface {
	Convert(amount float64, from, to string) float64
}

// Summary is the headline projection of a snapshot.
type Summary struct {
	Currency        string            `json:"currency" msgpack:"currency"`
	LatestBalance   float64           `json:"latestBalance" msgpack:"latestBalance"`
	TotalPnL        float64           `json:"totalPnl" msgpack:"totalPnl"`
	Trades          int               `json:"trades" msgpack:"trades"`
	WinningDays     int               `json:"winningDays" msgpack:"winningDays"`
	LosingDays      int               `json:"losingDays" msgpack:"losingDays"`
	TotalFunding    float64           `json:"totalFunding" msgpack:"totalFunding"`
	TotalSpreadCost float64           `json:"totalSpreadCost" msgpack:"totalSpreadCost"`
	MaxDrawdown     float64           `json:"maxDrawdown" msgpack:"maxDrawdown"`
	Formatted       map[string]string `json:"formatted" msgpack:"formatted"`
}

// Summarize totals a snapshot and converts the totals from the data
// currency into the snapshot's display currency.
func Summarize(snap Snapshot, conv Converter, opts currency.FormatOptions) Summary {
	target := snap.DisplayCurrency
	source := snap.Data.DataCurrency
	if source == "" {
		source = target
	}
	convert := func(v float64) float64 {
		if conv == nil || target == "" || source == target {
			return v
		}
		return conv.Convert(v, source, target)
	}

	data := snap.Data
	out := Summary{Currency: target}

	latestDate := ""
	for _, p := range data.BalanceHistory {
		if p.Date >= latestDate {
			latestDate = p.Date
			out.LatestBalance = p.Balance
		}
	}

	pnl := decimal.Zero
	for _, d := range data.DailyPnL {
		pnl = pnl.Add(decimal.NewFromFloat(d.PnL))
		out.Trades += d.Trades
		switch {
		case d.PnL > 0:
			out.WinningDays++
		case d.PnL < 0:
			out.LosingDays++
		}
	}
	out.TotalPnL = pnl.InexactFloat64()

	funding := decimal.Zero
	for _, f := range data.Funding {
		funding = funding.Add(decimal.NewFromFloat(f.Amount))
	}
	out.TotalFunding = funding.InexactFloat64()

	spread := decimal.Zero
	for _, c := range data.SpreadCost {
		spread = spread.Add(decimal.NewFromFloat(c.Cost))
	}
	out.TotalSpreadCost = spread.InexactFloat64()

	for _, d := range data.Drawdown {
		if math.Abs(d.Drawdown) > math.Abs(out.MaxDrawdown) {
			out.MaxDrawdown = d.Drawdown
		}
	}

	out.LatestBalance = convert(out.LatestBalance)
	out.TotalPnL = convert(out.TotalPnL)
	out.TotalFunding = convert(out.TotalFunding)
	out.TotalSpreadCost = convert(out.TotalSpreadCost)
	out.MaxDrawdown = convert(out.MaxDrawdown)

	out.Formatted = map[string]string{
		"latestBalance":   currency.Format(out.LatestBalance, target, opts),
		"totalPnl":        currency.Format(out.TotalPnL, target, opts),
		"totalFunding":    currency.Format(out.TotalFunding, target, opts),
		"totalSpreadCost": currency.Format(out.TotalSpreadCost, target, opts),
		"maxDrawdown":     currency.Format(out.MaxDrawdown, target, opts),
	}
	return out
}
