package analytics

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/clients/analytics"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/domain"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/currency"
)

// ErrShape is returned for payloads that are neither a bare array nor a
// {data, currency} envelope.
var ErrShape = errors.New("unexpected response shape")

// QueryError describes a failed query of the last applied cycle.
type QueryError struct {
	Message    string `json:"message" msgpack:"message"`
	StatusCode int    `json:"statusCode,omitempty" msgpack:"statusCode,omitempty"`
}

type envelope struct {
	Data     json.RawMessage `json:"data"`
	Currency string          `json:"currency"`
}

// Normalize accepts a bare array or an envelope and returns the record
// array and the envelope's currency tag, if any.
func Normalize(raw json.RawMessage) (json.RawMessage, string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, "", fmt.Errorf("%w: empty body", ErrShape)
	}

	switch trimmed[0] {
	case '[':
		return trimmed, "", nil
	case '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrShape, err)
		}
		data := bytes.TrimSpace(env.Data)
		if len(data) == 0 || bytes.Equal(data, []byte("null")) {
			return json.RawMessage("[]"), currency.NormalizeCode(env.Currency), nil
		}
		if data[0] != '[' {
			return nil, "", fmt.Errorf("%w: data is not an array", ErrShape)
		}
		return data, currency.NormalizeCode(env.Currency), nil
	default:
		return nil, "", fmt.Errorf("%w: expected array or object", ErrShape)
	}
}

// applier decodes records into one slot; nil records empty the slot.
type applier func(state *domain.AnalyticsDataState, records json.RawMessage) error

func slot[T any](field func(*domain.AnalyticsDataState) *[]T) applier {
	return func(state *domain.AnalyticsDataState, records json.RawMessage) error {
		out := []T{}
		if len(records) > 0 {
			var decoded []T
			if err := json.Unmarshal(records, &decoded); err != nil {
				*field(state) = out
				return fmt.Errorf("%w: %v", ErrShape, err)
			}
			if decoded != nil {
				out = decoded
			}
		}
		*field(state) = out
		return nil
	}
}

var slots = map[domain.QueryName]applier{
	domain.QueryBalanceHistory: slot(func(s *domain.AnalyticsDataState) *[]domain.BalancePoint {
		return &s.BalanceHistory
	}),
	domain.QueryBalanceHistoryByAccount: slot(func(s *domain.AnalyticsDataState) *[]domain.BalancePoint {
		return &s.BalanceHistoryByAccount
	}),
	domain.QueryMonthlyPnL: slot(func(s *domain.AnalyticsDataState) *[]domain.MonthlyPnL {
		return &s.MonthlyPnL
	}),
	domain.QueryMonthlyPnLByAccount: slot(func(s *domain.AnalyticsDataState) *[]domain.MonthlyPnL {
		return &s.MonthlyPnLByAccount
	}),
	domain.QueryDailyPnL: slot(func(s *domain.AnalyticsDataState) *[]domain.DailyPnL {
		return &s.DailyPnL
	}),
	domain.QueryDailyPnLByAccount: slot(func(s *domain.AnalyticsDataState) *[]domain.DailyPnL {
		return &s.DailyPnLByAccount
	}),
	domain.QueryHourlyPerformance: slot(func(s *domain.AnalyticsDataState) *[]domain.HourlyPerformance {
		return &s.HourlyPerformance
	}),
	domain.QueryWeekdayPerformance: slot(func(s *domain.AnalyticsDataState) *[]domain.WeekdayPerformance {
		return &s.WeekdayPerformance
	}),
	domain.QueryStreaks: slot(func(s *domain.AnalyticsDataState) *[]domain.Streak {
		return &s.Streaks
	}),
	domain.QueryTradeDuration: slot(func(s *domain.AnalyticsDataState) *[]domain.TradeDuration {
		return &s.TradeDuration
	}),
	domain.QueryPositionSizing: slot(func(s *domain.AnalyticsDataState) *[]domain.PositionSize {
		return &s.PositionSizing
	}),
	domain.QueryFunding: slot(func(s *domain.AnalyticsDataState) *[]domain.FundingEntry {
		return &s.Funding
	}),
	domain.QueryFundingByAccount: slot(func(s *domain.AnalyticsDataState) *[]domain.FundingEntry {
		return &s.FundingByAccount
	}),
	domain.QuerySpreadCost: slot(func(s *domain.AnalyticsDataState) *[]domain.SpreadCost {
		return &s.SpreadCost
	}),
	domain.QueryTradeFrequency: slot(func(s *domain.AnalyticsDataState) *[]domain.TradeFrequency {
		return &s.TradeFrequency
	}),
	domain.QueryTradeFrequencyByAccount: slot(func(s *domain.AnalyticsDataState) *[]domain.TradeFrequency {
		return &s.TradeFrequencyByAccount
	}),
	domain.QueryPointsByInstrument: slot(func(s *domain.AnalyticsDataState) *[]domain.InstrumentPoints {
		return &s.PointsByInstrument
	}),
	domain.QueryDrawdown: slot(func(s *domain.AnalyticsDataState) *[]domain.DrawdownPoint {
		return &s.Drawdown
	}),
}

// Assembler folds a cycle's outcomes into the view model.
type Assembler struct {
	log zerolog.Logger
}

// NewAssembler creates an assembler.
func NewAssembler(log zerolog.Logger) *Assembler {
	return &Assembler{log: log.With().Str("component", "view_model_assembler").Logger()}
}

// Assemble applies outcomes on top of previous. Successful slots are
// replaced wholesale; failed slots keep their previous value and are
// reported in the returned error map. Outcomes are applied in query-name
// order, so the last currency tag in that order wins when responses disagree.
func (a *Assembler) Assemble(
	previous domain.AnalyticsDataState,
	outcomes map[domain.QueryName]Outcome,
) (domain.AnalyticsDataState, map[domain.QueryName]QueryError) {
	state := previous
	failures := make(map[domain.QueryName]QueryError)

	names := make([]domain.QueryName, 0, len(outcomes))
	for name := range outcomes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	for _, name := range names {
		outcome := outcomes[name]
		apply, ok := slots[name]
		if !ok {
			a.log.Warn().Str("query", string(name)).Msg("Outcome for unknown query ignored")
			continue
		}

		if outcome.Err != nil {
			failures[name] = QueryError{
				Message:    outcome.Err.Error(),
				StatusCode: analytics.StatusCodeOf(outcome.Err),
			}
			continue
		}

		records, code, err := Normalize(outcome.Payload)
		if err != nil {
			a.log.Warn().Err(err).Str("query", string(name)).Msg("Treating malformed response as empty")
			_ = apply(&state, nil)
			continue
		}
		if err := apply(&state, records); err != nil {
			a.log.Warn().Err(err).Str("query", string(name)).Msg("Treating malformed records as empty")
			continue
		}
		if code != "" {
			state.DataCurrency = code
		}
	}

	return state, failures
}
