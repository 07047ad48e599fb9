// Package analytics fans the analytics queries out to the remote service,
// merges the results into one view model and owns the reactive state store.
package analytics

import (
	"strings"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/domain"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/filters"
)

const pathPrefix = "/api/analytics/"

// Entry is one query of a catalog.
type Entry struct {
	Name domain.QueryName
	Path string
	// PerAccount queries break results down by account.
	PerAccount bool
}

// Catalog is a closed, ordered set of queries.
type Catalog []Entry

func entry(name domain.QueryName) Entry {
	return Entry{
		Name:       name,
		Path:       pathPrefix + strings.ReplaceAll(string(name), "_", "-"),
		PerAccount: strings.HasSuffix(string(name), "_by_account"),
	}
}

// AnalyticsCatalog is the full analytics view.
func AnalyticsCatalog() Catalog {
	return Catalog{
		entry(domain.QueryBalanceHistory),
		entry(domain.QueryBalanceHistoryByAccount),
		entry(domain.QueryMonthlyPnL),
		entry(domain.QueryMonthlyPnLByAccount),
		entry(domain.QueryDailyPnL),
		entry(domain.QueryDailyPnLByAccount),
		entry(domain.QueryHourlyPerformance),
		entry(domain.QueryWeekdayPerformance),
		entry(domain.QueryStreaks),
		entry(domain.QueryTradeDuration),
		entry(domain.QueryPositionSizing),
		entry(domain.QueryFunding),
		entry(domain.QueryFundingByAccount),
		entry(domain.QuerySpreadCost),
		entry(domain.QueryTradeFrequency),
		entry(domain.QueryTradeFrequencyByAccount),
		entry(domain.QueryPointsByInstrument),
		entry(domain.QueryDrawdown),
	}
}

// SummaryCatalog is the reduced set behind the summary dashboard.
func SummaryCatalog() Catalog {
	return Catalog{
		entry(domain.QueryBalanceHistory),
		entry(domain.QueryDailyPnL),
		entry(domain.QueryMonthlyPnL),
		entry(domain.QueryStreaks),
		entry(domain.QueryFunding),
		entry(domain.QueryTradeFrequency),
	}
}

// Names returns the query names in catalog order.
func (c Catalog) Names() []domain.QueryName {
	names := make([]domain.QueryName, len(c))
	for i, e := range c {
		names[i] = e.Name
	}
	return names
}

// NativeCurrencyLookup resolves an account's own currency.
type NativeCurrencyLookup func(accountID int) (string, bool)

// EffectiveCurrency is the currency a filter's results are shown in: the
// selected account's native currency when known, else the display currency.
func EffectiveCurrency(f filters.FilterState, displayCurrency string, native NativeCurrencyLookup) string {
	if f.SelectedAccountID != nil && native != nil {
		if code, ok := native(*f.SelectedAccountID); ok {
			return code
		}
	}
	return displayCurrency
}

// Build derives one request per catalog entry. With showConverted off the
// per-account breakdowns omit the currency so each account reports natively.
func (c Catalog) Build(
	f filters.FilterState,
	displayCurrency string,
	prefs domain.CurrencyPreferences,
	native NativeCurrencyLookup,
) []domain.RequestDescriptor {
	code := EffectiveCurrency(f, displayCurrency, native)
	from, to := f.FromString(), f.ToString()

	var accountID *int
	if f.SelectedAccountID != nil {
		v := *f.SelectedAccountID
		accountID = &v
	}

	reqs := make([]domain.RequestDescriptor, 0, len(c))
	for _, e := range c {
		req := domain.RequestDescriptor{
			Query:     e.Name,
			Path:      e.Path,
			From:      from,
			To:        to,
			Currency:  code,
			AccountID: accountID,
		}
		if e.PerAccount && !prefs.ShowConverted && accountID == nil {
			req.Currency = ""
		}
		if len(f.SelectedInstruments) > 0 {
			req.Instruments = append([]string(nil), f.SelectedInstruments...)
		}
		reqs = append(reqs, req)
	}
	return reqs
}
