package currency

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/domain"
)

// ErrUnsupportedCurrency is returned when a currency has no known rate.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// RateTable is the active table expressed relative to BaseCurrency.
type RateTable struct {
	BaseCurrency string             `json:"baseCurrency"`
	Rates        map[string]float64 `json:"rates"`
	UpdatedAt    *time.Time         `json:"updatedAt,omitempty"`
	Source       Source             `json:"source"`
}

// Engine holds the unit rate table and the display currency. It is safe
// for concurrent use.
type Engine struct {
	mu        sync.RWMutex
	unit      map[string]float64 // value of one unit in an arbitrary reference currency
	display   string
	table     RateTable
	source    Source
	updatedAt *time.Time
	log       zerolog.Logger
}

// NewEngine creates an engine on the built-in fallback table with USD as
// the display currency.
func NewEngine(log zerolog.Logger) *Engine {
	e := &Engine{
		unit:    copyRates(BaseRatesToUSD),
		display: "USD",
		source:  SourceFallback,
		log:     log.With().Str("component", "currency_engine").Logger(),
	}
	e.rebuild()
	return e
}

// DisplayCurrency returns the current display currency.
func (e *Engine) DisplayCurrency() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.display
}

// SetDisplayCurrency switches the display currency and rebuilds the table.
// Unknown codes are rejected so the table invariant always holds.
func (e *Engine) SetDisplayCurrency(code string) error {
	code = NormalizeCode(code)
	if !IsValidCode(code) {
		return fmt.Errorf("%w: %q", ErrUnsupportedCurrency, code)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.unit[code]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedCurrency, code)
	}
	if e.display == code {
		return nil
	}
	e.display = code
	e.rebuild()
	e.log.Debug().Str("currency", code).Msg("Display currency changed")
	return nil
}

// Supports reports whether the engine has a rate for code.
func (e *Engine) Supports(code string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.unit[NormalizeCode(code)]
	return ok
}

// SupportedCurrencies returns every known code, sorted.
func (e *Engine) SupportedCurrencies() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return sortedCodes(e.unit)
}

// Table returns a copy of the active table.
func (e *Engine) Table() RateTable {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t := e.table
	t.Rates = copyRates(e.table.Rates)
	return t
}

// Source returns where the active rates came from.
func (e *Engine) Source() Source {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.source
}

// RatesRelativeTo rebases the active unit table onto target.
func (e *Engine) RatesRelativeTo(target string) map[string]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return RatesRelativeTo(target, e.unit)
}

// Rate returns how many to units one from unit is worth. Same-currency
// rates are exactly 1.0. The second result is false when either currency
// is unknown, in which case the rate is 1.0.
func (e *Engine) Rate(from, to string) (float64, bool) {
	from, to = NormalizeCode(from), NormalizeCode(to)
	if from == to {
		return 1.0, true
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.unit[to]; !ok {
		return 1.0, false
	}
	if _, ok := e.unit[from]; !ok {
		return 1.0, false
	}

	rates := e.table.Rates
	if to != e.table.BaseCurrency {
		rates = RatesRelativeTo(to, e.unit)
	}
	return rates[from], true
}

// Convert converts amount from one currency to another. Unknown
// currencies degrade to the identity conversion.
func (e *Engine) Convert(amount float64, from, to string) float64 {
	rate, ok := e.Rate(from, to)
	if !ok {
		e.log.Debug().Str("from", from).Str("to", to).Msg("No rate available, returning amount unchanged")
		return amount
	}
	return amount * rate
}

// ConvertToDisplay converts amount into the display currency.
func (e *Engine) ConvertToDisplay(amount float64, from string) float64 {
	return e.Convert(amount, from, e.DisplayCurrency())
}

// ApplyTable replaces the unit rates with a remote or cached table.
// Non-positive and non-finite rates are dropped; the base currency is
// pinned to 1.0. Currencies the table does not mention keep their
// previous unit rate rescaled onto the new reference, when possible.
func (e *Engine) ApplyTable(t domain.ExchangeRateTable, source Source) error {
	base := NormalizeCode(t.BaseCurrency)
	if !IsValidCode(base) {
		return fmt.Errorf("%w: invalid base currency %q", ErrUnsupportedCurrency, t.BaseCurrency)
	}

	unit := make(map[string]float64, len(t.Rates)+1)
	for code, v := range t.Rates {
		code = NormalizeCode(code)
		if !IsValidCode(code) || !validRate(v) {
			e.log.Warn().Str("currency", code).Float64("rate", v).Msg("Dropping invalid rate")
			continue
		}
		unit[code] = v
	}
	unit[base] = 1.0

	e.mu.Lock()
	defer e.mu.Unlock()

	// Carry over currencies missing from the new table, rescaled through the base.
	if prevBase, ok := e.unit[base]; ok && validRate(prevBase) {
		for code, v := range e.unit {
			if _, present := unit[code]; !present && validRate(v) {
				unit[code] = v / prevBase
			}
		}
	} else if dropped := missingCodes(e.unit, unit); len(dropped) > 0 {
		e.log.Warn().
			Str("base", base).
			Strs("dropped", dropped).
			Msg("New base currency unknown to previous table, currencies it omits are no longer supported")
	}

	e.unit = unit
	e.source = source
	e.updatedAt = t.UpdatedAt
	if _, ok := e.unit[e.display]; !ok {
		e.log.Warn().Str("currency", e.display).Msg("Display currency missing from rate table, switching to base")
		e.display = base
	}
	e.rebuild()
	return nil
}

// missingCodes lists the codes of prev absent from next, sorted.
func missingCodes(prev, next map[string]float64) []string {
	var out []string
	for code := range prev {
		if _, ok := next[code]; !ok {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out
}

// Reset restores the built-in fallback table.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unit = copyRates(BaseRatesToUSD)
	e.source = SourceFallback
	e.updatedAt = nil
	if _, ok := e.unit[e.display]; !ok {
		e.display = "USD"
	}
	e.rebuild()
}

// UnitRates exports the active unit table relative to base, in the remote
// wire shape, for caching.
func (e *Engine) UnitRates(base string) domain.ExchangeRateTable {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return domain.ExchangeRateTable{
		BaseCurrency: NormalizeCode(base),
		Rates:        RatesRelativeTo(base, e.unit),
		UpdatedAt:    e.updatedAt,
	}
}

// rebuild must be called with mu held.
func (e *Engine) rebuild() {
	e.table = RateTable{
		BaseCurrency: e.display,
		Rates:        RatesRelativeTo(e.display, e.unit),
		UpdatedAt:    e.updatedAt,
		Source:       e.source,
	}
}
