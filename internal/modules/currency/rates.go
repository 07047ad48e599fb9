// Package currency converts and formats monetary values for the display
// currency, backed by a rate table that degrades to built-in defaults.
package currency

import (
	"math"
	"sort"
	"strings"
)

// BaseRatesToUSD is the built-in fallback table: the USD value of one unit
// of each currency. Approximate mid-market rates, used only when neither
// the remote service nor the local cache can supply a table.
var BaseRatesToUSD = map[string]float64{
	"USD": 1.0,
	"EUR": 1.08,
	"GBP": 1.27,
	"SEK": 0.095,
	"NOK": 0.093,
	"DKK": 0.145,
	"CHF": 1.13,
	"JPY": 0.0067,
	"AUD": 0.66,
	"CAD": 0.74,
	"NZD": 0.61,
	"HKD": 0.128,
	"SGD": 0.74,
	"PLN": 0.25,
}

// Source tells where the active rate table came from.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

// RatesRelativeTo rebases a unit table so that rate[X] is the number of
// target units one X is worth. rate[target] is exactly 1.0. When target is
// not in the table the result only contains target.
func RatesRelativeTo(target string, unit map[string]float64) map[string]float64 {
	target = NormalizeCode(target)
	out := make(map[string]float64, len(unit))

	base, ok := unit[target]
	if !ok || !validRate(base) {
		out[target] = 1.0
		return out
	}

	for code, v := range unit {
		if !validRate(v) {
			continue
		}
		out[code] = v / base
	}
	out[target] = 1.0
	return out
}

// NormalizeCode upper-cases and trims an ISO 4217 code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidCode reports whether code looks like an ISO 4217 alphabetic code.
func IsValidCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func validRate(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func sortedCodes(m map[string]float64) []string {
	codes := make([]string, 0, len(m))
	for c := range m {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

func copyRates(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
