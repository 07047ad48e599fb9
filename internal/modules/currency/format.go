package currency

import (
	"math"
	"strconv"
	"sync"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultLocale is used when FormatOptions.Locale is empty.
const DefaultLocale = "en-US"

// FormatOptions controls Format output.
type FormatOptions struct {
	IncludeSymbol bool
	DecimalPlaces int
	Locale        string // BCP 47 tag; "C" disables digit grouping
}

// DefaultFormatOptions returns symbol on, two decimals, en-US grouping.
func DefaultFormatOptions() FormatOptions {
	return FormatOptions{IncludeSymbol: true, DecimalPlaces: 2, Locale: DefaultLocale}
}

// prefixSymbols lists the currencies whose symbol precedes the amount.
// The dollar variants are disambiguated.
var prefixSymbols = map[string]string{
	"USD": "$",
	"GBP": "£",
	"AUD": "A$",
	"CAD": "C$",
	"NZD": "NZ$",
}

var printers sync.Map // locale string -> *message.Printer

// Symbol returns the display symbol for code and whether it is a prefix.
// Unknown codes return the code itself as a suffix.
func Symbol(code string) (string, bool) {
	code = NormalizeCode(code)
	if s, ok := prefixSymbols[code]; ok {
		return s, true
	}
	if c := money.GetCurrency(code); c != nil && c.Grapheme != "" {
		return c.Grapheme, false
	}
	return code, false
}

// Format renders amount in fixed-point notation with the currency symbol
// placed according to the currency.
func Format(amount float64, code string, opts FormatOptions) string {
	places := opts.DecimalPlaces
	if places < 0 {
		places = 2
	}
	if places > 8 {
		places = 8
	}

	var digits string
	negative := false
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		digits = strconv.FormatFloat(amount, 'f', -1, 64)
	} else {
		d := decimal.NewFromFloat(amount).Round(int32(places))
		negative = d.IsNegative()
		digits = formatDigits(d.Abs(), places, opts.Locale)
	}

	sign := ""
	if negative {
		sign = "-"
	}
	if !opts.IncludeSymbol {
		return sign + digits
	}

	symbol, prefix := Symbol(code)
	if prefix {
		return sign + symbol + digits
	}
	return sign + digits + " " + symbol
}

// Format renders amount using the engine's display currency.
func (e *Engine) Format(amount float64, opts FormatOptions) string {
	return Format(amount, e.DisplayCurrency(), opts)
}

func formatDigits(d decimal.Decimal, places int, locale string) string {
	if locale == "C" {
		return d.StringFixed(int32(places))
	}
	if locale == "" {
		locale = DefaultLocale
	}
	return printerFor(locale).Sprint(number.Decimal(d.InexactFloat64(), number.Scale(places)))
}

func printerFor(locale string) *message.Printer {
	if p, ok := printers.Load(locale); ok {
		return p.(*message.Printer)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.AmericanEnglish
	}
	p, _ := printers.LoadOrStore(locale, message.NewPrinter(tag))
	return p.(*message.Printer)
}
