// Package money converts cart amounts into provider minor units and applies
// per-currency minimum charge floors.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Currencies the card network charges without a fractional unit.
var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "DJF": {}, "JPY": {}, "KRW": {}, "PYG": {},
	"VND": {}, "XAF": {}, "XPF": {}, "CLP": {}, "GNF": {},
	"KMF": {}, "MGA": {}, "RWF": {}, "VUV": {}, "XOF": {},
}

// Smallest amount Stripe accepts per currency, in major units.
var minimumChargeAmount = map[string]decimal.Decimal{
	"USD": decimal.RequireFromString("0.5"),
	"AED": decimal.NewFromInt(2),
	"AUD": decimal.RequireFromString("0.5"),
	"BGN": decimal.NewFromInt(1),
	"BRL": decimal.RequireFromString("0.5"),
	"CAD": decimal.RequireFromString("0.5"),
	"CHF": decimal.RequireFromString("0.5"),
	"CZK": decimal.NewFromInt(15),
	"DKK": decimal.RequireFromString("2.5"),
	"EUR": decimal.RequireFromString("0.5"),
	"GBP": decimal.RequireFromString("0.3"),
	"HKD": decimal.NewFromInt(4),
	"HRK": decimal.RequireFromString("0.5"),
	"HUF": decimal.NewFromInt(175),
	"INR": decimal.RequireFromString("0.5"),
	"JPY": decimal.NewFromInt(50),
	"MXN": decimal.NewFromInt(10),
	"MYR": decimal.NewFromInt(2),
	"NOK": decimal.NewFromInt(3),
	"NZD": decimal.RequireFromString("0.5"),
	"PLN": decimal.NewFromInt(2),
	"RON": decimal.NewFromInt(2),
	"SEK": decimal.NewFromInt(3),
	"SGD": decimal.RequireFromString("0.5"),
	"THB": decimal.NewFromInt(10),
}

// IsZeroDecimal reports whether currency has no minor unit.
func IsZeroDecimal(currency string) bool {
	_, ok := zeroDecimalCurrencies[strings.ToUpper(currency)]
	return ok
}

// ToMinorUnits converts amount to the integer the provider expects for
// currency. Zero-decimal currencies are rounded to a whole unit.
func ToMinorUnits(currency string, amount decimal.Decimal) int64 {
	if IsZeroDecimal(currency) {
		return amount.Round(0).IntPart()
	}
	return Cents(amount)
}

// Cents returns round(amount*100) regardless of currency.
func Cents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// MinimumCharge returns the floor for currency, if one is known.
func MinimumCharge(currency string) (decimal.Decimal, bool) {
	min, ok := minimumChargeAmount[strings.ToUpper(currency)]
	return min, ok
}

// IsChargeable reports whether amount meets the currency floor. Currencies
// without a known floor are always chargeable.
func IsChargeable(amount decimal.Decimal, currency string) bool {
	min, ok := MinimumCharge(currency)
	return !ok || amount.GreaterThanOrEqual(min)
}
