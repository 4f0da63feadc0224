package core

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes formatted amounts.
const CurrencySymbol = "Rs"

// FormatAmount renders an amount for display with thousands separators and at
// most two fraction digits, e.g. "Rs 2,300" or "-Rs 1,250.5".
//
// Use decimals for arithmetic; this is for presentation only.
func FormatAmount(d decimal.Decimal) string {
	neg := d.IsNegative()
	f, _ := d.Abs().Round(2).Float64()
	s := humanize.CommafWithDigits(f, 2)
	s = strings.TrimSuffix(s, ".00")
	if neg {
		return "-" + CurrencySymbol + " " + s
	}
	return CurrencySymbol + " " + s
}
