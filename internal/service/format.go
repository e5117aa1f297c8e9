package service

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PriceFormat controls how prices are rendered for display.
type PriceFormat struct {
	CurrencyPrefix     string
	ThousandsSeparator string
}

// DefaultPriceFormat renders rupiah amounts, e.g. "Rp 55.000.000".
func DefaultPriceFormat() PriceFormat {
	return PriceFormat{
		CurrencyPrefix:     "Rp ",
		ThousandsSeparator: ".",
	}
}

// Format truncates price to a whole number and groups its digits in
// thousands behind the currency prefix.
func (f PriceFormat) Format(price float64) string {
	whole := decimal.NewFromFloat(price).Truncate(0)

	digits := whole.Abs().String()
	var b strings.Builder
	b.WriteString(f.CurrencyPrefix)
	if whole.IsNegative() {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteString(f.ThousandsSeparator)
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
