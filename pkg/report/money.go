// Package report renders reconciliations and journal entries as text tables.
package report

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money formats v in the currency's display style, e.g. "¥1,200" or
// "$12.50". Values finer than the currency's minor unit, and unknown
// currencies, are printed as plain decimals with the code appended.
func Money(v decimal.Decimal, currency string) string {
	code := strings.ToUpper(currency)
	cur := money.GetCurrency(code)
	if cur == nil {
		return v.String() + " " + code
	}
	places := int32(cur.Fraction)
	if !v.Equal(v.Round(places)) {
		return v.String() + " " + code
	}
	return money.New(v.Shift(places).IntPart(), code).Display()
}

// blank renders zero as an empty cell.
func blank(v decimal.Decimal, currency string) string {
	if v.IsZero() {
		return ""
	}
	return Money(v, currency)
}
