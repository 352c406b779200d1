package domain

import "github.com/shopspring/decimal"

// MaxLineQuantity bounds the quantity of a single cart line.
const MaxLineQuantity = 9999

// MaxAmount is the largest money value a NUMERIC(12,2) column holds.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// NormalizePrice rounds price to cents and reports whether the result is a
// storable, positive amount.
func NormalizePrice(price decimal.Decimal) (decimal.Decimal, bool) {
	rounded := price.Round(2)
	return rounded, rounded.IsPositive() && rounded.LessThanOrEqual(MaxAmount)
}
