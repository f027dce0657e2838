package metrics

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Growth returns the percentage change from previous to current. A zero baseline yields 0, so a
// result of 0 only means "no change" when previous is non-zero.
func Growth(current, previous decimal.Decimal) float64 {
	if previous.IsZero() {
		return 0
	}
	return current.Sub(previous).Div(previous).Mul(hundred).InexactFloat64()
}
