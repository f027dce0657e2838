package metrics

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	million  = decimal.NewFromInt(1_000_000)
	thousand = decimal.NewFromInt(1_000)
)

// FormatCurrency renders a dollar amount with an M or K suffix once it reaches a million or a thousand.
func FormatCurrency(value decimal.Decimal) string {
	abs := value.Abs()
	switch {
	case abs.GreaterThanOrEqual(million):
		return "$" + value.Div(million).StringFixed(1) + "M"
	case abs.GreaterThanOrEqual(thousand):
		return "$" + value.Div(thousand).StringFixed(0) + "K"
	default:
		return "$" + value.StringFixed(0)
	}
}

// FormatTrend renders the change from previous to current as an arrow and an absolute percentage.
// A zero baseline renders as "N/A" rather than the 0 Growth reports.
func FormatTrend(current, previous decimal.Decimal) string {
	if previous.IsZero() {
		return "N/A"
	}
	change := Growth(current, previous)
	arrow := "↘"
	if change > 0 {
		arrow = "↗"
	}
	return fmt.Sprintf("%s %.2f%%", arrow, math.Abs(change))
}
