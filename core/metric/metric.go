// Package metric implements the percentage law shared by every aggregation level.
package metric

import (
	"math"

	"github.com/roy-sema/cto-tool-sub001/schema"
	"github.com/shopspring/decimal"
)

// Precision is the number of decimal places kept for every stored percentage.
const Precision = 2

// RoundHalfUp rounds x to places decimals using decimal arithmetic with ties
// away from zero, so 2.675 becomes 2.68 and -2.675 becomes -2.68.
// NaN is returned unchanged.
func RoundHalfUp(x float64, places int32) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	f, _ := decimal.NewFromFloat(x).Round(places).Float64()
	return f
}

// Percentage returns part/total as a percentage rounded to Precision places, or 0 when total is 0.
func Percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	ratio := decimal.NewFromInt(part).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(total))
	f, _ := ratio.Round(Precision).Float64()
	return f
}

// PureFrom derives the pure percentage from the two stored percentages.
func PureFrom(overall, blended float64) float64 {
	if math.IsNaN(overall) || math.IsNaN(blended) {
		return math.NaN()
	}
	d := decimal.NewFromFloat(overall).Sub(decimal.NewFromFloat(blended)).Round(Precision)
	f, _ := d.Float64()
	return f
}

// Compose turns raw counters into the three composition percentages.
func Compose(c schema.Counts) schema.Composition {
	overall := Percentage(c.AI, c.Total)
	blended := Percentage(c.Blended, c.Total)
	return schema.Composition{
		Overall: overall,
		Blended: blended,
		Pure:    PureFrom(overall, blended),
	}
}
