package strategy

import (
	"math"

	"github.com/shopspring/decimal"
)

// Trigger thresholds are computed and compared in decimal space: prices are
// decimal fractions and float64 products miss exact boundary crossings
// (0.45*1.05 != 0.4725 in binary).

var decOne = decimal.NewFromInt(1)

func decFromFloat(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

func decToFloat(v decimal.Decimal) float64 {
	f, _ := v.Float64()
	return f
}

func decimalCompare(a, b float64) int {
	return decFromFloat(a).Cmp(decFromFloat(b))
}

func decimalGTE(a, b float64) bool { return decimalCompare(a, b) >= 0 }
func decimalLTE(a, b float64) bool { return decimalCompare(a, b) <= 0 }

// reboundTarget is the price a rebound of pct percent above base reaches;
// retraceTarget is the symmetric drop below base.
func reboundTarget(base, pct float64) float64 {
	factor := decOne.Add(decFromFloat(pct).Div(decimal.NewFromInt(100)))
	return decToFloat(decFromFloat(base).Mul(factor))
}

func retraceTarget(base, pct float64) float64 {
	factor := decOne.Sub(decFromFloat(pct).Div(decimal.NewFromInt(100)))
	return decToFloat(decFromFloat(base).Mul(factor))
}
