package l1_service

import (
	"github.com/shopspring/decimal"
)

// PositionSize is the share count that loses riskPct percent of capital if
// the stop is hit. Zero when entry and stop coincide.
func PositionSize(capital, riskPct, entry, stop float64) int64 {
	riskPerShare := decimal.NewFromFloat(entry).Sub(decimal.NewFromFloat(stop)).Abs()
	if riskPerShare.IsZero() || entry <= 0 {
		return 0
	}
	maxRisk := decimal.NewFromFloat(capital).
		Mul(decimal.NewFromFloat(riskPct)).
		Div(decimal.NewFromInt(100))

	return maxRisk.Div(riskPerShare).Floor().IntPart()
}
