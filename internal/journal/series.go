package journal

import "trading-journal/internal/models"

// StartLabel labels the first point of a balance series.
const StartLabel = "start"

// BalancePoint is one point of the equity curve.
type BalancePoint struct {
	Label string  `json:"label" yaml:"label"`
	Value float64 `json:"value" yaml:"value"`
}

// BuildBalanceSeries reconstructs the account balance after each trade.
//
// The first point is the initial balance. Each trade then adds the change of
// the compounding trade value (its newValue minus the previous trade's
// newValue, or minus initialTradeValue for the first trade) plus its result.
// The last point always equals ComputeStats(...).TotalBalance.
func BuildBalanceSeries(trades []models.Trade, initialBalance, initialTradeValue float64) []BalancePoint {
	series := make([]BalancePoint, 0, len(trades)+1)
	series = append(series, BalancePoint{Label: StartLabel, Value: initialBalance})

	balance := initialBalance
	prev := initialTradeValue
	for _, t := range trades {
		balance += t.NewValue - prev + t.Result
		prev = t.NewValue
		series = append(series, BalancePoint{Label: t.TradeDate, Value: balance})
	}
	return series
}
