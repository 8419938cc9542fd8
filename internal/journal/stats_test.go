package journal

import (
	"fmt"
	"testing"

	"trading-journal/internal/models"

	"github.com/stretchr/testify/assert"
)

func trade(date string, outcome models.Outcome, value, percent float64) models.Trade {
	result, newValue := models.ComputeResult(value, percent, outcome)
	return models.Trade{
		TradeDate:  date,
		Pair:       "BTCUSDT",
		Position:   models.PositionLong,
		ValueTrade: value,
		Type:       outcome,
		Percent:    percent,
		Result:     result,
		NewValue:   newValue,
	}
}

// chain builds a compounding history: each trade uses the previous newValue.
func chain(start float64, outcomes ...models.Outcome) []models.Trade {
	trades := make([]models.Trade, 0, len(outcomes))
	value := start
	for i, o := range outcomes {
		t := trade(fmt.Sprintf("2024-01-%02d", i+1), o, value, 10)
		trades = append(trades, t)
		value = t.NewValue
	}
	return trades
}

func TestComputeStatsEmpty(t *testing.T) {
	settings := models.Settings{InitialBalance: 59000, InitialTradeValue: 2360, PercentTarget: 12}

	stats := ComputeStats(nil, settings, 2360)

	assert.Equal(t, Stats{
		TotalTrades:    0,
		WinRate:        0,
		TotalProfit:    0,
		TotalROI:       0,
		TotalBalance:   59000,
		NextTradeValue: 2360,
	}, stats)
}

func TestComputeStats(t *testing.T) {
	settings := models.Settings{InitialBalance: 10000, InitialTradeValue: 1000, PercentTarget: 10}
	trades := chain(1000, models.OutcomeProfit, models.OutcomeProfit, models.OutcomeLoss, models.OutcomeProfit)
	// 1000 -> 1100 (+100) -> 1210 (+110) -> 1089 (-121) -> 1197.9 (+108.9)
	current := models.CurrentTradeValue(trades, settings.InitialTradeValue)

	stats := ComputeStats(trades, settings, current)

	assert.Equal(t, 4, stats.TotalTrades)
	assert.InDelta(t, 75.0, stats.WinRate, 1e-9)
	assert.InDelta(t, 197.9, stats.TotalProfit, 1e-9)
	assert.InDelta(t, 1.979, stats.TotalROI, 1e-9)
	assert.InDelta(t, 10000-1000+1197.9+197.9, stats.TotalBalance, 1e-9)
	assert.InDelta(t, 1197.9, stats.NextTradeValue, 1e-9)
}

func TestComputeStatsZeroBalance(t *testing.T) {
	trades := chain(100, models.OutcomeProfit)
	stats := ComputeStats(trades, models.Settings{InitialBalance: 0, InitialTradeValue: 100}, 110)
	assert.Equal(t, 0.0, stats.TotalROI)
}

func TestComputeTrends(t *testing.T) {
	p, l := models.OutcomeProfit, models.OutcomeLoss

	testCases := []struct {
		name     string
		trades   []models.Trade
		expected Trends
	}{
		{
			name:     "No trades",
			trades:   nil,
			expected: Trends{},
		},
		{
			name:     "Single trade",
			trades:   chain(1000, p),
			expected: Trends{},
		},
		{
			name:     "No older window",
			trades:   chain(1000, p, p, l, p, p),
			expected: Trends{},
		},
		{
			name:   "Improving",
			trades: chain(1000, l, l, l, l, l, p, p, p, p, p),
			expected: Trends{
				BalanceTrend: TrendUp,
				WinRateTrend: TrendUp,
				ProfitTrend:  TrendUp,
			},
		},
		{
			name:   "Worsening",
			trades: chain(1000, p, p, p, p, p, l, l, l, l, l),
			expected: Trends{
				BalanceTrend: TrendDown,
				WinRateTrend: TrendDown,
				ProfitTrend:  TrendDown,
			},
		},
		{
			name:   "Short older window",
			trades: chain(1000, l, p, p, p, p, p),
			expected: Trends{
				BalanceTrend: TrendUp,
				WinRateTrend: TrendUp,
				ProfitTrend:  TrendUp,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ComputeTrends(tc.trades))
		})
	}
}

// Equal windows are reported as down, not as no change.
func TestComputeTrendsTieResolvesDown(t *testing.T) {
	var trades []models.Trade
	for i := 0; i < 10; i++ {
		outcome := models.OutcomeProfit
		if i%5 == 4 {
			outcome = models.OutcomeLoss
		}
		trades = append(trades, trade(fmt.Sprintf("2024-02-%02d", i+1), outcome, 1000, 10))
	}

	trends := ComputeTrends(trades)

	assert.Equal(t, TrendDown, trends.BalanceTrend)
	assert.Equal(t, TrendDown, trends.WinRateTrend)
	assert.Equal(t, TrendUp, trends.ProfitTrend)
}

func TestComputeTrendsZeroProfitIsDown(t *testing.T) {
	trades := []models.Trade{
		trade("2024-03-01", models.OutcomeLoss, 1000, 10),
		trade("2024-03-02", models.OutcomeProfit, 1000, 10),
		trade("2024-03-03", models.OutcomeProfit, 1000, 10),
		trade("2024-03-04", models.OutcomeLoss, 1000, 10),
		trade("2024-03-05", models.OutcomeLoss, 1000, 5),
		trade("2024-03-06", models.OutcomeLoss, 1000, 5),
	}
	assert.Equal(t, TrendDown, ComputeTrends(trades).ProfitTrend)
}

func TestComputeBreakdown(t *testing.T) {
	trades := chain(1000, models.OutcomeProfit, models.OutcomeLoss, models.OutcomeProfit)
	assert.Equal(t, Breakdown{Profits: 2, Losses: 1}, ComputeBreakdown(trades))
	assert.Equal(t, Breakdown{}, ComputeBreakdown(nil))
}
