package journal

import "trading-journal/internal/models"

// Trend is a short-window direction indicator.
type Trend string

const (
	TrendNone Trend = ""
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
)

// trendWindow is the number of trades in each of the compared windows.
const trendWindow = 5

// Stats holds the aggregate metrics of a trade history.
type Stats struct {
	TotalTrades    int     `json:"totalTrades" yaml:"total_trades"`
	WinRate        float64 `json:"winRate" yaml:"win_rate"`
	TotalProfit    float64 `json:"totalProfit" yaml:"total_profit"`
	TotalROI       float64 `json:"totalROI" yaml:"total_roi"`
	TotalBalance   float64 `json:"totalBalance" yaml:"total_balance"`
	NextTradeValue float64 `json:"nextTradeValue" yaml:"next_trade_value"`
}

// Trends compares the latest trades against the ones right before them.
type Trends struct {
	BalanceTrend Trend `json:"balanceTrend" yaml:"balance_trend"`
	WinRateTrend Trend `json:"winRateTrend" yaml:"win_rate_trend"`
	ProfitTrend  Trend `json:"profitTrend" yaml:"profit_trend"`
}

// Breakdown counts wins and losses.
type Breakdown struct {
	Profits int `json:"profits" yaml:"profits"`
	Losses  int `json:"losses" yaml:"losses"`
}

// ComputeStats calculates the aggregate metrics for trades.
func ComputeStats(trades []models.Trade, settings models.Settings, currentTradeValue float64) Stats {
	total := len(trades)
	if total == 0 {
		return Stats{
			TotalBalance:   settings.InitialBalance,
			NextTradeValue: settings.InitialTradeValue,
		}
	}

	stats := Stats{TotalTrades: total, NextTradeValue: currentTradeValue}
	stats.WinRate = winRate(trades)
	for _, t := range trades {
		stats.TotalProfit += t.Result
	}
	if settings.InitialBalance > 0 {
		stats.TotalROI = stats.TotalProfit / settings.InitialBalance * 100
	}
	stats.TotalBalance = settings.InitialBalance - settings.InitialTradeValue + currentTradeValue + stats.TotalProfit
	return stats
}

// ComputeTrends compares the last five trades with the five before them.
// trades must be in chronological order. With fewer than two trades, or no
// older window, every trend is TrendNone. Ties resolve to TrendDown.
func ComputeTrends(trades []models.Trade) Trends {
	if len(trades) < 2 {
		return Trends{}
	}

	n := len(trades)
	recent := trades[max(0, n-trendWindow):]
	older := trades[max(0, n-2*trendWindow):max(0, n-trendWindow)]
	if len(older) == 0 {
		return Trends{}
	}

	recentProfit := sumResults(recent)
	olderProfit := sumResults(older)

	return Trends{
		BalanceTrend: direction(recentProfit > olderProfit),
		WinRateTrend: direction(winRate(recent) > winRate(older)),
		ProfitTrend:  direction(recentProfit > 0),
	}
}

// ComputeBreakdown counts profitable and losing trades.
func ComputeBreakdown(trades []models.Trade) Breakdown {
	var b Breakdown
	for _, t := range trades {
		switch t.Type {
		case models.OutcomeProfit:
			b.Profits++
		case models.OutcomeLoss:
			b.Losses++
		}
	}
	return b
}

func winRate(trades []models.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.Type == models.OutcomeProfit {
			wins++
		}
	}
	return float64(wins) / float64(len(trades)) * 100
}

func sumResults(trades []models.Trade) float64 {
	var sum float64
	for _, t := range trades {
		sum += t.Result
	}
	return sum
}

func direction(up bool) Trend {
	if up {
		return TrendUp
	}
	return TrendDown
}
