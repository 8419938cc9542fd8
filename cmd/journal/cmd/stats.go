package cmd

import (
	"fmt"
	"strconv"

	"trading-journal/internal/journal"
	"trading-journal/internal/tracker"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show balance, win rate, ROI and recent trends",
	Args:  cobra.NoArgs,
	RunE:  withSession(runStats),
}

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Draw the balance after each trade",
	Args:  cobra.NoArgs,
	RunE:  withSession(runChart),
}

func init() {
	rootCmd.AddCommand(statsCmd, chartCmd)
}

type statsReport struct {
	Stats     journal.Stats     `json:"stats" yaml:"stats"`
	Trends    journal.Trends    `json:"trends" yaml:"trends"`
	Breakdown journal.Breakdown `json:"breakdown" yaml:"breakdown"`
}

func runStats(cmd *cobra.Command, _ []string, t *tracker.Tracker) error {
	r := statsReport{Stats: t.Stats(), Trends: t.Trends(), Breakdown: t.Breakdown()}
	s := r.Stats
	return render(cmd.OutOrStdout(), outputFmt, r, kvTable(
		[2]string{"Trades", strconv.Itoa(s.TotalTrades)},
		[2]string{"Win rate", fmt.Sprintf("%.2f%% (%s)", s.WinRate, trend(r.Trends.WinRateTrend))},
		[2]string{"Total profit", fmt.Sprintf("%s (%s)", money(s.TotalProfit), trend(r.Trends.ProfitTrend))},
		[2]string{"ROI", fmt.Sprintf("%.2f%%", s.TotalROI)},
		[2]string{"Balance", fmt.Sprintf("%s (%s)", money(s.TotalBalance), trend(r.Trends.BalanceTrend))},
		[2]string{"Next trade value", money(s.NextTradeValue)},
		[2]string{"Profits / losses", fmt.Sprintf("%d / %d", r.Breakdown.Profits, r.Breakdown.Losses)},
	))
}

func runChart(cmd *cobra.Command, _ []string, t *tracker.Tracker) error {
	points := t.BalanceSeries()
	return render(cmd.OutOrStdout(), outputFmt, points, chartTable(points))
}

func trend(t journal.Trend) string {
	if t == journal.TrendNone {
		return "-"
	}
	return string(t)
}
