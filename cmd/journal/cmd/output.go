package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"trading-journal/internal/journal"
	"trading-journal/internal/models"

	"gopkg.in/yaml.v3"
)

const chartWidth = 40

// render writes v as JSON or YAML, or calls table for the human format.
func render(w io.Writer, format string, v any, table func(tw *tabwriter.Writer)) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func tradeTable(trades []models.Trade) func(tw *tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tDATE\tPAIR\tPOSITION\tVALUE\tTYPE\tPERCENT\tRESULT\tNEW VALUE\tNOTES")
		for _, t := range trades {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%g%%\t%s\t%s\t%s\n",
				t.ID, t.TradeDate, t.Pair, t.Position, money(t.ValueTrade), t.Type,
				t.SignedPercent(), money(t.Result), money(t.NewValue), t.Observations)
		}
	}
}

func kvTable(rows ...[2]string) func(tw *tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1])
		}
	}
}

// chartTable draws the balance series as horizontal bars scaled between the
// lowest and highest balance.
func chartTable(points []journal.BalancePoint) func(tw *tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, p := range points {
			lo = math.Min(lo, p.Value)
			hi = math.Max(hi, p.Value)
		}
		for _, p := range points {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Label, money(p.Value), bar(p.Value, lo, hi))
		}
	}
}

func bar(v, lo, hi float64) string {
	n := chartWidth
	if hi > lo {
		n = 1 + int(math.Round((v-lo)/(hi-lo)*float64(chartWidth-1)))
	}
	return strings.Repeat("#", n)
}
