package cmd

import (
	"errors"
	"fmt"
	"time"

	"trading-journal/internal/journal"
	"trading-journal/internal/models"
	"trading-journal/internal/tracker"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a trade",
	Long: `Record a closed trade. The trade value defaults to the suggested value of
the next trade, which compounds from the last trade's new value.`,
	Args: cobra.NoArgs,
	RunE: withSession(runAdd),
}

var rmCmd = &cobra.Command{
	Use:   "rm <trade-id>...",
	Short: "Delete trades",
	Args:  cobra.MinimumNArgs(1),
	RunE:  withSession(runRemove),
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List trades",
	Long: `List trades, newest first. --search matches the pair or the notes;
--type and --position accept "any".`,
	Args: cobra.NoArgs,
	RunE: withSession(runList),
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every trade of the signed-in user",
	Args:  cobra.NoArgs,
	RunE:  withSession(runReset),
}

var (
	addInput   journal.TradeInput
	listFilter journal.Filter
	listSort   journal.SortKey
	resetYes   bool
)

func init() {
	rootCmd.AddCommand(addCmd, rmCmd, listCmd, resetCmd)

	f := addCmd.Flags()
	f.StringVar(&addInput.TradeDate, "date", "", "trade date YYYY-MM-DD (default today)")
	f.StringVar(&addInput.Pair, "pair", "", "pair, e.g. BTCUSDT")
	f.Float64Var(&addInput.ValueTrade, "value", 0, "trade value (default the suggested next value)")
	f.StringVar((*string)(&addInput.Position), "position", string(models.PositionLong), "long or short")
	f.StringVar((*string)(&addInput.Type), "type", "", "profit or loss")
	f.Float64Var(&addInput.Percent, "percent", 0, "result in percent of the trade value")
	f.StringVar(&addInput.Observations, "notes", "", "observations")

	f = listCmd.Flags()
	f.StringVar(&listFilter.Search, "search", "", "text to look for in pair or notes")
	f.StringVar(&listFilter.Type, "type", journal.Any, "profit, loss or any")
	f.StringVar(&listFilter.Position, "position", journal.Any, "long, short or any")
	f.StringVar(&listSort.Field, "sort", journal.FieldTradeDate, "column to sort by")
	f.StringVar((*string)(&listSort.Order), "order", string(journal.Desc), "asc or desc")

	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "confirm deleting all trades")
}

func runAdd(cmd *cobra.Command, _ []string, t *tracker.Tracker) error {
	in := addInput
	if in.TradeDate == "" {
		in.TradeDate = time.Now().Format(models.DateLayout)
	}
	if in.ValueTrade == 0 {
		in.ValueTrade = t.CurrentTradeValue()
	}

	trade, err := t.AddTrade(cmd.Context(), in)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), outputFmt, trade, tradeTable([]models.Trade{trade}))
}

func runRemove(cmd *cobra.Command, args []string, t *tracker.Tracker) error {
	for _, id := range args {
		if err := t.RemoveTrade(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", id, err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Deleted", id)
	}
	return nil
}

func runList(cmd *cobra.Command, _ []string, t *tracker.Tracker) error {
	view, err := t.ViewWith(tracker.ViewQuery{Filter: listFilter, Sort: listSort.Field, Order: listSort.Order})
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), outputFmt, view.Trades, tradeTable(view.Trades))
}

func runReset(cmd *cobra.Command, _ []string, t *tracker.Tracker) error {
	if !resetYes {
		return errors.New("refusing to delete all trades without --yes")
	}
	if err := t.ResetAll(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "All trades deleted")
	return nil
}
