package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"trading-journal/internal/dataio"
	"trading-journal/internal/tracker"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import trades from a CSV file",
	Long: `Import trades from a CSV file with Portuguese or English headers, such as
a file written by "journal export". Rows missing a date, pair or result are
skipped; each remaining row is stored on its own and a rejected row does not
stop the import.`,
	Args: cobra.ExactArgs(1),
	RunE: withSession(runImport),
}

var exportCmd = &cobra.Command{
	Use:   "export [file.csv]",
	Short: "Export trades to CSV",
	Long:  `Export trades to CSV. The file defaults to trades_<date>.csv; "-" writes to stdout.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  withSession(runExport),
}

var backupCmd = &cobra.Command{
	Use:   "backup [file.json]",
	Short: "Write a JSON backup of settings, trades and stats",
	Long:  `Write a JSON backup. The file defaults to trading_backup_<date>.json; "-" writes to stdout.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  withSession(runBackup),
}

var restoreCmd = &cobra.Command{
	Use:   "restore <file.json>",
	Short: "Add the trades of a JSON backup",
	Long:  `Add the trades of a backup as new records. Settings in the backup are not applied.`,
	Args:  cobra.ExactArgs(1),
	RunE:  withSession(runRestore),
}

func init() {
	rootCmd.AddCommand(importCmd, exportCmd, backupCmd, restoreCmd)
}

func runImport(cmd *cobra.Command, args []string, t *tracker.Tracker) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	res, err := t.Import(cmd.Context(), string(data))
	if err != nil {
		return err
	}
	return renderImport(cmd, res)
}

func runRestore(cmd *cobra.Command, args []string, t *tracker.Tracker) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	b, err := dataio.ReadBackup(f)
	if err != nil {
		return err
	}
	res, err := t.RestoreBackup(cmd.Context(), b)
	if err != nil {
		return err
	}
	return renderImport(cmd, res)
}

func renderImport(cmd *cobra.Command, res tracker.ImportResult) error {
	return render(cmd.OutOrStdout(), outputFmt, res, kvTable(
		[2]string{"Imported", strconv.Itoa(res.Success)},
		[2]string{"Failed", strconv.Itoa(res.Errors)},
		[2]string{"Skipped rows", strconv.Itoa(res.Skipped)},
	))
}

func runExport(cmd *cobra.Command, args []string, t *tracker.Tracker) error {
	return writeTo(cmd, args, dataio.ExportFileName(time.Now()), t.ExportCSV)
}

func runBackup(cmd *cobra.Command, args []string, t *tracker.Tracker) error {
	return writeTo(cmd, args, dataio.BackupFileName(time.Now()), func(w io.Writer) error {
		return t.WriteBackup(cmd.Context(), w)
	})
}

// writeTo runs write against the file named by args, name when args is empty,
// or stdout for "-".
func writeTo(cmd *cobra.Command, args []string, name string, write func(io.Writer) error) error {
	if len(args) > 0 {
		name = args[0]
	}
	if name == "-" {
		return write(cmd.OutOrStdout())
	}

	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Wrote", name)
	return nil
}
