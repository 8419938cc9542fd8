package dataio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"trading-journal/internal/models"
)

// ExportHeader is the header row of exported CSV files.
var ExportHeader = []string{
	"Data", "Paridade", "Valor Trade", "Tipo", "Resultado",
	"PNL (%)", "PNL ($)", "Novo Valor", "Observações",
}

// WriteCSV writes trades in the export format: UTF-8 with a byte-order mark,
// rows joined by "\n" with no trailing newline.
func WriteCSV(w io.Writer, trades []models.Trade) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(bom + strings.Join(ExportHeader, ",")); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, t := range trades {
		if _, err := bw.WriteString("\n" + strings.Join(exportRow(t), ",")); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	return bw.Flush()
}

func exportRow(t models.Trade) []string {
	outcome := "Lucro"
	if t.Type != models.OutcomeProfit {
		outcome = "Prejuízo"
	}
	return []string{
		t.TradeDate,
		t.Pair,
		number(t.ValueTrade),
		strings.ToUpper(string(t.Position)),
		outcome,
		number(t.SignedPercent()) + "%",
		number(t.Result),
		number(t.NewValue),
		`"` + strings.ReplaceAll(t.Observations, `"`, `""`) + `"`,
	}
}

// number renders v in its shortest decimal form ("1100", "-55.5").
func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ExportFileName is the download name of a CSV export made at now.
func ExportFileName(now time.Time) string {
	return "trades_" + now.UTC().Format(models.DateLayout) + ".csv"
}
