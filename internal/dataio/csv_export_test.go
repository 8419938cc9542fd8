package dataio

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"trading-journal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportTrades() []models.Trade {
	return []models.Trade{
		{
			ID: "1", TradeDate: "2024-01-15", Pair: "BTCUSDT", Position: models.PositionLong,
			ValueTrade: 1000, Type: models.OutcomeProfit, Percent: 10, Result: 100, NewValue: 1100,
			Observations: "test, note",
		},
		{
			ID: "2", TradeDate: "2024-01-16", Pair: "ETHUSDT", Position: models.PositionShort,
			ValueTrade: 500, Type: models.OutcomeLoss, Percent: 20, Result: -100, NewValue: 400,
			Observations: `said "stop"`,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	t.Run("Rows", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, exportTrades()))

		expected := bom + exportedHeader +
			"\n2024-01-15,BTCUSDT,1000,LONG,Lucro,10%,100,1100,\"test, note\"" +
			"\n2024-01-16,ETHUSDT,500,SHORT,Prejuízo,-20%,-100,400,\"said \"\"stop\"\"\""
		assert.Equal(t, expected, buf.String())
	})

	t.Run("Empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, nil))
		assert.Equal(t, bom+exportedHeader, buf.String())
	})

	t.Run("Empty observations quoted", func(t *testing.T) {
		var buf bytes.Buffer
		tr := exportTrades()[0]
		tr.Observations = ""
		require.NoError(t, WriteCSV(&buf, []models.Trade{tr}))
		assert.True(t, strings.HasSuffix(buf.String(), `,1100,""`))
	})
}

func TestExportRoundTrip(t *testing.T) {
	trades := exportTrades()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, trades))

	res := ParseCSV(buf.String())
	require.Len(t, res.Trades, len(trades))
	assert.Zero(t, res.Skipped)

	for i, got := range res.Trades {
		want := trades[i]
		assert.Equal(t, want.TradeDate, got.TradeDate)
		assert.Equal(t, want.Pair, got.Pair)
		assert.Equal(t, want.Position, got.Position)
		assert.Equal(t, want.Type, got.Type)
		assert.Equal(t, want.Percent, got.Percent)
		assert.Equal(t, want.Result, got.Result)
		assert.Equal(t, want.ValueTrade, got.ValueTrade)
		assert.Equal(t, want.NewValue, got.NewValue)
		assert.Equal(t, want.Observations, got.Observations)
	}
}

func TestExportFileName(t *testing.T) {
	now := time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "trades_2024-03-09.csv", ExportFileName(now))
}
