package dataio

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"trading-journal/internal/journal"
	"trading-journal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackup(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	settings := models.DefaultSettings()
	trades := exportTrades()
	stats := journal.ComputeStats(trades, settings, models.CurrentTradeValue(trades, settings.InitialTradeValue))

	b := NewBackup(now, BackupUser{Email: "ana@example.com", Username: "ana"}, settings, trades, stats)

	var buf bytes.Buffer
	require.NoError(t, WriteBackup(&buf, b))

	t.Run("Layout", func(t *testing.T) {
		var doc map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
		assert.Equal(t, "1.0", doc["version"])
		assert.Equal(t, "2024-05-01T12:00:00Z", doc["timestamp"])

		s := doc["settings"].(map[string]any)
		assert.Equal(t, 59000.0, s["bank_initial"])
		assert.Equal(t, 2360.0, s["initial_trade_value"])
		assert.Equal(t, 12.0, s["percent_target"])

		st := doc["stats"].(map[string]any)
		assert.Contains(t, st, "totalTrades")
		assert.Contains(t, st, "nextTradeValue")

		assert.Len(t, doc["trades"], 2)
	})

	t.Run("Read back", func(t *testing.T) {
		got, err := ReadBackup(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, b.User, got.User)
		assert.Equal(t, b.Settings, got.Settings)
		assert.Equal(t, b.Stats, got.Stats)
		assert.Equal(t, len(trades), len(got.Trades))
		assert.True(t, now.Equal(got.Timestamp))
	})

	t.Run("Empty trades encode as array", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, WriteBackup(&out, NewBackup(now, BackupUser{}, settings, nil, journal.Stats{})))
		assert.Contains(t, out.String(), `"trades": []`)
	})
}

func TestReadBackupRejectsVersion(t *testing.T) {
	_, err := ReadBackup(strings.NewReader(`{"version":"2.0","trades":[]}`))
	assert.Error(t, err)

	_, err = ReadBackup(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestBackupFileName(t *testing.T) {
	now := time.Date(2024, 12, 31, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "trading_backup_2024-12-31.json", BackupFileName(now))
}
