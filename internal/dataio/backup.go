package dataio

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"trading-journal/internal/journal"
	"trading-journal/internal/models"
)

// BackupVersion is the format version written to every backup.
const BackupVersion = "1.0"

// Backup is the JSON document produced by a full data backup.
type Backup struct {
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	User      BackupUser      `json:"user"`
	Settings  models.Settings `json:"settings"`
	Trades    []models.Trade  `json:"trades"`
	Stats     journal.Stats   `json:"stats"`
}

type BackupUser struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// NewBackup assembles a backup taken at now.
func NewBackup(now time.Time, user BackupUser, settings models.Settings, trades []models.Trade, stats journal.Stats) Backup {
	if trades == nil {
		trades = []models.Trade{}
	}
	return Backup{
		Version:   BackupVersion,
		Timestamp: now.UTC(),
		User:      user,
		Settings:  settings,
		Trades:    trades,
		Stats:     stats,
	}
}

// WriteBackup encodes b as indented JSON.
func WriteBackup(w io.Writer, b Backup) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	return nil
}

// ReadBackup decodes a backup previously written by WriteBackup.
func ReadBackup(r io.Reader) (Backup, error) {
	var b Backup
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return Backup{}, fmt.Errorf("failed to decode backup: %w", err)
	}
	if b.Version != BackupVersion {
		return Backup{}, fmt.Errorf("unsupported backup version %q", b.Version)
	}
	return b, nil
}

// BackupFileName is the download name of a backup made at now.
func BackupFileName(now time.Time) string {
	return "trading_backup_" + now.UTC().Format(models.DateLayout) + ".json"
}
