package tracker

import (
	"context"
	"fmt"
	"io"
	"iter"
	"slices"

	"trading-journal/internal/dataio"
	"trading-journal/internal/journal"
	"trading-journal/internal/models"
	"trading-journal/internal/remote"
	"trading-journal/internal/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ImportResult tallies a bulk insert. Skipped counts CSV rows that never
// became candidates; Errors counts candidates the remote side rejected.
type ImportResult struct {
	Success int `json:"success" yaml:"success"`
	Errors  int `json:"errors" yaml:"errors"`
	Skipped int `json:"skipped" yaml:"skipped"`
}

// Import parses a CSV document and stores every candidate, one at a time.
// A failed insert is counted and the next candidate is tried.
func (t *Tracker) Import(ctx context.Context, text string) (ImportResult, error) {
	parsed := dataio.ParseCSV(text)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.requireUser(); err != nil {
		return ImportResult{}, err
	}
	if len(parsed.Trades) == 0 {
		return ImportResult{Skipped: parsed.Skipped}, ErrNoValidRows
	}

	ctx, span := trace.StartSpan(ctx, "tracker.Import")
	defer span.End()

	res, err := t.insertAll(ctx, slices.Values(parsed.Trades))
	res.Skipped = parsed.Skipped
	span.SetAttributes(
		attribute.Int("import.success", res.Success),
		attribute.Int("import.errors", res.Errors),
		attribute.Int("import.skipped", res.Skipped),
	)
	return res, err
}

// RestoreBackup stores the trades of a backup as new records. Settings in
// the backup are left alone.
func (t *Tracker) RestoreBackup(ctx context.Context, b dataio.Backup) (ImportResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.requireUser(); err != nil {
		return ImportResult{}, err
	}
	return t.insertAll(ctx, slices.Values(b.Trades))
}

// insertAll inserts candidates sequentially and reloads the cache when at
// least one insert succeeded. The returned error only reports the reload.
func (t *Tracker) insertAll(ctx context.Context, candidates iter.Seq[models.Trade]) (ImportResult, error) {
	user, _ := t.requireUser()

	var res ImportResult
	for c := range candidates {
		c.ID = ""
		c.UserID = user.ID

		cctx, cancel := t.call(ctx)
		_, err := t.backend.Insert(cctx, c)
		cancel()
		if err != nil {
			res.Errors++
			t.logger.Warn("Failed to import trade",
				zap.String("trade_date", c.TradeDate),
				zap.String("pair", c.Pair),
				zap.String("reason", remote.Translate(err)),
			)
			continue
		}
		res.Success++
	}

	t.logger.Info("Import finished", zap.Int("success", res.Success), zap.Int("errors", res.Errors))
	if res.Success == 0 {
		return res, nil
	}
	if err := t.reloadTrades(ctx, user); err != nil {
		return res, err
	}
	return res, nil
}

// ExportCSV writes the chronological history as CSV.
func (t *Tracker) ExportCSV(w io.Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.requireUser(); err != nil {
		return err
	}
	return dataio.WriteCSV(w, t.trades)
}

// Backup collects user, settings, trades and stats. The profile is re-read so
// the backup carries the stored settings.
func (t *Tracker) Backup(ctx context.Context) (dataio.Backup, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	user, err := t.requireUser()
	if err != nil {
		return dataio.Backup{}, err
	}

	ctx, span := trace.StartSpan(ctx, "tracker.Backup")
	defer span.End()

	profile := t.ensureProfile(ctx, user)
	username := profile.UsernameOrEmpty()
	if username == "" {
		username = t.profile.UsernameOrEmpty()
	}

	stats := journal.ComputeStats(t.trades, t.settings, t.currentTradeValue)
	return dataio.NewBackup(
		t.now(),
		dataio.BackupUser{Email: user.Email, Username: username},
		profile.Settings(),
		slices.Clone(t.trades),
		stats,
	), nil
}

// WriteBackup encodes a fresh backup to w.
func (t *Tracker) WriteBackup(ctx context.Context, w io.Writer) error {
	b, err := t.Backup(ctx)
	if err != nil {
		return err
	}
	if err := dataio.WriteBackup(w, b); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}
