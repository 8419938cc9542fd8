package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"trading-journal/internal/dataio"
	"trading-journal/internal/tracker"

	"go.uber.org/zap"
)

// SessionSource lists the live sessions.
type SessionSource interface {
	Each(fn func(t *tracker.Tracker))
}

// Sweeper drops expired sessions, signing them out.
type Sweeper interface {
	Sweep() int
}

// BackupJob writes the backup of every signed-in session to
// dir/<user id>/trading_backup_<date>.json. A later run on the same day
// overwrites the file.
func BackupJob(sessions SessionSource, dir string, now func() time.Time, logger *zap.Logger) func(context.Context) {
	return func(ctx context.Context) {
		written, failed := 0, 0
		sessions.Each(func(t *tracker.Tracker) {
			path, err := writeBackup(ctx, t, dir, now())
			if err != nil {
				failed++
				logger.Warn("Scheduled backup failed", zap.Error(err))
				return
			}
			if path != "" {
				written++
				logger.Debug("Backup written", zap.String("path", path))
			}
		})
		logger.Info("Scheduled backup finished", zap.Int("written", written), zap.Int("failed", failed))
	}
}

func writeBackup(ctx context.Context, t *tracker.Tracker, dir string, now time.Time) (string, error) {
	user := t.Snapshot().User
	if user == nil {
		return "", nil
	}
	b, err := t.Backup(ctx)
	if err != nil {
		return "", err
	}

	userDir := filepath.Join(dir, user.ID)
	if err := os.MkdirAll(userDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create backup dir: %w", err)
	}
	path := filepath.Join(userDir, dataio.BackupFileName(now))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	if err := dataio.WriteBackup(f, b); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close backup file: %w", err)
	}
	return path, nil
}

// SweepJob drops expired sessions.
func SweepJob(sessions Sweeper, logger *zap.Logger) func(context.Context) {
	return func(context.Context) {
		if n := sessions.Sweep(); n > 0 {
			logger.Info("Expired sessions dropped", zap.Int("count", n))
		}
	}
}
