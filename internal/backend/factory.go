package backend

import (
	"fmt"

	"trading-journal/internal/config"
	"trading-journal/internal/database"
	"trading-journal/internal/remote"
	"trading-journal/internal/store"

	"go.uber.org/zap"
)

const (
	KindLocal = "local"
	KindREST  = "rest"
)

// NewFactory returns a constructor of per-session backends for cfg.Backend.Kind
// and a function releasing what the backends share.
func NewFactory(cfg *config.Config, logger *zap.Logger) (remote.Factory, func() error, error) {
	switch cfg.Backend.Kind {
	case KindREST:
		if cfg.Backend.URL == "" {
			return nil, nil, fmt.Errorf("backend.url is required for the %s backend", KindREST)
		}
		base := NewRestClient(&cfg.Backend, logger.Named("rest"))
		logger.Info("Using REST backend", zap.String("url", cfg.Backend.URL))
		return func() remote.Backend { return base.Fork() }, func() error { return nil }, nil

	case KindLocal, "":
		db, err := database.NewDatabase(&cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open local store: %w", err)
		}
		logger.Info("Using local backend", zap.String("dsn", cfg.Database.DSN))
		storeLogger := logger.Named("store")
		return func() remote.Backend { return store.NewClient(db, storeLogger) },
			func() error { return database.Close(db) }, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
	}
}
