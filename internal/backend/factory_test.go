package backend

import (
	"context"
	"path/filepath"
	"testing"

	"trading-journal/internal/config"
	"trading-journal/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewFactory(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		cfg := &config.Config{
			Backend:  config.Backend{Kind: KindLocal},
			Database: config.Database{DSN: filepath.Join(t.TempDir(), "journal.db")},
		}
		newBackend, closeFn, err := NewFactory(cfg, zap.NewNop())
		require.NoError(t, err)
		defer closeFn()

		a, b := newBackend(), newBackend()
		assert.IsType(t, &store.Client{}, a)
		assert.NotSame(t, a, b)

		// The schema is ready as soon as the factory returns.
		ctx := context.Background()
		_, err = a.SignUp(ctx, "ana@example.com", "secret123", map[string]any{"username": "ana"})
		require.NoError(t, err)
		email, err := b.LookupEmailByUsername(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, email)
	})

	t.Run("rest", func(t *testing.T) {
		cfg := &config.Config{Backend: config.Backend{
			Kind: KindREST, URL: "http://localhost:54321", AnonKey: "anon", RateLimit: 10, RateLimitBurst: 5,
		}}
		newBackend, closeFn, err := NewFactory(cfg, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, closeFn())

		a, ok := newBackend().(*RestClient)
		require.True(t, ok)
		b := newBackend().(*RestClient)
		assert.NotSame(t, a, b)
		assert.Same(t, a.limiter, b.limiter, "sessions share one rate limiter")
		assert.Same(t, a.client, b.client)
	})

	t.Run("rest without url", func(t *testing.T) {
		_, _, err := NewFactory(&config.Config{Backend: config.Backend{Kind: KindREST}}, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, _, err := NewFactory(&config.Config{Backend: config.Backend{Kind: "ftp"}}, zap.NewNop())
		assert.EqualError(t, err, `unknown backend kind "ftp"`)
	})
}
