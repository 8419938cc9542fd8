// Package tracker holds one user's journaling session and exposes the
// journal's commands as plain method calls.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"trading-journal/internal/journal"
	"trading-journal/internal/models"
	"trading-journal/internal/remote"
	"trading-journal/internal/trace"

	"go.uber.org/zap"
)

var (
	ErrNotSignedIn  = errors.New("not signed in")
	ErrUserNotFound = errors.New("user not found")
	ErrNoValidRows  = errors.New("no valid trades found in file")
)

// Config tunes a Tracker.
type Config struct {
	// Timeout bounds every remote call; zero disables it.
	Timeout time.Duration
	// Defaults seed a profile created on first access.
	Defaults models.Settings
}

// Tracker is the session context: the signed-in user, their settings, the
// chronological trade cache and the current view. The cache only changes
// after the remote side acknowledges a write.
//
// Commands are serialised by an internal mutex, so a Tracker may be shared by
// concurrent callers.
type Tracker struct {
	backend remote.Backend
	logger  *zap.Logger
	cfg     Config
	now     func() time.Time

	mu                sync.Mutex
	user              *remote.User
	profile           models.Profile
	settings          models.Settings
	trades            []models.Trade
	filter            journal.Filter
	sortKey           journal.SortKey
	currentTradeValue float64
}

func New(backend remote.Backend, cfg Config, logger *zap.Logger) *Tracker {
	if cfg.Defaults == (models.Settings{}) {
		cfg.Defaults = models.DefaultSettings()
	}
	t := &Tracker{
		backend:           backend,
		logger:            logger.Named("tracker"),
		cfg:               cfg,
		now:               time.Now,
		settings:          cfg.Defaults,
		sortKey:           journal.DefaultSortKey(),
		currentTradeValue: cfg.Defaults.InitialTradeValue,
	}
	backend.OnSessionChange(t.onSessionChange)
	return t
}

// onSessionChange runs inside backend calls, which are only made while t.mu
// is held.
func (t *Tracker) onSessionChange(event remote.SessionEvent, s *remote.Session) {
	t.logger.Debug("Session changed", zap.String("event", string(event)))
	switch event {
	case remote.SignedIn, remote.TokenRefreshed:
		if s != nil {
			u := s.User
			t.user = &u
		}
	case remote.SignedOut:
		t.clear()
	}
}

func (t *Tracker) clear() {
	t.user = nil
	t.profile = models.Profile{}
	t.settings = t.cfg.Defaults
	t.trades = nil
	t.filter = journal.Filter{}
	t.sortKey = journal.DefaultSortKey()
	t.currentTradeValue = t.cfg.Defaults.InitialTradeValue
}

// call derives the context of one remote call.
func (t *Tracker) call(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.cfg.Timeout)
}

func (t *Tracker) requireUser() (*remote.User, error) {
	if t.user == nil {
		return nil, ErrNotSignedIn
	}
	return t.user, nil
}

// Resume adopts an existing remote session, if any, and loads its data.
// It reports whether a session was found.
func (t *Tracker) Resume(ctx context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cctx, cancel := t.call(ctx)
	s, err := t.backend.GetSession(cctx)
	cancel()
	if err != nil {
		return false, fmt.Errorf("failed to get session: %w", err)
	}
	if s == nil {
		return false, nil
	}
	u := s.User
	t.user = &u
	return true, t.load(ctx)
}

// SignUpResult tells the caller how far sign-up got.
type SignUpResult struct {
	// Created is set once the account exists.
	Created bool `json:"created"`
	// SignedIn is false when the account must be confirmed or the automatic
	// sign-in failed; the user should sign in manually.
	SignedIn bool `json:"signed_in"`
}

// SignUp creates the account, its profile with default settings, and then
// tries to sign in.
func (t *Tracker) SignUp(ctx context.Context, email, username, password string) (SignUpResult, error) {
	if err := journal.ValidateSignup(email, username, password); err != nil {
		return SignUpResult{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ctx, span := trace.StartSpan(ctx, "tracker.SignUp")
	defer span.End()

	cctx, cancel := t.call(ctx)
	user, err := t.backend.SignUp(cctx, email, password, map[string]any{"username": username})
	cancel()
	if err != nil {
		return SignUpResult{}, fmt.Errorf("failed to sign up: %w", err)
	}
	if user == nil {
		return SignUpResult{Created: true}, nil
	}

	cctx, cancel = t.call(ctx)
	err = t.backend.UpsertProfile(cctx, models.NewProfile(user.ID, email, username, t.cfg.Defaults))
	cancel()
	if err != nil {
		return SignUpResult{Created: true}, &ProfileError{Err: err}
	}

	cctx, cancel = t.call(ctx)
	s, err := t.backend.SignInWithPassword(cctx, email, password)
	cancel()
	if err != nil {
		t.logger.Info("Automatic sign-in after sign-up failed", zap.Error(err))
		return SignUpResult{Created: true}, nil
	}

	u := s.User
	t.user = &u
	t.logger.Info("Signed up", zap.String("user_id", u.ID))
	if err := t.load(ctx); err != nil {
		return SignUpResult{Created: true, SignedIn: true}, err
	}
	return SignUpResult{Created: true, SignedIn: true}, nil
}

// Login resolves username to an e-mail and signs in with password.
func (t *Tracker) Login(ctx context.Context, username, password string) error {
	if err := journal.ValidateLogin(username, password); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ctx, span := trace.StartSpan(ctx, "tracker.Login")
	defer span.End()

	cctx, cancel := t.call(ctx)
	email, err := t.backend.LookupEmailByUsername(cctx, username)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to look up username: %w", err)
	}
	if email == "" {
		return ErrUserNotFound
	}

	cctx, cancel = t.call(ctx)
	s, err := t.backend.SignInWithPassword(cctx, email, password)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to sign in: %w", err)
	}

	u := s.User
	t.user = &u
	t.logger.Info("Signed in", zap.String("user_id", u.ID))
	return t.load(ctx)
}

// Logout ends the remote session. Local state is cleared even when the remote
// call fails.
func (t *Tracker) Logout(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cctx, cancel := t.call(ctx)
	err := t.backend.SignOut(cctx)
	cancel()
	t.clear()
	if err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

// Load fetches the profile (creating it when missing) and the trade history.
func (t *Tracker) Load(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx)
}

func (t *Tracker) load(ctx context.Context) error {
	user, err := t.requireUser()
	if err != nil {
		return err
	}

	ctx, span := trace.StartSpan(ctx, "tracker.Load")
	defer span.End()

	t.profile = t.ensureProfile(ctx, user)
	t.settings = t.profile.Settings()

	if err := t.reloadTrades(ctx, user); err != nil {
		t.currentTradeValue = models.CurrentTradeValue(t.trades, t.settings.InitialTradeValue)
		return err
	}
	return nil
}

// ensureProfile returns the user's profile, creating it with defaults when
// missing. Any failure falls back to an unsaved default profile.
func (t *Tracker) ensureProfile(ctx context.Context, user *remote.User) models.Profile {
	fallback := models.NewProfile(user.ID, user.Email, "", t.cfg.Defaults)

	cctx, cancel := t.call(ctx)
	p, err := t.backend.GetProfile(cctx, user.ID)
	cancel()
	if err == nil {
		return p
	}
	if !errors.Is(err, remote.ErrNotFound) {
		t.logger.Warn("Failed to read profile, using defaults", zap.String("user_id", user.ID), zap.Error(err))
		return fallback
	}

	cctx, cancel = t.call(ctx)
	err = t.backend.UpsertProfile(cctx, fallback)
	cancel()
	if err != nil {
		t.logger.Warn("Failed to create profile, using defaults", zap.String("user_id", user.ID), zap.Error(err))
		return fallback
	}
	t.logger.Info("Created default profile", zap.String("user_id", user.ID))
	return fallback
}

func (t *Tracker) reloadTrades(ctx context.Context, user *remote.User) error {
	cctx, cancel := t.call(ctx)
	trades, err := t.backend.ListByUser(cctx, user.ID)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to load trades: %w", err)
	}
	t.trades = trades
	t.currentTradeValue = models.CurrentTradeValue(t.trades, t.settings.InitialTradeValue)
	return nil
}

// SaveSettings validates and stores s. With no trades the suggested trade
// value follows the new initial trade value.
func (t *Tracker) SaveSettings(ctx context.Context, s models.Settings) error {
	if err := journal.ValidateSettings(s); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	user, err := t.requireUser()
	if err != nil {
		return err
	}

	cctx, cancel := t.call(ctx)
	err = t.backend.SaveSettings(cctx, user.ID, s)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	t.settings = s
	t.profile.BankInitial = s.InitialBalance
	t.profile.InitialTradeValue = s.InitialTradeValue
	t.profile.PercentTarget = s.PercentTarget
	t.currentTradeValue = models.CurrentTradeValue(t.trades, s.InitialTradeValue)
	return nil
}

// AddTrade validates in, derives result and new value, stores the trade and
// inserts it into the cache at its chronological position.
func (t *Tracker) AddTrade(ctx context.Context, in journal.TradeInput) (models.Trade, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	user, err := t.requireUser()
	if err != nil {
		return models.Trade{}, err
	}
	if err := journal.ValidateTrade(journal.NormalizeTradeInput(in), t.now()); err != nil {
		return models.Trade{}, err
	}

	ctx, span := trace.StartSpan(ctx, "tracker.AddTrade")
	defer span.End()

	cctx, cancel := t.call(ctx)
	stored, err := t.backend.Insert(cctx, journal.BuildTrade(user.ID, in))
	cancel()
	if err != nil {
		return models.Trade{}, fmt.Errorf("failed to add trade: %w", err)
	}

	// After every trade of the same or an earlier date.
	i, _ := slices.BinarySearchFunc(t.trades, stored.TradeDate, func(tr models.Trade, date string) int {
		if tr.TradeDate <= date {
			return -1
		}
		return 1
	})
	t.trades = slices.Insert(t.trades, i, stored)
	t.currentTradeValue = models.CurrentTradeValue(t.trades, t.settings.InitialTradeValue)

	t.logger.Info("Trade added", zap.String("id", stored.ID), zap.String("pair", stored.Pair), zap.Float64("result", stored.Result))
	return stored, nil
}

// RemoveTrade deletes the trade with id.
func (t *Tracker) RemoveTrade(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	user, err := t.requireUser()
	if err != nil {
		return err
	}

	cctx, cancel := t.call(ctx)
	err = t.backend.Delete(cctx, id, user.ID)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to remove trade: %w", err)
	}

	t.trades = slices.DeleteFunc(t.trades, func(tr models.Trade) bool { return tr.ID == id })
	t.currentTradeValue = models.CurrentTradeValue(t.trades, t.settings.InitialTradeValue)
	t.logger.Info("Trade removed", zap.String("id", id))
	return nil
}

// ResetAll deletes every trade of the user.
func (t *Tracker) ResetAll(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	user, err := t.requireUser()
	if err != nil {
		return err
	}

	cctx, cancel := t.call(ctx)
	err = t.backend.DeleteAllByUser(cctx, user.ID)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to reset trades: %w", err)
	}

	t.trades = nil
	t.currentTradeValue = t.settings.InitialTradeValue
	t.logger.Info("All trades removed", zap.String("user_id", user.ID))
	return nil
}
