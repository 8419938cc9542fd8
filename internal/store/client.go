// Package store is a self-hosted remote collaborator backed by gorm. It keeps
// its own users table and plays the role of the hosted backend for offline
// use and tests.
package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"trading-journal/internal/models"
	"trading-journal/internal/remote"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const minPasswordLength = 6

var (
	errInvalidCredentials = &remote.Error{Status: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials"}
	errAlreadyRegistered  = &remote.Error{Status: http.StatusUnprocessableEntity, Code: "user_already_exists", Message: "User already registered"}
	errWeakPassword       = &remote.Error{Status: http.StatusUnprocessableEntity, Code: "weak_password", Message: "Password should be at least 6 characters"}
	errForbidden          = &remote.Error{Status: http.StatusForbidden, Code: "42501", Message: "permission denied for another user's rows"}
)

// Client implements remote.Backend on a gorm database for one client session.
// Every row access is limited to the signed-in user.
type Client struct {
	db     *gorm.DB
	logger *zap.Logger
	cost   int
	now    func() time.Time

	mu        sync.Mutex
	session   *remote.Session
	listeners []remote.SessionListener
}

// ensure Client implements the interface
var _ remote.Backend = (*Client)(nil)

func NewClient(db *gorm.DB, logger *zap.Logger) *Client {
	return &Client{
		db:     db,
		logger: logger,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
}

// --- auth ---

func (c *Client) GetSession(_ context.Context) (*remote.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session, nil
}

// SignUp creates the account and signs it in; the store needs no e-mail
// confirmation.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*remote.User, error) {
	if len(password) < minPasswordLength {
		return nil, errWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := models.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		CreatedAt:    c.now(),
	}
	if name, ok := metadata["username"].(string); ok {
		u.Username = name
	}

	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("email = ?", u.Email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return errAlreadyRegistered
		}
		return tx.Create(&u).Error
	})
	if err != nil {
		if errors.Is(err, errAlreadyRegistered) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	user := remote.User{ID: u.ID, Email: u.Email, Username: u.Username}
	c.logger.Info("Account created", zap.String("user_id", user.ID))
	c.setSession(remote.SignedIn, c.newSession(user))
	return &user, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*remote.Session, error) {
	var u models.User
	err := c.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, errInvalidCredentials
	}

	s := c.newSession(remote.User{ID: u.ID, Email: u.Email, Username: u.Username})
	c.setSession(remote.SignedIn, s)
	return s, nil
}

func (c *Client) newSession(u remote.User) *remote.Session {
	return &remote.Session{AccessToken: uuid.NewString(), User: u}
}

func (c *Client) SignOut(_ context.Context) error {
	c.mu.Lock()
	active := c.session != nil
	c.mu.Unlock()
	if active {
		c.setSession(remote.SignedOut, nil)
	}
	return nil
}

func (c *Client) OnSessionChange(fn remote.SessionListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Client) setSession(event remote.SessionEvent, s *remote.Session) {
	c.mu.Lock()
	c.session = s
	listeners := append([]remote.SessionListener(nil), c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(event, s)
	}
}

// LookupEmailByUsername resolves a username through the profiles table.
func (c *Client) LookupEmailByUsername(ctx context.Context, username string) (string, error) {
	var p models.Profile
	err := c.db.WithContext(ctx).Where("username = ?", username).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up username: %w", err)
	}
	if p.Email == nil {
		return "", nil
	}
	return *p.Email, nil
}

// authorize checks that userID is the signed-in user.
func (c *Client) authorize(userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return remote.ErrNoSession
	}
	if c.session.User.ID != userID {
		return errForbidden
	}
	return nil
}

// --- profiles ---

func (c *Client) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	if err := c.authorize(userID); err != nil {
		return models.Profile{}, err
	}

	var p models.Profile
	err := c.db.WithContext(ctx).Where("id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Profile{}, &remote.Error{Status: http.StatusNotAcceptable, Code: remote.CodeNoRows, Message: "no profile for user"}
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// UpsertProfile inserts p or overwrites the row with the same id.
func (c *Client) UpsertProfile(ctx context.Context, p models.Profile) error {
	if err := c.authorize(p.ID); err != nil {
		return err
	}

	p.UpdatedAt = c.now()
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&p).Error
	if err != nil {
		return c.writeError("failed to upsert profile", err)
	}
	return nil
}

func (c *Client) SaveSettings(ctx context.Context, userID string, s models.Settings) error {
	if err := c.authorize(userID); err != nil {
		return err
	}

	err := c.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", userID).Updates(map[string]any{
		"bank_initial":        s.InitialBalance,
		"initial_trade_value": s.InitialTradeValue,
		"percent_target":      s.PercentTarget,
		"updated_at":          c.now(),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// writeError reports unique violations the way the hosted backend does.
func (c *Client) writeError(msg string, err error) error {
	if remote.IsDuplicate(err) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return &remote.Error{Status: http.StatusConflict, Code: "23505", Message: "duplicate key value violates unique constraint: " + err.Error()}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// --- trades ---

func (c *Client) ListByUser(ctx context.Context, userID string) ([]models.Trade, error) {
	if err := c.authorize(userID); err != nil {
		return nil, err
	}

	var trades []models.Trade
	err := c.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("trade_date asc").
		Order("id asc").
		Find(&trades).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}

// Insert assigns a ULID, so trades of the same day keep insertion order.
func (c *Client) Insert(ctx context.Context, t models.Trade) (models.Trade, error) {
	if err := c.authorize(t.UserID); err != nil {
		return models.Trade{}, err
	}

	t.ID = ulid.Make().String()
	t.CreatedAt = c.now()
	if err := c.db.WithContext(ctx).Create(&t).Error; err != nil {
		return models.Trade{}, fmt.Errorf("failed to insert trade: %w", err)
	}
	return t, nil
}

func (c *Client) Delete(ctx context.Context, id, userID string) error {
	if err := c.authorize(userID); err != nil {
		return err
	}

	err := c.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Trade{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete trade: %w", err)
	}
	return nil
}

func (c *Client) DeleteAllByUser(ctx context.Context, userID string) error {
	if err := c.authorize(userID); err != nil {
		return err
	}

	err := c.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Trade{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete trades: %w", err)
	}
	return nil
}
