// Package remote defines the contract of the remote collaborator that stores
// users, profiles and trades for the journal.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trading-journal/internal/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoSession is returned by calls that need a signed-in user.
	ErrNoSession = errors.New("no active session")
)

// CodeNoRows is the PostgREST code for "no row matched a single-object request".
const CodeNoRows = "PGRST116"

type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

// Session is an authenticated session on the remote side.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         User
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// SessionEvent is a session state change.
type SessionEvent string

const (
	SignedIn       SessionEvent = "SIGNED_IN"
	SignedOut      SessionEvent = "SIGNED_OUT"
	TokenRefreshed SessionEvent = "TOKEN_REFRESHED"
)

// SessionListener receives session changes. session is nil on SignedOut.
type SessionListener func(event SessionEvent, session *Session)

// Auth manages the current session of one client.
type Auth interface {
	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*Session, error)
	// SignUp creates an account. The returned user is nil when the backend
	// requires confirmation before the account can be used.
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	OnSessionChange(fn SessionListener)
	// LookupEmailByUsername resolves a username to its e-mail; "" when unknown.
	LookupEmailByUsername(ctx context.Context, username string) (string, error)
}

type Profiles interface {
	// GetProfile returns ErrNotFound when the user has no profile row.
	GetProfile(ctx context.Context, userID string) (models.Profile, error)
	UpsertProfile(ctx context.Context, p models.Profile) error
	SaveSettings(ctx context.Context, userID string, s models.Settings) error
}

type Trades interface {
	// ListByUser returns the user's trades ordered by trade date ascending.
	ListByUser(ctx context.Context, userID string) ([]models.Trade, error)
	// Insert stores t and returns the stored record with its id.
	Insert(ctx context.Context, t models.Trade) (models.Trade, error)
	Delete(ctx context.Context, id, userID string) error
	DeleteAllByUser(ctx context.Context, userID string) error
}

// Backend is a complete remote collaborator bound to one client session.
type Backend interface {
	Auth
	Profiles
	Trades
}

// Factory opens a Backend for a new client session.
type Factory func() Backend

// Error is a failure reported by the remote side.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("remote error %d: %s", e.Status, e.Message)
}

// Is reports a no-rows error as ErrNotFound.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.Code == CodeNoRows
}
