package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"trading-journal/internal/config"
	"trading-journal/internal/models"
	"trading-journal/internal/remote"
	"trading-journal/internal/trace"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	authPath     = "/auth/v1"
	restPath     = "/rest/v1"
	objectAccept = "application/vnd.pgrst.object+json"
)

// RestClient talks to a Supabase-compatible backend: GoTrue for auth and
// PostgREST for the profiles and trades tables.
// It implements remote.Backend for a single client session.
type RestClient struct {
	client  *resty.Client
	anonKey string
	logger  *zap.Logger
	limiter *rate.Limiter
	timeout time.Duration
	now     func() time.Time

	mu        sync.Mutex
	session   *remote.Session
	listeners []remote.SessionListener
}

// ensure RestClient implements the interface
var _ remote.Backend = (*RestClient)(nil)

// NewRestClient creates a client for the backend at cfg.URL.
func NewRestClient(cfg *config.Backend, logger *zap.Logger) *RestClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetHeader("apikey", cfg.AnonKey).
		SetHeader("Content-Type", "application/json")

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:  client,
		anonKey: cfg.AnonKey,
		logger:  logger,
		limiter: limiter,
		timeout: cfg.Timeout,
		now:     time.Now,
	}
}

// Fork returns a client for another session. It shares the transport and
// the rate limiter with c but starts signed out.
func (c *RestClient) Fork() *RestClient {
	return &RestClient{
		client:  c.client,
		anonKey: c.anonKey,
		logger:  c.logger,
		limiter: c.limiter,
		timeout: c.timeout,
		now:     c.now,
	}
}

// apiError is the union of GoTrue and PostgREST error bodies.
type apiError struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Message          string          `json:"message"`
	Msg              string          `json:"msg"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func (e *apiError) toRemote(status int) *remote.Error {
	out := &remote.Error{Status: status, Code: e.ErrorCode}
	if out.Code == "" && len(e.Code) > 0 {
		var s string
		if json.Unmarshal(e.Code, &s) == nil {
			out.Code = s
		}
	}
	for _, m := range []string{e.Message, e.Msg, e.ErrorDescription, e.Error} {
		if m != "" {
			out.Message = m
			break
		}
	}
	return out
}

// doRequest executes one request with pacing and a per-call timeout.
// Failed requests are not retried.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	ctx, span := trace.StartSpan(ctx, "backend "+method+" "+url)
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
	resp, err := req.SetContext(ctx).SetError(&apiError{}).Execute(method, url)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))

	if resp.IsError() {
		body, _ := resp.Error().(*apiError)
		if body == nil {
			body = &apiError{}
		}
		rerr := body.toRemote(resp.StatusCode())
		if rerr.Message == "" {
			rerr.Message = strings.TrimSpace(resp.String())
		}
		c.logger.Debug("Request rejected", zap.String("url", url), zap.Int("status", rerr.Status), zap.String("code", rerr.Code))
		return nil, rerr
	}
	return resp, nil
}

// authed returns a request carrying the session token, or the anon key when
// signed out.
func (c *RestClient) authed(ctx context.Context) *resty.Request {
	token := c.anonKey
	if s, _ := c.GetSession(ctx); s != nil {
		token = s.AccessToken
	}
	return c.client.R().SetAuthToken(token)
}

// --- auth ---

type authUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (u authUser) toRemote() remote.User {
	user := remote.User{ID: u.ID, Email: u.Email}
	if name, ok := u.UserMetadata["username"].(string); ok {
		user.Username = name
	}
	return user
}

type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	User         authUser `json:"user"`
}

func (r *tokenResponse) session(now time.Time) *remote.Session {
	s := &remote.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		User:         r.User.toRemote(),
	}
	switch {
	case r.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return s
}

// GetSession returns the current session, refreshing it first when expired.
func (c *RestClient) GetSession(ctx context.Context) (*remote.Session, error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	if s == nil || !s.Expired(c.now()) {
		return s, nil
	}
	if s.RefreshToken == "" {
		c.setSession(remote.SignedOut, nil)
		return nil, nil
	}

	req := c.client.R().
		SetAuthToken(c.anonKey).
		SetQueryParam("grant_type", "refresh_token").
		SetBody(map[string]string{"refresh_token": s.RefreshToken}).
		SetResult(&tokenResponse{})

	resp, err := c.doRequest(ctx, http.MethodPost, authPath+"/token", req)
	if err != nil {
		c.logger.Warn("Failed to refresh session", zap.Error(err))
		c.setSession(remote.SignedOut, nil)
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	refreshed := resp.Result().(*tokenResponse).session(c.now())
	c.setSession(remote.TokenRefreshed, refreshed)
	return refreshed, nil
}

// SignUp creates an account with metadata stored on the auth user.
func (c *RestClient) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*remote.User, error) {
	// GoTrue answers with a bare user when confirmation is required and with a
	// session otherwise.
	var result struct {
		authUser
		User *authUser `json:"user"`
	}
	req := c.client.R().
		SetAuthToken(c.anonKey).
		SetBody(map[string]any{"email": email, "password": password, "data": metadata}).
		SetResult(&result)

	if _, err := c.doRequest(ctx, http.MethodPost, authPath+"/signup", req); err != nil {
		return nil, fmt.Errorf("failed to sign up: %w", err)
	}

	u := result.authUser
	if result.User != nil {
		u = *result.User
	}
	if u.ID == "" {
		return nil, nil
	}
	user := u.toRemote()
	c.logger.Info("Account created", zap.String("user_id", user.ID))
	return &user, nil
}

func (c *RestClient) SignInWithPassword(ctx context.Context, email, password string) (*remote.Session, error) {
	req := c.client.R().
		SetAuthToken(c.anonKey).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&tokenResponse{})

	resp, err := c.doRequest(ctx, http.MethodPost, authPath+"/token", req)
	if err != nil {
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}

	s := resp.Result().(*tokenResponse).session(c.now())
	c.setSession(remote.SignedIn, s)
	return s, nil
}

// SignOut revokes the session remotely and clears it locally. The local
// session is cleared even when the remote call fails.
func (c *RestClient) SignOut(ctx context.Context) error {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return nil
	}

	_, err := c.doRequest(ctx, http.MethodPost, authPath+"/logout", c.client.R().SetAuthToken(s.AccessToken))
	c.setSession(remote.SignedOut, nil)
	if err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

func (c *RestClient) OnSessionChange(fn remote.SessionListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *RestClient) setSession(event remote.SessionEvent, s *remote.Session) {
	c.mu.Lock()
	c.session = s
	listeners := append([]remote.SessionListener(nil), c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(event, s)
	}
}

// LookupEmailByUsername calls the get_email_by_username database function.
func (c *RestClient) LookupEmailByUsername(ctx context.Context, username string) (string, error) {
	var email *string
	req := c.client.R().
		SetAuthToken(c.anonKey).
		SetBody(map[string]string{"p_username": username}).
		SetResult(&email)

	if _, err := c.doRequest(ctx, http.MethodPost, restPath+"/rpc/get_email_by_username", req); err != nil {
		return "", fmt.Errorf("failed to look up username: %w", err)
	}
	if email == nil {
		return "", nil
	}
	return *email, nil
}

// --- profiles ---

type profileRow struct {
	ID                string  `json:"id"`
	Email             *string `json:"email,omitempty"`
	Username          *string `json:"username,omitempty"`
	BankInitial       float64 `json:"bank_initial"`
	InitialTradeValue float64 `json:"initial_trade_value"`
	PercentTarget     float64 `json:"percent_target"`
}

func (c *RestClient) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	var p models.Profile
	req := c.authed(ctx).
		SetHeader("Accept", objectAccept).
		SetQueryParam("id", "eq."+userID).
		SetQueryParam("select", "*").
		SetResult(&p)

	if _, err := c.doRequest(ctx, http.MethodGet, restPath+"/profiles", req); err != nil {
		return models.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

func (c *RestClient) UpsertProfile(ctx context.Context, p models.Profile) error {
	row := profileRow{
		ID:                p.ID,
		Email:             p.Email,
		Username:          p.Username,
		BankInitial:       p.BankInitial,
		InitialTradeValue: p.InitialTradeValue,
		PercentTarget:     p.PercentTarget,
	}
	req := c.authed(ctx).
		SetHeader("Prefer", "resolution=merge-duplicates,return=minimal").
		SetBody(row)

	if _, err := c.doRequest(ctx, http.MethodPost, restPath+"/profiles", req); err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// SaveSettings updates only the settings columns of the user's profile.
func (c *RestClient) SaveSettings(ctx context.Context, userID string, s models.Settings) error {
	req := c.authed(ctx).
		SetHeader("Prefer", "return=minimal").
		SetQueryParam("id", "eq."+userID).
		SetBody(s)

	if _, err := c.doRequest(ctx, http.MethodPatch, restPath+"/profiles", req); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// --- trades ---

type tradeRow struct {
	UserID       string          `json:"user_id"`
	TradeDate    string          `json:"trade_date"`
	Pair         string          `json:"pair"`
	Position     models.Position `json:"position"`
	ValueTrade   float64         `json:"value_trade"`
	Type         models.Outcome  `json:"type"`
	Percent      float64         `json:"percent"`
	Result       float64         `json:"result"`
	NewValue     float64         `json:"new_value"`
	Observations string          `json:"observations"`
}

func (c *RestClient) ListByUser(ctx context.Context, userID string) ([]models.Trade, error) {
	var trades []models.Trade
	req := c.authed(ctx).
		SetQueryParam("user_id", "eq."+userID).
		SetQueryParam("order", "trade_date.asc").
		SetQueryParam("select", "*").
		SetResult(&trades)

	if _, err := c.doRequest(ctx, http.MethodGet, restPath+"/trades", req); err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}

func (c *RestClient) Insert(ctx context.Context, t models.Trade) (models.Trade, error) {
	row := tradeRow{
		UserID:       t.UserID,
		TradeDate:    t.TradeDate,
		Pair:         t.Pair,
		Position:     t.Position,
		ValueTrade:   t.ValueTrade,
		Type:         t.Type,
		Percent:      t.Percent,
		Result:       t.Result,
		NewValue:     t.NewValue,
		Observations: t.Observations,
	}
	var stored models.Trade
	req := c.authed(ctx).
		SetHeader("Prefer", "return=representation").
		SetHeader("Accept", objectAccept).
		SetBody(row).
		SetResult(&stored)

	if _, err := c.doRequest(ctx, http.MethodPost, restPath+"/trades", req); err != nil {
		return models.Trade{}, fmt.Errorf("failed to insert trade: %w", err)
	}
	return stored, nil
}

func (c *RestClient) Delete(ctx context.Context, id, userID string) error {
	req := c.authed(ctx).
		SetQueryParam("id", "eq."+id).
		SetQueryParam("user_id", "eq."+userID)

	if _, err := c.doRequest(ctx, http.MethodDelete, restPath+"/trades", req); err != nil {
		return fmt.Errorf("failed to delete trade: %w", err)
	}
	return nil
}

func (c *RestClient) DeleteAllByUser(ctx context.Context, userID string) error {
	req := c.authed(ctx).SetQueryParam("user_id", "eq."+userID)

	if _, err := c.doRequest(ctx, http.MethodDelete, restPath+"/trades", req); err != nil {
		return fmt.Errorf("failed to delete trades: %w", err)
	}
	return nil
}
