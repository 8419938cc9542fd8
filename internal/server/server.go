// Package server exposes the journal over HTTP. Each signed-in client gets
// its own tracker and backend session, addressed by a bearer token.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"trading-journal/internal/dataio"
	"trading-journal/internal/journal"
	"trading-journal/internal/models"
	"trading-journal/internal/remote"
	"trading-journal/internal/tracker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxUploadSize = 10 << 20

type Server struct {
	newBackend remote.Factory
	trackerCfg tracker.Config
	logger     *zap.Logger
	sessions   *Sessions
	now        func() time.Time
}

func New(newBackend remote.Factory, trackerCfg tracker.Config, sessionTTL time.Duration, logger *zap.Logger) *Server {
	s := &Server{
		newBackend: newBackend,
		trackerCfg: trackerCfg,
		logger:     logger.Named("server"),
		now:        time.Now,
	}
	s.sessions = NewSessions(sessionTTL, s.signOutExpired)
	return s
}

// signOutExpired ends the backend session of a tracker dropped for idleness,
// revoking its refresh token on the REST backend.
func (s *Server) signOutExpired(t *tracker.Tracker) {
	if !t.SignedIn() {
		return
	}
	if err := t.Logout(context.Background()); err != nil {
		s.logger.Warn("Failed to sign out expired session", zap.Error(err))
		return
	}
	s.logger.Debug("Expired session signed out")
}

// Sessions exposes the live sessions to background jobs.
func (s *Server) Sessions() *Sessions {
	return s.sessions
}

func (s *Server) Router() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), s.accessLog())

	engine.GET("/healthz", func(c *gin.Context) {
		Ok(c, gin.H{"status": "ok"}, map[string]any{"sessions": s.sessions.Len()})
	})

	api := engine.Group("/api")
	api.POST("/auth/signup", s.signUp)
	api.POST("/auth/login", s.login)

	authed := api.Group("", s.requireSession())
	authed.POST("/auth/logout", s.logout)
	authed.GET("/session", s.session)

	authed.GET("/settings", s.getSettings)
	authed.PUT("/settings", s.saveSettings)

	authed.GET("/trades", s.listTrades)
	authed.POST("/trades", s.addTrade)
	authed.DELETE("/trades/:id", s.removeTrade)
	authed.DELETE("/trades", s.resetAll)

	authed.GET("/stats", s.stats)
	authed.GET("/balance-series", s.balanceSeries)

	authed.POST("/import", s.importCSV)
	authed.GET("/export.csv", s.exportCSV)
	authed.GET("/backup", s.backup)
	authed.POST("/restore", s.restore)

	return engine
}

func (s *Server) newTracker() *tracker.Tracker {
	return tracker.New(s.newBackend(), s.trackerCfg, s.logger)
}

// --- auth ---

type signUpRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token   string           `json:"token,omitempty"`
	Session tracker.Snapshot `json:"session"`
}

func (s *Server) signUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	t := s.newTracker()
	res, err := t.SignUp(c.Request.Context(), req.Email, req.Username, req.Password)
	if err != nil && !res.SignedIn {
		fail(c, err)
		return
	}
	if err != nil {
		s.logger.Warn("Journal load after sign-up failed", zap.Error(err))
	}

	meta := map[string]any{"created": res.Created, "signed_in": res.SignedIn}
	if !res.SignedIn {
		Ok(c, nil, meta)
		return
	}
	Ok(c, sessionResponse{Token: s.sessions.Add(t), Session: t.Snapshot()}, meta)
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	t := s.newTracker()
	if err := t.Login(c.Request.Context(), req.Username, req.Password); err != nil {
		if !t.SignedIn() {
			fail(c, err)
			return
		}
		s.logger.Warn("Journal load after login failed", zap.Error(err))
	}
	Ok(c, sessionResponse{Token: s.sessions.Add(t), Session: t.Snapshot()}, nil)
}

func (s *Server) logout(c *gin.Context) {
	t := trackerFrom(c)
	s.sessions.Remove(c.GetString(tokenKey))
	if err := t.Logout(c.Request.Context()); err != nil {
		s.logger.Warn("Remote sign-out failed", zap.Error(err))
	}
	Ok(c, nil, nil)
}

func (s *Server) session(c *gin.Context) {
	Ok(c, sessionResponse{Session: trackerFrom(c).Snapshot()}, nil)
}

// --- settings ---

func (s *Server) getSettings(c *gin.Context) {
	t := trackerFrom(c)
	Ok(c, t.Settings(), map[string]any{"current_trade_value": t.CurrentTradeValue()})
}

func (s *Server) saveSettings(c *gin.Context) {
	var settings models.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	t := trackerFrom(c)
	if err := t.SaveSettings(c.Request.Context(), settings); err != nil {
		fail(c, err)
		return
	}
	Ok(c, t.Settings(), map[string]any{"current_trade_value": t.CurrentTradeValue()})
}

// --- trades ---

// listTrades serves the history view. sort picks a column; without order the
// column's direction toggles like a header click.
func (s *Server) listTrades(c *gin.Context) {
	var f journal.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		Error(c, http.StatusBadRequest, "invalid filter", nil)
		return
	}
	view, err := trackerFrom(c).ViewWith(tracker.ViewQuery{
		Filter: f,
		Sort:   c.Query("sort"),
		Order:  journal.SortOrder(c.Query("order")),
	})
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	Ok(c, view.Trades, map[string]any{
		"count":               len(view.Trades),
		"total":               view.Total,
		"sort":                view.Sort,
		"current_trade_value": view.CurrentTradeValue,
	})
}

func (s *Server) addTrade(c *gin.Context) {
	var in journal.TradeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	t := trackerFrom(c)
	trade, err := t.AddTrade(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, trade, map[string]any{"current_trade_value": t.CurrentTradeValue()})
}

func (s *Server) removeTrade(c *gin.Context) {
	t := trackerFrom(c)
	if err := t.RemoveTrade(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	Ok(c, nil, map[string]any{"current_trade_value": t.CurrentTradeValue()})
}

func (s *Server) resetAll(c *gin.Context) {
	t := trackerFrom(c)
	if err := t.ResetAll(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	Ok(c, nil, map[string]any{"current_trade_value": t.CurrentTradeValue()})
}

// --- aggregates ---

type statsResponse struct {
	Stats     journal.Stats     `json:"stats"`
	Trends    journal.Trends    `json:"trends"`
	Breakdown journal.Breakdown `json:"breakdown"`
}

func (s *Server) stats(c *gin.Context) {
	t := trackerFrom(c)
	Ok(c, statsResponse{Stats: t.Stats(), Trends: t.Trends(), Breakdown: t.Breakdown()}, nil)
}

func (s *Server) balanceSeries(c *gin.Context) {
	Ok(c, trackerFrom(c).BalanceSeries(), nil)
}

// --- transfer ---

// importCSV accepts the CSV either as a multipart "file" field or as the raw
// request body.
func (s *Server) importCSV(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	text, err := readUpload(c)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	res, err := trackerFrom(c).Import(c.Request.Context(), text)
	if err != nil {
		if errors.Is(err, tracker.ErrNoValidRows) {
			Error(c, http.StatusUnprocessableEntity, tracker.Message(err), map[string]any{"skipped": res.Skipped})
			return
		}
		fail(c, err)
		return
	}
	Ok(c, res, nil)
}

func readUpload(c *gin.Context) (string, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return "", fmt.Errorf("missing file field: %w", err)
		}
		f, err := fh.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open upload: %w", err)
		}
		defer f.Close()
		b, err := io.ReadAll(f)
		if err != nil {
			return "", fmt.Errorf("failed to read upload: %w", err)
		}
		return string(b), nil
	}

	b, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(b), nil
}

func (s *Server) exportCSV(c *gin.Context) {
	var buf bytes.Buffer
	if err := trackerFrom(c).ExportCSV(&buf); err != nil {
		fail(c, err)
		return
	}
	attachment(c, dataio.ExportFileName(s.now()))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) backup(c *gin.Context) {
	var buf bytes.Buffer
	if err := trackerFrom(c).WriteBackup(c.Request.Context(), &buf); err != nil {
		fail(c, err)
		return
	}
	attachment(c, dataio.BackupFileName(s.now()))
	c.Data(http.StatusOK, "application/json", buf.Bytes())
}

func (s *Server) restore(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	b, err := dataio.ReadBackup(c.Request.Body)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	res, err := trackerFrom(c).RestoreBackup(c.Request.Context(), b)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, res, nil)
}

func attachment(c *gin.Context, name string) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
}
