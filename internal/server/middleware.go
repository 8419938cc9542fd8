package server

import (
	"net/http"
	"strings"
	"time"

	"trading-journal/internal/tracker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	trackerKey = "tracker"
	tokenKey   = "token"
)

func bearerToken(c *gin.Context) string {
	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

// requireSession resolves the bearer token to the caller's tracker.
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			Error(c, http.StatusUnauthorized, "missing bearer token", nil)
			return
		}
		t, ok := s.sessions.Get(token)
		if !ok || !t.SignedIn() {
			s.sessions.Remove(token)
			Error(c, http.StatusUnauthorized, tracker.Message(tracker.ErrNotSignedIn), nil)
			return
		}
		c.Set(trackerKey, t)
		c.Set(tokenKey, token)
		c.Next()
	}
}

func trackerFrom(c *gin.Context) *tracker.Tracker {
	return c.MustGet(trackerKey).(*tracker.Tracker)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		}
		switch {
		case status >= 500:
			s.logger.Error("Request failed", fields...)
		case status >= 400:
			s.logger.Warn("Request rejected", fields...)
		default:
			s.logger.Debug("Request served", fields...)
		}
	}
}
