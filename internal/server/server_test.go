package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trading-journal/internal/config"
	"trading-journal/internal/database"
	"trading-journal/internal/remote"
	"trading-journal/internal/store"
	"trading-journal/internal/tracker"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

func setupTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDatabase(&config.Database{DSN: "file::memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	factory := func() remote.Backend { return store.NewClient(db, zap.NewNop()) }
	s := New(factory, tracker.Config{Timeout: 5 * time.Second}, time.Hour, zap.NewNop())
	return s, s.Router()
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var r *http.Request
	switch b := body.(type) {
	case nil:
		r = httptest.NewRequest(method, path, nil)
	case string:
		r = httptest.NewRequest(method, path, strings.NewReader(b))
		r.Header.Set("Content-Type", "text/csv")
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(raw))
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") && w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

// signUp registers ana and returns her session token.
func signUp(t *testing.T, h http.Handler) string {
	t.Helper()
	w, env := do(t, h, http.MethodPost, "/api/auth/signup", "", signUpRequest{
		Email: "ana@example.com", Username: "ana", Password: "secret123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func trade(date string, value float64, outcome string) map[string]any {
	return map[string]any{
		"trade_date":  date,
		"pair":        "btcusdt",
		"value_trade": value,
		"position":    "long",
		"type":        outcome,
		"percent":     10,
	}
}

func TestHealthz(t *testing.T) {
	_, h := setupTestServer(t)

	w, env := do(t, h, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", env.Message)
	assert.EqualValues(t, 0, env.Meta["sessions"])
}

func TestRequireSession(t *testing.T) {
	_, h := setupTestServer(t)

	w, env := do(t, h, http.MethodGet, "/api/trades", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "missing bearer token", env.Message)

	w, env = do(t, h, http.MethodGet, "/api/trades", "nope", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Sign in first.", env.Message)
}

func TestSignUpAndLogin(t *testing.T) {
	s, h := setupTestServer(t)
	token := signUp(t, h)

	w, env := do(t, h, http.MethodGet, "/api/session", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "ana", resp.Session.Username)
	assert.Equal(t, 2360.0, resp.Session.CurrentTradeValue)

	t.Run("duplicate e-mail", func(t *testing.T) {
		w, env := do(t, h, http.MethodPost, "/api/auth/signup", "", signUpRequest{
			Email: "ana@example.com", Username: "ana2", Password: "secret123",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.NotEmpty(t, env.Message)
	})

	t.Run("invalid form", func(t *testing.T) {
		w, env := do(t, h, http.MethodPost, "/api/auth/signup", "", signUpRequest{
			Email: "nope", Username: "a", Password: "short",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Len(t, env.Meta["fields"], 3)
	})

	t.Run("login", func(t *testing.T) {
		w, env := do(t, h, http.MethodPost, "/api/auth/login", "", loginRequest{Username: "ana", Password: "secret123"})
		require.Equal(t, http.StatusOK, w.Code)
		var resp sessionResponse
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		assert.NotEqual(t, token, resp.Token)
		assert.Equal(t, 2, s.Sessions().Len())
	})

	t.Run("unknown user", func(t *testing.T) {
		w, env := do(t, h, http.MethodPost, "/api/auth/login", "", loginRequest{Username: "bob", Password: "secret123"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "User not found.", env.Message)
	})

	t.Run("wrong password", func(t *testing.T) {
		w, _ := do(t, h, http.MethodPost, "/api/auth/login", "", loginRequest{Username: "ana", Password: "wrong-pass"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("logout", func(t *testing.T) {
		w, _ := do(t, h, http.MethodPost, "/api/auth/logout", token, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w, _ = do(t, h, http.MethodGet, "/api/session", token, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestExpiredSessionIsSignedOut(t *testing.T) {
	s, h := setupTestServer(t)
	token := signUp(t, h)

	tr, ok := s.Sessions().Get(token)
	require.True(t, ok)
	require.True(t, tr.SignedIn())

	now := time.Now().Add(2 * time.Hour)
	s.Sessions().now = func() time.Time { return now }

	assert.Equal(t, 1, s.Sessions().Sweep())
	assert.False(t, tr.SignedIn())

	w, _ := do(t, h, http.MethodGet, "/api/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTrades(t *testing.T) {
	_, h := setupTestServer(t)
	token := signUp(t, h)

	w, env := do(t, h, http.MethodPost, "/api/trades", token, trade("2024-01-10", 1000, "profit"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1100.0, env.Meta["current_trade_value"])

	_, _ = do(t, h, http.MethodPost, "/api/trades", token, trade("2024-01-11", 1100, "loss"))

	w, env = do(t, h, http.MethodGet, "/api/trades", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var trades []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &trades))
	require.Len(t, trades, 2)
	assert.Equal(t, "2024-01-11", trades[0]["trade_date"], "newest first by default")
	assert.Equal(t, "BTCUSDT", trades[0]["pair"])

	t.Run("filter", func(t *testing.T) {
		_, env := do(t, h, http.MethodGet, "/api/trades?type=loss", token, nil)
		assert.EqualValues(t, 1, env.Meta["count"])
		assert.EqualValues(t, 2, env.Meta["total"])
	})

	t.Run("sort", func(t *testing.T) {
		_, env := do(t, h, http.MethodGet, "/api/trades?sort=trade_date&order=asc", token, nil)
		require.NoError(t, json.Unmarshal(env.Data, &trades))
		assert.Equal(t, "2024-01-10", trades[0]["trade_date"])

		w, _ := do(t, h, http.MethodGet, "/api/trades?sort=nope", token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation", func(t *testing.T) {
		w, env := do(t, h, http.MethodPost, "/api/trades", token, map[string]any{"pair": "BTC"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NotEmpty(t, env.Meta["fields"])
	})

	t.Run("stats", func(t *testing.T) {
		w, env := do(t, h, http.MethodGet, "/api/stats", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		assert.EqualValues(t, 2, resp["stats"]["totalTrades"])
		assert.EqualValues(t, 1, resp["breakdown"]["losses"])
	})

	t.Run("balance series", func(t *testing.T) {
		_, env := do(t, h, http.MethodGet, "/api/balance-series", token, nil)
		var points []map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &points))
		assert.Len(t, points, 3)
	})

	t.Run("remove and reset", func(t *testing.T) {
		w, _ := do(t, h, http.MethodDelete, "/api/trades/"+trades[0]["id"].(string), token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		_, env := do(t, h, http.MethodGet, "/api/trades", token, nil)
		assert.EqualValues(t, 1, env.Meta["total"])

		w, env = do(t, h, http.MethodDelete, "/api/trades", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 2360.0, env.Meta["current_trade_value"])
	})
}

func TestSettings(t *testing.T) {
	_, h := setupTestServer(t)
	token := signUp(t, h)

	w, env := do(t, h, http.MethodPut, "/api/settings", token, map[string]any{
		"bank_initial": 10000, "initial_trade_value": 500, "percent_target": 5,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 500.0, env.Meta["current_trade_value"])

	_, env = do(t, h, http.MethodGet, "/api/settings", token, nil)
	assert.JSONEq(t, `{"bank_initial":10000,"initial_trade_value":500,"percent_target":5}`, string(env.Data))

	w, _ = do(t, h, http.MethodPut, "/api/settings", token, map[string]any{
		"bank_initial": 100, "initial_trade_value": 500, "percent_target": 5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportExport(t *testing.T) {
	_, h := setupTestServer(t)
	token := signUp(t, h)

	csv := "Data,Paridade,Valor Trade,Tipo,Resultado,PNL (%)\n" +
		"2024-01-15,BTCUSDT,1000,Long,Lucro,10%\n" +
		"2024-01-16,ETHUSDT,1100,Short,Prejuízo,5%\n" +
		",,,,,\n"

	w, env := do(t, h, http.MethodPost, "/api/import", token, csv)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":2,"errors":0,"skipped":1}`, string(env.Data))

	t.Run("multipart", func(t *testing.T) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile("file", "trades.csv")
		require.NoError(t, err)
		_, _ = fw.Write([]byte("date,pair,position,type,percent\n2024-01-17,SOLUSDT,long,profit,3\n"))
		require.NoError(t, mw.Close())

		r := httptest.NewRequest(http.MethodPost, "/api/import", &body)
		r.Header.Set("Content-Type", mw.FormDataContentType())
		r.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("no valid rows", func(t *testing.T) {
		w, env := do(t, h, http.MethodPost, "/api/import", token, "Data,Paridade\n,\n")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.EqualValues(t, 1, env.Meta["skipped"])
	})

	t.Run("export", func(t *testing.T) {
		w, _ := do(t, h, http.MethodGet, "/api/export.csv", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "trades_")
		lines := strings.Split(w.Body.String(), "\n")
		assert.Len(t, lines, 4)
		assert.True(t, strings.HasPrefix(lines[1], "2024-01-15,BTCUSDT"))
	})

	t.Run("backup and restore", func(t *testing.T) {
		w, _ := do(t, h, http.MethodGet, "/api/backup", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "trading_backup_")

		var b map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
		assert.Equal(t, "1.0", b["version"])
		assert.Len(t, b["trades"], 3)

		w, env := do(t, h, http.MethodPost, "/api/restore", token, b)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.JSONEq(t, `{"success":3,"errors":0,"skipped":0}`, string(env.Data))

		w, _ = do(t, h, http.MethodPost, "/api/restore", token, map[string]any{"version": "2.0"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
