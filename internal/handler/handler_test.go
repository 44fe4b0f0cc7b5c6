package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/auth"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/config"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/ledger"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/ratelimit"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/repository/memory"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/strategy"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/subscription"
)

const adminKey = "bootstrap-admin-key"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type session struct {
	APIKey string `json:"api_key"`
	User   struct {
		ID           uint64 `json:"id"`
		Username     string `json:"username"`
		Role         string `json:"role"`
		ClientKey    string `json:"client_key"`
		ClientSecret string `json:"client_secret"`
	} `json:"user"`
}

func (s session) apiHeaders() map[string]string {
	return map[string]string{HeaderAPIKey: s.APIKey}
}

func (s session) clientHeaders() map[string]string {
	return map[string]string{HeaderClientKey: s.User.ClientKey, HeaderClientSecret: s.User.ClientSecret}
}

func newTestEngine(t *testing.T, guard *Guard) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.New()
	authority := auth.NewAuthority(store, auth.Options{AdminAPIKey: adminKey, BcryptCost: bcrypt.MinCost}, nil)
	strategies := strategy.NewRegistry(store, nil)
	if guard == nil {
		guard = &Guard{}
	}
	guard.Auth = authority
	return NewEngine(Deps{
		Server:        config.ServerConfig{RequestTimeout: 5 * time.Second, MaxBodyBytes: 1 << 20},
		Version:       "test",
		Store:         store,
		Auth:          authority,
		Strategies:    strategies,
		Ledger:        ledger.New(store, strategies, ledger.Options{RestrictToOwner: true}, nil),
		Subscriptions: subscription.NewRegistry(store, strategies, subscription.Options{}, nil),
		Guard:         guard,
	})
}

func call(t *testing.T, r http.Handler, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func registerUser(t *testing.T, r http.Handler, username string) session {
	t.Helper()
	w, env := call(t, r, http.MethodPost, "/auth/register", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "s3cret-pw",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var s session
	require.NoError(t, json.Unmarshal(env.Data, &s))
	return s
}

func promote(t *testing.T, r http.Handler, username string) {
	t.Helper()
	w, _ := call(t, r, http.MethodPut, "/admin/accounts/"+username+"/role", map[string]string{"role": "publisher"},
		map[string]string{HeaderAPIKey: adminKey})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func createStrategy(t *testing.T, r http.Handler, s session, id string) {
	t.Helper()
	w, _ := call(t, r, http.MethodPost, "/strategies", map[string]any{"strategy_id": id, "name": "Strategy " + id}, s.apiHeaders())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestDataRejectsInvalidClientSecret(t *testing.T) {
	r := newTestEngine(t, nil)
	s := registerUser(t, r, "alice")

	w, env := call(t, r, http.MethodPost, "/data", map[string]any{"strategy_id": "x"}, map[string]string{
		HeaderClientKey:    s.User.ClientKey,
		HeaderClientSecret: "cs_wrong",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.False(t, env.Success)
	require.Equal(t, "UNAUTHENTICATED", env.Error.Code)

	w, _ = call(t, r, http.MethodGet, "/data?strategy_id=x", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStrategyCreationNeedsPublisherSession(t *testing.T) {
	r := newTestEngine(t, nil)
	s := registerUser(t, r, "bob")

	w, env := call(t, r, http.MethodPost, "/strategies", map[string]any{"strategy_id": "alpha", "name": "Alpha"}, s.clientHeaders())
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "FORBIDDEN", env.Error.Code)

	w, _ = call(t, r, http.MethodPost, "/strategies", map[string]any{"strategy_id": "alpha", "name": "Alpha"}, s.apiHeaders())
	require.Equal(t, http.StatusForbidden, w.Code)

	promote(t, r, "bob")
	createStrategy(t, r, s, "alpha")

	w, env = call(t, r, http.MethodPost, "/strategies", map[string]any{"strategy_id": "alpha", "name": "Again"}, s.apiHeaders())
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	require.Equal(t, "CONFLICT", env.Error.Code)
}

func TestPublishAndPoll(t *testing.T) {
	r := newTestEngine(t, nil)
	pub := registerUser(t, r, "pub")
	promote(t, r, "pub")
	createStrategy(t, r, pub, "momentum")

	con := registerUser(t, r, "con")
	w, env := call(t, r, http.MethodPost, "/subscriptions", map[string]any{
		"name":        "aapl only",
		"strategy_id": "momentum",
		"filters":     map[string]any{"symbols": []string{"AAPL"}},
		"start_from":  "inception",
	}, con.clientHeaders())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sub struct {
		ID uint64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sub))

	var lastID uint64
	for _, item := range []struct{ symbol, signal string }{{"AAPL", "buy"}, {"GOOGL", "sell"}, {"AAPL", "hold"}} {
		w, env := call(t, r, http.MethodPost, "/data", map[string]any{
			"strategy_id":  "momentum",
			"symbol":       item.symbol,
			"execute_date": "2024-03-01",
			"type":         "signal",
			"payload":      map[string]any{"signal": item.signal, "qty": 10},
		}, pub.clientHeaders())
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var rec struct {
			ID uint64 `json:"id"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &rec))
		require.Greater(t, rec.ID, lastID)
		lastID = rec.ID
	}

	type pollBody struct {
		SubscriptionID uint64 `json:"subscription_id"`
		Data           []struct {
			Symbol  string         `json:"symbol"`
			Payload map[string]any `json:"payload"`
		} `json:"data"`
		Total   int    `json:"total"`
		HasMore bool   `json:"has_more"`
		Cursor  uint64 `json:"cursor"`
	}
	poll := func(headers map[string]string) (int, pollBody) {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/subscriptions/%d/poll", sub.ID), nil)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		var body pollBody
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		return w.Code, body
	}

	code, body := poll(con.clientHeaders())
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 2, body.Total)
	require.Equal(t, "AAPL", body.Data[0].Symbol)
	require.Equal(t, "buy", body.Data[0].Payload["signal"])
	require.Equal(t, "hold", body.Data[1].Payload["signal"])
	require.Equal(t, lastID, body.Cursor)
	require.False(t, body.HasMore)

	code, body = poll(con.clientHeaders())
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 0, body.Total)
	require.NotNil(t, body.Data)
	require.Equal(t, lastID, body.Cursor)

	code, _ = poll(pub.clientHeaders())
	require.Equal(t, http.StatusForbidden, code)
}

func TestAuthLoginAndMe(t *testing.T) {
	r := newTestEngine(t, nil)
	first := registerUser(t, r, "carol")

	w, env := call(t, r, http.MethodPost, "/auth/login", map[string]string{"username": "carol", "password": "s3cret-pw"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var s session
	require.NoError(t, json.Unmarshal(env.Data, &s))
	require.NotEqual(t, first.APIKey, s.APIKey)
	require.Equal(t, first.User.ClientKey, s.User.ClientKey)
	require.Empty(t, s.User.ClientSecret)

	w, _ = call(t, r, http.MethodGet, "/auth/me", nil, first.apiHeaders())
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = call(t, r, http.MethodGet, "/auth/me", nil, s.apiHeaders())
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = call(t, r, http.MethodPost, "/auth/login", map[string]string{"username": "carol", "password": "nope"}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitedResponse(t *testing.T) {
	guard := &Guard{
		Limiter: ratelimit.NewMemoryLimiter(),
		Rules:   map[string]ratelimit.Rule{ratelimit.TierAuth: {Requests: 1, Window: time.Minute}},
	}
	r := newTestEngine(t, guard)

	body := map[string]string{"username": "dave", "password": "wrong-pw"}
	w, _ := call(t, r, http.MethodPost, "/auth/login", body, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := call(t, r, http.MethodPost, "/auth/login", body, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "RATE_LIMITED", env.Error.Code)
	require.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestHealthAndUnknownRoute(t *testing.T) {
	r := newTestEngine(t, nil)

	w, _ := call(t, r, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = call(t, r, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Header().Get(HeaderRequestID))

	w, env := call(t, r, http.MethodGet, "/nope", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "NOT_FOUND", env.Error.Code)
}
