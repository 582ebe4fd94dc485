package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonychat/anonychat-api/internal/core/domain"
	"github.com/anonychat/anonychat-api/internal/core/ports"
)

// Stubs embed the port so only the methods a test exercises need bodies.

type fakeAccounts struct {
	ports.AccountService
	register func(ports.RegisterInput) (*domain.Account, error)
}

func (f *fakeAccounts) Register(_ context.Context, in ports.RegisterInput) (*domain.Account, error) {
	return f.register(in)
}

type fakeMessages struct {
	ports.MessageService
	deliver func(ports.DeliverInput) (*domain.Message, error)
	list    func(accountID string) ([]domain.Message, error)
}

func (f *fakeMessages) Deliver(_ context.Context, in ports.DeliverInput) (*domain.Message, error) {
	return f.deliver(in)
}

func (f *fakeMessages) List(_ context.Context, accountID string) ([]domain.Message, error) {
	return f.list(accountID)
}

type fakeSessions struct {
	ports.SessionService
	tokens map[string]domain.Identity
}

func (f *fakeSessions) ParseToken(token string) (domain.Identity, error) {
	id, ok := f.tokens[token]
	if !ok {
		return domain.Identity{}, domain.ErrInvalidCredentials
	}
	return id, nil
}

type routerFixture struct {
	e        *echo.Echo
	accounts *fakeAccounts
	messages *fakeMessages
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	return newRouterFixtureWith(t, nil)
}

func newRouterFixtureWith(t *testing.T, trusted []*net.IPNet) *routerFixture {
	t.Helper()
	f := &routerFixture{
		accounts: &fakeAccounts{},
		messages: &fakeMessages{},
	}
	sessions := &fakeSessions{tokens: map[string]domain.Identity{
		"verified":   {ID: "acc1", Username: "alice", IsVerified: true},
		"unverified": {ID: "acc2", Username: "bob"},
	}}
	f.e = NewRouter(Services{
		Accounts: f.accounts,
		Messages: f.messages,
		Sessions: sessions,
	}, Options{
		Logger:   zerolog.Nop(),
		Registry: prometheus.NewRegistry(),
		Features: map[string]bool{"smtp": false, "ai": false},

		TrustedProxies: trusted,
	})
	return f
}

func (f *routerFixture) do(method, target, body, token string) *httptest.ResponseRecorder {
	return f.doWithHeaders(method, target, body, token, nil)
}

func (f *routerFixture) doWithHeaders(method, target, body, token string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func envelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestRouter_UnknownRoute(t *testing.T) {
	rec := newRouterFixture(t).do(http.MethodGet, "/nope", "", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, envelope(t, rec)["success"])
}

func TestRouter_RegisterConflictAndMalformedBody(t *testing.T) {
	f := newRouterFixture(t)
	f.accounts.register = func(ports.RegisterInput) (*domain.Account, error) {
		return nil, domain.ErrEmailTaken
	}

	rec := f.do(http.MethodPost, "/accounts", `{"username":"alice","email":"a@example.com","password":"secret1"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "email is already registered", envelope(t, rec)["message"])

	rec = f.do(http.MethodPost, "/accounts", `{"username":"alice",`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/accounts", `{"username":"al","email":"a@example.com","password":"secret1"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, envelope(t, rec)["message"], "username")
}

func TestRouter_InboxRequiresVerifiedSession(t *testing.T) {
	f := newRouterFixture(t)
	f.messages.list = func(accountID string) ([]domain.Message, error) {
		require.Equal(t, "acc1", accountID)
		return []domain.Message{{ID: "m1", Content: "hi"}}, nil
	}

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/messages", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/messages", "", "forged").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/messages", "", "unverified").Code)

	rec := f.do(http.MethodGet, "/messages", "", "verified")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, envelope(t, rec)["messages"], 1)
}

func TestRouter_PublicSendMapsDomainErrors(t *testing.T) {
	f := newRouterFixture(t)
	results := map[string]error{
		"ghost":  domain.ErrAccountNotFound,
		"closed": domain.ErrNotAcceptingMessages,
		"busy":   domain.ErrTooManyRequests,
		"broken": errors.New("driver exploded"),
	}
	f.messages.deliver = func(in ports.DeliverInput) (*domain.Message, error) {
		if err, ok := results[in.Username]; ok {
			return nil, err
		}
		return &domain.Message{ID: "m1"}, nil
	}

	want := map[string]int{
		"alice":  http.StatusOK,
		"ghost":  http.StatusNotFound,
		"closed": http.StatusForbidden,
		"busy":   http.StatusTooManyRequests,
		"broken": http.StatusInternalServerError,
	}
	for username, status := range want {
		rec := f.do(http.MethodPost, "/messages", `{"username":"`+username+`","content":"hello"}`, "")
		assert.Equal(t, status, rec.Code, username)
	}
}

func TestRouter_OpsEndpoints(t *testing.T) {
	f := newRouterFixture(t)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "", "").Code)

	rec := f.do(http.MethodGet, "/health/ready", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"smtp": "disabled", "ai": "disabled"}, envelope(t, rec)["features"])

	rec = f.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "anonychat_http_request")

	rec = f.do(http.MethodGet, "/health", "", "")
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestRouter_SendThrottleKeyIgnoresForwardedForByDefault(t *testing.T) {
	f := newRouterFixture(t)
	var keys []string
	f.messages.deliver = func(in ports.DeliverInput) (*domain.Message, error) {
		keys = append(keys, in.ClientKey)
		return &domain.Message{ID: "m1"}, nil
	}

	for _, xff := range []string{"198.51.100.1", "198.51.100.2", "203.0.113.9, 198.51.100.3"} {
		rec := f.doWithHeaders(http.MethodPost, "/messages", `{"username":"alice","content":"hello"}`, "",
			map[string]string{echo.HeaderXForwardedFor: xff, echo.HeaderXRealIP: xff})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// httptest requests come from 192.0.2.1.
	assert.Equal(t, []string{"192.0.2.1", "192.0.2.1", "192.0.2.1"}, keys)
}

func TestRouter_SendThrottleKeyHonorsTrustedProxy(t *testing.T) {
	_, proxies, err := net.ParseCIDR("192.0.2.0/24")
	require.NoError(t, err)
	f := newRouterFixtureWith(t, []*net.IPNet{proxies})

	var key string
	f.messages.deliver = func(in ports.DeliverInput) (*domain.Message, error) {
		key = in.ClientKey
		return &domain.Message{ID: "m1"}, nil
	}

	rec := f.doWithHeaders(http.MethodPost, "/messages", `{"username":"alice","content":"hello"}`, "",
		map[string]string{echo.HeaderXForwardedFor: "203.0.113.7"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "203.0.113.7", key)

	// A client-supplied hop in front of the real one is not trusted.
	rec = f.doWithHeaders(http.MethodPost, "/messages", `{"username":"alice","content":"hello"}`, "",
		map[string]string{echo.HeaderXForwardedFor: "198.51.100.1, 203.0.113.7"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "203.0.113.7", key)
}
