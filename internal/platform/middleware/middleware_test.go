// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/gatekeeper/internal/platform/access"
	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
	"github.com/taibuivan/gatekeeper/internal/platform/ctxutil"
	"github.com/taibuivan/gatekeeper/internal/platform/metrics"
	"github.com/taibuivan/gatekeeper/internal/platform/middleware"
	"github.com/taibuivan/gatekeeper/internal/platform/respond"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
)

// loaderFunc adapts a function to [middleware.IdentityLoader].
type loaderFunc func(ctx context.Context, userID, subject string) (*sec.Identity, error)

func (f loaderFunc) LoadIdentity(ctx context.Context, userID, subject string) (*sec.Identity, error) {
	return f(ctx, userID, subject)
}

var knownUsers = loaderFunc(func(_ context.Context, userID, subject string) (*sec.Identity, error) {
	switch {
	case subject == "alice" && userID == "u-alice":
		return &sec.Identity{UserID: "u-alice", Subject: "alice", Role: sec.RoleUser}, nil
	case subject == "root" && userID == "u-root":
		return &sec.Identity{UserID: "u-root", Subject: "root", Role: sec.RoleAdmin}, nil
	default:
		return nil, apperr.NotFound("User")
	}
})

func newCodec(t *testing.T, now time.Time) *sec.TokenCodec {
	t.Helper()
	codec, err := sec.NewTokenCodec(sec.TokenSettings{
		Issuer:        "gatekeeper",
		AccessSecret:  strings.Repeat("a", 32),
		AccessTTL:     15 * time.Minute,
		RefreshSecret: strings.Repeat("r", 32),
		RefreshTTL:    time.Hour,
	}, sec.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return codec
}

// echoIdentity writes the subject found in the request context.
var echoIdentity = http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
	identity := ctxutil.GetIdentity(request.Context())
	if identity == nil {
		respond.OK(writer, "anonymous")
		return
	}
	respond.OK(writer, identity.Subject)
})

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) respond.ErrorEnvelope {
	t.Helper()
	var envelope respond.ErrorEnvelope
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&envelope))
	return envelope
}

/*
TestIdentify_Rejections walks every failure branch of the identity filter.
*/
func TestIdentify_Rejections(t *testing.T) {
	codec := newCodec(t, time.Now())
	collectors := metrics.New()

	validToken, err := codec.IssueAccessToken("u-alice", "alice", "alice@x.com", sec.RoleUser)
	require.NoError(t, err)
	ghostToken, err := codec.IssueAccessToken("u-ghost", "ghost", "ghost@x.com", sec.RoleUser)
	require.NoError(t, err)
	reusedToken, err := codec.IssueAccessToken("u-previous", "alice", "alice@x.com", sec.RoleUser)
	require.NoError(t, err)
	expiredToken, err := newCodec(t, time.Now().Add(-time.Hour)).IssueAccessToken("u-alice", "alice", "alice@x.com", sec.RoleUser)
	require.NoError(t, err)

	bypass, err := access.NewPathSet("/api/v1/auth/login")
	require.NoError(t, err)

	handler := middleware.Identify(codec, knownUsers, bypass, collectors)(echoIdentity)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing_header", "", apperr.CodeMissingAuthHeader},
		{"blank_header", "   ", apperr.CodeMissingAuthHeader},
		{"wrong_scheme", "Token " + validToken, apperr.CodeMalformedAuthHeader},
		{"lowercase_scheme", "bearer " + validToken, apperr.CodeMalformedAuthHeader},
		{"empty_token", "Bearer   ", apperr.CodeEmptyToken},
		{"garbage_token", "Bearer abc.def.ghi", apperr.CodeTokenMalformed},
		{"expired_token", "Bearer " + expiredToken, apperr.CodeTokenExpired},
		{"vanished_user", "Bearer " + ghostToken, apperr.CodeUnauthenticated},
		{"username_reused", "Bearer " + reusedToken, apperr.CodeUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
			if tt.header != "" {
				request.Header.Set("Authorization", tt.header)
			}
			recorder := httptest.NewRecorder()

			handler.ServeHTTP(recorder, request)

			assert.Equal(t, http.StatusUnauthorized, recorder.Code)
			assert.Equal(t, tt.code, decodeError(t, recorder).Code)
		})
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(collectors.AuthRejections.WithLabelValues(apperr.CodeMissingAuthHeader)))
}

/*
TestIdentify_Success attaches the loaded identity and honours the bypass list.
*/
func TestIdentify_Success(t *testing.T) {
	codec := newCodec(t, time.Now())
	bypass, err := access.NewPathSet("/api/v1/auth/login")
	require.NoError(t, err)

	handler := middleware.Identify(codec, knownUsers, bypass, nil)(echoIdentity)

	// 1. Authenticated request
	token, err := codec.IssueAccessToken("u-alice", "alice", "alice@x.com", sec.RoleUser)
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	request.Header.Set("Authorization", "Bearer "+token)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"data":"alice"}`, recorder.Body.String())

	// 2. Bypassed path skips the filter entirely, even with a bad header
	request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	request.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"data":"anonymous"}`, recorder.Body.String())
}

/*
TestAuthorize_Policy verifies 401/403 decisions of the policy middleware.
*/
func TestAuthorize_Policy(t *testing.T) {
	policy, err := access.NewPolicy(access.DefaultRules()...)
	require.NoError(t, err)

	handler := middleware.Authorize(policy, nil)(echoIdentity)

	serve := func(method, path string, identity *sec.Identity) *httptest.ResponseRecorder {
		request := httptest.NewRequest(method, path, nil)
		if identity != nil {
			request = request.WithContext(ctxutil.WithIdentity(request.Context(), identity))
		}
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		return recorder
	}

	user := &sec.Identity{Subject: "alice", Role: sec.RoleUser}
	admin := &sec.Identity{Subject: "root", Role: sec.RoleAdmin}

	assert.Equal(t, http.StatusOK, serve(http.MethodPost, "/api/v1/auth/login", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(http.MethodGet, "/api/v1/users", nil).Code)
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/v1/users", user).Code)

	forbidden := serve(http.MethodPut, "/api/v1/users/42/role", user)
	assert.Equal(t, http.StatusForbidden, forbidden.Code)
	assert.Equal(t, apperr.CodeForbidden, decodeError(t, forbidden).Code)

	assert.Equal(t, http.StatusOK, serve(http.MethodPut, "/api/v1/users/42/role", admin).Code)

	// Dot segments and extra slashes resolve before the rule lookup
	for _, target := range []string{
		"/api/v1/x/../users/42/role",
		"/api/v1//users/42/role",
		"/api/v1/users/42/role/",
		"/api/v1/users/./42/role",
	} {
		assert.Equal(t, http.StatusForbidden, serve(http.MethodPut, target, user).Code, target)
	}
}

/*
TestCanonicalPath_Rewrite verifies handlers downstream see the cleaned path.
*/
func TestCanonicalPath_Rewrite(t *testing.T) {
	var seen string
	handler := middleware.CanonicalPath(http.HandlerFunc(func(_ http.ResponseWriter, request *http.Request) {
		seen = request.URL.Path + "|" + request.URL.RawPath
	}))

	tests := []struct {
		target string
		want   string
	}{
		{"/api/v1/users", "/api/v1/users|"},
		{"/api/v1/x/../users/42/role", "/api/v1/users/42/role|"},
		{"//api//v1/users/", "/api/v1/users|"},
		{"/api/v1/users/%2e%2e/auth/login", "/api/v1/auth/login|"},
		{"/api/v1/a%2Fb", "/api/v1/a/b|"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "http://gatekeeper"+tt.target, nil)
			handler.ServeHTTP(httptest.NewRecorder(), request)
			assert.Equal(t, tt.want, seen)
		})
	}
}

/*
TestRateLimiter_Burst rejects requests beyond the bucket capacity.
*/
func TestRateLimiter_Burst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter := middleware.NewRateLimiter(ctx, 1, 2, nil)
	handler := limiter.Middleware(echoIdentity)

	codes := make([]int, 0, 3)
	for range 3 {
		request := httptest.NewRequest(http.MethodGet, "/health", nil)
		request.RemoteAddr = "10.0.0.1:5555"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		codes = append(codes, recorder.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Another client has its own bucket
	request := httptest.NewRequest(http.MethodGet, "/health", nil)
	request.RemoteAddr = "10.0.0.2:5555"
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

/*
TestRateLimiter_ForwardedHeaders keys clients on the peer address unless the
peer is a trusted proxy.
*/
func TestRateLimiter_ForwardedHeaders(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	send := func(handler http.Handler, remoteAddr, forwardedFor string) int {
		request := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		request.RemoteAddr = remoteAddr
		if forwardedFor != "" {
			request.Header.Set("X-Forwarded-For", forwardedFor)
			request.Header.Set("X-Real-IP", forwardedFor)
		}
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		return recorder.Code
	}

	// 1. Without trusted proxies, rotating the headers does not buy a new budget
	direct := middleware.NewRateLimiter(ctx, 1, 2, nil).Middleware(echoIdentity)
	codes := []int{
		send(direct, "203.0.113.7:4000", "198.51.100.1"),
		send(direct, "203.0.113.7:4000", "198.51.100.2"),
		send(direct, "203.0.113.7:4000", "198.51.100.3"),
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// 2. Behind a trusted proxy, the forwarded client is the key
	proxies, err := middleware.NewProxyTrust([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	proxied := middleware.NewRateLimiter(ctx, 1, 2, proxies).Middleware(echoIdentity)

	assert.Equal(t, http.StatusOK, send(proxied, "10.0.0.5:80", "198.51.100.1"))
	assert.Equal(t, http.StatusOK, send(proxied, "10.0.0.5:80", "198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, send(proxied, "10.0.0.5:80", "198.51.100.1"))
	assert.Equal(t, http.StatusOK, send(proxied, "10.0.0.5:80", "198.51.100.2"))
}

/*
TestProxyTrust_ClientIP covers forwarded-header resolution.
*/
func TestProxyTrust_ClientIP(t *testing.T) {
	proxies, err := middleware.NewProxyTrust([]string{"10.0.0.0/8", " 192.0.2.1 ", ""})
	require.NoError(t, err)

	tests := []struct {
		name         string
		trust        *middleware.ProxyTrust
		remoteAddr   string
		forwardedFor string
		realIP       string
		want         string
	}{
		{"no_trust_ignores_headers", nil, "203.0.113.7:1", "198.51.100.1", "198.51.100.2", "203.0.113.7"},
		{"untrusted_peer_ignores_headers", proxies, "203.0.113.7:1", "198.51.100.1", "", "203.0.113.7"},
		{"trusted_peer_uses_forwarded", proxies, "10.1.2.3:1", "198.51.100.1", "", "198.51.100.1"},
		{"spoofed_leftmost_hop_skipped", proxies, "10.1.2.3:1", "1.1.1.1, 198.51.100.1, 192.0.2.1", "", "198.51.100.1"},
		{"garbage_hop_falls_back_to_peer", proxies, "10.1.2.3:1", "not-an-ip", "198.51.100.9", "10.1.2.3"},
		{"real_ip_without_forwarded", proxies, "192.0.2.1:1", "", "198.51.100.9", "198.51.100.9"},
		{"trusted_peer_without_headers", proxies, "10.1.2.3:1", "", "", "10.1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/", nil)
			request.RemoteAddr = tt.remoteAddr
			if tt.forwardedFor != "" {
				request.Header.Set("X-Forwarded-For", tt.forwardedFor)
			}
			if tt.realIP != "" {
				request.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, tt.trust.ClientIP(request))
		})
	}

	_, err = middleware.NewProxyTrust([]string{"10.0.0.0/99"})
	assert.Error(t, err)
	_, err = middleware.NewProxyTrust([]string{"proxy.local"})
	assert.Error(t, err)
}

type corsConfig struct {
	development bool
	origins     []string
}

func (c corsConfig) IsDevelopment() bool { return c.development }
func (c corsConfig) Origins() []string   { return c.origins }

/*
TestCORS_Origins only echoes configured origins outside development.
*/
func TestCORS_Origins(t *testing.T) {
	handler := middleware.CORS(corsConfig{origins: []string{"https://app.example"}})(echoIdentity)

	request := httptest.NewRequest(http.MethodGet, "/health", nil)
	request.Header.Set("Origin", "https://app.example")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, "https://app.example", recorder.Header().Get("Access-Control-Allow-Origin"))

	request = httptest.NewRequest(http.MethodGet, "/health", nil)
	request.Header.Set("Origin", "https://evil.example")
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
}

/*
TestPanicRecovery_Returns500 converts a handler panic into the error envelope.
*/
func TestPanicRecovery_Returns500(t *testing.T) {
	handler := middleware.PanicRecovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, apperr.CodeInternalError, decodeError(t, recorder).Code)
}
