package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/enrolment-backend/internal/config"
	"github.com/stemsi/enrolment-backend/internal/model"
	"github.com/stemsi/enrolment-backend/internal/response"
	"github.com/stemsi/enrolment-backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type denyList struct {
	mu      sync.Mutex
	revoked map[string]bool
	err     error
}

func (d *denyList) RevokeToken(_ context.Context, jti string, _ time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revoked[jti] = true
	return nil
}

func (d *denyList) RevokeAccount(context.Context, int, time.Time) error { return nil }

func (d *denyList) IsRevoked(_ context.Context, jti string, _ int, _ time.Time) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.revoked[jti], d.err
}

func newAuth(deny *denyList) *service.AuthService {
	cfg := &config.Config{JWTSecret: "middleware-secret", JWTExpiry: time.Hour, BcryptCost: 4}
	var revocations service.RevocationStore
	if deny != nil {
		revocations = deny
	}
	return service.NewAuthService(cfg, nil, revocations, zerolog.Nop())
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) response.ErrCode {
	t.Helper()
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return body.Error.Code
}

func guardedRouter(auth *service.AuthService, roles ...model.Role) *gin.Engine {
	r := gin.New()
	r.GET("/guarded", RequireAuth(auth), RejectRevoked(auth), RequireRole(roles...), func(c *gin.Context) {
		c.String(http.StatusOK, "user %d", GetClaims(c).UserID)
	})
	return r
}

func get(r http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGuard(t *testing.T) {
	deny := &denyList{revoked: map[string]bool{}}
	auth := newAuth(deny)
	r := guardedRouter(auth, model.RoleAdmin, model.RoleSuperadmin)

	adminToken, _, err := auth.IssueToken(1, "admin@example.com", model.RoleAdmin)
	require.NoError(t, err)
	studentToken, _, err := auth.IssueToken(2, "s@example.com", model.RoleStudent)
	require.NoError(t, err)

	t.Run("missing token", func(t *testing.T) {
		w := get(r, "/guarded", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, response.ErrTokenRequired, errorCode(t, w))
	})

	t.Run("malformed header", func(t *testing.T) {
		w := get(r, "/guarded", map[string]string{"Authorization": "Token " + adminToken})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, response.ErrTokenRequired, errorCode(t, w))
	})

	t.Run("invalid token", func(t *testing.T) {
		w := get(r, "/guarded", map[string]string{"Authorization": "Bearer garbage"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, response.ErrTokenInvalid, errorCode(t, w))
	})

	t.Run("wrong role", func(t *testing.T) {
		w := get(r, "/guarded", map[string]string{"Authorization": "Bearer " + studentToken})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, response.ErrForbidden, errorCode(t, w))
	})

	t.Run("allowed role", func(t *testing.T) {
		w := get(r, "/guarded", map[string]string{"Authorization": "bearer " + adminToken})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user 1", w.Body.String())
	})
}

func TestGuardRejectsRevokedToken(t *testing.T) {
	deny := &denyList{revoked: map[string]bool{}}
	auth := newAuth(deny)
	r := guardedRouter(auth, model.RoleTutor)

	token, claims, err := auth.IssueToken(3, "t@example.com", model.RoleTutor)
	require.NoError(t, err)
	require.NoError(t, auth.Logout(context.Background(), claims))

	w := get(r, "/guarded", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, response.ErrTokenRevoked, errorCode(t, w))
}

func TestGuardFailsClosedWhenDenyListIsDown(t *testing.T) {
	deny := &denyList{revoked: map[string]bool{}, err: errors.New("redis: connection refused")}
	auth := newAuth(deny)
	r := guardedRouter(auth, model.RoleTutor)

	token, _, err := auth.IssueToken(3, "t@example.com", model.RoleTutor)
	require.NoError(t, err)

	w := get(r, "/guarded", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, response.ErrTokenInvalid, errorCode(t, w))
}

func TestRequireRoleWithoutAuth(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequireRole(model.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := get(r, "/x", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

type memCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (m *memCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.counts[key]++
	return m.counts[key], nil
}

func limitedRouter(rl *RateLimiter) *gin.Engine {
	r := gin.New()
	r.POST("/login", rl.Middleware("login"), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/register", rl.Middleware("register"), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func post(r http.Handler, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = ip + ":5000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter(t *testing.T) {
	counter := &memCounter{counts: map[string]int64{}}
	rl := NewRateLimiter(counter, 2, time.Minute, zerolog.Nop())
	now := time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC)
	rl.now = func() time.Time { return now }
	r := limitedRouter(rl)

	w := post(r, "/login", "10.0.0.1")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusNoContent, post(r, "/login", "10.0.0.1").Code)

	w = post(r, "/login", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, response.ErrRateLimitExceeded, errorCode(t, w))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "31", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, post(r, "/login", "10.0.0.2").Code, "other clients are unaffected")
	assert.Equal(t, http.StatusNoContent, post(r, "/register", "10.0.0.1").Code, "routes are counted separately")

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusNoContent, post(r, "/login", "10.0.0.1").Code, "a new window resets the count")
}

func TestRateLimiterFailsOpen(t *testing.T) {
	counter := &memCounter{counts: map[string]int64{}, err: errors.New("redis down")}
	r := limitedRouter(NewRateLimiter(counter, 1, time.Minute, zerolog.Nop()))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, post(r, "/login", "10.0.0.1").Code)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	counter := &memCounter{counts: map[string]int64{}}
	r := limitedRouter(NewRateLimiter(counter, 0, time.Minute, zerolog.Nop()))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, post(r, "/login", "10.0.0.1").Code)
	}
	assert.Empty(t, counter.counts)
}

func brotliRouter(body string) *gin.Engine {
	r := gin.New()
	r.Use(BrotliWithConfig(BrotliConfig{MinLength: 64, SkipPaths: []string{"/metrics"}}))
	handler := func(c *gin.Context) { c.String(http.StatusOK, body) }
	r.GET("/data", handler)
	r.GET("/metrics", handler)
	return r
}

func TestBrotliCompressesLargeBodies(t *testing.T) {
	body := strings.Repeat("registration ", 100)
	r := brotliRouter(body)

	w := get(r, "/data", map[string]string{"Accept-Encoding": "gzip, br"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "br", w.Header().Get("Content-Encoding"))
	assert.Equal(t, "Accept-Encoding", w.Header().Get("Vary"))

	plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, body, string(plain))
}

func TestBrotliPassesThrough(t *testing.T) {
	long := strings.Repeat("x", 500)

	tests := []struct {
		name    string
		body    string
		path    string
		headers map[string]string
	}{
		{"small body", "ok", "/data", map[string]string{"Accept-Encoding": "br"}},
		{"client without br", long, "/data", map[string]string{"Accept-Encoding": "gzip"}},
		{"br refused", long, "/data", map[string]string{"Accept-Encoding": "br;q=0, gzip"}},
		{"skipped path", long, "/metrics", map[string]string{"Accept-Encoding": "br"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(brotliRouter(tt.body), tt.path, tt.headers)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Empty(t, w.Header().Get("Content-Encoding"))
			assert.Equal(t, tt.body, w.Body.String())
		})
	}
}

func TestNoStore(t *testing.T) {
	r := gin.New()
	r.GET("/x", NoStore(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := get(r, "/x", nil)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}
