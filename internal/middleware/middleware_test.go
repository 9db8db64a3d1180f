package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/model-booking/internal/access"
	"github.com/iliyamo/model-booking/internal/clock"
	"github.com/iliyamo/model-booking/internal/config"
	"github.com/iliyamo/model-booking/internal/session"
)

const secret = "middleware-test-secret"

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func serve(e *echo.Echo, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func TestAuthenticate(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	issuer := session.NewIssuer(secret, 15*time.Minute, clk)
	validator := session.NewValidator(secret, session.NewMemoryRevocations(clk), clk)

	e := echo.New()
	whoami := func(c echo.Context) error {
		s := SubjectFrom(c)
		return c.JSON(http.StatusOK, map[string]string{"id": s.ID, "role": string(s.Role)})
	}
	e.GET("/required", whoami, Authenticate(validator, false))
	e.GET("/optional", whoami, Authenticate(validator, true))

	cred, err := issuer.Issue("user-1", access.RoleUser)
	require.NoError(t, err)

	rec := serve(e, http.MethodGet, "/required", cred.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"user-1","role":"USER"}`, rec.Body.String())

	rec = serve(e, http.MethodGet, "/required", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTH_MALFORMED", errorCode(t, rec))

	rec = serve(e, http.MethodGet, "/optional", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"","role":"GUEST"}`, rec.Body.String())

	rec = serve(e, http.MethodGet, "/optional", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	clk.Advance(time.Hour)
	rec = serve(e, http.MethodGet, "/required", cred.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTH_EXPIRED", errorCode(t, rec))
}

func TestRequireAction(t *testing.T) {
	e := echo.New()
	as := func(s access.Subject) echo.MiddlewareFunc {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				c.Set(subjectKey, s)
				return next(c)
			}
		}
	}
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	gate := access.NewGate()
	e.POST("/user", ok, as(access.Subject{ID: "u", Role: access.RoleUser}), RequireAction(gate, access.ManageCatalog))
	e.POST("/admin", ok, as(access.Subject{ID: "a", Role: access.RoleAdmin}), RequireAction(gate, access.ManageCatalog))
	e.POST("/guest", ok, RequireAction(gate, access.ManageCatalog))

	rec := serve(e, http.MethodPost, "/user", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, rec))
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodPost, "/admin", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodPost, "/guest", "").Code)
}

func TestTokenBucket(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            2 * time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
	e := echo.New()
	e.Use(NewTokenBucket(cfg, rdb, nil))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	first := serve(e, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/", "").Code)

	blocked := serve(e, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
}

func TestTokenBucket_DisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	e.Use(NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, nil))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/", "").Code)
	}
}

func TestRedisCache(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled:     true,
		Methods:     []string{"get"},
		TTL:         time.Minute,
		KeyStrategy: "route_query",
		Prefix:      "cache",
	}
	calls := 0
	e := echo.New()
	e.Use(NewRedisCache(cfg, rdb))
	e.GET("/models/:id", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, map[string]any{"id": c.Param("id"), "calls": calls})
	})

	miss := serve(e, http.MethodGet, "/models/a", "")
	assert.Equal(t, "MISS", miss.Header().Get("X-Cache"))
	hit := serve(e, http.MethodGet, "/models/a", "")
	assert.Equal(t, "HIT", hit.Header().Get("X-Cache"))
	assert.Equal(t, miss.Body.String(), hit.Body.String())
	assert.Equal(t, 1, calls)

	other := serve(e, http.MethodGet, "/models/b", "")
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)

	serve(e, http.MethodGet, "/models/a", "some-token")
	assert.Equal(t, 3, calls, "authenticated requests bypass the cache")

	require.NoError(t, PurgeCache(context.Background(), cfg, rdb))
	serve(e, http.MethodGet, "/models/a", "")
	assert.Equal(t, 4, calls)
}
