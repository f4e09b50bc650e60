package middleware

import (
    "context"
    "errors"
    "net/http"
    "net/http/httptest"
    "os"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/trunk-player/internal/config"
    "github.com/iliyamo/trunk-player/internal/model"
    "github.com/iliyamo/trunk-player/internal/utils"
)

const secret = "test-secret"

func whoami(c echo.Context) error {
    p := PrincipalFrom(c)
    return c.JSON(http.StatusOK, echo.Map{"user_id": p.UserID, "role": p.Role, "auth": p.Authenticated})
}

func serve(e *echo.Echo, method, path, auth string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(method, path, nil)
    if auth != "" {
        req.Header.Set("Authorization", auth)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func bearer(t *testing.T, userID uint64, role string) string {
    t.Helper()
    tok, err := utils.NewAccessToken(secret, userID, role, 5)
    require.NoError(t, err)
    return "Bearer " + tok.Token
}

func TestAuthenticate(t *testing.T) {
    e := echo.New()
    e.GET("/me", whoami, Authenticate(secret))

    rec := serve(e, http.MethodGet, "/me", "")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"user_id":0,"role":"","auth":false}`, rec.Body.String())

    rec = serve(e, http.MethodGet, "/me", bearer(t, 42, "admin"))
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"user_id":42,"role":"admin","auth":true}`, rec.Body.String())

    rec = serve(e, http.MethodGet, "/me", "Bearer not-a-jwt")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    other, err := utils.NewAccessToken("other-secret", 42, "admin", 5)
    require.NoError(t, err)
    rec = serve(e, http.MethodGet, "/me", "Bearer "+other.Token)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPrincipalFromWithoutMiddleware(t *testing.T) {
    c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
    assert.Equal(t, model.Anonymous(), PrincipalFrom(c))
}

func TestRequireUserAndRole(t *testing.T) {
    e := echo.New()
    e.GET("/user", whoami, Authenticate(secret), RequireUser())
    e.GET("/admin", whoami, Authenticate(secret), RequireRole("admin"))

    assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/user", "").Code)
    assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/user", bearer(t, 1, "user")).Code)

    assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/admin", "").Code)
    assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/admin", bearer(t, 1, "user")).Code)
    assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/admin", bearer(t, 1, "admin")).Code)
}

func TestImportToken(t *testing.T) {
    e := echo.New()
    authorize := func(h string) error {
        if h == "Token good" {
            return nil
        }
        return errors.New("bad token")
    }
    e.POST("/import", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, ImportToken(authorize))

    assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/import", "Token good").Code)
    rec := serve(e, http.MethodPost, "/import", "Token bad")
    assert.Equal(t, http.StatusForbidden, rec.Code)
    assert.Contains(t, rec.Body.String(), "Invalid token")
    assert.Equal(t, http.StatusForbidden, serve(e, http.MethodPost, "/import", "").Code)
}

func TestCachePayloadRoundTrip(t *testing.T) {
    hdr := http.Header{"Content-Type": {"application/json"}}
    bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
    require.NoError(t, err)

    status, got, body, ok := decodePayload(bs)
    require.True(t, ok)
    assert.Equal(t, http.StatusOK, status)
    assert.Equal(t, "application/json", got.Get("Content-Type"))
    assert.Equal(t, `{"a":1}`, string(body))

    _, _, _, ok = decodePayload(bs[:5])
    assert.False(t, ok)
}

func TestCacheKeySeparatesPrincipals(t *testing.T) {
    cfg := config.CacheConfig{Prefix: "tpcache"}
    e := echo.New()
    ctx := func(p model.Principal) echo.Context {
        c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v2/talkgroups?system=1", nil), httptest.NewRecorder())
        c.SetPath("/api/v2/talkgroups")
        c.Set(principalKey, p)
        return c
    }
    anon := cacheKey(cfg, ctx(model.Anonymous()))
    user := cacheKey(cfg, ctx(model.UserPrincipal(7, "user")))
    assert.NotEqual(t, anon, user)
    assert.Equal(t, anon, cacheKey(cfg, ctx(model.Anonymous())))
    assert.Contains(t, user, "tpcache:u7:")
}

func TestMiddlewaresWithoutRedisPassThrough(t *testing.T) {
    e := echo.New()
    e.GET("/x", whoami,
        NewRedisCache(config.CacheConfig{Enabled: true}, nil),
        NewRateLimiter(config.RateLimitConfig{Enabled: true, Limit: 1, Window: time.Minute}, nil))
    for i := 0; i < 3; i++ {
        rec := serve(e, http.MethodGet, "/x", "")
        assert.Equal(t, http.StatusOK, rec.Code)
        assert.Empty(t, rec.Header().Get("X-Cache"))
    }
}

// redisClient returns a client for REDIS_ADDR, skipping the test when no
// server is reachable.
func redisClient(t *testing.T) *redis.Client {
    t.Helper()
    addr := os.Getenv("REDIS_ADDR")
    if addr == "" {
        t.Skip("REDIS_ADDR not set")
    }
    rdb := redis.NewClient(&redis.Options{Addr: addr})
    ctx, cancel := context.WithTimeout(context.Background(), time.Second)
    defer cancel()
    if err := rdb.Ping(ctx).Err(); err != nil {
        t.Skipf("redis unreachable: %v", err)
    }
    t.Cleanup(func() { _ = rdb.Close() })
    return rdb
}

func TestRedisCacheHit(t *testing.T) {
    rdb := redisClient(t)
    cfg := config.CacheConfig{Enabled: true, TTL: time.Minute, Prefix: "tpcache-test-" + time.Now().Format("150405.000000"), MaxBodyBytes: 1 << 20}
    calls := 0
    e := echo.New()
    e.GET("/x", func(c echo.Context) error {
        calls++
        return c.JSON(http.StatusOK, echo.Map{"n": 1})
    }, Authenticate(secret), NewRedisCache(cfg, rdb))

    first := serve(e, http.MethodGet, "/x", "")
    assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
    second := serve(e, http.MethodGet, "/x", "")
    assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
    assert.Equal(t, first.Body.String(), second.Body.String())
    assert.Equal(t, 1, calls)

    // another principal misses
    third := serve(e, http.MethodGet, "/x", bearer(t, 3, "user"))
    assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
    assert.Equal(t, 2, calls)
}

func TestRedisRateLimit(t *testing.T) {
    rdb := redisClient(t)
    cfg := config.RateLimitConfig{Enabled: true, Limit: 2, Window: time.Minute, Prefix: "tprl-test-" + time.Now().Format("150405.000000")}
    e := echo.New()
    e.GET("/x", whoami, NewRateLimiter(cfg, rdb))

    assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/x", "").Code)
    assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/x", "").Code)
    rec := serve(e, http.MethodGet, "/x", "")
    assert.Equal(t, http.StatusTooManyRequests, rec.Code)
    assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
