package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/clinicore/access-control/internal/config"
)

func rateCfg(capacity int) config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       capacity,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	}
}

func limitedEcho(mw echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.POST("/auth/login", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, mw)
	return e
}

func fire(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = ip + ":12345"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRedisBucketExhausts(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer rdb.Close()

	e := limitedEcho(NewTokenBucket(rateCfg(3), rdb))

	for i := 0; i < 3; i++ {
		if rec := fire(e, "10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
	rec := fire(e, "10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("4th request: status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 without Retry-After header")
	}
}

func TestRedisBucketKeysByIP(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer rdb.Close()

	e := limitedEcho(NewTokenBucket(rateCfg(1), rdb))

	if rec := fire(e, "10.0.0.1"); rec.Code != http.StatusOK {
		t.Fatalf("first caller: status = %d", rec.Code)
	}
	if rec := fire(e, "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("first caller again: status = %d, want 429", rec.Code)
	}
	// A different client address holds its own bucket.
	if rec := fire(e, "10.0.0.2"); rec.Code != http.StatusOK {
		t.Fatalf("second caller: status = %d, want 200", rec.Code)
	}
}

func TestRedisBucketRefills(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer rdb.Close()

	cfg := rateCfg(1)
	cfg.RefillInterval = 50 * time.Millisecond
	e := limitedEcho(NewTokenBucket(cfg, rdb))

	if rec := fire(e, "10.0.0.1"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec := fire(e, "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	time.Sleep(60 * time.Millisecond)
	if rec := fire(e, "10.0.0.1"); rec.Code != http.StatusOK {
		t.Fatalf("after refill: status = %d, want 200", rec.Code)
	}
}

func TestRedisBucketFailsOpen(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer rdb.Close()

	e := limitedEcho(NewTokenBucket(rateCfg(1), rdb))
	srv.Close() // simulate a Redis outage

	// Requests must pass rather than lock everyone out of login.
	for i := 0; i < 3; i++ {
		if rec := fire(e, "10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d during outage: status = %d, want 200", i+1, rec.Code)
		}
	}
}

func TestLocalBucketFallback(t *testing.T) {
	// nil Redis client: the limiter degrades to an in-process bucket.
	e := limitedEcho(NewTokenBucket(rateCfg(2), nil))

	for i := 0; i < 2; i++ {
		if rec := fire(e, "10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
	if rec := fire(e, "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec := fire(e, "10.0.0.9"); rec.Code != http.StatusOK {
		t.Fatalf("other ip: status = %d, want 200", rec.Code)
	}
}

func TestLocalBucketClampsZeroRefill(t *testing.T) {
	// A zero refill rate must not panic the rate math; the limiter
	// clamps it and still serves traffic.
	cfg := rateCfg(2)
	cfg.RefillTokens = 0
	cfg.RefillInterval = 0
	e := limitedEcho(NewTokenBucket(cfg, nil))

	if rec := fire(e, "10.0.0.1"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	fire(e, "10.0.0.1")
	if rec := fire(e, "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 once the bucket drains", rec.Code)
	}
}

func TestDisabledLimiterPassesThrough(t *testing.T) {
	cfg := rateCfg(1)
	cfg.Enabled = false
	e := limitedEcho(NewTokenBucket(cfg, nil))

	for i := 0; i < 10; i++ {
		if rec := fire(e, "10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
}
