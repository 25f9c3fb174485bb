package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/crmacl/pkg/contextkeys"
	"github.com/platinummonkey/crmacl/pkg/entity"
)

func TestRateLimiterAllow(t *testing.T) {
	config := &RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute, BurstSize: 2}
	limiter := NewRateLimiter(config)
	ctx := context.Background()

	allowed := 0
	for i := 0; i < 20; i++ {
		ok, err := limiter.Allow(ctx, "user:u1")
		require.NoError(t, err)
		if ok {
			allowed++
		}
	}
	assert.Equal(t, 12, allowed)
	assert.Equal(t, 0, limiter.Remaining("user:u1"))
	assert.Equal(t, 12, limiter.Remaining("user:u2"))
}

func TestRateLimiterCleanup(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 10 * time.Millisecond})
	_, _ = limiter.Allow(context.Background(), "user:u1")

	time.Sleep(30 * time.Millisecond)
	limiter.Cleanup()

	limiter.mu.RLock()
	defer limiter.mu.RUnlock()
	assert.Empty(t, limiter.buckets)
}

func serveAs(h http.Handler, user *entity.User) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/acl", nil)
	if user != nil {
		r = r.WithContext(contextkeys.WithUser(r.Context(), user))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestRateLimitMiddlewareTiers(t *testing.T) {
	tight := &RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}
	m := newRateLimitMiddleware(NewRateLimiter(tight), NewRateLimiter(tight), NewRateLimiter(tight), nil)
	h := m.Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	regular := &entity.User{ID: "u1"}
	assert.Equal(t, http.StatusOK, serveAs(h, regular).Code)
	w := serveAs(h, regular)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, serveAs(h, &entity.User{ID: "u2"}).Code)

	system := &entity.User{ID: "system", Type: entity.UserTypeSystem}
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serveAs(h, system).Code)
	}

	assert.Equal(t, http.StatusOK, serveAs(h, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serveAs(h, nil).Code)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func (failingLimiter) Config() *RateLimitConfig { return DefaultRateLimitConfig() }

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	log, hook := test.NewNullLogger()
	m := newRateLimitMiddleware(failingLimiter{}, failingLimiter{}, failingLimiter{}, log)
	h := m.Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	assert.Equal(t, http.StatusOK, serveAs(h, &entity.User{ID: "u1"}).Code)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "user:u1", hook.LastEntry().Data["key"])
}

func TestDistributedRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}, "")

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "user:u1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := limiter.Allow(ctx, "user:u1")
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := limiter.Remaining(ctx, "user:u1")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, time.Minute, mr.TTL("crmacl:ratelimit:user:u1"))

	mr.FastForward(time.Minute)
	ok, err = limiter.Allow(ctx, "user:u1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, limiter.Reset(ctx, "user:u1"))
	remaining, err = limiter.Remaining(ctx, "user:u1")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}

func TestDistributedRateLimitMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	h := NewDistributedRateLimitMiddleware(client, nil).Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	w := serveAs(h, &entity.User{ID: "u1", Type: entity.UserTypeAPI})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5000", w.Header().Get("X-RateLimit-Limit"))
	count, err := mr.Get("crmacl:ratelimit:api:user:u1")
	require.NoError(t, err)
	assert.Equal(t, "1", count)
}
