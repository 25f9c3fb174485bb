package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/crmacl/pkg/contextkeys"
	"github.com/platinummonkey/crmacl/pkg/entity"
	"github.com/platinummonkey/crmacl/pkg/httputil"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// DefaultRateLimitConfig applies to portal users and anonymous requests.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 100,
		WindowDuration:    time.Minute,
		BurstSize:         10,
	}
}

// PerUserRateLimitConfig returns per-user rate limit settings
func PerUserRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 1000,
		WindowDuration:    time.Minute,
		BurstSize:         50,
	}
}

// PerAPIUserRateLimitConfig returns rate limits for API users
func PerAPIUserRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 5000,
		WindowDuration:    time.Minute,
		BurstSize:         100,
	}
}

// Limiter decides whether one more request under key fits its limit.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Config() *RateLimitConfig
}

// RateLimiter implements rate limiting using token bucket algorithm
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[string]*bucket
	mu      sync.RWMutex
}

type bucket struct {
	tokens     int
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}

	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
	}
}

func (rl *RateLimiter) Config() *RateLimitConfig { return rl.config }

func (rl *RateLimiter) capacity() int {
	return rl.config.RequestsPerWindow + rl.config.BurstSize
}

// Allow takes a token from the bucket of key. It never fails.
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	rl.mu.Lock()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{
			tokens:     rl.capacity(),
			lastUpdate: time.Now(),
		}
		rl.buckets[key] = b
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastUpdate)

	tokensToAdd := int(elapsed.Seconds() * float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds())
	if tokensToAdd > 0 {
		b.tokens += tokensToAdd
		if b.tokens > rl.capacity() {
			b.tokens = rl.capacity()
		}
		b.lastUpdate = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true, nil
	}
	return false, nil
}

// Remaining returns the number of remaining tokens for a key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.RLock()
	b, exists := rl.buckets[key]
	rl.mu.RUnlock()

	if !exists {
		return rl.capacity()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

// Cleanup removes buckets idle for two windows.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, b := range rl.buckets {
		b.mu.Lock()
		if now.Sub(b.lastUpdate) > rl.config.WindowDuration*2 {
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
}

// StartCleanup runs Cleanup every window until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RateLimitMiddleware limits requests per acting user, or per client IP when
// no user is known.
type RateLimitMiddleware struct {
	userLimiter      Limiter
	apiLimiter       Limiter
	anonymousLimiter Limiter
	log              *logrus.Logger
}

// NewRateLimitMiddleware creates an in-memory rate limit middleware
func NewRateLimitMiddleware(log *logrus.Logger) *RateLimitMiddleware {
	return newRateLimitMiddleware(
		NewRateLimiter(PerUserRateLimitConfig()),
		NewRateLimiter(PerAPIUserRateLimitConfig()),
		NewRateLimiter(DefaultRateLimitConfig()),
		log,
	)
}

func newRateLimitMiddleware(user, api, anonymous Limiter, log *logrus.Logger) *RateLimitMiddleware {
	if log == nil {
		log = logrus.New()
	}
	return &RateLimitMiddleware{
		userLimiter:      user,
		apiLimiter:       api,
		anonymousLimiter: anonymous,
		log:              log,
	}
}

// StartCleanup starts bucket cleanup for the in-memory limiters.
func (m *RateLimitMiddleware) StartCleanup(ctx context.Context) {
	for _, l := range []Limiter{m.userLimiter, m.apiLimiter, m.anonymousLimiter} {
		if rl, ok := l.(*RateLimiter); ok {
			rl.StartCleanup(ctx)
		}
	}
}

func (m *RateLimitMiddleware) limiterFor(user *entity.User, r *http.Request) (Limiter, string) {
	if user == nil {
		return m.anonymousLimiter, "ip:" + getClientIP(r)
	}
	key := "user:" + user.ID
	switch {
	case user.IsSystem():
		return nil, key
	case user.IsAPI():
		return m.apiLimiter, key
	case user.IsPortal():
		return m.anonymousLimiter, key
	}
	return m.userLimiter, key
}

// Handler wraps an HTTP handler with rate limiting. Limiter errors let the
// request through.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter, key := m.limiterFor(contextkeys.GetUser(r.Context()), r)
		if limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		allowed, err := limiter.Allow(r.Context(), key)
		if err != nil {
			m.log.WithError(err).WithField("key", key).Warn("Rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		config := limiter.Config()
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
		if !allowed {
			retryAfter := fmt.Sprintf("%.0f", config.WindowDuration.Seconds())
			w.Header().Set("Retry-After", retryAfter)
			w.Header().Set("X-RateLimit-Remaining", "0")
			httputil.WriteErrorMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
