package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/auth"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBucket(limits Limits) (*TokenBucket, *fakeClock) {
	clock := &fakeClock{now: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	tb := NewTokenBucket(limits)
	tb.now = clock.Now
	return tb, clock
}

func TestTokenBucket_Take(t *testing.T) {
	tb, clock := newTestBucket(Limits{PerMinute: 3, Burst: 1})

	for i := range 4 {
		ok, remaining := tb.Take("k")
		assert.True(t, ok, "request %d", i)
		assert.Equal(t, 3-i, remaining)
	}
	ok, _ := tb.Take("k")
	assert.False(t, ok)
	ok, _ = tb.Take("other")
	assert.True(t, ok, "keys are independent")

	clock.Advance(20 * time.Second)
	ok, _ = tb.Take("k")
	assert.True(t, ok, "one token refilled")
	ok, _ = tb.Take("k")
	assert.False(t, ok)

	clock.Advance(10 * time.Second)
	ok, _ = tb.Take("k")
	assert.False(t, ok, "half a token is not enough")
	clock.Advance(10 * time.Second)
	ok, _ = tb.Take("k")
	assert.True(t, ok, "partial refills accumulate")

	clock.Advance(time.Hour)
	ok, remaining := tb.Take("k")
	assert.True(t, ok)
	assert.Equal(t, 3, remaining, "refill is capped at capacity")
}

func TestTokenBucket_Sweep(t *testing.T) {
	tb, clock := newTestBucket(Limits{PerMinute: 10})
	tb.Take("idle")
	clock.Advance(3 * time.Minute)
	tb.Take("busy")

	assert.Equal(t, 1, tb.Sweep(2*time.Minute))
	assert.NotContains(t, tb.buckets, "idle")
	assert.Contains(t, tb.buckets, "busy")
}

func TestTokenBucket_Concurrency(t *testing.T) {
	tb, _ := newTestBucket(Limits{PerMinute: 50})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := tb.Take("shared"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestLimits_RetryAfter(t *testing.T) {
	assert.Equal(t, 60*time.Second, Limits{PerMinute: 1}.retryAfter())
	assert.Equal(t, 600*time.Millisecond, Limits{PerMinute: 100}.retryAfter())
	assert.Equal(t, time.Minute, Limits{}.retryAfter())
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:1234", "198.51.100.4"},
		{"remote with port", nil, "192.0.2.1:5555", "192.0.2.1"},
		{"remote without port", nil, "192.0.2.1", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}

func TestAPIRateLimit_Handler(t *testing.T) {
	tokens, err := auth.NewTokenIssuer("0123456789abcdef0123456789abcdef", "taskhub", time.Hour)
	require.NoError(t, err)
	issue := func(userID string) string {
		token, _, err := tokens.Issue(auth.Principal{UserID: userID})
		require.NoError(t, err)
		return token
	}

	limiter := NewAPIRateLimit(tokens, Limits{PerMinute: 2}, Limits{PerMinute: 1})
	handler := limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:1000"
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	first := serve("")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	limited := serve("")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), "RATE_LIMITED")

	assert.Equal(t, http.StatusTooManyRequests, serve("forged").Code, "invalid tokens count against the address")

	u1 := issue("u1")
	assert.Equal(t, http.StatusOK, serve(u1).Code, "users have their own bucket")
	assert.Equal(t, http.StatusOK, serve(u1).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(u1).Code)
	assert.Equal(t, http.StatusOK, serve(issue("u2")).Code)
}

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestDistributedRateLimiter(t *testing.T) {
	ctx := context.Background()
	client, mr := newRedis(t)
	rl := NewDistributedRateLimiter(client, 2, time.Minute, "")

	for range 2 {
		ok, err := rl.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := rl.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := rl.Remaining(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, remaining)

	ttl, err := rl.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl, "later calls do not extend the window")

	mr.FastForward(time.Minute)
	ok, err = rl.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, rl.Reset(ctx, "k"))
	remaining, err = rl.Remaining(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}

func TestLoginRateLimit(t *testing.T) {
	client, mr := newRedis(t)
	handler := LoginRateLimit(NewDistributedRateLimiter(client, 2, 15*time.Minute, "taskhub"))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	login := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = ip + ":4000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, login("192.0.2.1"))
	assert.Equal(t, http.StatusOK, login("192.0.2.1"))
	assert.Equal(t, http.StatusTooManyRequests, login("192.0.2.1"))
	assert.Equal(t, http.StatusOK, login("192.0.2.2"))
	assert.True(t, mr.Exists("taskhub:login:192.0.2.1"))

	t.Run("fails open without redis", func(t *testing.T) {
		mr.Close()
		assert.Equal(t, http.StatusOK, login("192.0.2.1"))
	})
}
