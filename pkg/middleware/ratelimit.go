package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/taskhub/pkg/httputil"
)

// Limits is the request allowance of one class of caller. A bucket holds
// PerMinute+Burst tokens and refills continuously at PerMinute per minute.
type Limits struct {
	PerMinute int
	Burst     int
}

// Default allowances for anonymous and signed-in callers
var (
	AnonymousLimits = Limits{PerMinute: 100, Burst: 10}
	SessionLimits   = Limits{PerMinute: 1000, Burst: 50}
)

func (l Limits) capacity() float64 {
	return float64(l.PerMinute + l.Burst)
}

// retryAfter is the wait until one token is back
func (l Limits) retryAfter() time.Duration {
	if l.PerMinute <= 0 {
		return time.Minute
	}
	return time.Duration(math.Ceil(float64(time.Minute) / float64(l.PerMinute)))
}

// TokenBucket is an in-process limiter keyed by caller
type TokenBucket struct {
	limits Limits
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucketState
}

type bucketState struct {
	tokens float64
	seen   time.Time
}

// NewTokenBucket creates a limiter enforcing limits per key
func NewTokenBucket(limits Limits) *TokenBucket {
	return &TokenBucket{
		limits:  limits,
		now:     time.Now,
		buckets: make(map[string]*bucketState),
	}
}

// Take spends one token of key. It reports whether a token was available
// and how many whole tokens are left.
func (tb *TokenBucket) Take(key string) (bool, int) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucketState{tokens: tb.limits.capacity(), seen: now}
		tb.buckets[key] = b
	}

	refill := now.Sub(b.seen).Seconds() * float64(tb.limits.PerMinute) / 60
	b.tokens = math.Min(tb.limits.capacity(), b.tokens+refill)
	b.seen = now

	if b.tokens < 1 {
		return false, 0
	}
	b.tokens--
	return true, int(b.tokens)
}

// Sweep forgets keys not seen for idle and returns how many were dropped.
// A forgotten key starts again with a full bucket, so idle should be at
// least the time a bucket needs to refill.
func (tb *TokenBucket) Sweep(idle time.Duration) int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	cutoff := tb.now().Add(-idle)
	dropped := 0
	for key, b := range tb.buckets {
		if b.seen.Before(cutoff) {
			delete(tb.buckets, key)
			dropped++
		}
	}
	return dropped
}

func (tb *TokenBucket) sweepEvery(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			tb.Sweep(2 * every)
		case <-ctx.Done():
			return
		}
	}
}

// APIRateLimit throttles API traffic per signed-in user, falling back to
// the client address when the request carries no valid session. It runs
// ahead of routing, so it reads the bearer token itself.
type APIRateLimit struct {
	verifier  TokenVerifier
	sessions  *TokenBucket
	anonymous *TokenBucket
}

// NewAPIRateLimit creates the limiter. verifier may be nil, in which case
// every caller is limited by address.
func NewAPIRateLimit(verifier TokenVerifier, sessions, anonymous Limits) *APIRateLimit {
	return &APIRateLimit{
		verifier:  verifier,
		sessions:  NewTokenBucket(sessions),
		anonymous: NewTokenBucket(anonymous),
	}
}

// Start sweeps idle buckets once a minute until ctx is done
func (l *APIRateLimit) Start(ctx context.Context) {
	go l.sessions.sweepEvery(ctx, time.Minute)
	go l.anonymous.sweepEvery(ctx, time.Minute)
}

func (l *APIRateLimit) bucketFor(r *http.Request) (*TokenBucket, string) {
	if l.verifier != nil {
		if token, ok := bearerToken(r); ok {
			if p, err := l.verifier.Verify(token); err == nil {
				return l.sessions, "user:" + p.UserID
			}
		}
	}
	return l.anonymous, "ip:" + clientIP(r)
}

// Handler wraps next with the limit
func (l *APIRateLimit) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bucket, key := l.bucketFor(r)
		ok, remaining := bucket.Take(key)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(bucket.limits.PerMinute))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			wait := bucket.limits.retryAfter()
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			httputil.WriteTooManyRequests(w, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// remote host
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
