package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	bucketSweepEvery = 5 * time.Minute
	bucketIdleExpiry = 10 * time.Minute
)

// rateLimiter keeps one token bucket per client IP. Idle buckets are
// swept opportunistically from allow, so no background goroutine is
// needed.
type rateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*ipBucket
	perSecond rate.Limit
	burst     int
	lastSweep time.Time
}

type ipBucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter refills r tokens per second into each IP's bucket,
// which starts full at burst.
func newRateLimiter(r float64, burst int) *rateLimiter {
	return &rateLimiter{
		buckets:   make(map[string]*ipBucket),
		perSecond: rate.Limit(r),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSweep) > bucketSweepEvery {
		rl.sweepLocked(now)
	}

	b, ok := rl.buckets[ip]
	if !ok {
		b = &ipBucket{tokens: rate.NewLimiter(rl.perSecond, rl.burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = now
	return b.tokens.Allow()
}

// sweepLocked drops buckets idle past bucketIdleExpiry. Caller holds mu.
func (rl *rateLimiter) sweepLocked(now time.Time) {
	for ip, b := range rl.buckets {
		if now.Sub(b.lastSeen) > bucketIdleExpiry {
			delete(rl.buckets, ip)
		}
	}
	rl.lastSweep = now
}

// rateLimitMiddleware answers 429 with a Retry-After hint once an IP's
// bucket runs dry.
func rateLimitMiddleware(rl *rateLimiter, trustProxy bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if !rl.allow(ip) {
				logger.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the address requests are limited by. Proxy headers
// (X-Real-IP, then the first X-Forwarded-For hop) are consulted only
// when trustProxy is set and only when they parse as real IPs; anything
// else falls through to RemoteAddr.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, candidate := range proxyHops(r) {
			if ip := net.ParseIP(strings.TrimSpace(candidate)); ip != nil {
				return ip.String()
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// proxyHops lists header-reported client addresses in trust order.
func proxyHops(r *http.Request) []string {
	var hops []string
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		hops = append(hops, xri)
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		hops = append(hops, first)
	}
	return hops
}
