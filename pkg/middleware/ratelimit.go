package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rate-limiter defaults sized for a client that sends one symbol per
// request: a full name plus scores is a burst of a few dozen calls.
const (
	DefaultRatePerSecond = 30
	DefaultRateBurst     = 60

	limiterIdleTTL = 10 * time.Minute
)

// limiterEntry pairs a token bucket with its last use for reclamation.
type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a per-client token bucket keyed like sessions.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*limiterEntry
	rps     rate.Limit
	burst   int
}

// NewRateLimiter creates a per-client limiter. Non-positive arguments
// select the defaults.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = DefaultRatePerSecond
	}
	if burst <= 0 {
		burst = DefaultRateBurst
	}
	return &RateLimiter{
		clients: make(map[string]*limiterEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

// allow reports whether the client may proceed, creating its bucket on
// first sight and reclaiming idle buckets opportunistically.
func (l *RateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	e, ok := l.clients[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[key] = e

		for k, old := range l.clients {
			if now.Sub(old.lastSeen) > limiterIdleTTL {
				delete(l.clients, k)
			}
		}
	}
	e.lastSeen = now
	return e.limiter.Allow()
}

// Middleware rejects over-limit requests with 429 and a short error token.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(ClientKey(r)) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("ERR_RATE\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
