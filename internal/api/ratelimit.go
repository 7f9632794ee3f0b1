package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/eln-backtest/pkg/logger"
	"github.com/wonny/eln-backtest/pkg/redis"
)

// RateLimiter enforces a per-client request budget. With Redis enabled the
// budget is shared across API instances through a sliding window; otherwise
// each instance keeps in-process token buckets.
type RateLimiter struct {
	shared    *redis.RateLimiter
	perMinute int
	logger    *logger.Logger

	mu     sync.Mutex
	local  map[string]*localBucket
	lastGC time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing perMinute requests per client.
// shared may be nil or disabled.
func NewRateLimiter(shared *redis.RateLimiter, perMinute int, log *logger.Logger) *RateLimiter {
	return &RateLimiter{
		shared:    shared,
		perMinute: perMinute,
		logger:    log,
		local:     make(map[string]*localBucket),
		lastGC:    time.Now(),
	}
}

// Middleware rejects requests over budget with 429
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.perMinute <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		if !l.allow(r) {
			w.Header().Set("Retry-After", strconv.Itoa(60/l.perMinute+1))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"Rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) allow(r *http.Request) bool {
	client := clientIP(r)

	if l.shared != nil && l.shared.Enabled() {
		allowed, _, err := l.shared.Allow(r.Context(), redis.APIRateLimit(client, l.perMinute))
		if err == nil {
			return allowed
		}
		l.logger.WithError(err).Warn("Shared rate limit failed, using local limiter")
	}

	return l.localAllow(client, time.Now())
}

func (l *RateLimiter) localAllow(client string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	// forget idle clients every few minutes
	if now.Sub(l.lastGC) > 5*time.Minute {
		for k, b := range l.local {
			if now.Sub(b.lastSeen) > 5*time.Minute {
				delete(l.local, k)
			}
		}
		l.lastGC = now
	}

	b, ok := l.local[client]
	if !ok {
		b = &localBucket{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute),
		}
		l.local[client] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
