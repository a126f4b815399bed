package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces a per-IP sliding window over a Redis sorted set,
// one set per client IP, scored by request timestamp.
type RateLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
}

// NewRateLimiter allows maxReqs requests per client within windowSec seconds.
func NewRateLimiter(client redis.Cmdable, maxReqs, windowSec int) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  maxReqs,
		window: time.Duration(windowSec) * time.Second,
	}
}

// Middleware rejects over-limit requests with 429. A Redis failure fails
// open so an unavailable limiter never takes the auth endpoints down.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		allowed, err := rl.allow(r.Context(), "ratelimit:auth:"+ip)
		if err != nil {
			slog.Warn("rate limiter unavailable, failing open", "error", err, "ip", ip)
			allowed = true
		}
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"too many requests"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	cutoff := strconv.FormatInt(now.Add(-rl.window).UnixMilli(), 10)

	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", cutoff)
	inWindow := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	pipe.Expire(ctx, key, rl.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return inWindow.Val() < int64(rl.limit), nil
}

// clientIP prefers proxy headers over the socket address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
