package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// limitChecker decides whether one more request from identifier fits the window
type limitChecker interface {
	checkLimit(ctx context.Context, identifier string) (allowed bool, remaining int, reset time.Time, err error)
}

// RateLimiter implements a sliding-window rate limit backed by Redis
type RateLimiter struct {
	checker     limitChecker
	maxRequests int
	log         zerolog.Logger
}

// NewRateLimiter creates a new rate limiter. A nil client or a non-positive
// limit yields a limiter that lets everything through.
func NewRateLimiter(client *redis.Client, maxRequests int, window time.Duration, log zerolog.Logger) *RateLimiter {
	if client == nil || maxRequests <= 0 {
		return &RateLimiter{log: log}
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		checker:     &redisWindow{redis: client, maxRequests: maxRequests, window: window},
		maxRequests: maxRequests,
		log:         log,
	}
}

// Wrap limits next per client address. Redis errors let the request through.
func (rl *RateLimiter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	if rl == nil || rl.checker == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		identifier := clientIP(r)

		allowed, remaining, reset, err := rl.checker.checkLimit(r.Context(), identifier)
		if err != nil {
			rl.log.Error().Err(err).Msg("Rate limiter error")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.maxRequests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			rl.log.Warn().
				Str("identifier", identifier).
				Int("limit", rl.maxRequests).
				Msg("Rate limit exceeded")
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(reset).Round(time.Second).Seconds())))
			respondText(w, http.StatusTooManyRequests, "Rate limit exceeded.")
			return
		}

		next.ServeHTTP(w, r)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type redisWindow struct {
	redis       *redis.Client
	maxRequests int
	window      time.Duration
}

// checkLimit keeps one sorted-set member per request, scored by arrival time
func (rw *redisWindow) checkLimit(ctx context.Context, identifier string) (bool, int, time.Time, error) {
	key := fmt.Sprintf("ratelimit:trigger:%s", identifier)
	now := time.Now()
	windowStart := now.Add(-rw.window)

	pipe := rw.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, key, rw.window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, time.Time{}, err
	}

	count := int(countCmd.Val())
	remaining := max(rw.maxRequests-count-1, 0)

	return count < rw.maxRequests, remaining, now.Add(rw.window), nil
}
