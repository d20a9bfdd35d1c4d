package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces a fixed-window request budget per caller in Redis.
// A nil client disables limiting. Redis errors let the request through.
type RateLimiter struct {
	rdb    redis.Cmdable
	limit  int
	window time.Duration
	logger *slog.Logger
}

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(rdb redis.Cmdable, limit int, window time.Duration, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{rdb: rdb, limit: limit, window: window, logger: logger}
}

// Allow counts one request for id against resource and reports whether it fits the budget.
func (l *RateLimiter) Allow(ctx context.Context, resource, id string) (bool, error) {
	if l.rdb == nil || l.limit <= 0 {
		return true, nil
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)
	cnt, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			return false, err
		}
	}
	return cnt <= int64(l.limit), nil
}

// Writes limits mutating requests. Reads are never throttled.
func (l *RateLimiter) Writes() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			id := "ip:" + clientIP(r)
			if uid := UserID(r.Context()); uid != "" {
				id = "user:" + uid
			}

			allowed, err := l.Allow(r.Context(), "writes", id)
			if err != nil {
				l.logger.WarnContext(r.Context(), "rate limit check failed", slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
				writeMessage(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ConnectRedis parses url and verifies the server answers.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
