package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/chatooz-backend/pkg/clientip"
)

// RateLimitKeyPrefix is the Redis key prefix for rate limiting
const RateLimitKeyPrefix = "ratelimit:"

// KeyFunc picks the bucket a request is counted in.
type KeyFunc func(r *http.Request) string

// ByIP counts requests per client IP.
func ByIP(trustProxy bool) KeyFunc {
	return func(r *http.Request) string {
		return "ip:" + clientip.FromRequest(r, trustProxy)
	}
}

// RedisRateLimit allows max requests per window and bucket, shared across all
// instances through Redis. When Redis fails the request is let through.
func RedisRateLimit(rdb *redis.Client, name string, max int, window time.Duration, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			rateLimitKey := RateLimitKeyPrefix + name + ":" + key(r)

			n, err := rdb.Incr(ctx, rateLimitKey).Result()
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if n == 1 {
				// First request in this window
				rdb.Expire(ctx, rateLimitKey, window)
			}

			count := int(n)
			if count > max {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				tooManyRequests(w, max, "Rate limit exceeded. Please try again later.")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max-count))
			next.ServeHTTP(w, r)
		})
	}
}
