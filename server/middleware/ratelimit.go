package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	httprateredis "github.com/go-chi/httprate-redis"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	// RequestLimit is the number of requests allowed per window
	RequestLimit int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// RedisClient shares counters across instances (optional, uses in-memory if nil)
	RedisClient *redis.Client
	// PrefixKey namespaces the Redis counters
	PrefixKey string
}

// DefaultRateLimitConfig returns a default rate limit configuration.
// Limits to 100 requests per minute per IP address.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestLimit:   100,
		WindowDuration: time.Minute,
		PrefixKey:      "sitemapgen:ratelimit",
	}
}

// RateLimit returns a rate limiter middleware that rate limits requests per IP address.
func RateLimit(config RateLimitConfig) func(next http.Handler) http.Handler {
	defaults := DefaultRateLimitConfig()
	if config.RequestLimit == 0 {
		config.RequestLimit = defaults.RequestLimit
	}
	if config.WindowDuration == 0 {
		config.WindowDuration = defaults.WindowDuration
	}
	if config.PrefixKey == "" {
		config.PrefixKey = defaults.PrefixKey
	}

	options := []httprate.Option{
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded","status_code":429}`))
		}),
		httprate.WithKeyByRealIP(),
	}

	if config.RedisClient != nil {
		options = append(options, httprateredis.WithRedisLimitCounter(&httprateredis.Config{
			Client:    config.RedisClient,
			PrefixKey: config.PrefixKey,
		}))
	}

	return httprate.NewRateLimiter(config.RequestLimit, config.WindowDuration, options...).Handler
}
