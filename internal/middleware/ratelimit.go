package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nordveil/sitechat/internal/service"
)

// RateLimit rejects requests over the per-client budget with 429 and a
// Retry-After header. The key is the client IP (chi's RealIP middleware
// runs earlier, so RemoteAddr already reflects X-Forwarded-For).
func RateLimit(limiter service.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)

			allowed, retryAfter := limiter.Allow(key)
			if !allowed {
				slog.Info("rate limited", "client", key, "retry_after", retryAfter.String())
				seconds := int(retryAfter/time.Second) + 1
				w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate_limited","message":"too many requests, slow down"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
