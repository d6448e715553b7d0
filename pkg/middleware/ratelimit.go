package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"car-rental/pkg/utils"

	"go.uber.org/zap"
)

// Limiter is satisfied by ratelimit.Limiter.
type Limiter interface {
	Consume(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error)
}

// RateLimit throttles requests per caller inside scope. Authenticated callers
// are keyed by user id, anonymous ones by remote IP. Limiter failures let the
// request through.
func RateLimit(limiter Limiter, scope string, limit int, window time.Duration, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			subject := clientIP(r)
			if userID, ok := utils.GetUserIDFromContext(r.Context()); ok {
				subject = userID.String()
			}

			count, retryAfter, err := limiter.Consume(r.Context(), scope, subject, limit, window)
			if err != nil {
				logger.Warn("Rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if count > limit {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				utils.ResponseTooManyRequests(w, "Too many requests")
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
