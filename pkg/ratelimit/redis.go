// Package ratelimit counts requests per caller in fixed Redis windows.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "car-rental:rate_limit"

// minWindow keeps PEXPIRE from racing the next request.
const minWindow = time.Second

// windowScript bumps the counter and starts its expiry on the first hit of a
// window. It replies with the hit count and the milliseconds left.
var windowScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local left = redis.call("PTTL", KEYS[1])
if left < 0 then
  left = tonumber(ARGV[1])
end
return {hits, left}
`)

// Limiter backs middleware.RateLimit on booking creation and the payment
// webhook.
type Limiter struct {
	rdb    redis.UniversalClient
	prefix string
}

func New(rdb redis.UniversalClient, prefix string) *Limiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Limiter{rdb: rdb, prefix: prefix}
}

// Consume records one hit and returns the hits so far in the window and the
// seconds until it resets. A nil limiter, or a blank scope or subject, never
// limits.
func (l *Limiter) Consume(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	if l == nil || l.rdb == nil || limit <= 0 || window <= 0 {
		return 0, 0, nil
	}
	key, ok := l.key(scope, subject)
	if !ok {
		return 0, 0, nil
	}

	if window < minWindow {
		window = minWindow
	}
	ttl := window.Milliseconds()

	reply, err := windowScript.Run(ctx, l.rdb, []string{key}, ttl).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(reply) != 2 {
		return 0, 0, fmt.Errorf("rate limit %s: expected 2 values, got %d", key, len(reply))
	}

	hits, left := reply[0], reply[1]
	if left < 0 {
		left = ttl
	}
	return int(hits), retryAfter(time.Duration(left) * time.Millisecond), nil
}

func (l *Limiter) key(scope, subject string) (string, bool) {
	scope, subject = strings.TrimSpace(scope), strings.TrimSpace(subject)
	if scope == "" || subject == "" {
		return "", false
	}
	return l.prefix + ":" + scope + ":" + subject, true
}

// retryAfter rounds up to whole seconds, never below one.
func retryAfter(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
