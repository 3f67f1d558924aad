// Package ratelimit implements a distributed fixed-window limiter on Redis.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// Limiter allows at most limit hits per subject per window.
type Limiter struct {
	client redis.Scripter
	prefix string
	scope  string
	limit  int
	window time.Duration
}

// New builds a limiter. A non-positive limit disables limiting.
func New(client redis.Scripter, prefix, scope string, limit int, window time.Duration) *Limiter {
	p := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if p == "" {
		p = "taheel:rate_limit"
	}
	if window < time.Second {
		window = time.Second
	}
	return &Limiter{client: client, prefix: p, scope: scope, limit: limit, window: window}
}

// Allow consumes one hit for subject and reports whether it fits in the window.
// retryAfter is the remaining window when the hit is rejected.
func (l *Limiter) Allow(ctx context.Context, subject string) (bool, time.Duration, error) {
	if l == nil || l.client == nil || l.limit <= 0 {
		return true, 0, nil
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return true, 0, nil
	}

	key := fmt.Sprintf("%s:%s:%s", l.prefix, l.scope, subject)
	windowMs := l.window.Milliseconds()
	raw, err := fixedWindowScript.Run(ctx, l.client, []string{key}, windowMs).Result()
	if err != nil {
		return false, 0, fmt.Errorf("run limiter script: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected redis limiter response shape: %T", raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok || ttlMs < 0 {
		ttlMs = windowMs
	}

	if int(count) <= l.limit {
		return true, 0, nil
	}
	retryAfter := time.Duration(ttlMs) * time.Millisecond
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	return false, retryAfter, nil
}
