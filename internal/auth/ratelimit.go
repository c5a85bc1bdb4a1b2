package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds login rate limiting configuration.
type RateLimitConfig struct {
	// LoginAttemptsLimit is the max failed login attempts per window.
	LoginAttemptsLimit int
	// LoginWindow is the fixed window over which attempts are counted.
	LoginWindow time.Duration
}

// RateLimiter limits failed login attempts per username using a Redis fixed
// window counter. A nil Redis client disables limiting entirely.
type RateLimiter struct {
	client *redis.Client
	config RateLimitConfig
}

// NewRateLimiter creates a RateLimiter with the given Redis client and
// configuration. client may be nil to disable rate limiting.
func NewRateLimiter(client *redis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, config: config}
}

// CheckLogin reports whether username may attempt a login. Returns nil if
// allowed, or an error if the attempt limit for the current window is
// exhausted.
func (rl *RateLimiter) CheckLogin(ctx context.Context, username string) error {
	if rl.client == nil {
		return nil
	}

	count, err := rl.client.Get(ctx, rl.key(username)).Int64()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("check login rate limit: %w", err)
	}

	if int(count) >= rl.config.LoginAttemptsLimit {
		return fmt.Errorf("too many failed login attempts, retry after %s", rl.config.LoginWindow)
	}
	return nil
}

// RecordFailedLogin increments the failed attempt counter for username.
func (rl *RateLimiter) RecordFailedLogin(ctx context.Context, username string) error {
	if rl.client == nil {
		return nil
	}

	pipe := rl.client.Pipeline()
	pipe.Incr(ctx, rl.key(username))
	pipe.Expire(ctx, rl.key(username), rl.config.LoginWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record failed login: %w", err)
	}
	return nil
}

// ResetLogin clears the failed attempt counter after a successful login.
func (rl *RateLimiter) ResetLogin(ctx context.Context, username string) error {
	if rl.client == nil {
		return nil
	}
	if err := rl.client.Del(ctx, rl.key(username)).Err(); err != nil {
		return fmt.Errorf("reset login rate limit: %w", err)
	}
	return nil
}

func (rl *RateLimiter) key(username string) string {
	return "ratelimit:login:" + username
}
