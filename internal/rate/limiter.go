package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters. A zero attempt budget disables
// the corresponding check.
type Config struct {
	Prefix             string
	MaxLoginFailures   int
	LoginCooldown      time.Duration
	MaxRefreshAttempts int
	RefreshWindow      time.Duration
}

// Limiter throttles failed logins per account and client address, and
// refresh attempts per refresh token, with fixed-window Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by redisClient.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "rl"
	}
	return &Limiter{redis: redisClient, config: cfg}
}

// CheckLogin fails with ErrRateLimited while username or ip is cooling down.
func (l *Limiter) CheckLogin(ctx context.Context, username, ip string) error {
	if l.config.MaxLoginFailures <= 0 {
		return nil
	}
	for _, key := range l.loginKeys(username, ip) {
		if err := l.checkCounter(ctx, key, l.config.MaxLoginFailures); err != nil {
			return err
		}
	}
	return nil
}

// FailLogin records a failed attempt for username and ip.
func (l *Limiter) FailLogin(ctx context.Context, username, ip string) error {
	if l.config.MaxLoginFailures <= 0 {
		return nil
	}
	for _, key := range l.loginKeys(username, ip) {
		if _, err := l.incrementWithTTL(ctx, key, l.config.LoginCooldown); err != nil {
			return err
		}
	}
	return nil
}

// ResetLogin clears the failure counters after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, username, ip string) error {
	if l.config.MaxLoginFailures <= 0 {
		return nil
	}
	if err := l.redis.Del(ctx, l.loginKeys(username, ip)...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CheckRefresh counts one attempt for tokenID and fails once the window's
// budget is spent.
func (l *Limiter) CheckRefresh(ctx context.Context, tokenID string) error {
	if l.config.MaxRefreshAttempts <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, l.key("r", tokenID), l.config.RefreshWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRefreshAttempts) {
		return ErrRateLimited
	}
	return nil
}

// LoginFailures returns the failure count for username. Missing keys count
// as zero.
func (l *Limiter) LoginFailures(ctx context.Context, username string) (int, error) {
	count, err := l.redis.Get(ctx, l.key("l", username)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(max(count, 0)), nil
}

func (l *Limiter) loginKeys(username, ip string) []string {
	keys := []string{l.key("l", username)}
	if ip != "" {
		keys = append(keys, l.key("li", ip))
	}
	return keys
}

func (l *Limiter) key(kind, id string) string {
	return l.config.Prefix + ":" + kind + ":" + id
}

func (l *Limiter) checkCounter(ctx context.Context, key string, limit int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(limit) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	// Fixed window: the first hit starts it.
	if count == 1 && ttl > 0 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}
