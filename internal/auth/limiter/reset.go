// Package limiter throttles password reset requests across instances using
// a Redis fixed window.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/schoolgate/pkg/cryptox"
	"github.com/redis/go-redis/v9"
)

var (
	ErrResetThrottled   = errors.New("limiter: reset requests throttled")
	ErrRedisUnavailable = errors.New("limiter: redis unavailable")
)

type ResetConfig struct {
	// MaxRequests allowed per identifier, and per client IP, in one Window.
	MaxRequests int
	Window      time.Duration
}

type ResetThrottle struct {
	redis  redis.UniversalClient
	config ResetConfig
}

func NewResetThrottle(client redis.UniversalClient, cfg ResetConfig) *ResetThrottle {
	return &ResetThrottle{redis: client, config: cfg}
}

// Allow counts one forgot-password request. Identifiers are fingerprinted
// before they become keys. An empty ip skips the IP window.
func (t *ResetThrottle) Allow(ctx context.Context, surface, identifier, ip string) error {
	id := strings.ToLower(strings.TrimSpace(identifier))
	if err := t.enforceFixedWindow(ctx, identifierKey(surface, id)); err != nil {
		return err
	}
	if ip != "" {
		if err := t.enforceFixedWindow(ctx, ipKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

// Ping reports whether Redis is reachable, for readiness checks.
func (t *ResetThrottle) Ping(ctx context.Context) error {
	if err := t.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (t *ResetThrottle) enforceFixedWindow(ctx context.Context, key string) error {
	count, err := t.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count == 1 {
		if err := t.redis.Expire(ctx, key, t.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count > int64(t.config.MaxRequests) {
		return ErrResetThrottled
	}
	return nil
}

func identifierKey(surface, identifier string) string {
	return "sgr:" + surface + ":" + cryptox.FingerprintToken(identifier)
}

func ipKey(ip string) string {
	return "sgrip:" + ip
}
