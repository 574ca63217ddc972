package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Manager provides Redis-backed fixed-window rate limiting. The public
// payment-initialize endpoint sits in front of the gateway, so we cap how
// fast any one caller can mint checkout sessions.
type Manager struct {
	redis *redis.Client
}

func NewManager(redisURL string) (*Manager, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Manager{redis: client}, nil
}

func (m *Manager) Close() error { return m.redis.Close() }

// Allow consumes one request from the caller's current minute window and
// reports whether it fit under rpm. resetSec is how long until the window
// rolls over.
func (m *Manager) Allow(ctx context.Context, key string, rpm int) (allowed bool, resetSec int, err error) {
	now := time.Now().UTC()
	window := now.Unix() / 60
	rkey := fmt.Sprintf("rl:init:%s:%d", key, window)

	n, err := m.redis.Incr(ctx, rkey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis incr: %w", err)
	}
	if n == 1 {
		// First hit in this window; expire a little after rollover
		_ = m.redis.Expire(ctx, rkey, 90*time.Second).Err()
	}

	resetSec = int(60 - now.Unix()%60)
	return n <= int64(rpm), resetSec, nil
}
