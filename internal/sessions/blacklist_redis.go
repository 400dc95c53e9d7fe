// Package sessions tracks revoked access tokens. Entries live in Redis and
// expire together with the token they revoke.
package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistPrefix = "blacklist:access:"

var (
	mu              sync.RWMutex
	blacklistClient *redis.Client
)

// SetBlacklistClient configures the Redis client used for blacklist operations.
// Passing nil turns revocation off.
func SetBlacklistClient(c *redis.Client) {
	mu.Lock()
	blacklistClient = c
	mu.Unlock()
}

func client() *redis.Client {
	mu.RLock()
	defer mu.RUnlock()
	return blacklistClient
}

// BlacklistAccessToken revokes token for ttl. Without a Redis client it is a no-op.
func BlacklistAccessToken(ctx context.Context, token string, ttl time.Duration) error {
	c := client()
	if c == nil {
		return nil
	}
	if err := c.Set(ctx, blacklistPrefix+token, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

// IsAccessTokenBlacklisted reports whether token has been revoked.
// Without a Redis client nothing is ever revoked.
func IsAccessTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	c := client()
	if c == nil {
		return false, nil
	}
	n, err := c.Exists(ctx, blacklistPrefix+token).Result()
	if err != nil {
		return false, fmt.Errorf("blacklist lookup: %w", err)
	}
	return n > 0, nil
}
