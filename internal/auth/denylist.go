package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist remembers tokens that were signed out before their expiry.
// Keys live only as long as the token would have, so the set cleans
// itself up.
type Denylist struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewDenylist(rdb *redis.Client, maxTokenLifetime time.Duration) *Denylist {
	if maxTokenLifetime <= 0 {
		maxTokenLifetime = time.Hour
	}
	return &Denylist{redis: rdb, ttl: maxTokenLifetime}
}

func (d *Denylist) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "querydeck:signedout:" + hex.EncodeToString(sum[:])
}

func (d *Denylist) Revoke(ctx context.Context, token string) error {
	if err := d.redis.Set(ctx, d.key(token), "1", d.ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (d *Denylist) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := d.redis.Exists(ctx, d.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}
