package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/streamrelay/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

func revokedKey(tokenID string) string {
	return "revoked_token:" + tokenID
}

// TokenBlacklist stores revoked refresh token IDs until the token would have
// expired anyway.
type TokenBlacklist struct {
	rdb   *goredis.Client
	clock clockwork.Clock
}

var _ domain.TokenBlacklist = (*TokenBlacklist)(nil)

func NewTokenBlacklist(rdb *goredis.Client, clock clockwork.Clock) *TokenBlacklist {
	return &TokenBlacklist{rdb: rdb, clock: clock}
}

func (b *TokenBlacklist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(b.clock.Now())
	if ttl <= 0 {
		return nil
	}
	if err := b.rdb.Set(ctx, revokedKey(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (b *TokenBlacklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := b.rdb.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return n > 0, nil
}
