// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/gatekeeper/internal/platform/constants"
)

// # Revocation Repository

// RedisRevocationRepository implements [RevocationRepository] using Redis keys
// that expire together with the token they block.
type RedisRevocationRepository struct {
	client redis.Cmdable
}

// NewRevocationRepository creates a new Redis-backed RevocationRepository.
func NewRevocationRepository(client redis.Cmdable) *RedisRevocationRepository {
	return &RedisRevocationRepository{client: client}
}

func revokedKey(jti string) string {
	return constants.RedisPrefixRevokedRefresh + jti
}

/*
Revoke marks the token as revoked until ttl elapses.

Parameters:
  - context: context.Context
  - jti: string
  - ttl: time.Duration

Returns:
  - error: Execution errors
*/
func (repository *RedisRevocationRepository) Revoke(context context.Context, jti string, ttl time.Duration) error {
	if err := repository.client.Set(context, revokedKey(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis_revocation_set_failed: %w", err)
	}
	return nil
}

// IsRevoked reports whether a revocation key exists for jti.
func (repository *RedisRevocationRepository) IsRevoked(context context.Context, jti string) (bool, error) {
	count, err := repository.client.Exists(context, revokedKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("redis_revocation_exists_failed: %w", err)
	}
	return count > 0, nil
}
