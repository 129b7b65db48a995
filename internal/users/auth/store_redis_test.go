// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/gatekeeper/internal/users/auth"
)

// keyStore implements the two commands the revocation store issues.
// Any other command panics on the nil embedded interface.
type keyStore struct {
	redis.Cmdable

	keys map[string]time.Duration
	err  error
}

func (store *keyStore) Set(_ context.Context, key string, _ any, expiration time.Duration) *redis.StatusCmd {
	if store.err != nil {
		return redis.NewStatusResult("", store.err)
	}
	store.keys[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (store *keyStore) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	if store.err != nil {
		return redis.NewIntResult(0, store.err)
	}
	var count int64
	for _, key := range keys {
		if _, found := store.keys[key]; found {
			count++
		}
	}
	return redis.NewIntResult(count, nil)
}

/*
TestRedisRevocationRepository verifies key naming, TTL and error wrapping.
*/
func TestRedisRevocationRepository(t *testing.T) {
	store := &keyStore{keys: make(map[string]time.Duration)}
	repository := auth.NewRevocationRepository(store)
	ctx := context.Background()

	// 1. Unknown jti
	revoked, err := repository.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	// 2. Revoke sets a namespaced key that expires with the token
	require.NoError(t, repository.Revoke(ctx, "jti-1", 42*time.Minute))
	assert.Equal(t, 42*time.Minute, store.keys["auth:revoked_refresh:jti-1"])

	revoked, err = repository.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// 3. Connection failures are reported, never read as "not revoked"
	store.err = errors.New("connection reset")
	_, err = repository.IsRevoked(ctx, "jti-1")
	assert.ErrorIs(t, err, store.err)
	assert.ErrorIs(t, repository.Revoke(ctx, "jti-2", time.Minute), store.err)
}
