// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package redis provides a managed client for volatile data storage.

Gatekeeper stores revoked refresh-token identifiers here. Each entry expires
together with the token it blocks, so the set never grows past the number of
live refresh tokens that were explicitly logged out.
*/
package redis

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/gatekeeper/internal/platform/constants"
)

// Client settings for revocation lookups. Every refresh and logout makes one
// EXISTS or SET call, so a slow Redis should fail that request quickly rather
// than queue it behind the HTTP timeout.
const (
	dialTimeout  = 2 * time.Second
	readTimeout  = 500 * time.Millisecond
	writeTimeout = 500 * time.Millisecond
	poolTimeout  = 1 * time.Second
	pingTimeout  = 2 * time.Second

	// maxRetries covers a dropped connection; commands are idempotent.
	maxRetries      = 2
	minRetryBackoff = 20 * time.Millisecond
	maxRetryBackoff = 200 * time.Millisecond

	poolSize     = 16
	minIdleConns = 2
	maxIdleConns = 8
)

// configure applies the revocation-store settings to parsed URL options.
// A client name set in the URL wins.
func configure(options *redis.Options) {
	options.PoolSize = poolSize
	options.MinIdleConns = minIdleConns
	options.MaxIdleConns = maxIdleConns
	options.PoolTimeout = poolTimeout

	options.DialTimeout = dialTimeout
	options.ReadTimeout = readTimeout
	options.WriteTimeout = writeTimeout

	// Request deadlines cut Redis calls short as well.
	options.ContextTimeoutEnabled = true

	options.MaxRetries = maxRetries
	options.MinRetryBackoff = minRetryBackoff
	options.MaxRetryBackoff = maxRetryBackoff

	if options.ClientName == "" {
		options.ClientName = constants.AppName
	}
}

// NewClient parses a Redis URL and returns a ready-to-use client.
//
// # Parameters
//   - context: Context for the initial ping.
//   - redisURL: Redis connection URL.
//   - logger: Structured logger for connection events.
func NewClient(context stdctx.Context, redisURL string, logger *slog.Logger) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}
	configure(options)

	client := redis.NewClient(options)

	// Validate connectivity immediately at startup.
	if err := Ping(context, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("redis_client_connected",
		slog.String("addr", options.Addr),
		slog.Int("db", options.DB),
		slog.Int("pool_size", options.PoolSize),
		slog.Duration("read_timeout", options.ReadTimeout),
	)

	return client, nil
}

// Ping verifies that the Redis client is healthy.
func Ping(context stdctx.Context, client redis.Cmdable) error {
	pingCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}

	return nil
}
