// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package postgres provides the managed PostgreSQL connection pool that backs
// the account store.
//
// # Architecture
//
// This package is part of the Infrastructure layer. It owns the physical
// database connections (pgxpool); the repositories that run queries on them
// live next to their domain packages.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/gatekeeper/internal/platform/constants"
)

// Pool settings sized for a credential store. Every authenticated request runs
// one indexed lookup on users.account, and bcrypt work happens with no
// connection held, so the pool tracks CPU count rather than request volume.
const (
	// connsPerCPU connections per available CPU, within [minPoolSize, maxPoolSize].
	connsPerCPU = 4
	minPoolSize = 4
	maxPoolSize = 32
	// minConns keeps a warm set of connections for the identity filter.
	minConns = 2
	// maxConnLifetime ensures connections are periodically recycled.
	maxConnLifetime = 60 * time.Minute
	// maxConnIdleTime closes connections that have been idle too long.
	maxConnIdleTime = 10 * time.Minute
	// healthCheckPeriod is the frequency of background connection health checks.
	healthCheckPeriod = 1 * time.Minute
	// connectTimeout is the maximum time allowed to establish a new connection.
	connectTimeout = 5 * time.Second
	// pingTimeout is the maximum duration for a health check ping.
	pingTimeout = 2 * time.Second
	// statementTimeout bounds every account query. Lookups are single-row
	// index scans, so anything slower is a stuck lock.
	statementTimeout = 5 * time.Second
	// idleInTransactionTimeout releases row locks held by abandoned transactions.
	idleInTransactionTimeout = 10 * time.Second
)

// poolSize returns the connection ceiling for the given CPU count.
func poolSize(cpus int) int32 {
	return int32(min(max(cpus*connsPerCPU, minPoolSize), maxPoolSize))
}

// NewPool creates and validates a new PostgreSQL connection pool.
//
// # Parameters
//   - ctx: Context for the initial connection attempt.
//   - dsn: A libpq-compatible connection string or postgres:// URL.
//   - logger: Structured logger for pool-level events.
func NewPool(ctx context.Context, dsn string, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid DSN: %w", err)
	}

	poolConfig.MaxConns = poolSize(runtime.GOMAXPROCS(0))
	poolConfig.MinConns = minConns
	poolConfig.MaxConnLifetime = maxConnLifetime
	poolConfig.MaxConnIdleTime = maxConnIdleTime
	poolConfig.HealthCheckPeriod = healthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = connectTimeout

	// Sent in the startup packet, so no extra round trip per connection.
	// Values already present in the DSN win.
	applyRuntimeParams(poolConfig.ConnConfig.RuntimeParams)

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}

	// Validate that we can actually reach the database.
	if err := Ping(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	stats := pool.Stat()
	logger.Info("postgres_pool_connected",
		slog.Int("max_conns", int(stats.MaxConns())),
		slog.Int("total_conns", int(stats.TotalConns())),
		slog.String("statement_timeout", poolConfig.ConnConfig.RuntimeParams["statement_timeout"]),
	)

	return pool, nil
}

// applyRuntimeParams sets the session parameters of account-store connections.
func applyRuntimeParams(params map[string]string) {
	defaults := map[string]string{
		"application_name":                    constants.AppName,
		"statement_timeout":                   strconv.FormatInt(statementTimeout.Milliseconds(), 10),
		"idle_in_transaction_session_timeout": strconv.FormatInt(idleInTransactionTimeout.Milliseconds(), 10),
	}
	for key, value := range defaults {
		if _, set := params[key]; !set {
			params[key] = value
		}
	}
}

// Ping verifies that the PostgreSQL connection pool is healthy.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("postgres: ping failed: %w", err)
	}

	return nil
}
