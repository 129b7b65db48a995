// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package migration provides a thin wrapper around golang-migrate for
// running the account schema migrations.
//
// # Architecture
//
// This package belongs to the Infrastructure layer. It enforces schema
// idempotency during application startup, ensuring the database is always
// in the correct state before traffic is served.
package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// pgx5 driver registers "pgx5" scheme for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ErrSchemaAhead is returned when the database carries a migration this build
// does not know, typically after rolling back to an older binary.
var ErrSchemaAhead = errors.New("migration: database schema is newer than this build")

/*
RunUp applies all pending UP migrations from migrations.

Description: The files are read from an [fs.FS] so the embedded set and an
on-disk override go through the same path. The run refuses to touch a dirty
database or one whose version is ahead of the newest file in migrations.

Parameters:
  - dsn: A libpq-compatible DSN or postgres:// URL.
  - migrations: Directory holding NNNNNN_name.{up,down}.sql files at its root.
  - logger: Structured logger for migration events.

Returns:
  - error: [ErrSchemaAhead], dirty state or driver failures
*/
func RunUp(dsn string, migrations fs.FS, logger *slog.Logger) error {
	sourceDriver, err := iofs.New(migrations, ".")
	if err != nil {
		return fmt.Errorf("migration: failed to open source: %w", err)
	}

	latest, err := latestVersion(sourceDriver)
	if err != nil {
		_ = sourceDriver.Close()
		return err
	}

	// golang-migrate pgx/v5 driver expects "pgx5://" scheme.
	migrator, err := migrate.NewWithSourceInstance("iofs", sourceDriver, convertToPgx5DSN(dsn))
	if err != nil {
		_ = sourceDriver.Close()
		return fmt.Errorf("migration: failed to initialize: %w", err)
	}
	defer func() {
		sourceError, dbError := migrator.Close()
		if sourceError != nil {
			logger.Error("migration_source_close_failed", slog.Any("error", sourceError))
		}
		if dbError != nil {
			logger.Error("migration_db_close_failed", slog.Any("error", dbError))
		}
	}()

	migrator.Log = &migrateLogger{logger: logger}

	currentVersion, isDirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration: failed to get current version: %w", err)
	}
	if isDirty {
		return fmt.Errorf("migration: database is in a dirty state at version %d (manual intervention required)", currentVersion)
	}
	if currentVersion > latest {
		return fmt.Errorf("%w: database at %d, newest migration %d", ErrSchemaAhead, currentVersion, latest)
	}

	logger.Info("migration_started",
		slog.Uint64("current_version", uint64(currentVersion)),
		slog.Uint64("target_version", uint64(latest)),
	)

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("migration_already_up_to_date", slog.Uint64("version", uint64(currentVersion)))
			return nil
		}
		return fmt.Errorf("migration: up failed: %w", err)
	}

	logger.Info("migration_successful",
		slog.Uint64("from_version", uint64(currentVersion)),
		slog.Uint64("to_version", uint64(latest)),
	)

	return nil
}

// latestVersion walks the source to its newest migration version.
func latestVersion(driver source.Driver) (uint, error) {
	version, err := driver.First()
	if err != nil {
		return 0, fmt.Errorf("migration: source has no migrations: %w", err)
	}

	for {
		next, err := driver.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			return version, nil
		}
		if err != nil {
			return 0, fmt.Errorf("migration: failed to scan source: %w", err)
		}
		version = next
	}
}

// convertToPgx5DSN ensures the DSN uses the pgx5:// scheme required by golang-migrate/v4.
func convertToPgx5DSN(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}

// migrateLogger forwards golang-migrate progress lines to slog at debug level.
type migrateLogger struct {
	logger *slog.Logger
}

// Printf implements migrate.Logger.
func (l *migrateLogger) Printf(format string, args ...any) {
	l.logger.Debug("migration_progress", slog.String("line", strings.TrimSpace(fmt.Sprintf(format, args...))))
}

// Verbose implements migrate.Logger.
func (l *migrateLogger) Verbose() bool {
	return l.logger.Enabled(context.Background(), slog.LevelDebug)
}
