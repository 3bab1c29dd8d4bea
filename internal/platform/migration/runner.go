// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package migration applies the SQL schema in data/migrations with
// golang-migrate. The API runs [RunUp] at startup; inkctl exposes the
// other directions for operators.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// pgx5 driver registers "pgx5" scheme for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	// file source reads .sql files from disk.
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// ErrDirty reports a schema left half-applied by a failed migration.
var ErrDirty = errors.New("migration: database is dirty, manual intervention required")

// Status is the schema version recorded in schema_migrations.
type Status struct {
	Version uint
	Dirty   bool
	Empty   bool // No migration has ever been applied
}

// Runner owns one golang-migrate instance. Close it when done.
type Runner struct {
	migrator *migrate.Migrate
	logger   *slog.Logger
}

// Open prepares a [Runner] for the schema at migrationsPath.
func Open(dsn, migrationsPath string, logger *slog.Logger) (*Runner, error) {
	migrator, err := migrate.New("file://"+migrationsPath, pgx5DSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("migration: initialize: %w", err)
	}
	migrator.Log = &migrateLogger{logger: logger}
	return &Runner{migrator: migrator, logger: logger}, nil
}

// Close releases the source and database handles.
func (runner *Runner) Close() {
	sourceErr, dbErr := runner.migrator.Close()
	if sourceErr != nil {
		runner.logger.Error("migration_source_close_failed", slog.Any("error", sourceErr))
	}
	if dbErr != nil {
		runner.logger.Error("migration_db_close_failed", slog.Any("error", dbErr))
	}
}

// Status reads the current schema version.
func (runner *Runner) Status() (Status, error) {
	version, dirty, err := runner.migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{Empty: true}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("migration: read version: %w", err)
	}
	return Status{Version: version, Dirty: dirty}, nil
}

// Up applies every pending migration. A dirty schema is refused.
func (runner *Runner) Up() error {
	before, err := runner.cleanStatus()
	if err != nil {
		return err
	}

	if err := runner.migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			runner.logger.Info("migration_already_up_to_date", slog.Uint64("version", uint64(before.Version)))
			return nil
		}
		return fmt.Errorf("migration: up: %w", err)
	}

	runner.logApplied("up", before)
	return nil
}

// Down rolls back the given number of migrations.
func (runner *Runner) Down(steps int) error {
	if steps <= 0 {
		return fmt.Errorf("migration: down needs a positive step count, got %d", steps)
	}

	before, err := runner.cleanStatus()
	if err != nil {
		return err
	}

	if err := runner.migrator.Steps(-steps); err != nil {
		return fmt.Errorf("migration: down %d: %w", steps, err)
	}

	runner.logApplied("down", before)
	return nil
}

func (runner *Runner) cleanStatus() (Status, error) {
	status, err := runner.Status()
	if err != nil {
		return Status{}, err
	}
	if status.Dirty {
		return status, fmt.Errorf("%w (version %d)", ErrDirty, status.Version)
	}
	return status, nil
}

func (runner *Runner) logApplied(direction string, before Status) {
	after, err := runner.Status()
	if err != nil {
		runner.logger.Warn("migration_version_unreadable", slog.Any("error", err))
		return
	}
	runner.logger.Info("migration_applied",
		slog.String("direction", direction),
		slog.Uint64("from_version", uint64(before.Version)),
		slog.Uint64("to_version", uint64(after.Version)),
	)
}

// RunUp opens a [Runner], applies pending migrations and closes it.
func RunUp(dsn, migrationsPath string, logger *slog.Logger) error {
	runner, err := Open(dsn, migrationsPath, logger)
	if err != nil {
		return err
	}
	defer runner.Close()
	return runner.Up()
}

// pgx5DSN rewrites postgres:// and postgresql:// URLs to the pgx5://
// scheme the golang-migrate pgx/v5 driver registers.
func pgx5DSN(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}

// migrateLogger forwards golang-migrate output to slog at debug level.
type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, args ...any) {
	l.logger.Debug("migration_progress", slog.String("detail", strings.TrimSpace(fmt.Sprintf(format, args...))))
}

func (l *migrateLogger) Verbose() bool {
	return l.logger.Enabled(context.Background(), slog.LevelDebug)
}
