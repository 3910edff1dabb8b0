// Package migrate applies the embedded SQL schema.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// lockKey is the pg_advisory_xact_lock key held while a version is applied.
const lockKey int64 = 0x6775696465 // "guide"

const (
	createVersionsTable = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	lockQuery    = `SELECT pg_advisory_xact_lock($1)`
	appliedQuery = `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`
	recordQuery  = `INSERT INTO schema_migrations (version) VALUES ($1)`
)

// Migration is one embedded schema file.
type Migration struct {
	Version string
	SQL     string
}

// Migrations lists the embedded migrations ordered by version.
func Migrations() ([]Migration, error) {
	return load(migrationsFS, "migrations")
}

func load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	out := make([]Migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		body, readErr := fs.ReadFile(fsys, dir+"/"+e.Name())
		if readErr != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), readErr)
		}
		out = append(out, Migration{Version: strings.TrimSuffix(e.Name(), ".sql"), SQL: string(body)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Run applies every embedded migration not yet recorded in schema_migrations
// and returns the versions it applied. Concurrent callers serialize on an
// advisory lock, so running it from several replicas at once is safe.
func Run(ctx context.Context, db *sql.DB, logger *slog.Logger) ([]string, error) {
	migrations, err := Migrations()
	if err != nil {
		return nil, err
	}
	return apply(ctx, db, migrations, logger)
}

func apply(ctx context.Context, db *sql.DB, migrations []Migration, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "migrations")

	if _, err := db.ExecContext(ctx, createVersionsTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations table: %w", err)
	}

	var applied []string
	for _, m := range migrations {
		ok, err := applyOne(ctx, db, m, logger)
		if err != nil {
			return applied, err
		}
		if ok {
			applied = append(applied, m.Version)
		}
	}
	return applied, nil
}

// applyOne runs m in its own transaction. It reports false when another
// process already recorded the version.
func applyOne(ctx context.Context, db *sql.DB, m Migration, logger *slog.Logger) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.ErrorContext(ctx, "rollback migration", "version", m.Version, "error", rbErr)
		}
	}()

	if _, err = tx.ExecContext(ctx, lockQuery, lockKey); err != nil {
		return false, fmt.Errorf("lock migrations: %w", err)
	}
	var done bool
	if err = tx.QueryRowContext(ctx, appliedQuery, m.Version).Scan(&done); err != nil {
		return false, fmt.Errorf("check migration %s: %w", m.Version, err)
	}
	if done {
		return false, nil
	}

	logger.InfoContext(ctx, "applying migration", "version", m.Version)
	if _, err = tx.ExecContext(ctx, m.SQL); err != nil {
		return false, fmt.Errorf("exec migration %s: %w", m.Version, err)
	}
	if _, err = tx.ExecContext(ctx, recordQuery, m.Version); err != nil {
		return false, fmt.Errorf("record migration %s: %w", m.Version, err)
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit migration %s: %w", m.Version, err)
	}
	return true, nil
}
