package data

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/ofirc298/GUIDESSITE2025/internal/migrate"
)

// RunMigrations applies pending schema migrations and returns the versions applied.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) ([]string, error) {
	return migrate.Run(ctx, db, logger)
}
