package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/ofirc298/GUIDESSITE2025/config"
	"github.com/ofirc298/GUIDESSITE2025/internal/bootstrap"
)

func main() {
	logger := bootstrap.InitLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, logger)
	stop()
	if err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	bootstrap.SetLogLevel(cfg.Observability.Level())

	logStartupInfo(ctx, logger, &cfg)

	if err = bootstrap.ValidateConfig(&cfg); err != nil {
		return err
	}

	db, redisClient, err := initInfrastructure(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			if cerr := db.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close database failed", "error", cerr)
			}
		}()
	}
	if redisClient != nil {
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	if db != nil && (cfg.Postgres.RunMigrationsOnStart || cfg.IsMigrateOnly()) {
		if err = bootstrap.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	} else if db != nil {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
	}
	if cfg.IsMigrateOnly() {
		logger.InfoContext(ctx, "migrate-only mode complete")
		return nil
	}

	return bootstrap.RunServices(ctx, &bootstrap.ServiceOrchestrationConfig{
		Config:      &cfg,
		DB:          db,
		RedisClient: redisClient,
		Logger:      logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting guidessite service",
		"addr", cfg.HTTP.Addr,
		"credential_source", cfg.Auth.CredentialSource,
		"db_host", cfg.Postgres.Host,
		"db_name", cfg.Postgres.Name,
		"dev", cfg.IsDev,
		"enabled_services", bootstrap.GetEnabledServices(cfg))
}

// initInfrastructure connects only the dependencies the configuration asks for.
// Either return value may be nil.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func initInfrastructure(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (*sql.DB, redis.UniversalClient, error) {
	dbCfg := bootstrap.DatabaseConfig{
		DBConfig:    cfg.Postgres,
		RedisConfig: cfg.Redis,
		Logger:      logger,
	}

	var db *sql.DB
	if cfg.NeedsDatabase() {
		var err error
		if db, err = bootstrap.ConnectDB(dbCfg); err != nil {
			return nil, nil, fmt.Errorf("connect db: %w", err)
		}
	}

	if !cfg.NeedsRedis() {
		return db, nil, nil
	}
	redisClient, err := bootstrap.ConnectRedis(dbCfg)
	if err != nil {
		if db != nil {
			if cerr := db.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close database after redis connect failure", "error", cerr)
				return nil, nil, fmt.Errorf("connect redis: %w", errors.Join(err, fmt.Errorf("close database: %w", cerr)))
			}
		}
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return db, redisClient, nil
}
