package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ofirc298/GUIDESSITE2025/config"
	httpx "github.com/ofirc298/GUIDESSITE2025/internal/http"
	"github.com/ofirc298/GUIDESSITE2025/internal/observability/metrics"
)

// ServiceOrchestrationConfig groups what RunServices needs.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger

	// Listener overrides Config.HTTP.Addr; used by tests.
	Listener net.Listener
	// Registry receives all collectors; a fresh registry is created when nil.
	Registry *prometheus.Registry
}

// RunServices builds the auth stack and serves HTTP until ctx is cancelled.
func RunServices(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config

	reg := cfg.Registry
	if reg == nil {
		reg = NewMetricsRegistry()
	}
	m := metrics.NewAuth(reg)

	stack, err := BuildAuthStack(AuthConfig{
		Auth:         appCfg.Auth,
		CookieDomain: appCfg.HTTP.CookieDomain,
		DB:           cfg.DB,
		RedisClient:  cfg.RedisClient,
		CachePrefix:  appCfg.Redis.KeyPrefix,
		Metrics:      m,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	router := httpx.RouterServices{
		Auth:         stack.Service,
		Resolver:     stack.Resolver,
		HealthChecks: HealthChecks(cfg.DB, cfg.RedisClient),
		Metrics:      m,

		TrustedOrigins: appCfg.HTTP.TrustedOrigins,
	}
	if appCfg.Observability.Metrics.Enabled {
		router.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
		router.MetricsPath = appCfg.Observability.Metrics.Path
		logger.Info("metrics endpoint enabled", "path", appCfg.Observability.Metrics.Path)
	}

	server := NewHTTPServer(HTTPServerConfig{HTTP: appCfg.HTTP, Router: router, Logger: logger})
	return ServeHTTP(ctx, server, cfg.Listener, appCfg.HTTP.ShutdownTimeout, logger)
}

// NewMetricsRegistry returns a registry with the Go runtime and process collectors.
func NewMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// HealthChecks returns the dependency probes for /api/health. Nil dependencies are skipped.
func HealthChecks(db *sql.DB, rdb redis.UniversalClient) map[string]httpx.HealthCheck {
	checks := make(map[string]httpx.HealthCheck, 2)
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}
	return checks
}
