package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ofirc298/GUIDESSITE2025/config"
	httpx "github.com/ofirc298/GUIDESSITE2025/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	HTTP   config.HTTPConfig
	Router httpx.RouterServices
	Logger *slog.Logger
}

// NewHTTPServer builds the server with the full middleware chain.
func NewHTTPServer(cfg HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := cfg.Router
	router.Logger = logger
	if cfg.HTTP.CompressionEnabled {
		logger.Info("HTTP compression enabled", "level", cfg.HTTP.CompressionLevel)
		router.Compression = &httpx.CompressionConfig{
			Level:   cfg.HTTP.CompressionLevel,
			MinSize: cfg.HTTP.CompressionMinSize,
			Logger:  logger,
		}
	}

	// Guard against empty addr to avoid listening on Go default
	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}

	return &http.Server{
		Addr:              addr,
		Handler:           httpx.NewRouter(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}

// ServeHTTP runs server until ctx is cancelled, then shuts it down within shutdownTimeout.
// If ln is nil the server listens on its Addr.
func ServeHTTP(ctx context.Context, server *http.Server, ln net.Listener, shutdownTimeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if ln != nil {
			logger.Info("starting HTTP server", "addr", ln.Addr().String())
			err = server.Serve(ln)
		} else {
			logger.Info("starting HTTP server", "addr", server.Addr)
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		logger.Info("HTTP server stopped")
		return nil
	})
	return g.Wait()
}
