package httpx

import (
	"log/slog"
	"net/http"

	"github.com/ofirc298/GUIDESSITE2025/internal/authz"
	"github.com/ofirc298/GUIDESSITE2025/internal/observability/metrics"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth     AuthServiceInterface
	Resolver SessionResolver

	// HealthChecks are probed by /api/health. Empty means the endpoint always reports ok.
	HealthChecks map[string]HealthCheck

	// Metrics records per-route request metrics; MetricsHandler, when set, is mounted at MetricsPath.
	Metrics        *metrics.Auth
	MetricsHandler http.Handler
	MetricsPath    string // defaults to /metrics

	// TrustedOrigins are extra browser origins allowed to POST to the auth endpoints.
	TrustedOrigins []string

	// Compression enables gzip for negotiated responses when non-nil.
	Compression *CompressionConfig
	Logger      *slog.Logger
}

// NewRouter creates the HTTP handler with all routes and the middleware chain.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /api/health", &HealthHandler{Checks: services.HealthChecks, Logger: services.Logger})

	if services.Auth != nil && services.Resolver != nil {
		registerAuthRoutes(mux, &AuthHandlers{
			Svc:      services.Auth,
			Resolver: services.Resolver,
			Logger:   services.Logger,
		}, CrossOriginProtection(CrossOriginConfig{TrustedOrigins: services.TrustedOrigins}))
	}
	if services.Resolver != nil {
		registerAdminRoutes(mux, &AdminHandlers{Logger: services.Logger}, services.Resolver)
	}
	if services.MetricsHandler != nil {
		path := services.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, services.MetricsHandler)
	}

	return wrapMiddleware(mux, services)
}

// wrapMiddleware applies the global chain. Logging is outermost so that
// requests which panic still get a request id and an access-log line.
func wrapMiddleware(h http.Handler, services RouterServices) http.Handler {
	h = Metrics(services.Metrics)(h)
	if services.Compression != nil {
		h = Compression(*services.Compression)(h)
	}
	h = Recover(services.Logger)(h)
	h = Logging(services.Logger)(h)
	return h
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, sameOrigin func(http.Handler) http.Handler) {
	mux.Handle("POST /api/auth/signin", sameOrigin(http.HandlerFunc(h.SignIn)))
	mux.Handle("POST /api/auth/signout", sameOrigin(http.HandlerFunc(h.SignOut)))
	mux.Handle("POST /api/auth/signup", sameOrigin(http.HandlerFunc(h.SignUp)))
	mux.HandleFunc("GET /api/auth/session", h.Session)
}

func registerAdminRoutes(mux *http.ServeMux, h *AdminHandlers, res SessionResolver) {
	mux.Handle("GET /api/admin/access", RequireRoles(res, authz.AdminSurface)(http.HandlerFunc(h.Access)))
	mux.Handle("GET /admin/", RequireRolesBrowser(res, authz.AdminSurface)(http.HandlerFunc(h.Page)))
}
