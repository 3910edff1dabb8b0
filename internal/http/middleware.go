package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ofirc298/GUIDESSITE2025/internal/authz"
	domainauth "github.com/ofirc298/GUIDESSITE2025/internal/domain/auth"
	"github.com/ofirc298/GUIDESSITE2025/internal/observability/metrics"
	"github.com/ofirc298/GUIDESSITE2025/internal/ports"
)

// RequestIDHeader carries the per-request correlation id in both directions.
const RequestIDHeader = "X-Request-ID"

const maxInboundRequestID = 64

// SignInPath is where browser requests without a session are sent.
const SignInPath = "/signin"

// SessionResolver resolves the caller's session; nil means anonymous.
type SessionResolver interface {
	Resolve(scope ports.RequestScope) *domainauth.Session
}

// Logging returns a middleware that assigns a request id and logs every request.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > maxInboundRequestID {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http",
				slog.String("request_id", id),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *respWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *respWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *respWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.ErrorContext(r.Context(), "panic",
						slog.Any("error", err),
						slog.String("request_id", RequestIDFromContext(r.Context())),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					WriteError(w, ErrorParams{
						Code:    http.StatusInternalServerError,
						ErrCode: "internal_error",
						Message: "internal server error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Metrics records request counts and latencies labelled by the matched route pattern.
// It must wrap the ServeMux directly so the pattern set by the mux is visible afterwards.
func Metrics(m *metrics.Auth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.HTTPRequest(r.Method, route, strconv.Itoa(ww.status), time.Since(start))
		})
	}
}

// OptionalSession places the caller's session, when present, into the request context.
func OptionalSession(res SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sess := res.Resolve(ports.RequestScope{W: w, R: r}); sess != nil {
				r = r.WithContext(SetSessionInContext(r.Context(), sess))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession rejects anonymous API requests with 401.
func RequireSession(res SessionResolver) func(http.Handler) http.Handler {
	return RequireRoles(res, nil)
}

// RequireRoles rejects anonymous API requests with 401 and unauthorized roles with 403.
// A nil RoleSet admits any signed-in user.
func RequireRoles(res SessionResolver, allowed authz.RoleSet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := res.Resolve(ports.RequestScope{W: w, R: r})
			if sess == nil {
				writeAuthRequired(w)
				return
			}
			if allowed != nil && !authz.Authorize(sess, allowed) {
				writeForbidden(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(SetSessionInContext(r.Context(), sess)))
		})
	}
}

// RequireRolesBrowser is RequireRoles for page routes: anonymous browser requests are
// redirected to the sign-in page with a callbackUrl, insufficient roles get a plain 403 page.
// Non-browser clients receive the same JSON errors as RequireRoles.
func RequireRolesBrowser(res SessionResolver, allowed authz.RoleSet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := res.Resolve(ports.RequestScope{W: w, R: r})
			browser := IsBrowserRequest(r)
			if sess == nil {
				if browser {
					http.Redirect(w, r, SignInURL(r.URL.RequestURI()), http.StatusSeeOther)
					return
				}
				writeAuthRequired(w)
				return
			}
			if allowed != nil && !authz.Authorize(sess, allowed) {
				if browser {
					http.Error(w, "Access Denied: You don't have permission to access this resource", http.StatusForbidden)
					return
				}
				writeForbidden(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(SetSessionInContext(r.Context(), sess)))
		})
	}
}

func writeAuthRequired(w http.ResponseWriter) {
	WriteError(w, ErrorParams{
		Code:    http.StatusUnauthorized,
		ErrCode: "authentication_required",
		Err:     errors.New("authentication required"),
	})
}

func writeForbidden(w http.ResponseWriter) {
	WriteError(w, ErrorParams{
		Code:    http.StatusForbidden,
		ErrCode: "insufficient_permissions",
		Err:     errors.New("insufficient permissions"),
	})
}

// IsBrowserRequest reports whether r comes from a browser navigation rather than an API client.
// API routes never are; otherwise an Accept header naming text/html, or none at all, counts.
func IsBrowserRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	accept := r.Header.Get("Accept")
	if accept == "" {
		return true
	}
	return strings.Contains(accept, "text/html")
}

// SignInURL builds the sign-in redirect target for callback.
func SignInURL(callback string) string {
	return SignInPath + "?callbackUrl=" + url.QueryEscape(SafeRedirectPath(callback))
}

// SafeRedirectPath returns candidate when it is a same-origin absolute path, "/" otherwise.
func SafeRedirectPath(candidate string) string {
	if candidate == "" || strings.HasPrefix(candidate, "//") || strings.HasPrefix(candidate, `/\`) {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return candidate
}
