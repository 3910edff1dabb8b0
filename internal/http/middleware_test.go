package httpx

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ofirc298/GUIDESSITE2025/internal/authz"
	domainauth "github.com/ofirc298/GUIDESSITE2025/internal/domain/auth"
	"github.com/ofirc298/GUIDESSITE2025/internal/observability/metrics"
)

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func TestLogging_AssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var seen string
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), seen)
}

func TestLogging_InboundRequestID(t *testing.T) {
	h := Logging(slog.New(slog.DiscardHandler))(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("a", 65))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, strings.Repeat("a", 65), rec.Header().Get(RequestIDHeader))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRecover(t *testing.T) {
	h := Recover(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decodeBody(t, rec)["error"])
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestRecover_AbortHandlerPropagates(t *testing.T) {
	h := Recover(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRequireRoles(t *testing.T) {
	tests := []struct {
		name    string
		sess    *domainauth.Session
		allowed authz.RoleSet
		code    int
		errCode string
	}{
		{name: "anonymous", sess: nil, allowed: authz.AdminSurface, code: http.StatusUnauthorized, errCode: "authentication_required"},
		{name: "student on admin", sess: sessionWithRole(domainauth.RoleStudent), allowed: authz.AdminSurface, code: http.StatusForbidden, errCode: "insufficient_permissions"},
		{name: "manager on admin", sess: sessionWithRole(domainauth.RoleContentManager), allowed: authz.AdminSurface, code: http.StatusOK},
		{name: "manager on delete", sess: sessionWithRole(domainauth.RoleContentManager), allowed: authz.AdminDelete, code: http.StatusForbidden, errCode: "insufficient_permissions"},
		{name: "admin on delete", sess: sessionWithRole(domainauth.RoleAdmin), allowed: authz.AdminDelete, code: http.StatusOK},
		{name: "any signed in", sess: sessionWithRole(domainauth.RoleStudent), allowed: nil, code: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &staticResolver{sess: tt.sess}
			var got *domainauth.Session
			h := RequireRoles(res, tt.allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = GetSessionFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/things", nil))

			assert.Equal(t, tt.code, rec.Code)
			if tt.errCode != "" {
				assert.Equal(t, tt.errCode, decodeBody(t, rec)["error"])
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.sess, got)
		})
	}
}

func TestRequireSession_Anonymous(t *testing.T) {
	h := RequireSession(&staticResolver{})(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRolesBrowser(t *testing.T) {
	t.Run("anonymous browser is redirected", func(t *testing.T) {
		h := RequireRolesBrowser(&staticResolver{}, authz.AdminSurface)(http.HandlerFunc(okHandler))
		req := httptest.NewRequest(http.MethodGet, "/admin/courses?page=2", nil)
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/signin?callbackUrl=%2Fadmin%2Fcourses%3Fpage%3D2", rec.Header().Get("Location"))
	})

	t.Run("anonymous api client gets 401", func(t *testing.T) {
		h := RequireRolesBrowser(&staticResolver{}, authz.AdminSurface)(http.HandlerFunc(okHandler))
		req := httptest.NewRequest(http.MethodGet, "/admin/courses", nil)
		req.Header.Set("Accept", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("student browser gets access denied", func(t *testing.T) {
		h := RequireRolesBrowser(&staticResolver{sess: sessionWithRole(domainauth.RoleStudent)}, authz.AdminSurface)(http.HandlerFunc(okHandler))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/", nil))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "Access Denied")
	})

	t.Run("admin passes", func(t *testing.T) {
		h := RequireRolesBrowser(&staticResolver{sess: sessionWithRole(domainauth.RoleAdmin)}, authz.AdminSurface)(http.HandlerFunc(okHandler))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestOptionalSession(t *testing.T) {
	for _, sess := range []*domainauth.Session{nil, sessionWithRole(domainauth.RoleStudent)} {
		var guest bool
		h := OptionalSession(&staticResolver{sess: sess})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guest = IsGuestUser(r.Context())
			w.WriteHeader(http.StatusOK)
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, sess == nil, guest)
	}
}

func TestSafeRedirectPath(t *testing.T) {
	tests := map[string]string{
		"":                         "/",
		"/courses":                 "/courses",
		"/courses?id=1#top":        "/courses?id=1#top",
		"//evil.example.com":       "/",
		`/\evil.example.com`:       "/",
		"https://evil.example.com": "/",
		"courses":                  "/",
		"javascript:alert(1)":      "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeRedirectPath(in), "input %q", in)
	}
}

func TestIsBrowserRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/", nil)
	assert.True(t, IsBrowserRequest(req))

	req.Header.Set("Accept", "application/json")
	assert.False(t, IsBrowserRequest(req))

	api := httptest.NewRequest(http.MethodGet, "/api/admin/access", nil)
	api.Header.Set("Accept", "text/html")
	assert.False(t, IsBrowserRequest(api))
}

func TestMetrics_LabelsByPattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewAuth(reg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", okHandler)
	h := Metrics(m)(mux)

	for _, path := range []string{"/items/1", "/items/2", "/nowhere"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	count, err := promtest.GatherAndCount(reg, "guidessite_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per route pattern")
}

func TestMetrics_NilPassesThrough(t *testing.T) {
	next := http.HandlerFunc(okHandler)
	h := Metrics(nil)(next)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
