package httpx

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/ofirc298/GUIDESSITE2025/internal/domain/auth"
	"github.com/ofirc298/GUIDESSITE2025/internal/session"
)

func TestRouter_AdminAccess(t *testing.T) {
	s := newStack(t)
	h := s.router()

	tests := []struct {
		role      domainauth.Role
		code      int
		canManage bool
		canDelete bool
	}{
		{role: domainauth.RoleStudent, code: http.StatusForbidden},
		{role: domainauth.RoleContentManager, code: http.StatusOK, canManage: true},
		{role: domainauth.RoleAdmin, code: http.StatusOK, canManage: true, canDelete: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/access", nil)
			req.AddCookie(&http.Cookie{
				Name:  session.DefaultCookieName,
				Value: s.tokenFor(t, domainauth.SessionUser{ID: "u1", Email: "u1@example.com", Role: tt.role}),
			})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.code, rec.Code)
			if tt.code != http.StatusOK {
				return
			}
			body := decodeBody(t, rec)
			assert.Equal(t, string(tt.role), body["role"])
			assert.Equal(t, tt.canManage, body["canManage"])
			assert.Equal(t, tt.canDelete, body["canDelete"])
		})
	}

	t.Run("anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/access", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRouter_AdminPage(t *testing.T) {
	s := newStack(t)
	h := s.router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/courses", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/signin?callbackUrl=%2Fadmin%2Fcourses", rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/admin/", nil)
	req.AddCookie(&http.Cookie{
		Name:  session.DefaultCookieName,
		Value: s.tokenFor(t, domainauth.SessionUser{ID: "u1", Email: "cm@example.com", Role: domainauth.RoleContentManager}),
	})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "cm@example.com")
	assert.Contains(t, rec.Body.String(), `data-can-delete="false"`)
}

func TestRouter_MethodsAndUnknownRoutes(t *testing.T) {
	h := newStack(t).router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/signin", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	s := newStack(t)
	h := NewRouter(RouterServices{
		Auth:           s.svc,
		Resolver:       s.resolver,
		Metrics:        s.metrics,
		MetricsHandler: promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}),
	})

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `guidessite_http_requests_total{method="GET",route="GET /api/auth/session",status="200"} 1`)
	assert.Contains(t, rec.Body.String(), `guidessite_auth_session_resolve_total{outcome="absent"} 1`)
}

func TestRouter_CompressesLargeJSON(t *testing.T) {
	s := newStack(t)
	h := NewRouter(RouterServices{
		Auth:        s.svc,
		Resolver:    s.resolver,
		Compression: &CompressionConfig{MinSize: 16},
	})

	req := jsonRequest(t, http.MethodPost, "/api/auth/signin", map[string]string{"email": "x@example.com", "password": "wrong-password"})
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(plain), "invalid_credentials"))
}

func TestRouter_PanicIsLoggedWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := wrapMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), RouterServices{Logger: logger})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/explode", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	id := rec.Header().Get(RequestIDHeader)
	require.NotEmpty(t, id)

	var panicLine, accessLine map[string]any
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var entry map[string]any
		require.NoError(t, dec.Decode(&entry))
		switch entry["msg"] {
		case "panic":
			panicLine = entry
		case "http":
			accessLine = entry
		}
	}
	require.NotNil(t, panicLine, "panic was not logged")
	require.NotNil(t, accessLine, "access log line missing")
	assert.Equal(t, id, panicLine["request_id"])
	assert.Equal(t, id, accessLine["request_id"])
	assert.EqualValues(t, http.StatusInternalServerError, accessLine["status"])
}

func TestRouter_TrustedOriginMaySignIn(t *testing.T) {
	s := newStack(t, userRecord("ada@example.com", domainauth.RoleStudent))
	h := NewRouter(RouterServices{
		Auth:           s.svc,
		Resolver:       s.resolver,
		TrustedOrigins: []string{"https://learn.example.org"},
	})

	req := jsonRequest(t, http.MethodPost, "/api/auth/signin",
		map[string]string{"email": "ada@example.com", "password": "secret123"})
	req.Header.Set("Origin", "https://learn.example.org")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, findCookie(rec, session.DefaultCookieName))
}
