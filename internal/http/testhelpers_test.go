package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ofirc298/GUIDESSITE2025/internal/adapters/jwtcodec"
	domainauth "github.com/ofirc298/GUIDESSITE2025/internal/domain/auth"
	mockauth "github.com/ofirc298/GUIDESSITE2025/internal/mocks/auth"
	"github.com/ofirc298/GUIDESSITE2025/internal/observability/metrics"
	"github.com/ofirc298/GUIDESSITE2025/internal/ports"
	"github.com/ofirc298/GUIDESSITE2025/internal/service"
	"github.com/ofirc298/GUIDESSITE2025/internal/session"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// stack is a fully wired auth stack backed by an in-memory credential store.
type stack struct {
	svc      *service.AuthService
	resolver *session.Resolver
	store    *mockauth.CredentialStore
	codec    *jwtcodec.Codec
	reg      *prometheus.Registry
	metrics  *metrics.Auth
}

func newStack(t *testing.T, recs ...domainauth.UserRecord) *stack {
	t.Helper()
	codec, err := jwtcodec.New(jwtcodec.Options{Secret: testSecret})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.NewAuth(reg)
	store := mockauth.NewCredentialStore(recs...)
	cookies := session.NewCookieStore(session.CookieStoreOptions{Codec: codec})
	svc := service.MustNewAuthService(service.AuthServiceOptions{
		Credentials: store,
		Hasher:      mockauth.PlainHasher{},
		Sessions:    cookies,
		Metrics:     m,
	})
	return &stack{
		svc:      svc,
		resolver: session.NewResolver(session.ResolverOptions{Store: cookies, Codec: codec, Metrics: m}),
		store:    store,
		codec:    codec,
		reg:      reg,
		metrics:  m,
	}
}

func (s *stack) router() http.Handler {
	return NewRouter(RouterServices{Auth: s.svc, Resolver: s.resolver, Metrics: s.metrics})
}

// tokenFor signs a token for user valid for the default session lifetime.
func (s *stack) tokenFor(t *testing.T, user domainauth.SessionUser) string {
	t.Helper()
	tok, err := s.codec.Encode(domainauth.NewSessionClaims(user, time.Now(), service.DefaultSessionTTL))
	require.NoError(t, err)
	return tok
}

func userRecord(email string, role domainauth.Role) domainauth.UserRecord {
	return domainauth.UserRecord{
		ID:           "u-" + string(role),
		Email:        email,
		Name:         "Test " + string(role),
		Role:         role,
		PasswordHash: "plain$secret123",
	}
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// staticResolver returns a fixed session for every request.
type staticResolver struct {
	sess  *domainauth.Session
	calls int
}

func (r *staticResolver) Resolve(ports.RequestScope) *domainauth.Session {
	r.calls++
	return r.sess
}

func sessionWithRole(role domainauth.Role) *domainauth.Session {
	return &domainauth.Session{User: domainauth.SessionUser{ID: "u1", Email: "u1@example.com", Role: role}}
}
