package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ofirc298/GUIDESSITE2025/internal/adapters/jwtcodec"
	domainauth "github.com/ofirc298/GUIDESSITE2025/internal/domain/auth"
	httpx "github.com/ofirc298/GUIDESSITE2025/internal/http"
	mockauth "github.com/ofirc298/GUIDESSITE2025/internal/mocks/auth"
	"github.com/ofirc298/GUIDESSITE2025/internal/service"
	"github.com/ofirc298/GUIDESSITE2025/internal/session"
)

// newAuthServer serves the real auth routes over an in-memory credential store.
func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	codec, err := jwtcodec.New(jwtcodec.Options{Secret: []byte("0123456789abcdef0123456789abcdef")})
	require.NoError(t, err)

	cookies := session.NewCookieStore(session.CookieStoreOptions{Codec: codec})
	store := mockauth.NewCredentialStore(domainauth.UserRecord{
		ID:           "u-ada",
		Email:        "ada@example.com",
		Name:         "Ada",
		Role:         domainauth.RoleStudent,
		PasswordHash: "plain$secret123",
	})
	svc := service.MustNewAuthService(service.AuthServiceOptions{
		Credentials: store,
		Hasher:      mockauth.PlainHasher{},
		Sessions:    cookies,
	})
	srv := httptest.NewServer(httpx.NewRouter(httpx.RouterServices{
		Auth:     svc,
		Resolver: session.NewResolver(session.ResolverOptions{Store: cookies, Codec: codec}),
	}))
	t.Cleanup(srv.Close)
	return srv
}

type navRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (n *navRecorder) navigate(p string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, p)
}

func (n *navRecorder) got() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

func newContext(t *testing.T, baseURL string, hc *http.Client, nav *navRecorder) *SessionContext {
	t.Helper()
	opts := Options{BaseURL: baseURL, HTTPClient: hc}
	if nav != nil {
		opts.Navigate = nav.navigate
	}
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func TestSnapshot_LoadingUntilFirstFetch(t *testing.T) {
	srv := newAuthServer(t)
	c := newContext(t, srv.URL, nil, nil)

	st := c.Snapshot()
	assert.Equal(t, StatusUninitialized, st.Status)
	assert.True(t, st.Loading)
	assert.Nil(t, st.User)

	c.Init(context.Background())

	st = c.Snapshot()
	assert.Equal(t, StatusAnonymous, st.Status)
	assert.False(t, st.Loading)
	assert.Nil(t, st.User)
}

func TestInit_RunsOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":"u1","email":"a@example.com","role":"ADMIN"},"expires":"2030-01-01T00:00:00Z"}`))
	}))
	t.Cleanup(srv.Close)

	c := newContext(t, srv.URL, nil, nil)
	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Init(context.Background())
		}()
	}
	wg.Wait()
	c.Init(context.Background())

	assert.Equal(t, int32(1), hits.Load())
	st := c.Snapshot()
	require.NotNil(t, st.User)
	assert.Equal(t, StatusAuthenticated, st.Status)
	assert.Equal(t, domainauth.RoleAdmin, st.User.Role)
}

func TestInit_ErrorMeansAnonymous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := newContext(t, srv.URL, nil, nil)
	c.Init(context.Background())

	st := c.Snapshot()
	assert.Equal(t, StatusAnonymous, st.Status)
	assert.False(t, st.Loading)
}

func TestSignIn_OptimisticUpdate(t *testing.T) {
	srv := newAuthServer(t)
	c := newContext(t, srv.URL, nil, nil)
	c.Init(context.Background())

	var states []State
	unsubscribe := c.Subscribe(func(s State) { states = append(states, s) })
	defer unsubscribe()

	user, err := c.SignIn(context.Background(), "ada@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "u-ada", user.ID)

	st := c.Snapshot()
	assert.Equal(t, StatusAuthenticated, st.Status)
	require.NotNil(t, st.User)
	assert.Equal(t, "ada@example.com", st.User.Email)

	// Exactly one transition, straight to Authenticated.
	require.Len(t, states, 1)
	assert.Equal(t, StatusAuthenticated, states[0].Status)
	assert.False(t, states[0].Loading)

	// The cookie landed in the jar, so a fresh context on the same client sees the session.
	other := newContext(t, srv.URL, c.hc, nil)
	other.Init(context.Background())
	require.NotNil(t, other.Snapshot().User)
	assert.Equal(t, "u-ada", other.Snapshot().User.ID)
}

func TestSignIn_FailureLeavesStateUnchanged(t *testing.T) {
	srv := newAuthServer(t)
	c := newContext(t, srv.URL, nil, nil)
	c.Init(context.Background())
	before := c.Snapshot()

	_, err := c.SignIn(context.Background(), "ada@example.com", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainauth.ErrInvalidCredentials)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, before, c.Snapshot())

	_, err = c.SignIn(context.Background(), "", "")
	assert.ErrorIs(t, err, domainauth.ErrMissingCredentials)
}

func TestSignOut_AlwaysAnonymous(t *testing.T) {
	srv := newAuthServer(t)
	nav := &navRecorder{}
	c := newContext(t, srv.URL, nil, nav)
	c.Init(context.Background())
	_, err := c.SignIn(context.Background(), "ada@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, c.SignOut(context.Background()))
	assert.Equal(t, StatusAnonymous, c.Snapshot().Status)
	assert.Equal(t, []string{NeutralRoute}, nav.got())

	other := newContext(t, srv.URL, c.hc, nil)
	other.Init(context.Background())
	assert.Nil(t, other.Snapshot().User)
}

func TestSignOut_ServerUnreachable(t *testing.T) {
	srv := newAuthServer(t)
	nav := &navRecorder{}
	c := newContext(t, srv.URL, nil, nav)
	_, err := c.SignIn(context.Background(), "ada@example.com", "secret123")
	require.NoError(t, err)

	srv.Close()
	err = c.SignOut(context.Background())
	require.Error(t, err)

	assert.Equal(t, StatusAnonymous, c.Snapshot().Status)
	assert.Nil(t, c.Snapshot().User)
	assert.Equal(t, []string{NeutralRoute}, nav.got())

	u, perr := url.Parse(srv.URL)
	require.NoError(t, perr)
	assert.Empty(t, c.hc.Jar.Cookies(u), "local session cookie is dropped")
}

func TestSignInDuringInit_NotOverwritten(t *testing.T) {
	release := make(chan struct{})
	srv := newAuthServer(t)
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/session" {
			<-release
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("null"))
			return
		}
		proxy, err := http.NewRequestWithContext(r.Context(), r.Method, srv.URL+r.URL.Path, r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		proxy.Header = r.Header.Clone()
		proxy.ContentLength = r.ContentLength
		resp, err := http.DefaultClient.Do(proxy)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()
		for k, v := range resp.Header {
			w.Header()[k] = v
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
	}))
	t.Cleanup(slow.Close)

	c := newContext(t, slow.URL, nil, nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Init(context.Background())
	}()

	require.Eventually(t, func() bool { return c.Snapshot().Status == StatusLoading }, time.Second, 5*time.Millisecond)
	_, err := c.SignIn(context.Background(), "ada@example.com", "secret123")
	require.NoError(t, err)

	close(release)
	<-done
	assert.Equal(t, StatusAuthenticated, c.Snapshot().Status)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	srv := newAuthServer(t)
	c := newContext(t, srv.URL, nil, nil)

	var calls atomic.Int32
	unsubscribe := c.Subscribe(func(State) { calls.Add(1) })
	c.Init(context.Background())
	// Loading then Anonymous.
	assert.Equal(t, int32(2), calls.Load())

	unsubscribe()
	unsubscribe()
	_ = c.SignOut(context.Background())
	assert.Equal(t, int32(2), calls.Load())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{BaseURL: "/relative"})
	require.Error(t, err)

	_, err = New(Options{BaseURL: "http://localhost", HTTPClient: &http.Client{}})
	require.Error(t, err)

	c, err := New(Options{BaseURL: "http://localhost"})
	require.NoError(t, err)
	assert.NotNil(t, c.hc.Jar)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "authenticated", StatusAuthenticated.String())
	assert.Equal(t, "status(9)", Status(9).String())
}

func TestDropCookie_ExpiresDomainScopedCookie(t *testing.T) {
	tests := []struct {
		name         string
		serverDomain string
		clientDomain string
	}{
		{name: "configured parent domain", serverDomain: "example.com", clientDomain: "example.com"},
		{name: "unconfigured parent domain", serverDomain: "example.com"},
		{name: "domain equal to host", serverDomain: "app.example.com"},
		{name: "host-only", serverDomain: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc, err := NewHTTPClient()
			require.NoError(t, err)
			base, err := url.Parse("https://app.example.com")
			require.NoError(t, err)

			hc.Jar.SetCookies(base, []*http.Cookie{{
				Name:   session.DefaultCookieName,
				Value:  "token",
				Path:   "/",
				Domain: tt.serverDomain,
				MaxAge: 3600,
			}})
			require.Len(t, hc.Jar.Cookies(base), 1)

			sc, err := New(Options{BaseURL: base.String(), HTTPClient: hc, CookieDomain: tt.clientDomain})
			require.NoError(t, err)
			sc.dropCookie()

			assert.Empty(t, hc.Jar.Cookies(base))
		})
	}
}

func TestCookieDomains(t *testing.T) {
	assert.Equal(t, []string{"app.example.com", "example.com"}, cookieDomains("App.Example.com", ""))
	assert.Equal(t, []string{"example.com", "a.b.example.com", "b.example.com"}, cookieDomains("a.b.example.com", ".Example.com"))
	assert.Equal(t, []string{"example.co.uk"}, cookieDomains("example.co.uk", ""))
	assert.Empty(t, cookieDomains("127.0.0.1", ""))
	assert.Equal(t, []string{"corp.internal"}, cookieDomains("::1", "corp.internal"))
}
