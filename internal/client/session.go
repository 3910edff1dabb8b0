// Package client keeps a program's view of its own session in sync with the server.
//
// A SessionContext moves through Uninitialized, Loading and then either
// Authenticated or Anonymous. The first fetch happens once; sign-in updates the
// state from the response without refetching, and sign-out always ends Anonymous.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	domainauth "github.com/ofirc298/GUIDESSITE2025/internal/domain/auth"
	"github.com/ofirc298/GUIDESSITE2025/internal/session"
)

const (
	sessionPath = "/api/auth/session"
	signInPath  = "/api/auth/signin"
	signOutPath = "/api/auth/signout"

	// NeutralRoute is where sign-out navigates.
	NeutralRoute = "/"

	defaultTimeout  = 10 * time.Second
	maxResponseBody = 1 << 20
)

// Status is a position in the client session state machine.
type Status int

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// State is a point-in-time view of the session. Loading stays true until the first
// fetch completes; consumers must not read a nil User as anonymous while it is set.
type State struct {
	Status  Status
	User    *domainauth.SessionUser
	Loading bool
}

// APIError is a non-2xx answer from the auth API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("auth api: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("auth api: %d %s", e.StatusCode, e.Code)
}

// Unwrap maps well-known API error codes onto the domain errors.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "invalid_credentials":
		return domainauth.ErrInvalidCredentials
	case "missing_credentials":
		return domainauth.ErrMissingCredentials
	case "signin_failed":
		return domainauth.ErrUpstreamLookup
	default:
		return nil
	}
}

// Options configures a SessionContext.
type Options struct {
	// BaseURL is the origin serving the auth API, e.g. "https://guides.example.com".
	BaseURL string
	// HTTPClient must carry a cookie jar. When nil, a client with a
	// public-suffix aware jar is created.
	HTTPClient *http.Client
	// Navigate is invoked with NeutralRoute after sign-out.
	Navigate func(path string)
	// CookieName defaults to the server's session cookie name.
	CookieName string
	// CookieDomain mirrors the server's APP_COOKIE_DOMAIN, if any.
	CookieDomain string
	Logger       *slog.Logger
}

// Listener is notified after every state change.
type Listener func(State)

// SessionContext is the client-side owner of the session state. It is safe for
// concurrent use, though sign-in and sign-out are not serialized against each other.
type SessionContext struct {
	base       *url.URL
	hc         *http.Client
	navigate   func(string)
	cookieName   string
	cookieDomain string
	logger       *slog.Logger

	initOnce sync.Once

	mu        sync.RWMutex
	status    Status
	user      *domainauth.SessionUser
	listeners map[int]Listener
	nextID    int
}

// New constructs a SessionContext in the Uninitialized state.
func New(opts Options) (*SessionContext, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc, err = NewHTTPClient()
		if err != nil {
			return nil, err
		}
	}
	if hc.Jar == nil {
		return nil, errors.New("http client has no cookie jar")
	}

	navigate := opts.Navigate
	if navigate == nil {
		navigate = func(string) {}
	}
	name := opts.CookieName
	if name == "" {
		name = session.DefaultCookieName
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionContext{
		base:         base,
		hc:           hc,
		navigate:     navigate,
		cookieName:   name,
		cookieDomain: opts.CookieDomain,
		logger:       logger,
		listeners:    make(map[int]Listener),
	}, nil
}

// NewHTTPClient returns an HTTP client whose cookie jar uses the public suffix list.
func NewHTTPClient() (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &http.Client{Jar: jar, Timeout: defaultTimeout}, nil
}

// Init fetches the current session. Only the first call does any work; failures
// and a null session both leave the context Anonymous.
func (c *SessionContext) Init(ctx context.Context) {
	c.initOnce.Do(func() {
		c.transition(func() bool {
			if c.status != StatusUninitialized {
				return false
			}
			c.status = StatusLoading
			return true
		})

		user, err := c.fetchSession(ctx)
		if err != nil {
			c.logger.WarnContext(ctx, "session fetch failed", "error", err)
		}

		c.transition(func() bool {
			// A sign-in or sign-out that finished first wins.
			if c.status != StatusLoading {
				return false
			}
			c.setUserLocked(user)
			return true
		})
	})
}

// SignIn posts credentials. On success the state becomes Authenticated with the
// returned user; on failure the state is left as it was.
func (c *SessionContext) SignIn(ctx context.Context, email, password string) (domainauth.SessionUser, error) {
	var out struct {
		Success bool                   `json:"success"`
		User    domainauth.SessionUser `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, signInPath, map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		return domainauth.SessionUser{}, err
	}
	if !out.Success || out.User.ID == "" {
		return domainauth.SessionUser{}, errors.New("sign-in response carried no user")
	}

	user := out.User
	c.transition(func() bool {
		c.setUserLocked(&user)
		return true
	})
	return user, nil
}

// SignOut asks the server to clear the session. The context ends Anonymous and
// navigates to NeutralRoute whatever the outcome; the call's error is still returned.
func (c *SessionContext) SignOut(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, signOutPath, nil, nil)
	if err != nil {
		c.logger.WarnContext(ctx, "sign-out request failed", "error", err)
		c.dropCookie()
	}

	c.transition(func() bool {
		c.setUserLocked(nil)
		return true
	})
	c.navigate(NeutralRoute)
	return err
}

// Snapshot returns the current state.
func (c *SessionContext) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Subscribe registers fn for state changes and returns a function that removes it.
func (c *SessionContext) Subscribe(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

func (c *SessionContext) snapshotLocked() State {
	st := State{Status: c.status, Loading: c.status == StatusUninitialized || c.status == StatusLoading}
	if c.user != nil {
		u := *c.user
		st.User = &u
	}
	return st
}

func (c *SessionContext) setUserLocked(user *domainauth.SessionUser) {
	if user == nil {
		c.status = StatusAnonymous
		c.user = nil
		return
	}
	c.status = StatusAuthenticated
	c.user = user
}

// transition applies mutate under the lock and notifies listeners when it reports a change.
func (c *SessionContext) transition(mutate func() bool) {
	c.mu.Lock()
	if !mutate() {
		c.mu.Unlock()
		return
	}
	st := c.snapshotLocked()
	ls := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		ls = append(ls, l)
	}
	c.mu.Unlock()

	for _, l := range ls {
		l(st)
	}
}

func (c *SessionContext) fetchSession(ctx context.Context) (*domainauth.SessionUser, error) {
	var sess *domainauth.Session
	if err := c.do(ctx, http.MethodGet, sessionPath, nil, &sess); err != nil {
		return nil, err
	}
	if sess == nil || sess.User.ID == "" {
		return nil, nil
	}
	return &sess.User, nil
}

// dropCookie forgets the session cookie locally when the server could not clear it.
// The jar keys domain cookies by their Domain attribute, so the host-only entry and
// every domain the server could have used are expired.
func (c *SessionContext) dropCookie() {
	expired := []*http.Cookie{{Name: c.cookieName, Path: "/", MaxAge: -1}}
	for _, d := range cookieDomains(c.base.Hostname(), c.cookieDomain) {
		expired = append(expired, &http.Cookie{Name: c.cookieName, Path: "/", Domain: d, MaxAge: -1})
	}
	c.hc.Jar.SetCookies(c.base, expired)
}

// cookieDomains lists configured first, then host and each parent domain down to
// the registrable domain. IP hosts only get the configured domain.
func cookieDomains(host, configured string) []string {
	var out []string
	if d := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(configured)), "."); d != "" {
		out = append(out, d)
	}
	host = strings.ToLower(host)
	if host == "" || net.ParseIP(host) != nil {
		return out
	}
	apex, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return out
	}
	for d := host; ; {
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
		if d == apex {
			return out
		}
		i := strings.IndexByte(d, '.')
		if i < 0 {
			return out
		}
		d = d[i+1:]
	}
}

func (c *SessionContext) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.ResolveReference(&url.URL{Path: path}).String(), rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &payload) == nil {
			apiErr.Code = payload.Error
			apiErr.Message = payload.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
