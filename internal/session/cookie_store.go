package session

// Package session implements the cookie transport for session tokens and the
// resolver that turns an incoming request into a Session or nothing.

import (
	"net/http"
	"strings"
	"time"

	domainauth "github.com/ofirc298/GUIDESSITE2025/internal/domain/auth"
	"github.com/ofirc298/GUIDESSITE2025/internal/ports"
)

// DefaultCookieName is the cookie that carries the session token.
const DefaultCookieName = "auth-token"

// SecureMode decides when the Secure attribute is set on the session cookie.
type SecureMode string

const (
	// SecureAuto marks the cookie Secure when the request arrived over TLS,
	// directly or through a proxy reporting X-Forwarded-Proto: https.
	SecureAuto   SecureMode = "auto"
	SecureAlways SecureMode = "always"
	SecureNever  SecureMode = "never"
)

// CookieStoreOptions configures a CookieStore.
type CookieStoreOptions struct {
	Codec  ports.TokenCodec
	Name   string // defaults to DefaultCookieName
	Domain string
	Secure SecureMode // defaults to SecureAuto
}

// CookieStore implements ports.SessionStore on top of an HTTP-only cookie.
type CookieStore struct {
	codec  ports.TokenCodec
	name   string
	domain string
	secure SecureMode
}

var _ ports.SessionStore = (*CookieStore)(nil)

// NewCookieStore constructs a CookieStore.
func NewCookieStore(opts CookieStoreOptions) *CookieStore {
	name := opts.Name
	if name == "" {
		name = DefaultCookieName
	}
	secure := opts.Secure
	if secure == "" {
		secure = SecureAuto
	}
	return &CookieStore{codec: opts.Codec, name: name, domain: opts.Domain, secure: secure}
}

// Name returns the cookie name.
func (s *CookieStore) Name() string { return s.name }

// Set encodes claims and writes the session cookie. Max-Age equals the claim lifetime.
func (s *CookieStore) Set(scope ports.RequestScope, claims domainauth.SessionClaims) error {
	if scope.W == nil || scope.R == nil {
		return domainauth.ErrNoRequestScope
	}
	token, err := s.codec.Encode(claims)
	if err != nil {
		return err
	}
	http.SetCookie(scope.W, &http.Cookie{
		Name:     s.name,
		Value:    token,
		Path:     "/",
		Domain:   s.domain,
		MaxAge:   int(claims.Lifetime() / time.Second),
		HttpOnly: true,
		Secure:   s.isSecure(scope.R),
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read returns the raw token from the request. A missing cookie is not an error.
func (s *CookieStore) Read(scope ports.RequestScope) (string, error) {
	if scope.R == nil {
		return "", domainauth.ErrNoRequestScope
	}
	c, err := scope.R.Cookie(s.name)
	if err != nil {
		return "", nil //nolint:nilerr // http.ErrNoCookie means no session
	}
	return c.Value, nil
}

// Clear expires the session cookie immediately. It mirrors the attributes used by Set
// so every browser matches and drops the same cookie.
func (s *CookieStore) Clear(scope ports.RequestScope) error {
	if scope.W == nil || scope.R == nil {
		return domainauth.ErrNoRequestScope
	}
	http.SetCookie(scope.W, &http.Cookie{
		Name:     s.name,
		Value:    "",
		Path:     "/",
		Domain:   s.domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		HttpOnly: true,
		Secure:   s.isSecure(scope.R),
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *CookieStore) isSecure(r *http.Request) bool {
	switch s.secure {
	case SecureAlways:
		return true
	case SecureNever:
		return false
	default:
		return IsSecureRequest(r)
	}
}

// IsSecureRequest reports whether r was served over TLS, directly or behind a proxy.
func IsSecureRequest(r *http.Request) bool {
	if r == nil {
		return false
	}
	if r.TLS != nil {
		return true
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	if i := strings.IndexByte(proto, ','); i >= 0 {
		proto = proto[:i]
	}
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}
