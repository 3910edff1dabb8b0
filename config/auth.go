package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// MinSessionSecretLength is the shortest accepted AUTH_SESSION_SECRET, in bytes.
const MinSessionSecretLength = 32

// CredentialSource selects where user records are read from.
type CredentialSource string

const (
	// CredentialSourcePostgres reads users from the users table.
	CredentialSourcePostgres CredentialSource = "postgres"
	// CredentialSourceMemory keeps users in process memory (development only).
	CredentialSourceMemory CredentialSource = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for CredentialSource.
func (s *CredentialSource) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "postgres", "memory":
		*s = CredentialSource(v)
		return nil
	default:
		return fmt.Errorf("invalid CredentialSource: %q (valid options: postgres, memory)", v)
	}
}

// CookieSecureMode controls the Secure attribute of the session cookie.
type CookieSecureMode string

const (
	CookieSecureAuto   CookieSecureMode = "auto"
	CookieSecureAlways CookieSecureMode = "always"
	CookieSecureNever  CookieSecureMode = "never"
)

// UnmarshalText implements encoding.TextUnmarshaler for CookieSecureMode.
func (m *CookieSecureMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "auto", "always", "never":
		*m = CookieSecureMode(v)
		return nil
	default:
		return fmt.Errorf("invalid CookieSecureMode: %q (valid options: auto, always, never)", v)
	}
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// SessionSecret signs session tokens. Required; see Validate.
	SessionSecret string `env:"AUTH_SESSION_SECRET"`

	// SessionTTL is the lifetime of a session token and its cookie.
	SessionTTL time.Duration `env:"AUTH_SESSION_TTL" envDefault:"24h"`

	// TokenIssuer is written to and required on every token.
	TokenIssuer string `env:"AUTH_TOKEN_ISSUER" envDefault:"guidessite"`

	CookieName   string           `env:"AUTH_COOKIE_NAME"   envDefault:"auth-token"`
	CookieSecure CookieSecureMode `env:"AUTH_COOKIE_SECURE" envDefault:"auto"`

	// LookupTimeout bounds a single credential store call during sign-in.
	LookupTimeout time.Duration `env:"AUTH_LOOKUP_TIMEOUT" envDefault:"5s"`

	// BcryptCost is clamped to the bounds bcrypt accepts.
	BcryptCost int `env:"AUTH_BCRYPT_COST" envDefault:"12"`

	CredentialSource CredentialSource `env:"AUTH_CREDENTIAL_SOURCE" envDefault:"postgres"`

	// CredentialCacheTTL enables the Redis read-through cache when positive.
	CredentialCacheTTL time.Duration `env:"AUTH_CREDENTIAL_CACHE_TTL" envDefault:"0s"`

	// DevUsers seeds the memory credential source.
	// Format: email:ROLE:password entries separated by commas.
	DevUsers string `env:"DEV_AUTH_USERS"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	if a.SessionTTL <= 0 {
		a.SessionTTL = 24 * time.Hour
	}
	if a.LookupTimeout <= 0 {
		a.LookupTimeout = 5 * time.Second
	}
	if a.BcryptCost < bcrypt.MinCost {
		a.BcryptCost = bcrypt.MinCost
	}
	if a.BcryptCost > bcrypt.MaxCost {
		a.BcryptCost = bcrypt.MaxCost
	}
	if a.CredentialCacheTTL < 0 {
		a.CredentialCacheTTL = 0
	}
	if a.CookieName = strings.TrimSpace(a.CookieName); a.CookieName == "" {
		a.CookieName = "auth-token"
	}
	if a.CookieSecure == "" {
		a.CookieSecure = CookieSecureAuto
	}
	if a.CredentialSource == "" {
		a.CredentialSource = CredentialSourcePostgres
	}
}

// Validate checks the settings the process cannot start without.
func (a *AuthConfig) Validate() error {
	switch {
	case a.SessionSecret == "":
		return errors.New("AUTH_SESSION_SECRET is required")
	case len(a.SessionSecret) < MinSessionSecretLength:
		return fmt.Errorf("AUTH_SESSION_SECRET must be at least %d bytes", MinSessionSecretLength)
	}
	return nil
}
