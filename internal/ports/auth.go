package ports

// Package ports defines interfaces (hexagonal ports) for identity and session behavior.
// Implementations live in internal/adapters and internal/session; orchestration in internal/service.

import (
	"context"
	"net/http"

	domainauth "github.com/ofirc298/GUIDESSITE2025/internal/domain/auth"
)

// NewUser carries the fields needed to create a credential record.
type NewUser struct {
	ID           string
	Email        string
	Name         string
	Role         domainauth.Role
	PasswordHash string
}

// CredentialStore looks up and creates user credential records.
// FindByEmail receives an already normalized email and returns domainauth.ErrUserNotFound when absent.
// Create returns domainauth.ErrEmailTaken when the email is already registered.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (domainauth.UserRecord, error)
	Create(ctx context.Context, u NewUser) (domainauth.UserRecord, error)
}

// PasswordHasher hashes and verifies passwords with a slow adaptive function.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Verify reports whether plaintext matches hash. Malformed hashes yield false.
	Verify(plaintext, hash string) bool
}

// TokenCodec signs claims into a token string and verifies them back.
type TokenCodec interface {
	Encode(claims domainauth.SessionClaims) (string, error)
	// Decode fails with domainauth.ErrInvalidToken or domainauth.ErrExpired.
	Decode(token string) (domainauth.SessionClaims, error)
}

// RequestScope is the live request/response pair a cookie operation runs against.
// A zero scope (no request or no writer) means the caller is outside a request.
type RequestScope struct {
	W http.ResponseWriter
	R *http.Request
}

// Context returns the request context, or context.Background when there is no request.
func (s RequestScope) Context() context.Context {
	if s.R == nil {
		return context.Background()
	}
	return s.R.Context()
}

// SessionStore persists the session token for the duration of the cookie lifetime.
type SessionStore interface {
	Set(scope RequestScope, claims domainauth.SessionClaims) error
	// Read returns "" with a nil error when no session cookie is present.
	Read(scope RequestScope) (string, error)
	Clear(scope RequestScope) error
}
