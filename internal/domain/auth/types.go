package auth

// Package auth contains domain-level types for identity and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"
)

// Role represents a user's authorization role.
// The string form is what travels in tokens, JSON payloads and the users table.
type Role string

const (
	RoleGuest          Role = "GUEST"
	RoleStudent        Role = "STUDENT"
	RoleContentManager Role = "CONTENT_MANAGER"
	RoleAdmin          Role = "ADMIN"
)

// Roles lists every valid role, lowest privilege first.
func Roles() []Role {
	return []Role{RoleGuest, RoleStudent, RoleContentManager, RoleAdmin}
}

// Valid reports whether r is one of the closed set of roles.
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleStudent, RoleContentManager, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole converts s (case-insensitive) into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrUnknownRole
	}
	return r, nil
}

// NormalizeEmail trims surrounding whitespace and lowercases the address.
// Every lookup and insert goes through it so the unique constraint holds.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserRecord is the stored credential record. Only the credential store writes it.
type UserRecord struct {
	ID           string
	Email        string
	Name         string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
}

// SessionUser is the identity exposed to callers of a resolved session.
type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  Role   `json:"role"`
}

// UserFromRecord projects the public fields of a stored record.
func UserFromRecord(rec UserRecord) SessionUser {
	return SessionUser{ID: rec.ID, Email: rec.Email, Name: rec.Name, Role: rec.Role}
}

// SessionClaims is the payload carried inside the signed token.
type SessionClaims struct {
	SubjectID string
	Email     string
	Name      string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewSessionClaims builds claims for user issued at now with the given lifetime.
// Both timestamps are truncated to whole seconds, the resolution of the token.
func NewSessionClaims(user SessionUser, now time.Time, ttl time.Duration) SessionClaims {
	now = now.UTC().Truncate(time.Second)
	return SessionClaims{
		SubjectID: user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl).Truncate(time.Second),
	}
}

// Validate enforces the structural invariants of a claim set.
// Timestamps must be whole seconds so that encoding never loses information.
func (c SessionClaims) Validate() error {
	if c.SubjectID == "" {
		return ErrInvalidClaims
	}
	if !c.Role.Valid() {
		return ErrUnknownRole
	}
	if !c.ExpiresAt.After(c.IssuedAt) {
		return ErrInvalidClaims
	}
	if !wholeSecond(c.IssuedAt) || !wholeSecond(c.ExpiresAt) {
		return ErrInvalidClaims
	}
	return nil
}

func wholeSecond(t time.Time) bool { return t.Nanosecond() == 0 }

// Lifetime is the span between issuance and expiry.
func (c SessionClaims) Lifetime() time.Duration { return c.ExpiresAt.Sub(c.IssuedAt) }

// Session is the resolved, server-visible view of the caller.
// It is derived from claims on every read and never stored server side.
type Session struct {
	User    SessionUser `json:"user"`
	Expires time.Time   `json:"expires"`
}

// SessionFromClaims derives the session view from decoded claims.
func SessionFromClaims(c SessionClaims) Session {
	return Session{
		User: SessionUser{
			ID:    c.SubjectID,
			Email: c.Email,
			Name:  c.Name,
			Role:  c.Role,
		},
		Expires: c.ExpiresAt.UTC(),
	}
}

// IsGuest returns true if the session role is guest.
func (s Session) IsGuest() bool { return s.User.Role == RoleGuest }
