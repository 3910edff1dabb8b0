package httpx

import (
	"context"

	domainauth "github.com/ofirc298/GUIDESSITE2025/internal/domain/auth"
)

// Unexported context key types to avoid collisions across packages.
type (
	sessionKey   struct{}
	requestIDKey struct{}
)

// SetSessionInContext returns a child context that carries the given session.
// If session is nil, the original ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, session *domainauth.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetSessionFromContext returns the session placed by the auth middleware, or nil.
func GetSessionFromContext(ctx context.Context) *domainauth.Session {
	if s, ok := ctx.Value(sessionKey{}).(*domainauth.Session); ok {
		return s
	}
	return nil
}

// IsGuestUser reports whether the request context is unauthenticated or a guest session.
func IsGuestUser(ctx context.Context) bool {
	s := GetSessionFromContext(ctx)
	return s == nil || s.IsGuest()
}

// RequestIDFromContext returns the id assigned by the Logging middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
