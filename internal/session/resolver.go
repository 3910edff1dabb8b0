package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	domainauth "github.com/ofirc298/GUIDESSITE2025/internal/domain/auth"
	"github.com/ofirc298/GUIDESSITE2025/internal/observability/metrics"
	"github.com/ofirc298/GUIDESSITE2025/internal/ports"
)

// ResolverOptions groups dependencies for Resolver.
type ResolverOptions struct {
	Store   ports.SessionStore
	Codec   ports.TokenCodec
	Metrics *metrics.Auth
	Logger  *slog.Logger
}

// Resolver turns the session cookie of a request into a Session.
// It is the only place where transport and token failures are absorbed:
// every failure yields a nil session and nothing is returned to the caller as an error.
type Resolver struct {
	store   ports.SessionStore
	codec   ports.TokenCodec
	metrics *metrics.Auth
	logger  *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(opts ResolverOptions) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: opts.Store, codec: opts.Codec, metrics: opts.Metrics, logger: logger}
}

// Resolve returns the caller's session, or nil when there is none.
func (r *Resolver) Resolve(scope ports.RequestScope) (sess *domainauth.Session) {
	if r == nil {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(scope.Context(), "session resolution panicked", "panic", rec)
			r.metrics.SessionResolved(metrics.ResolveInvalid)
			sess = nil
		}
	}()

	token, err := r.store.Read(scope)
	if err != nil {
		r.record(scope.Context(), err)
		return nil
	}
	return r.resolveToken(scope.Context(), token)
}

// ResolveRequest is shorthand for Resolve with a read-only scope.
func (r *Resolver) ResolveRequest(req *http.Request) *domainauth.Session {
	return r.Resolve(ports.RequestScope{R: req})
}

// ResolveToken resolves a raw token obtained outside of HTTP.
func (r *Resolver) ResolveToken(ctx context.Context, token string) (sess *domainauth.Session) {
	if r == nil {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "session resolution panicked", "panic", rec)
			r.metrics.SessionResolved(metrics.ResolveInvalid)
			sess = nil
		}
	}()
	return r.resolveToken(ctx, token)
}

func (r *Resolver) resolveToken(ctx context.Context, token string) *domainauth.Session {
	if token == "" {
		r.metrics.SessionResolved(metrics.ResolveAbsent)
		return nil
	}
	claims, err := r.codec.Decode(token)
	if err != nil {
		r.record(ctx, err)
		return nil
	}
	s := domainauth.SessionFromClaims(claims)
	r.metrics.SessionResolved(metrics.ResolvePresent)
	return &s
}

func (r *Resolver) record(ctx context.Context, err error) {
	outcome := metrics.ResolveInvalid
	switch {
	case errors.Is(err, domainauth.ErrNoRequestScope):
		outcome = metrics.ResolveNoScope
	case errors.Is(err, domainauth.ErrExpired):
		outcome = metrics.ResolveExpired
	}
	r.metrics.SessionResolved(outcome)
	r.logger.DebugContext(ctx, "session not resolved", "outcome", outcome, "error", err)
}
