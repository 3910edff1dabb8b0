package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	domainauth "github.com/ofirc298/GUIDESSITE2025/internal/domain/auth"
	"github.com/ofirc298/GUIDESSITE2025/internal/ids"
	obserrors "github.com/ofirc298/GUIDESSITE2025/internal/observability/errors"
	"github.com/ofirc298/GUIDESSITE2025/internal/observability/metrics"
	"github.com/ofirc298/GUIDESSITE2025/internal/ports"
)

const (
	// DefaultSessionTTL is the lifetime of a freshly issued session.
	DefaultSessionTTL = 24 * time.Hour
	// DefaultLookupTimeout bounds a single credential store call.
	DefaultLookupTimeout = 5 * time.Second
	// MinPasswordLength applies to self-service sign-up.
	MinPasswordLength = 6

	// unknownUserPassword is hashed once per service. Sign-in verifies against
	// that hash when the email is unknown so both failure paths cost one Verify.
	unknownUserPassword = "guidessite-unknown-user"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Credentials ports.CredentialStore // Required
	Hasher      ports.PasswordHasher  // Required
	Sessions    ports.SessionStore    // Required

	SessionTTL    time.Duration // Optional: defaults to DefaultSessionTTL
	LookupTimeout time.Duration // Optional: defaults to DefaultLookupTimeout

	Metrics *metrics.Auth    // Optional
	Logger  *slog.Logger     // Optional
	Now     func() time.Time // Optional: clock override for tests
	NewID   func() string    // Optional: user id generator, ULID by default
}

// AuthService signs users in and out against the credential store and issues session cookies.
type AuthService struct {
	credentials   ports.CredentialStore
	hasher        ports.PasswordHasher
	sessions      ports.SessionStore
	ttl           time.Duration
	lookupTimeout time.Duration
	metrics       *metrics.Auth
	logger        *slog.Logger
	now           func() time.Time
	newID         func() string
	unknownHash   string
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	switch {
	case opts.Credentials == nil:
		return nil, errors.New("CredentialStore is required")
	case opts.Hasher == nil:
		return nil, errors.New("PasswordHasher is required")
	case opts.Sessions == nil:
		return nil, errors.New("SessionStore is required")
	}

	s := &AuthService{
		credentials:   opts.Credentials,
		hasher:        opts.Hasher,
		sessions:      opts.Sessions,
		ttl:           opts.SessionTTL,
		lookupTimeout: opts.LookupTimeout,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		now:           opts.Now,
		newID:         opts.NewID,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultSessionTTL
	}
	if s.lookupTimeout <= 0 {
		s.lookupTimeout = DefaultLookupTimeout
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "auth_service")
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = ids.New
	}
	hash, err := s.hasher.Hash(unknownUserPassword)
	if err != nil {
		return nil, fmt.Errorf("hash unknown-user password: %w", err)
	}
	s.unknownHash = hash
	return s, nil
}

// MustNewAuthService constructs a new AuthService and panics on error.
func MustNewAuthService(opts AuthServiceOptions) *AuthService {
	svc, err := NewAuthService(opts)
	if err != nil {
		panic(err) //nolint:forbidigo // startup wiring error
	}
	return svc
}

// SessionTTL returns the lifetime given to new sessions.
func (s *AuthService) SessionTTL() time.Duration { return s.ttl }

// SignIn verifies email and password and, on success, writes the session cookie into scope.
// An unknown email and a wrong password both yield domainauth.ErrInvalidCredentials.
// A failing credential store yields domainauth.ErrUpstreamLookup. Nothing is written on failure.
func (s *AuthService) SignIn(scope ports.RequestScope, email, password string) (*domainauth.Session, error) {
	ctx := scope.Context()
	email = domainauth.NormalizeEmail(email)
	if email == "" || password == "" {
		s.metrics.SignIn(metrics.OutcomeMissingCredentials)
		return nil, domainauth.ErrMissingCredentials
	}

	rec, err := s.lookup(ctx, email)
	if err != nil {
		if errors.Is(err, domainauth.ErrUserNotFound) {
			s.hasher.Verify(password, s.unknownHash)
			s.metrics.SignIn(metrics.OutcomeInvalidCredentials)
			return nil, domainauth.ErrInvalidCredentials
		}
		s.metrics.SignIn(metrics.OutcomeUpstreamFailure)
		s.logger.ErrorContext(ctx, "credential lookup failed",
			"error", err,
			"error_class", obserrors.Classify(err),
		)
		return nil, fmt.Errorf("%w: %w", domainauth.ErrUpstreamLookup, err)
	}

	if !s.hasher.Verify(password, rec.PasswordHash) {
		s.metrics.SignIn(metrics.OutcomeInvalidCredentials)
		return nil, domainauth.ErrInvalidCredentials
	}

	claims := domainauth.NewSessionClaims(domainauth.UserFromRecord(rec), s.now(), s.ttl)
	if err := s.sessions.Set(scope, claims); err != nil {
		s.metrics.SignIn(metrics.ResultError)
		return nil, fmt.Errorf("persist session: %w", err)
	}

	s.metrics.SignIn(metrics.ResultSuccess)
	s.logger.InfoContext(ctx, "user signed in", "user_id", rec.ID, "role", string(rec.Role))
	sess := domainauth.SessionFromClaims(claims)
	return &sess, nil
}

// SignOut clears the session cookie. It is safe to call without an active session.
func (s *AuthService) SignOut(scope ports.RequestScope) error {
	if err := s.sessions.Clear(scope); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// SignUpInput carries the self-service registration form.
type SignUpInput struct {
	Name     string
	Email    string
	Password string
}

// SignUp registers a new STUDENT account. It does not sign the user in.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*domainauth.UserRecord, error) {
	name := strings.TrimSpace(in.Name)
	email := domainauth.NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		s.metrics.SignUp(metrics.OutcomeInvalidInput)
		return nil, domainauth.ErrMissingFields
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		s.metrics.SignUp(metrics.OutcomeInvalidInput)
		return nil, domainauth.ErrInvalidEmail
	}
	if len([]rune(in.Password)) < MinPasswordLength {
		s.metrics.SignUp(metrics.OutcomeInvalidInput)
		return nil, domainauth.ErrWeakPassword
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.metrics.SignUp(metrics.OutcomeInvalidInput)
		if errors.Is(err, domainauth.ErrPasswordTooLong) {
			return nil, err
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()
	rec, err := s.credentials.Create(cctx, ports.NewUser{
		ID:           s.newID(),
		Email:        email,
		Name:         name,
		Role:         domainauth.RoleStudent,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, domainauth.ErrEmailTaken) {
			s.metrics.SignUp(metrics.OutcomeConflict)
			return nil, domainauth.ErrEmailTaken
		}
		s.metrics.SignUp(metrics.OutcomeUpstreamFailure)
		s.logger.ErrorContext(ctx, "create user failed",
			"error", err,
			"error_class", obserrors.Classify(err),
		)
		return nil, fmt.Errorf("%w: %w", domainauth.ErrUpstreamLookup, err)
	}

	s.metrics.SignUp(metrics.ResultSuccess)
	s.logger.InfoContext(ctx, "user registered", "user_id", rec.ID)
	return &rec, nil
}

func (s *AuthService) lookup(ctx context.Context, email string) (domainauth.UserRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	start := time.Now()
	rec, err := s.credentials.FindByEmail(ctx, email)
	s.metrics.ObserveLookup(time.Since(start))
	if err != nil {
		return domainauth.UserRecord{}, err
	}
	if !rec.Role.Valid() {
		return domainauth.UserRecord{}, fmt.Errorf("stored user %s: %w", rec.ID, domainauth.ErrUnknownRole)
	}
	return rec, nil
}
