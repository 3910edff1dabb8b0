package auth

import "errors"

// Authentication and session errors shared by adapters, services and transports.
var (
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrMissingCredentials is returned when email or password is empty.
	ErrMissingCredentials = errors.New("email and password are required")
	// ErrUpstreamLookup wraps failures of the credential store itself.
	ErrUpstreamLookup = errors.New("credential lookup failed")

	ErrInvalidToken = errors.New("invalid session token")
	ErrExpired      = errors.New("session token expired")

	// ErrNoRequestScope is returned by the cookie transport when called without a live request.
	ErrNoRequestScope = errors.New("no request scope available")

	ErrInvalidClaims = errors.New("invalid session claims")
	ErrUnknownRole   = errors.New("unknown role")

	// Credential store contract.
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")

	// Sign-up input errors.
	ErrMissingFields   = errors.New("name, email and password are required")
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrWeakPassword    = errors.New("password too short")
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)
