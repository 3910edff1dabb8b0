package jwtcodec

// Package jwtcodec signs and verifies session claims as HS256 JSON Web Tokens.

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	domainauth "github.com/ofirc298/GUIDESSITE2025/internal/domain/auth"
	"github.com/ofirc298/GUIDESSITE2025/internal/ports"
)

// MinSecretLength is the shortest signing secret accepted, in bytes.
const MinSecretLength = 32

var (
	// ErrSecretTooShort is returned by New when the signing secret is shorter than MinSecretLength.
	ErrSecretTooShort = fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)

	_ ports.TokenCodec = (*Codec)(nil)
)

// claims is the wire form of domainauth.SessionClaims.
type claims struct {
	Email string          `json:"email"`
	Name  string          `json:"name,omitempty"`
	Role  domainauth.Role `json:"role"`
	jwt.RegisteredClaims
}

// Options configures a Codec.
type Options struct {
	Secret []byte
	// Issuer is written to and required on every token when non-empty.
	Issuer string
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// Codec implements ports.TokenCodec. It is safe for concurrent use.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// New constructs a Codec. The secret is copied and never mutated afterwards.
func New(opts Options) (*Codec, error) {
	if len(opts.Secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(now),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	return &Codec{
		secret: append([]byte(nil), opts.Secret...),
		issuer: opts.Issuer,
		now:    now,
		parser: jwt.NewParser(parserOpts...),
	}, nil
}

// Encode signs c. The claims must satisfy SessionClaims.Validate.
func (c *Codec) Encode(sc domainauth.SessionClaims) (string, error) {
	if err := sc.Validate(); err != nil {
		return "", fmt.Errorf("encode session token: %w", err)
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: sc.Email,
		Name:  sc.Name,
		Role:  sc.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   sc.SubjectID,
			IssuedAt:  jwt.NewNumericDate(sc.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(sc.ExpiresAt),
			ID:        uuid.NewString(),
		},
	})
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and algorithm before reading any claim, then checks expiry.
func (c *Codec) Decode(token string) (domainauth.SessionClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domainauth.SessionClaims{}, domainauth.ErrInvalidToken
	}

	var out claims
	parsed, err := c.parser.ParseWithClaims(token, &out, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		// jwt/v5 validates time-based claims only after the signature has been verified.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domainauth.SessionClaims{}, domainauth.ErrExpired
		}
		return domainauth.SessionClaims{}, fmt.Errorf("%w: %w", domainauth.ErrInvalidToken, err)
	}
	if !parsed.Valid || out.IssuedAt == nil || out.ExpiresAt == nil {
		return domainauth.SessionClaims{}, domainauth.ErrInvalidToken
	}

	sc := domainauth.SessionClaims{
		SubjectID: out.Subject,
		Email:     out.Email,
		Name:      out.Name,
		Role:      out.Role,
		IssuedAt:  out.IssuedAt.UTC(),
		ExpiresAt: out.ExpiresAt.UTC(),
	}
	if vErr := sc.Validate(); vErr != nil {
		return domainauth.SessionClaims{}, fmt.Errorf("%w: %w", domainauth.ErrInvalidToken, vErr)
	}
	return sc, nil
}
