package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"strings"
	"sync"

	domainauth "github.com/ofirc298/GUIDESSITE2025/internal/domain/auth"
	"github.com/ofirc298/GUIDESSITE2025/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.CredentialStore = (*CredentialStore)(nil)
	_ ports.PasswordHasher  = PlainHasher{}
	_ ports.SessionStore    = (*RecordingSessionStore)(nil)
)

// CredentialStore is a map-backed credential store.
// FindFunc and CreateFunc, when set, replace the default behavior.
type CredentialStore struct {
	FindFunc   func(ctx context.Context, email string) (domainauth.UserRecord, error)
	CreateFunc func(ctx context.Context, u ports.NewUser) (domainauth.UserRecord, error)

	mu      sync.Mutex
	records map[string]domainauth.UserRecord
	Finds   int
	Creates int
}

// NewCredentialStore returns a store preloaded with recs.
func NewCredentialStore(recs ...domainauth.UserRecord) *CredentialStore {
	s := &CredentialStore{records: make(map[string]domainauth.UserRecord)}
	for _, r := range recs {
		s.records[domainauth.NormalizeEmail(r.Email)] = r
	}
	return s
}

func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (domainauth.UserRecord, error) {
	s.mu.Lock()
	s.Finds++
	s.mu.Unlock()
	if s.FindFunc != nil {
		return s.FindFunc(ctx, email)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[email]
	if !ok {
		return domainauth.UserRecord{}, domainauth.ErrUserNotFound
	}
	return rec, nil
}

func (s *CredentialStore) Create(ctx context.Context, u ports.NewUser) (domainauth.UserRecord, error) {
	s.mu.Lock()
	s.Creates++
	s.mu.Unlock()
	if s.CreateFunc != nil {
		return s.CreateFunc(ctx, u)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		s.records = make(map[string]domainauth.UserRecord)
	}
	if _, ok := s.records[u.Email]; ok {
		return domainauth.UserRecord{}, domainauth.ErrEmailTaken
	}
	rec := domainauth.UserRecord{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		PasswordHash: u.PasswordHash,
	}
	s.records[u.Email] = rec
	return rec, nil
}

// PlainHasher "hashes" by prefixing, so tests can build fixtures without bcrypt cost.
type PlainHasher struct{}

const plainPrefix = "plain$"

func (PlainHasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", domainauth.ErrPasswordTooLong
	}
	return plainPrefix + plaintext, nil
}

func (PlainHasher) Verify(plaintext, hash string) bool {
	stored, ok := strings.CutPrefix(hash, plainPrefix)
	return ok && stored == plaintext
}

// RecordingSessionStore remembers what the service asked it to do.
// It does not touch the response; use session.CookieStore for cookie assertions.
type RecordingSessionStore struct {
	SetErr   error
	ClearErr error
	Token    string

	mu         sync.Mutex
	SetCalls   []domainauth.SessionClaims
	ClearCalls int
}

func (s *RecordingSessionStore) Set(_ ports.RequestScope, claims domainauth.SessionClaims) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SetErr != nil {
		return s.SetErr
	}
	s.SetCalls = append(s.SetCalls, claims)
	return nil
}

func (s *RecordingSessionStore) Read(_ ports.RequestScope) (string, error) {
	return s.Token, nil
}

func (s *RecordingSessionStore) Clear(_ ports.RequestScope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ClearCalls++
	return s.ClearErr
}
