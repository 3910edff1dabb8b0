// Package devauth provides an in-memory credential store for local development and tests.
package devauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domainauth "github.com/ofirc298/GUIDESSITE2025/internal/domain/auth"
	"github.com/ofirc298/GUIDESSITE2025/internal/ids"
	"github.com/ofirc298/GUIDESSITE2025/internal/ports"
)

// SeedUser is a plaintext user definition hashed when the store is built.
type SeedUser struct {
	Email    string
	Name     string
	Role     domainauth.Role
	Password string
}

// ParseSeedUsers parses DEV_AUTH_USERS entries of the form
// "email:ROLE:password", separated by commas. The password is everything after
// the second colon, so it may itself contain colons.
func ParseSeedUsers(raw string) ([]SeedUser, error) {
	var out []SeedUser
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("dev auth user %q: want email:ROLE:password", entry)
		}
		role, err := domainauth.ParseRole(parts[1])
		if err != nil {
			return nil, fmt.Errorf("dev auth user %q: %w", parts[0], err)
		}
		out = append(out, SeedUser{Email: parts[0], Role: role, Password: parts[2]})
	}
	return out, nil
}

// Store is a concurrency-safe credential store keyed by normalized email.
type Store struct {
	mu    sync.RWMutex
	users map[string]domainauth.UserRecord
	now   func() time.Time
}

var _ ports.CredentialStore = (*Store)(nil)

// NewStore builds a store and hashes every seed password with hasher.
func NewStore(hasher ports.PasswordHasher, seeds ...SeedUser) (*Store, error) {
	s := &Store{users: make(map[string]domainauth.UserRecord), now: time.Now}
	for _, seed := range seeds {
		if hasher == nil {
			return nil, errors.New("dev auth: password hasher is required to seed users")
		}
		hash, err := hasher.Hash(seed.Password)
		if err != nil {
			return nil, fmt.Errorf("dev auth: hash password for %s: %w", seed.Email, err)
		}
		if _, err := s.Create(context.Background(), ports.NewUser{
			Email:        seed.Email,
			Name:         seed.Name,
			Role:         seed.Role,
			PasswordHash: hash,
		}); err != nil {
			return nil, fmt.Errorf("dev auth: seed %s: %w", seed.Email, err)
		}
	}
	return s, nil
}

// FindByEmail returns the stored record or domainauth.ErrUserNotFound.
func (s *Store) FindByEmail(ctx context.Context, email string) (domainauth.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return domainauth.UserRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[domainauth.NormalizeEmail(email)]
	if !ok {
		return domainauth.UserRecord{}, domainauth.ErrUserNotFound
	}
	return rec, nil
}

// Create stores a new record; an existing email yields domainauth.ErrEmailTaken.
func (s *Store) Create(ctx context.Context, u ports.NewUser) (domainauth.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return domainauth.UserRecord{}, err
	}
	email := domainauth.NormalizeEmail(u.Email)
	if email == "" {
		return domainauth.UserRecord{}, errors.New("email is required")
	}
	if !u.Role.Valid() {
		return domainauth.UserRecord{}, domainauth.ErrUnknownRole
	}
	id := u.ID
	if id == "" {
		id = ids.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[email]; exists {
		return domainauth.UserRecord{}, domainauth.ErrEmailTaken
	}
	rec := domainauth.UserRecord{
		ID:           id,
		Email:        email,
		Name:         strings.TrimSpace(u.Name),
		Role:         u.Role,
		PasswordHash: u.PasswordHash,
		CreatedAt:    s.now().UTC(),
	}
	s.users[email] = rec
	return rec, nil
}

// Len reports the number of stored users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
