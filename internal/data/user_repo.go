package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	domainauth "github.com/ofirc298/GUIDESSITE2025/internal/domain/auth"
	apperrors "github.com/ofirc298/GUIDESSITE2025/internal/errors"
	"github.com/ofirc298/GUIDESSITE2025/internal/ids"
	"github.com/ofirc298/GUIDESSITE2025/internal/ports"
)

const (
	userColumns = `id, email, COALESCE(name, ''), role, password_hash, created_at`

	userFindByEmailQuery = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = $1`

	userInsertQuery = `
		INSERT INTO users (id, email, name, role, password_hash, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $6)
		RETURNING ` + userColumns
)

// UserRepo is the Postgres-backed credential store.
type UserRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ ports.CredentialStore = (*UserRepo)(nil)

// NewUserRepo creates a new UserRepo with real time provider.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewUserRepoWithTimeProvider creates a new UserRepo with a custom time provider (useful for tests).
func NewUserRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *UserRepo {
	return &UserRepo{DB: db, timeProvider: tp}
}

// FindByEmail returns the credential record for email or domainauth.ErrUserNotFound.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (domainauth.UserRecord, error) {
	email = domainauth.NormalizeEmail(email)
	if email == "" {
		return domainauth.UserRecord{}, domainauth.ErrUserNotFound
	}

	rec, err := scanUser(r.DB.QueryRowContext(ctx, userFindByEmailQuery, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domainauth.UserRecord{}, domainauth.ErrUserNotFound
		}
		return domainauth.UserRecord{}, fmt.Errorf("find user by email: %w", apperrors.MapDBError(err))
	}
	return rec, nil
}

// Create inserts a new user. A duplicate email yields domainauth.ErrEmailTaken.
func (r *UserRepo) Create(ctx context.Context, u ports.NewUser) (domainauth.UserRecord, error) {
	email := domainauth.NormalizeEmail(u.Email)
	if email == "" {
		return domainauth.UserRecord{}, apperrors.ValidationField("email", "email is required")
	}
	if !u.Role.Valid() {
		return domainauth.UserRecord{}, domainauth.ErrUnknownRole
	}
	if u.PasswordHash == "" {
		return domainauth.UserRecord{}, apperrors.ValidationField("password_hash", "password hash is required")
	}
	id := u.ID
	if id == "" {
		id = ids.New()
	}

	createdAt := r.timeProvider.Now().UTC()
	rec, err := scanUser(r.DB.QueryRowContext(ctx, userInsertQuery,
		id,
		email,
		strings.TrimSpace(u.Name),
		string(u.Role),
		u.PasswordHash,
		createdAt,
	))
	if err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.IsConflict(mapped) {
			return domainauth.UserRecord{}, domainauth.ErrEmailTaken
		}
		return domainauth.UserRecord{}, fmt.Errorf("create user: %w", mapped)
	}
	return rec, nil
}

func scanUser(row *sql.Row) (domainauth.UserRecord, error) {
	var (
		rec  domainauth.UserRecord
		role string
	)
	if err := row.Scan(&rec.ID, &rec.Email, &rec.Name, &role, &rec.PasswordHash, &rec.CreatedAt); err != nil {
		return domainauth.UserRecord{}, err
	}
	parsed, err := domainauth.ParseRole(role)
	if err != nil {
		return domainauth.UserRecord{}, fmt.Errorf("user %s has role %q: %w", rec.ID, role, err)
	}
	rec.Role = parsed
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}
