// Package redis provides Redis-backed adapters for the identity core.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/ofirc298/GUIDESSITE2025/internal/domain/auth"
	"github.com/ofirc298/GUIDESSITE2025/internal/observability/metrics"
	"github.com/ofirc298/GUIDESSITE2025/internal/ports"
)

// DefaultCredentialPrefix namespaces cached credential records.
const DefaultCredentialPrefix = "cred:"

// CachedCredentialStoreOptions configures a CachedCredentialStore.
type CachedCredentialStoreOptions struct {
	Next    ports.CredentialStore
	Client  redis.UniversalClient
	TTL     time.Duration
	Prefix  string
	Metrics *metrics.Auth
	Logger  *slog.Logger
}

// CachedCredentialStore is a read-through cache in front of another credential store.
// Cache failures never fail a lookup; the request falls through to Next.
// Unknown emails are not cached so a fresh sign-up is visible immediately.
type CachedCredentialStore struct {
	next    ports.CredentialStore
	client  redis.UniversalClient
	ttl     time.Duration
	prefix  string
	metrics *metrics.Auth
	logger  *slog.Logger
}

var _ ports.CredentialStore = (*CachedCredentialStore)(nil)

// cachedRecord is the JSON form stored in Redis.
type cachedRecord struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewCachedCredentialStore wraps opts.Next with a Redis cache.
func NewCachedCredentialStore(opts CachedCredentialStoreOptions) (*CachedCredentialStore, error) {
	if opts.Next == nil {
		return nil, errors.New("credential cache: next store is required")
	}
	if opts.Client == nil {
		return nil, errors.New("credential cache: redis client is required")
	}
	if opts.TTL <= 0 {
		return nil, errors.New("credential cache: ttl must be positive")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultCredentialPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedCredentialStore{
		next:    opts.Next,
		client:  opts.Client,
		ttl:     opts.TTL,
		prefix:  prefix,
		metrics: opts.Metrics,
		logger:  logger.With("component", "credential_cache"),
	}, nil
}

// FindByEmail serves from cache when possible and populates it on a miss.
func (c *CachedCredentialStore) FindByEmail(ctx context.Context, email string) (domainauth.UserRecord, error) {
	email = domainauth.NormalizeEmail(email)
	key := c.prefix + email

	if rec, ok := c.get(ctx, key); ok {
		return rec, nil
	}

	rec, err := c.next.FindByEmail(ctx, email)
	if err != nil {
		return domainauth.UserRecord{}, err
	}
	c.put(ctx, key, rec)
	return rec, nil
}

// Create delegates to the underlying store and drops any stale entry for the email.
func (c *CachedCredentialStore) Create(ctx context.Context, u ports.NewUser) (domainauth.UserRecord, error) {
	rec, err := c.next.Create(ctx, u)
	if err != nil {
		return domainauth.UserRecord{}, err
	}
	if delErr := c.client.Del(ctx, c.prefix+domainauth.NormalizeEmail(u.Email)).Err(); delErr != nil {
		c.logger.WarnContext(ctx, "credential cache invalidate failed", "error", delErr)
	}
	return rec, nil
}

func (c *CachedCredentialStore) get(ctx context.Context, key string) (domainauth.UserRecord, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.metrics.CacheResult(metrics.CacheMiss)
			return domainauth.UserRecord{}, false
		}
		c.metrics.CacheResult(metrics.CacheError)
		c.logger.WarnContext(ctx, "credential cache read failed", "error", err)
		return domainauth.UserRecord{}, false
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		c.metrics.CacheResult(metrics.CacheError)
		c.logger.WarnContext(ctx, "credential cache entry unreadable", "error", err)
		_ = c.client.Del(ctx, key).Err()
		return domainauth.UserRecord{}, false
	}
	c.metrics.CacheResult(metrics.CacheHit)
	return rec, true
}

func (c *CachedCredentialStore) put(ctx context.Context, key string, rec domainauth.UserRecord) {
	raw, err := json.Marshal(cachedRecord{
		ID:           rec.ID,
		Email:        rec.Email,
		Name:         rec.Name,
		Role:         string(rec.Role),
		PasswordHash: rec.PasswordHash,
		CreatedAt:    rec.CreatedAt,
	})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "credential cache write failed", "error", err)
	}
}

func decodeRecord(raw []byte) (domainauth.UserRecord, error) {
	var cr cachedRecord
	if err := json.Unmarshal(raw, &cr); err != nil {
		return domainauth.UserRecord{}, fmt.Errorf("unmarshal credential: %w", err)
	}
	role, err := domainauth.ParseRole(cr.Role)
	if err != nil {
		return domainauth.UserRecord{}, err
	}
	if cr.ID == "" || cr.PasswordHash == "" {
		return domainauth.UserRecord{}, errors.New("incomplete credential entry")
	}
	return domainauth.UserRecord{
		ID:           cr.ID,
		Email:        cr.Email,
		Name:         cr.Name,
		Role:         role,
		PasswordHash: cr.PasswordHash,
		CreatedAt:    cr.CreatedAt,
	}, nil
}
