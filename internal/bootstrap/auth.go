package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ofirc298/GUIDESSITE2025/config"
	"github.com/ofirc298/GUIDESSITE2025/internal/adapters/devauth"
	"github.com/ofirc298/GUIDESSITE2025/internal/adapters/jwtcodec"
	"github.com/ofirc298/GUIDESSITE2025/internal/adapters/passwords"
	redisadapter "github.com/ofirc298/GUIDESSITE2025/internal/adapters/redis"
	"github.com/ofirc298/GUIDESSITE2025/internal/data"
	"github.com/ofirc298/GUIDESSITE2025/internal/observability/metrics"
	"github.com/ofirc298/GUIDESSITE2025/internal/ports"
	"github.com/ofirc298/GUIDESSITE2025/internal/service"
	"github.com/ofirc298/GUIDESSITE2025/internal/session"
)

// AuthConfig contains the dependencies for the auth stack.
type AuthConfig struct {
	Auth         config.AuthConfig
	CookieDomain string
	DB           *sql.DB
	RedisClient  redis.UniversalClient
	CachePrefix  string
	Metrics      *metrics.Auth
	Logger       *slog.Logger
}

// AuthStack is the wired identity and session core.
type AuthStack struct {
	Service     *service.AuthService
	Resolver    *session.Resolver
	Codec       *jwtcodec.Codec
	Cookies     *session.CookieStore
	Hasher      *passwords.BcryptHasher
	Credentials ports.CredentialStore
}

// BuildAuthStack wires the token codec, cookie transport, credential store and services.
// It fails when the signing secret is unusable or the configured credential source is unavailable.
func BuildAuthStack(cfg AuthConfig) (*AuthStack, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	codec, err := jwtcodec.New(jwtcodec.Options{
		Secret: []byte(cfg.Auth.SessionSecret),
		Issuer: cfg.Auth.TokenIssuer,
	})
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}

	hasher := passwords.NewBcryptHasher(cfg.Auth.BcryptCost)
	creds, err := buildCredentialStore(cfg, hasher, logger)
	if err != nil {
		return nil, err
	}

	cookies := session.NewCookieStore(session.CookieStoreOptions{
		Codec:  codec,
		Name:   cfg.Auth.CookieName,
		Domain: cfg.CookieDomain,
		Secure: secureMode(cfg.Auth.CookieSecure),
	})

	svc, err := service.NewAuthService(service.AuthServiceOptions{
		Credentials:   creds,
		Hasher:        hasher,
		Sessions:      cookies,
		SessionTTL:    cfg.Auth.SessionTTL,
		LookupTimeout: cfg.Auth.LookupTimeout,
		Metrics:       cfg.Metrics,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	return &AuthStack{
		Service: svc,
		Resolver: session.NewResolver(session.ResolverOptions{
			Store:   cookies,
			Codec:   codec,
			Metrics: cfg.Metrics,
			Logger:  logger,
		}),
		Codec:       codec,
		Cookies:     cookies,
		Hasher:      hasher,
		Credentials: creds,
	}, nil
}

//nolint:ireturn // the credential source is chosen at runtime.
func buildCredentialStore(cfg AuthConfig, hasher ports.PasswordHasher, logger *slog.Logger) (ports.CredentialStore, error) {
	switch cfg.Auth.CredentialSource {
	case config.CredentialSourceMemory:
		seeds, err := devauth.ParseSeedUsers(cfg.Auth.DevUsers)
		if err != nil {
			return nil, fmt.Errorf("parse DEV_AUTH_USERS: %w", err)
		}
		store, err := devauth.NewStore(hasher, seeds...)
		if err != nil {
			return nil, fmt.Errorf("seed memory credential store: %w", err)
		}
		logger.Warn("using in-memory credential store; accounts are lost on restart", "seeded_users", store.Len())
		return store, nil

	case config.CredentialSourcePostgres, "":
		if cfg.DB == nil {
			return nil, errors.New("postgres credential source requires a database connection")
		}
		var store ports.CredentialStore = data.NewUserRepo(cfg.DB)
		if cfg.Auth.CredentialCacheTTL <= 0 {
			return store, nil
		}
		if cfg.RedisClient == nil {
			return nil, errors.New("credential cache requires a redis client")
		}
		cached, err := redisadapter.NewCachedCredentialStore(redisadapter.CachedCredentialStoreOptions{
			Next:    store,
			Client:  cfg.RedisClient,
			TTL:     cfg.Auth.CredentialCacheTTL,
			Prefix:  cfg.CachePrefix,
			Metrics: cfg.Metrics,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("credential cache: %w", err)
		}
		logger.Info("credential cache enabled", "ttl", cfg.Auth.CredentialCacheTTL)
		return cached, nil

	default:
		return nil, fmt.Errorf("unsupported credential source %q", cfg.Auth.CredentialSource)
	}
}

func secureMode(m config.CookieSecureMode) session.SecureMode {
	switch m {
	case config.CookieSecureAlways:
		return session.SecureAlways
	case config.CookieSecureNever:
		return session.SecureNever
	default:
		return session.SecureAuto
	}
}
