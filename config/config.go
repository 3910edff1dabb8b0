package config

import (
	"errors"
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Sign-in, session token and cookie configuration
//   - database.go: Database and cache configuration
//   - http.go: HTTP server configuration
//   - observability.go: Metrics and logging
//   - services.go: Service mode configuration
type AppConfig struct {
	// IsDev controls development mode behavior.
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	Auth AuthConfig

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP HTTPConfig

	// Services is a comma-separated list of service modes to run.
	Services string `env:"SERVICES" envDefault:"http"`

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Auth.Sanitize()
	c.HTTP.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// Validate reports configuration that must stop the process from starting.
func (c *AppConfig) Validate() error {
	var errs []error
	if _, err := c.GetEnabledServices(); err != nil {
		errs = append(errs, err)
	}
	// Migrate-only runs never sign tokens.
	if !c.IsMigrateOnly() {
		if err := c.Auth.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Auth.CredentialCacheTTL > 0 && c.Auth.CredentialSource == CredentialSourceMemory {
		errs = append(errs, errors.New("AUTH_CREDENTIAL_CACHE_TTL requires AUTH_CREDENTIAL_SOURCE=postgres"))
	}
	return errors.Join(errs...)
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsMigrateOnly returns true when the process should apply migrations and exit.
func (c *AppConfig) IsMigrateOnly() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeMigrateOnly] && !services[ServiceModeHTTP]
}

// NeedsDatabase reports whether any enabled part of the process talks to Postgres.
func (c *AppConfig) NeedsDatabase() bool {
	return c.Auth.CredentialSource == CredentialSourcePostgres || c.IsMigrateOnly()
}

// NeedsRedis reports whether the credential cache is enabled.
func (c *AppConfig) NeedsRedis() bool {
	return c.Auth.CredentialCacheTTL > 0 && c.Auth.CredentialSource == CredentialSourcePostgres
}
