package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/goliatone/go-accounts"
)

// Config is the service configuration read from the environment
type Config struct {
	ListenAddr  string `env:"ACCOUNTS_LISTEN_ADDR"  envDefault:":8000"`
	DBDriver    string `env:"ACCOUNTS_DB_DRIVER"    envDefault:"sqlite"`
	DatabaseURL string `env:"ACCOUNTS_DATABASE_URL" envDefault:"file:accounts.db?cache=shared"`
	LogLevel    string `env:"LOG_LEVEL"             envDefault:"info"`
	Debug       bool   `env:"ACCOUNTS_DEBUG"        envDefault:"false"`

	SigningKey    string        `env:"JWT_SECRET,required,notEmpty"`
	TokenTTL      time.Duration `env:"ACCOUNTS_TOKEN_TTL"      envDefault:"24h"`
	TokenIssuer   string        `env:"ACCOUNTS_TOKEN_ISSUER"`
	TokenAudience []string      `env:"ACCOUNTS_TOKEN_AUDIENCE" envSeparator:","`
	AuthScheme    string        `env:"ACCOUNTS_AUTH_SCHEME"    envDefault:"Bearer"`
	ContextKey    string        `env:"ACCOUNTS_CONTEXT_KEY"    envDefault:"principal"`

	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
}

var _ accounts.Config = (*Config)(nil)

// Load parses the process environment
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment
func LoadFrom(environ map[string]string) (*Config, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values the env tags cannot express
func (c *Config) Validate() error {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	switch c.DBDriver {
	case accounts.DialectSQLite, accounts.DialectPostgres:
	default:
		return fmt.Errorf("ACCOUNTS_DB_DRIVER: unsupported driver %q", c.DBDriver)
	}

	if strings.TrimSpace(c.SigningKey) == "" {
		return errors.New("JWT_SECRET: signing key must not be empty")
	}

	if c.TokenTTL <= 0 {
		return fmt.Errorf("ACCOUNTS_TOKEN_TTL: must be positive, got %s", c.TokenTTL)
	}

	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	return nil
}

func (c *Config) GetSigningKey() string {
	return c.SigningKey
}

func (c *Config) GetTokenExpiration() time.Duration {
	return c.TokenTTL
}

func (c *Config) GetIssuer() string {
	return c.TokenIssuer
}

func (c *Config) GetAudience() []string {
	return c.TokenAudience
}

func (c *Config) GetAuthScheme() string {
	return c.AuthScheme
}

func (c *Config) GetContextKey() string {
	return c.ContextKey
}

func (c *Config) GetAdminIdentity() string {
	return c.AdminEmail
}

func (c *Config) GetAdminPassword() string {
	return c.AdminPassword
}

// String hides secrets so the config can be logged
func (c Config) String() string {
	return fmt.Sprintf("listen=%s driver=%s ttl=%s issuer=%q admin=%q cors=%v",
		c.ListenAddr, c.DBDriver, c.TokenTTL, c.TokenIssuer, c.AdminEmail, c.CORSOrigins)
}
