// Package config loads the server's configuration from the environment.
//
// Values come from real environment variables, optionally seeded from a
// .env file in the working directory (handy in development; in production
// the platform sets real variables and there is no .env). Real variables
// always win over .env entries.
//
// Everything is parsed and validated once at startup. A bad value (say,
// JWT_EXPIRES_IN=forever) stops the process before it serves a request,
// instead of failing on the first login.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"

	// Development defaults. Validate refuses them in production.
	defaultJWTSecret     = "dev-jwt-secret-change-me"
	defaultSessionSecret = "dev-session-secret-change-me"
)

// Config is the full server configuration. Field tags name the environment
// variable and its default.
type Config struct {
	Port        int    `env:"PORT" envDefault:"8000"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL"`

	// DatabaseURI picks the backend by scheme: mongodb:// or mongodb+srv://
	// for MongoDB, sqlite://<path> for SQLite (sqlite://:memory: works).
	DatabaseURI     string `env:"DATABASE_URI" envDefault:"mongodb://localhost:27017/rsvp"`
	DatabaseTestURI string `env:"DATABASE_TEST_URI" envDefault:"sqlite://:memory:"`

	JWTSecret    string   `env:"JWT_SECRET" envDefault:"dev-jwt-secret-change-me"`
	JWTExpiresIn Duration `env:"JWT_EXPIRES_IN" envDefault:"7d"`

	SessionSecret string `env:"SESSION_SECRET" envDefault:"dev-session-secret-change-me"`

	CORSOrigin  string `env:"CORS_ORIGIN" envDefault:"http://localhost:3000"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	APIPrefix  string `env:"API_PREFIX" envDefault:"/api"`
	APIVersion string `env:"API_VERSION" envDefault:"v1"`

	Google GoogleConfig `envPrefix:"GOOGLE_"`

	// NATSURL enables lifecycle event publishing. Empty disables it.
	NATSURL string `env:"NATS_URL"`
}

// GoogleConfig holds the OAuth client registration. Login is disabled when
// the client ID or secret is missing.
type GoogleConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL" envDefault:"http://localhost:8000/api/v1/auth/google/callback"`
	Issuer       string `env:"ISSUER" envDefault:"https://accounts.google.com"`
}

// Load reads .env (if present) into the process environment, then parses
// and validates the configuration.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromMap parses and validates a configuration from an explicit variable map
// instead of the process environment. Tests use it.
func FromMap(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the parsed values and reports every problem at once.
func (c Config) Validate() error {
	var problems []string

	switch c.Environment {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		problems = append(problems, fmt.Sprintf("APP_ENV must be development, production or test, got %q", c.Environment))
	}
	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if len(c.JWTSecret) < 16 {
		problems = append(problems, "JWT_SECRET must be at least 16 characters")
	}
	if len(c.SessionSecret) < 16 {
		problems = append(problems, "SESSION_SECRET must be at least 16 characters")
	}
	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			problems = append(problems, "JWT_SECRET must be set in production")
		}
		if c.SessionSecret == defaultSessionSecret {
			problems = append(problems, "SESSION_SECRET must be set in production")
		}
	}
	if c.JWTExpiresIn <= 0 {
		problems = append(problems, "JWT_EXPIRES_IN must be positive")
	}
	if _, err := Backend(c.DatabaseURL()); err != nil {
		problems = append(problems, err.Error())
	}
	if !isAbsoluteURL(c.FrontendURL) {
		problems = append(problems, fmt.Sprintf("FRONTEND_URL must be an absolute URL, got %q", c.FrontendURL))
	}
	if c.CORSOrigin != "*" && !isAbsoluteURL(c.CORSOrigin) {
		problems = append(problems, fmt.Sprintf("CORS_ORIGIN must be an absolute URL or *, got %q", c.CORSOrigin))
	}
	if !strings.HasPrefix(c.APIPrefix, "/") {
		problems = append(problems, fmt.Sprintf("API_PREFIX must start with /, got %q", c.APIPrefix))
	}
	if c.GoogleEnabled() && !isAbsoluteURL(c.Google.CallbackURL) {
		problems = append(problems, fmt.Sprintf("GOOGLE_CALLBACK_URL must be an absolute URL, got %q", c.Google.CallbackURL))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func (c Config) IsProduction() bool  { return c.Environment == EnvProduction }
func (c Config) IsDevelopment() bool { return c.Environment == EnvDevelopment }

// DatabaseURL returns the connection string for the current environment:
// the test URI under APP_ENV=test, the main URI otherwise.
func (c Config) DatabaseURL() string {
	if c.Environment == EnvTest {
		return c.DatabaseTestURI
	}
	return c.DatabaseURI
}

// APIBase is the mount point of the versioned API, e.g. "/api/v1".
func (c Config) APIBase() string {
	return strings.TrimRight(c.APIPrefix, "/") + "/" + c.APIVersion
}

// GoogleEnabled reports whether Google login is configured.
func (c Config) GoogleEnabled() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != ""
}

// SlogLevel returns the log level: LOG_LEVEL if set and valid, otherwise
// debug in development and info elsewhere.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if c.LogLevel != "" && lvl.UnmarshalText([]byte(c.LogLevel)) == nil {
		return lvl
	}
	if c.IsDevelopment() {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Database backends.
const (
	BackendMongo  = "mongodb"
	BackendSQLite = "sqlite"
)

// Backend names the store implementation a connection string selects.
func Backend(uri string) (string, error) {
	switch {
	case strings.HasPrefix(uri, "mongodb://"), strings.HasPrefix(uri, "mongodb+srv://"):
		return BackendMongo, nil
	case strings.HasPrefix(uri, "sqlite://"):
		return BackendSQLite, nil
	}
	return "", fmt.Errorf("database URI %q must start with mongodb://, mongodb+srv:// or sqlite://", uri)
}

// SQLitePath extracts the file path from a sqlite:// URI.
func SQLitePath(uri string) string {
	return strings.TrimPrefix(uri, "sqlite://")
}
