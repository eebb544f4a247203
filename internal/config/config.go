// Package config loads application configuration from an optional YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every structured environment variable.
// Nested keys are separated by a double underscore, e.g. LEAVEDESK_SERVER__PORT.
const EnvPrefix = "LEAVEDESK_"

// Platform drivers.
const (
	DriverSupabase = "supabase"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// envAliases maps the conventional variable names onto config keys.
var envAliases = map[string]string{
	"SUPABASE_URL": "platform.url",
	"SUPABASE_KEY": "platform.api_key",
	"JWT_SECRET":   "jwt.secret_key",
	"DATABASE_URL": "database.url",
}

// ErrMissing is returned by Validate when a required value is absent.
var ErrMissing = errors.New("missing required configuration")

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Platform  PlatformConfig  `koanf:"platform"`
	Database  DatabaseConfig  `koanf:"database"`
	JWT       JWTConfig       `koanf:"jwt"`
	CORS      CORSConfig      `koanf:"cors"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable it only behind a proxy that overwrites them.
	TrustProxyHeaders bool `koanf:"trust_proxy_headers"`
}

// LogConfig configures slog.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// PlatformConfig selects and configures the data/identity platform.
type PlatformConfig struct {
	Driver  string        `koanf:"driver"`
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
	// Identities are seeded into the memory driver at startup.
	Identities []IdentitySeed `koanf:"identities"`
}

// IdentitySeed describes a sign-in account for the memory driver.
type IdentitySeed struct {
	Email     string `koanf:"email"`
	Password  string `koanf:"password"`
	FirstName string `koanf:"first_name"`
	LastName  string `koanf:"last_name"`
	Role      string `koanf:"role"`
}

// DatabaseConfig configures the postgres driver.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// JWTConfig configures access token signing.
type JWTConfig struct {
	SecretKey           string        `koanf:"secret_key"`
	AccessTokenDuration time.Duration `koanf:"access_token_duration"`
}

// CORSConfig configures cross-origin access.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// RateLimitConfig limits sign-in attempts per client address.
type RateLimitConfig struct {
	Enabled    bool    `koanf:"enabled"`
	TokenRPS   float64 `koanf:"token_rps"`
	TokenBurst int     `koanf:"token_burst"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Platform: PlatformConfig{
			Driver:  DriverSupabase,
			Timeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
			AutoMigrate:     true,
		},
		JWT: JWTConfig{
			AccessTokenDuration: 30 * time.Minute,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		RateLimit: RateLimitConfig{
			Enabled:    true,
			TokenRPS:   1,
			TokenBurst: 10,
		},
	}
}

// Load reads the optional YAML file at path, overlays the environment and
// validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps an environment variable name onto a config key.
// An empty result makes koanf skip the variable.
func envKey(name string) string {
	if key, ok := envAliases[name]; ok {
		return key
	}
	if !strings.HasPrefix(name, EnvPrefix) {
		return ""
	}
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// Validate fails fast when a value required by the selected driver is missing.
func (c *Config) Validate() error {
	var missing []string

	if c.JWT.SecretKey == "" {
		missing = append(missing, "jwt.secret_key (JWT_SECRET)")
	}

	switch c.Platform.Driver {
	case DriverSupabase:
		if c.Platform.URL == "" {
			missing = append(missing, "platform.url (SUPABASE_URL)")
		}
		if c.Platform.APIKey == "" {
			missing = append(missing, "platform.api_key (SUPABASE_KEY)")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			missing = append(missing, "database.url (DATABASE_URL)")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown platform driver %q", c.Platform.Driver)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	return nil
}
