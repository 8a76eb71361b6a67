// Package config provides configuration loading and management using koanf.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default configuration values.
const (
	// DefaultServerPort is the default HTTP server port.
	DefaultServerPort = 8080

	// DefaultMaxRequestSize is the default maximum request body size (1MB).
	DefaultMaxRequestSize = 1 << 20 // 1048576 bytes

	// DefaultLogFileMaxSizeMB is the default max log file size in megabytes.
	DefaultLogFileMaxSizeMB = 100

	// DefaultLogFileMaxBackups is the default number of old log files to retain.
	DefaultLogFileMaxBackups = 3

	// DefaultLogFileMaxAgeDays is the default max days to retain old log files.
	DefaultLogFileMaxAgeDays = 28

	// DefaultTokenLifetime is how long an issued form token stays valid.
	DefaultTokenLifetime = 24 * time.Hour

	// DefaultRateLimitRPS is the default sustained intake requests per second per client.
	DefaultRateLimitRPS = 1.0

	// DefaultRateLimitBurst is the default intake burst per client.
	DefaultRateLimitBurst = 5

	// DefaultPostgresMaxOpenConns is the default connection pool size.
	DefaultPostgresMaxOpenConns = 10

	// DefaultPostgresMaxIdleConns is the default idle connection count.
	DefaultPostgresMaxIdleConns = 5

	// DefaultRedisPrefix namespaces every key the redis store writes.
	DefaultRedisPrefix = "intake"
)

// envPrefix marks the variables Load reads from the environment and .env.
const envPrefix = "APP_"

// DotEnvPath is the optional env file read before the process environment.
const DotEnvPath = ".env"

// Store drivers.
const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
)

// Config is the root configuration structure.
type Config struct {
	App       AppConfig       `koanf:"app"       validate:"required"`
	Server    ServerConfig    `koanf:"server"    validate:"required"`
	Log       LogConfig       `koanf:"log"       validate:"required"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Auth      AuthConfig      `koanf:"auth"`
	Store     StoreConfig     `koanf:"store"     validate:"required"`
	Intake    IntakeConfig    `koanf:"intake"`
	Security  SecurityConfig  `koanf:"security"  validate:"required"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `koanf:"name"        validate:"required"`
	Version     string `koanf:"version"     validate:"required"`
	Environment string `koanf:"environment" validate:"required,oneof=local dev qa prod test"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"             validate:"required,min=1,max=65535"`
	Host            string        `koanf:"host"             validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"required,min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"required,min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
	MaxRequestSize  int64         `koanf:"max_request_size" validate:"required,min=1"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string        `koanf:"level"  validate:"required,oneof=trace debug info warn error"`
	Format string        `koanf:"format" validate:"required,oneof=json text pretty"`
	File   LogFileConfig `koanf:"file"`
}

// LogFileConfig contains rolling log file settings.
type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"        validate:"required_if=Enabled true"`
	MaxSizeMB  int    `koanf:"max_size"    validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age"     validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"      validate:"required_if=Enabled true,omitempty,url"`
	ServiceName  string  `koanf:"service_name"  validate:"required_if=Enabled true"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"min=0,max=1"`
}

// AuthConfig contains gateway claim header settings for the admin routes.
type AuthConfig struct {
	Enabled       bool   `koanf:"enabled"`
	JWKSEndpoint  string `koanf:"jwks_endpoint"  validate:"required_if=Enabled true,omitempty,url"`
	Issuer        string `koanf:"issuer"         validate:"required_if=Enabled true"`
	Audience      string `koanf:"audience"       validate:"required_if=Enabled true"`
	ClaimsHeader  string `koanf:"claims_header"`
	RolesHeader   string `koanf:"roles_header"`
	ScopesHeader  string `koanf:"scopes_header"`
	SubjectHeader string `koanf:"subject_header"`
}

// StoreConfig selects and configures the submission store.
type StoreConfig struct {
	Driver   string         `koanf:"driver"   validate:"required,oneof=memory postgres redis"`
	Postgres PostgresConfig `koanf:"postgres"`
	Redis    RedisConfig    `koanf:"redis"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns" validate:"min=0"`
	MaxIdleConns int    `koanf:"max_idle_conns" validate:"min=0"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"       validate:"min=0,max=15"`
	Prefix   string `koanf:"prefix"`
}

// IntakeConfig contains submission intake settings.
type IntakeConfig struct {
	// DefaultLimit is the quota used while no limit has been stored.
	DefaultLimit int `koanf:"default_limit" validate:"min=0"`

	// LegacyStatus answers every intake request with 200 and leaves the
	// outcome to the success flag.
	LegacyStatus bool            `koanf:"legacy_status"`
	RateLimit    RateLimitConfig `koanf:"rate_limit"`
}

// RateLimitConfig contains per-client token bucket settings.
type RateLimitConfig struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"     validate:"required_if=Enabled true,omitempty,gt=0"`
	Burst   int     `koanf:"burst"   validate:"required_if=Enabled true,omitempty,min=1"`
}

// SecurityConfig contains form token settings.
type SecurityConfig struct {
	// TokenSecret keys the form token HMAC. When empty a random secret is
	// generated at startup and tokens do not survive restarts.
	TokenSecret   string        `koanf:"token_secret"   validate:"omitempty,min=32"`
	TokenLifetime time.Duration `koanf:"token_lifetime" validate:"required,min=1m"`
}

// defaults returns the default configuration values.
func defaults() map[string]any {
	return map[string]any{
		"app.name":        "application-intake",
		"app.version":     "dev",
		"app.environment": "local",

		"server.port":             DefaultServerPort,
		"server.host":             "0.0.0.0",
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "10s",
		"server.max_request_size": DefaultMaxRequestSize,

		"log.level":            "info",
		"log.format":           "json",
		"log.file.enabled":     false,
		"log.file.path":        "./logs/app.log",
		"log.file.max_size":    DefaultLogFileMaxSizeMB,
		"log.file.max_backups": DefaultLogFileMaxBackups,
		"log.file.max_age":     DefaultLogFileMaxAgeDays,
		"log.file.compress":    true,

		"telemetry.enabled":       false,
		"telemetry.endpoint":      "",
		"telemetry.service_name":  "application-intake",
		"telemetry.sampling_rate": 1.0,

		"auth.enabled":        false,
		"auth.jwks_endpoint":  "",
		"auth.issuer":         "",
		"auth.audience":       "",
		"auth.claims_header":  "X-User-Claims",
		"auth.roles_header":   "X-User-Roles",
		"auth.scopes_header":  "X-User-Scopes",
		"auth.subject_header": "X-User-ID",

		"store.driver":                  StoreDriverMemory,
		"store.postgres.dsn":            "",
		"store.postgres.max_open_conns": DefaultPostgresMaxOpenConns,
		"store.postgres.max_idle_conns": DefaultPostgresMaxIdleConns,
		"store.redis.addr":              "localhost:6379",
		"store.redis.password":          "",
		"store.redis.db":                0,
		"store.redis.prefix":            DefaultRedisPrefix,

		"intake.default_limit":      0,
		"intake.legacy_status":      false,
		"intake.rate_limit.enabled": true,
		"intake.rate_limit.rps":     DefaultRateLimitRPS,
		"intake.rate_limit.burst":   DefaultRateLimitBurst,

		"security.token_secret":   "",
		"security.token_lifetime": DefaultTokenLifetime.String(),
	}
}

// Load loads configuration with the following precedence (highest to lowest):
//  1. Environment variables (APP_ prefix)
//  2. APP_ variables in .env
//  3. Profile config file (configs/{profile}.yaml)
//  4. Base config file (configs/base.yaml)
//  5. Default values
func Load(profile string) (*Config, error) {
	k := koanf.New(".")

	err := k.Load(confmap.Provider(defaults(), "."), nil)
	if err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	err = loadFileIfExists(k, "configs/base.yaml")
	if err != nil {
		return nil, fmt.Errorf("loading base config: %w", err)
	}

	if profile != "" {
		profilePath := fmt.Sprintf("configs/%s.yaml", profile)

		err := loadFileIfExists(k, profilePath)
		if err != nil {
			return nil, fmt.Errorf("loading profile config %q: %w", profile, err)
		}
	}

	mapKey := envKeyMapper(k.Keys())

	err = loadDotEnv(k, DotEnvPath, mapKey)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", DotEnvPath, err)
	}

	err = k.Load(env.Provider(envPrefix, ".", mapKey), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config

	err = k.Unmarshal("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

// envKeyMapper maps APP_ variables onto known keys so that snake_case leaves
// survive: APP_INTAKE_DEFAULT_LIMIT becomes intake.default_limit rather than
// intake.default.limit. Unknown variables fall back to replacing every
// underscore with a dot.
func envKeyMapper(known []string) func(string) string {
	byEnv := make(map[string]string, len(known))
	for _, key := range known {
		byEnv[strings.ReplaceAll(key, ".", "_")] = key
	}

	return func(s string) string {
		name := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		if key, ok := byEnv[name]; ok {
			return key
		}

		return strings.ReplaceAll(name, "_", ".")
	}
}

// loadDotEnv loads the APP_ variables of an env file without touching the
// process environment. A missing file is not an error.
func loadDotEnv(k *koanf.Koanf, path string, mapKey func(string) string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	vars, err := godotenv.Read(path)
	if err != nil {
		return err
	}

	values := make(map[string]any, len(vars))

	for name, value := range vars {
		if strings.HasPrefix(name, envPrefix) {
			values[mapKey(name)] = value
		}
	}

	return k.Load(confmap.Provider(values, "."), nil)
}

// loadFileIfExists loads a YAML config file if it exists.
// Returns nil if the file doesn't exist, error only for parse/read failures.
func loadFileIfExists(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return k.Load(file.Provider(path), yaml.Parser())
}
