package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultJWTSecret = "dev-secret-change-in-production"

var (
	ErrInvalidRateLimit  = errors.New("rate limit must look like <count>/<second|minute|hour|day>")
	ErrProductionSecret  = errors.New("JWT_SECRET_KEY must be set in production environment")
	ErrUnsupportedDriver = errors.New("DB_DRIVER must be one of mysql, postgres, sqlite")
	ErrUnsupportedAlg    = errors.New("JWT_ALGORITHM must be one of HS256, HS384, HS512")
	ErrNonPositiveTTL    = errors.New("CACHE_EXPIRE_SECONDS and ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	ErrMissingDSN        = errors.New("DATABASE_DSN must be set for mysql and sqlite")
)

// Config is the process-wide configuration, loaded once at startup.
type Config struct {
	Port     string `yaml:"port"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`

	DBDriver                 string `yaml:"db_driver"`
	DatabaseDSN              string `yaml:"database_dsn"`
	PostgresUser             string `yaml:"postgres_user"`
	PostgresPassword         string `yaml:"postgres_password"`
	PostgresHost             string `yaml:"postgres_host"`
	PostgresPort             int    `yaml:"postgres_port"`
	PostgresDB               string `yaml:"postgres_db"`
	DBMaxOpenConns           int    `yaml:"db_max_open_conns"`
	DBMaxIdleConns           int    `yaml:"db_max_idle_conns"`
	DBConnMaxLifetimeSeconds int    `yaml:"db_conn_max_lifetime_seconds"`
	DBAcquireTimeoutSeconds  int    `yaml:"db_acquire_timeout_seconds"`

	RedisURL           string `yaml:"redis_url"`
	AppRateLimit       string `yaml:"app_rate_limit"`
	CacheExpireSeconds int    `yaml:"cache_expire_seconds"`

	JWTSecret                string `yaml:"jwt_secret_key"`
	JWTAlgorithm             string `yaml:"jwt_algorithm"`
	AccessTokenExpireMinutes int    `yaml:"access_token_expire_minutes"`
	BcryptCost               int    `yaml:"bcrypt_cost"`
	CookieSecure             bool   `yaml:"cookie_secure"`
}

// RateLimit is a parsed APP_RATE_LIMIT value.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// Default returns the configuration used when nothing else is provided.
func Default() Config {
	return Config{
		Port:                     "8080",
		Env:                      "development",
		LogLevel:                 "info",
		DBDriver:                 "postgres",
		PostgresHost:             "127.0.0.1",
		PostgresPort:             5432,
		PostgresUser:             "postgres",
		PostgresPassword:         "postgres",
		PostgresDB:               "tasks",
		DBMaxOpenConns:           30,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 1800,
		DBAcquireTimeoutSeconds:  30,
		AppRateLimit:             "100/minute",
		CacheExpireSeconds:       60,
		JWTSecret:                defaultJWTSecret,
		JWTAlgorithm:             "HS256",
		AccessTokenExpireMinutes: 30,
		BcryptCost:               10,
		CookieSecure:             true,
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order of precedence (environment wins).
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.Env, "ENV")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.DBDriver, "DB_DRIVER")
	setString(&c.DatabaseDSN, "DATABASE_DSN")
	setString(&c.PostgresUser, "POSTGRES_USER")
	setString(&c.PostgresPassword, "POSTGRES_PASSWORD")
	setString(&c.PostgresHost, "POSTGRES_HOST")
	setString(&c.PostgresDB, "POSTGRES_DB")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.AppRateLimit, "APP_RATE_LIMIT")
	setString(&c.JWTSecret, "JWT_SECRET_KEY")
	setString(&c.JWTAlgorithm, "JWT_ALGORITHM")

	ints := []struct {
		dst *int
		key string
	}{
		{&c.PostgresPort, "POSTGRES_PORT"},
		{&c.DBMaxOpenConns, "DB_MAX_OPEN_CONNS"},
		{&c.DBMaxIdleConns, "DB_MAX_IDLE_CONNS"},
		{&c.DBConnMaxLifetimeSeconds, "DB_CONN_MAX_LIFETIME_SECONDS"},
		{&c.DBAcquireTimeoutSeconds, "DB_ACQUIRE_TIMEOUT_SECONDS"},
		{&c.CacheExpireSeconds, "CACHE_EXPIRE_SECONDS"},
		{&c.AccessTokenExpireMinutes, "ACCESS_TOKEN_EXPIRE_MINUTES"},
		{&c.BcryptCost, "BCRYPT_COST"},
	}
	for _, i := range ints {
		if err := setInt(i.dst, i.key); err != nil {
			return err
		}
	}

	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COOKIE_SECURE: %w", err)
		}
		c.CookieSecure = b
	}

	return nil
}

// Validate checks values that cannot be fixed by falling back to a default.
func (c Config) Validate() error {
	if c.Env == "production" && c.JWTSecret == defaultJWTSecret {
		return ErrProductionSecret
	}

	switch c.DBDriver {
	case "postgres":
	case "mysql", "sqlite":
		if c.DatabaseDSN == "" {
			return ErrMissingDSN
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedDriver, c.DBDriver)
	}

	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedAlg, c.JWTAlgorithm)
	}

	if c.CacheExpireSeconds <= 0 || c.AccessTokenExpireMinutes <= 0 {
		return ErrNonPositiveTTL
	}

	if _, err := c.RateLimit(); err != nil {
		return err
	}

	return nil
}

// DSN returns the database connection string. For postgres it is assembled
// from the POSTGRES_* parts when DATABASE_DSN is empty.
func (c Config) DSN() string {
	if c.DatabaseDSN != "" || c.DBDriver != "postgres" {
		return c.DatabaseDSN
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:     c.PostgresDB,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheExpireSeconds) * time.Second
}

func (c Config) ConnMaxLifetime() time.Duration {
	return time.Duration(c.DBConnMaxLifetimeSeconds) * time.Second
}

func (c Config) AcquireTimeout() time.Duration {
	return time.Duration(c.DBAcquireTimeoutSeconds) * time.Second
}

// RateLimit parses AppRateLimit, e.g. "100/minute" or "5/second".
func (c Config) RateLimit() (RateLimit, error) {
	count, unit, ok := strings.Cut(strings.TrimSpace(c.AppRateLimit), "/")
	if !ok {
		return RateLimit{}, fmt.Errorf("%w: %q", ErrInvalidRateLimit, c.AppRateLimit)
	}

	n, err := strconv.Atoi(strings.TrimSpace(count))
	if err != nil || n <= 0 {
		return RateLimit{}, fmt.Errorf("%w: %q", ErrInvalidRateLimit, c.AppRateLimit)
	}

	var window time.Duration
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(unit)), "s") {
	case "second":
		window = time.Second
	case "minute":
		window = time.Minute
	case "hour":
		window = time.Hour
	case "day":
		window = 24 * time.Hour
	default:
		return RateLimit{}, fmt.Errorf("%w: %q", ErrInvalidRateLimit, c.AppRateLimit)
	}

	return RateLimit{Requests: n, Window: window}, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
