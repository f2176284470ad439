// Package config loads runtime settings from the environment (and a .env
// file when present). Load fails fast on malformed values.
package config

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/5w1tchy/local-library/internal/validate"
)

const (
	DriverPostgres  = "postgres"
	DriverFirestore = "firestore"
	DriverMemory    = "memory"
)

type Config struct {
	Port    string
	AppEnv  string
	Driver  string
	Locale  string
	Migrate bool

	DatabaseURL string

	FirebaseProjectID       string
	FirebaseCredentialsPath string
	FirebaseCredentialsJSON string

	RedisURL      string
	RedisAddr     string
	RedisUser     string
	RedisPassword string

	RateLimitPolicy string
	RateLimitMax    int
	RateLimitWindow time.Duration

	MaxBodySize     int64
	CORSOrigins     []string
	StrictSecurity  bool
	OTLPEndpoint    string
	ShutdownTimeout time.Duration
}

// Load reads .env files (missing ones are ignored) and then the process
// environment, which wins over the files.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	c := Config{
		Port:                    envOr("PORT", "3000"),
		AppEnv:                  envOr("APP_ENV", "development"),
		Locale:                  envOr("CATALOG_LOCALE", "und"),
		Migrate:                 os.Getenv("DB_MIGRATE") != "0",
		DatabaseURL:             firstEnv("CONNECTION_URL", "DATABASE_URL"),
		FirebaseProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseCredentialsPath: os.Getenv("FIREBASE_CREDENTIALS_PATH"),
		FirebaseCredentialsJSON: os.Getenv("FIREBASE_CREDENTIALS_JSON"),
		RedisURL:                os.Getenv("UPSTASH_REDIS_URL"),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisUser:               os.Getenv("REDIS_USER"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RateLimitPolicy:         envOr("RATE_LIMIT_POLICY", "sliding-window"),
		StrictSecurity:          os.Getenv("STRICT_SECURITY") == "1",
		OTLPEndpoint:            os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		CORSOrigins:             validate.SplitList(os.Getenv("CORS_ORIGINS")),
	}

	c.Driver = strings.ToLower(os.Getenv("STORE_DRIVER"))
	if c.Driver == "" {
		switch {
		case c.DatabaseURL != "":
			c.Driver = DriverPostgres
		case c.FirebaseProjectID != "" || c.FirebaseCredentialsPath != "" || c.FirebaseCredentialsJSON != "":
			c.Driver = DriverFirestore
		default:
			c.Driver = DriverMemory
		}
	}

	var err error
	if c.RateLimitWindow, err = envDuration("RATE_LIMIT_WINDOW", "10s"); err != nil {
		return c, fmt.Errorf("RATE_LIMIT_WINDOW: %w", err)
	}
	if c.ShutdownTimeout, err = envDuration("SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return c, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
	}
	limit, err := envMinUint("RATE_LIMIT_MAX", 20, 1)
	if err != nil {
		return c, fmt.Errorf("RATE_LIMIT_MAX: %w", err)
	}
	c.RateLimitMax = int(limit)
	body, err := envMinUint("MAX_BODY_SIZE", 1<<20, 1024)
	if err != nil {
		return c, fmt.Errorf("MAX_BODY_SIZE: %w", err)
	}
	c.MaxBodySize = int64(body)

	return c, c.Validate()
}

// Validate checks that the selected store has what it needs.
func (c Config) Validate() error {
	if _, err := strconv.ParseUint(c.Port, 10, 16); err != nil {
		return fmt.Errorf("PORT: invalid port %q", c.Port)
	}
	switch c.Driver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("STORE_DRIVER=postgres needs CONNECTION_URL or DATABASE_URL")
		}
	case DriverFirestore:
		if c.FirebaseProjectID == "" && c.FirebaseCredentialsPath == "" && c.FirebaseCredentialsJSON == "" {
			return errors.New("STORE_DRIVER=firestore needs FIREBASE_PROJECT_ID or FIREBASE_CREDENTIALS_PATH/JSON")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER: unknown driver %q", c.Driver)
	}
	switch c.RateLimitPolicy {
	case "sliding-window", "token-bucket":
	default:
		return fmt.Errorf("RATE_LIMIT_POLICY: unknown policy %q", c.RateLimitPolicy)
	}
	if c.RedisURL == "" && c.RedisAddr != "" && c.RedisUser == "" && c.RedisPassword != "" {
		return errors.New("REDIS_PASSWORD set without REDIS_USER")
	}
	return nil
}

func (c Config) Production() bool { return strings.EqualFold(c.AppEnv, "production") }

func (c Config) Addr() string { return ":" + c.Port }

// HardeningWarnings returns non-fatal warnings you may want to log on startup.
func (c Config) HardeningWarnings() []string {
	var warns []string

	if c.Driver == DriverMemory {
		warns = append(warns, "STORE_DRIVER=memory: the catalog is lost on restart")
	}
	if c.RateLimitWindow > time.Hour {
		warns = append(warns, fmt.Sprintf("RATE_LIMIT_WINDOW=%s is > 1h; clients may stay blocked for long", c.RateLimitWindow))
	}

	if c.Production() {
		if c.RedisURL == "" && c.RedisAddr == "" {
			warns = append(warns, "no Redis configured; rate limits are per process")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			warns = append(warns, "UPSTASH_REDIS_URL uses redis:// (no TLS). Prefer rediss:// for TLS")
		}
		if c.RedisURL == "" && c.RedisAddr != "" && (c.RedisPassword == "" || c.RedisUser == "") {
			warns = append(warns, "REDIS_ADDR provided without REDIS_USER/REDIS_PASSWORD; require auth in production")
		}
		if c.Driver == DriverPostgres && strings.Contains(c.DatabaseURL, "sslmode=disable") {
			warns = append(warns, "database connection has sslmode=disable")
		}
		if len(c.CORSOrigins) == 0 {
			warns = append(warns, "CORS_ORIGINS unset; only localhost origins are allowed")
		}
	}
	return warns
}

// Redis builds a client from UPSTASH_REDIS_URL or REDIS_ADDR; nil when
// neither is set.
func (c Config) Redis() (*redis.Client, error) {
	if c.RedisURL != "" {
		opt, err := redis.ParseURL(c.RedisURL) // e.g. rediss://default:<token>@host:port
		if err != nil {
			return nil, fmt.Errorf("invalid UPSTASH_REDIS_URL: %w", err)
		}
		opt.DialTimeout = 5 * time.Second
		opt.ReadTimeout = time.Second
		opt.WriteTimeout = time.Second
		return redis.NewClient(opt), nil
	}
	if c.RedisAddr == "" {
		return nil, nil
	}
	opt := &redis.Options{
		Addr:         c.RedisAddr,
		Username:     c.RedisUser,
		Password:     c.RedisPassword,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	}
	if c.RedisPassword != "" {
		opt.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opt), nil
}

// PingRedis checks connectivity with a short timeout.
func PingRedis(ctx context.Context, rdb *redis.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return rdb.Ping(ctx).Err()
}

// --- helpers ---

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envDuration(key, def string) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		s = def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

func envMinUint(key string, def, min uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %v", err)
	}
	if n < min {
		return 0, fmt.Errorf("must be >= %d", min)
	}
	return n, nil
}
