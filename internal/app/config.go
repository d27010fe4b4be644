package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

// Config holds the complete application configuration, loadable from
// environment variables (CAFE_ prefix), a .env file, flags, or YAML config
// files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (CAFE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	QRSize      int    `default:"256" usage:"Order QR code size in pixels" flag:"qr-size"`
	Auth        AuthConfig
	Reporting   ReportingConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
	Retry       RetryConfig
}

// AuthConfig controls token signing and admin enforcement.
type AuthConfig struct {
	Secret       string        `usage:"HMAC secret for signing tokens (CAFE_AUTH_SECRET)"`
	AccessTTL    time.Duration `default:"1h"   usage:"Access token lifetime"`
	RefreshTTL   time.Duration `default:"168h" usage:"Refresh token lifetime"`
	VerifyTTL    time.Duration `default:"5m"   usage:"Email verification token lifetime"`
	ResetTTL     time.Duration `default:"1m"   usage:"Password reset token lifetime"`
	VerifyURL    string        `default:"http://localhost:3000/verify" usage:"Page linked from verification emails"`
	EnforceAdmin bool          `default:"false" usage:"Require an admin token on management endpoints" flag:"enforce-admin"`
}

// ReportingConfig controls dashboard aggregation.
type ReportingConfig struct {
	TimeZone string `default:"UTC" usage:"IANA zone that day, week and month buckets follow"`
}

// RedisConfig enables the dashboard report cache when Addr is set.
type RedisConfig struct {
	Addr     string        `default:"" usage:"Redis address (host:port); empty disables the report cache"`
	Password string        `default:"" usage:"Redis password"`
	DB       int           `default:"0" usage:"Redis database number"`
	CacheTTL time.Duration `default:"30s" usage:"Report cache entry lifetime" flag:"redis-cache-ttl"`
}

// KafkaConfig enables order event publishing when Brokers is set.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka bootstrap brokers; empty disables event publishing"`
	Topic   string   `default:"cafe.orders" usage:"Topic order events are written to"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
	// AuthMax and AuthWindow guard registration and password reset requests.
	AuthMax    int           `default:"5"  usage:"Max register and forgot_password requests per window" flag:"auth-max"`
	AuthWindow time.Duration `default:"5m" usage:"Auth rate limit window duration" flag:"auth-window"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// RetryConfig bounds retries of units of work that hit a write conflict.
type RetryConfig struct {
	Attempts int           `default:"3"     usage:"Attempts per unit of work"`
	Backoff  time.Duration `default:"100ms" usage:"Base backoff, multiplied by the attempt number"`
}

// LoadConfig loads configuration from a .env file, environment variables and
// YAML config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CAFE",
		Files:     []string{"config.yaml", "/etc/cafe/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set CAFE_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Auth.Secret == "" {
		return nil, errors.New("token secret is required: set CAFE_AUTH_SECRET")
	}
	if _, err := loadLocation(cfg.Reporting.TimeZone); err != nil {
		return nil, errors.Wrap(err, "reporting time zone")
	}

	return &cfg, nil
}

// loadLocation resolves an IANA zone name that the database also accepts.
// "Local" and the empty name depend on the host, not the database session,
// so both are rejected.
func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return nil, errors.Errorf("%q is not an IANA zone name", name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "zone %q", name)
	}
	return loc, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's CAFE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
