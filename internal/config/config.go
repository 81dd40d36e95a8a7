package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/utafrali/crystalbeauty/pkg/config"
)

// Storage drivers.
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// Identity sources.
const (
	// IdentityHeader takes the token from each request's Authorization header.
	IdentityHeader = "header"
	// IdentityStorage takes the token persisted under the "token" key, as a
	// single-shopper embedded client does.
	IdentityStorage = "storage"
)

// Config holds all configuration for the storefront host.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`

	// Remote backend
	BackendURL     string        `env:"BACKEND_URL" envDefault:"http://localhost:5000"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"10s"`

	// Client-state storage
	StorageDriver    string `env:"STORAGE_DRIVER" envDefault:"memory"`
	RedisAddr        string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass        string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB          int    `env:"REDIS_DB" envDefault:"0"`
	StorageKeyPrefix string `env:"STORAGE_KEY_PREFIX" envDefault:"storefront:"`
	// Redis keys expire StorageTTL after their last write; zero keeps them forever.
	StorageTTL         time.Duration `env:"STORAGE_TTL" envDefault:"0s"`
	RedisSlowThreshold time.Duration `env:"REDIS_SLOW_THRESHOLD" envDefault:"100ms"`

	IdentitySource string `env:"IDENTITY_SOURCE" envDefault:"header"`

	// Wishlist mirror calls are detached from the request and bounded by this.
	WishlistSyncTimeout time.Duration `env:"WISHLIST_SYNC_TIMEOUT" envDefault:"5s"`

	// Kafka relay; disabled when empty.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Rate limiting on mutating routes, per token or client IP.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	PprofAllowedCIDRs  []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// KafkaEnabled reports whether bus notifications should be relayed to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute URL, got %q", c.BackendURL)
	}
	if c.BackendTimeout <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must be positive")
	}
	switch c.StorageDriver {
	case StorageMemory, StorageRedis:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageMemory, StorageRedis, c.StorageDriver)
	}
	switch c.IdentitySource {
	case IdentityHeader, IdentityStorage:
	default:
		return fmt.Errorf("IDENTITY_SOURCE must be %q or %q, got %q", IdentityHeader, IdentityStorage, c.IdentitySource)
	}
	if c.StorageTTL < 0 {
		return fmt.Errorf("STORAGE_TTL must not be negative")
	}
	if c.WishlistSyncTimeout <= 0 {
		return fmt.Errorf("WISHLIST_SYNC_TIMEOUT must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive and RATE_LIMIT_BURST at least 1")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %v", c.OTELSampleRate)
	}
	return nil
}
