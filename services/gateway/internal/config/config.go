package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	pkgconfig "github.com/Devendra181/ECommerceSystem-sub000/pkg/config"
	"github.com/Devendra181/ECommerceSystem-sub000/pkg/database"
	"github.com/Devendra181/ECommerceSystem-sub000/pkg/registry"
)

// Config holds all configuration for the API gateway service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort    int    `env:"GATEWAY_HTTP_PORT" envDefault:"8080"`

	JWT         JWTSettings
	RateLimit   RateLimiting
	Cache       RedisCacheSettings
	Compression CompressionSettings
	Routing     RoutingSettings
	Redis       database.RedisConfig
	Consul      registry.Config

	TracingEnabled  bool   `env:"TRACING_ENABLED" envDefault:"false"`
	TracingEndpoint string `env:"TRACING_OTLP_ENDPOINT" envDefault:"localhost:4318"`
}

// JWTSettings configures bearer token validation. Audience is deliberately
// not validated and no clock skew is tolerated.
type JWTSettings struct {
	Issuer    string `env:"JWT_ISSUER" envDefault:"ecommerce-identity"`
	SecretKey string `env:"JWT_SECRET_KEY" envDefault:"your-secret-key-change-in-production"`
}

// RateLimitPolicy parameterizes one limiter. Env vars override the
// compiled-in defaults set in Load.
type RateLimitPolicy struct {
	PermitLimit          int    `env:"PERMIT_LIMIT"`
	WindowSeconds        int    `env:"WINDOW_SECONDS"`
	QueueLimit           int    `env:"QUEUE_LIMIT"`
	QueueProcessingOrder string `env:"QUEUE_ORDER"` // OldestFirst or NewestFirst
}

// Window returns the fixed-window length.
func (p RateLimitPolicy) Window() time.Duration {
	return time.Duration(p.WindowSeconds) * time.Second
}

// RateLimiting holds the four named policies.
type RateLimiting struct {
	IsEnabled bool `env:"RATELIMIT_ENABLED" envDefault:"true"`

	Default    RateLimitPolicy `envPrefix:"RATELIMIT_DEFAULT_"`
	ProductAPI RateLimitPolicy `envPrefix:"RATELIMIT_PRODUCT_"`
	OrderAPI   RateLimitPolicy `envPrefix:"RATELIMIT_ORDER_"`
	PaymentAPI RateLimitPolicy `envPrefix:"RATELIMIT_PAYMENT_"`
}

// RedisCacheSettings configures the GET response cache.
type RedisCacheSettings struct {
	Enabled                       bool   `env:"CACHE_ENABLED" envDefault:"true"`
	InstanceName                  string `env:"CACHE_INSTANCE_NAME" envDefault:"gateway"`
	DefaultCacheDurationInSeconds int    `env:"CACHE_DEFAULT_DURATION_SECONDS" envDefault:"60"`

	// CachePoliciesRaw maps lowercased path prefixes to TTL seconds, in the
	// form "/products=120,/orders=30".
	CachePoliciesRaw string `env:"CACHE_POLICIES" envDefault:"/products=120"`
}

// CompressionSettings configures response compression.
type CompressionSettings struct {
	Enabled                   bool     `env:"COMPRESSION_ENABLED" envDefault:"true"`
	CompressionThresholdBytes int      `env:"COMPRESSION_THRESHOLD_BYTES" envDefault:"1024"`
	SupportedEncodings        []string `env:"COMPRESSION_ENCODINGS" envDefault:"br,gzip" envSeparator:","`
	DefaultEncoding           string   `env:"COMPRESSION_DEFAULT_ENCODING" envDefault:"gzip"`
}

// RoutingSettings configures registry-driven routing.
type RoutingSettings struct {
	RefreshInterval      time.Duration `env:"ROUTING_REFRESH_INTERVAL" envDefault:"5s"`
	ErrorRefreshInterval time.Duration `env:"ROUTING_ERROR_REFRESH_INTERVAL" envDefault:"15s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		RateLimit: RateLimiting{
			Default:    RateLimitPolicy{PermitLimit: 100, WindowSeconds: 60, QueueLimit: 0, QueueProcessingOrder: "OldestFirst"},
			ProductAPI: RateLimitPolicy{PermitLimit: 300, WindowSeconds: 60, QueueLimit: 0, QueueProcessingOrder: "OldestFirst"},
			OrderAPI:   RateLimitPolicy{PermitLimit: 100, WindowSeconds: 60, QueueLimit: 0, QueueProcessingOrder: "OldestFirst"},
			PaymentAPI: RateLimitPolicy{PermitLimit: 20, QueueLimit: 5, QueueProcessingOrder: "OldestFirst"},
		},
	}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load gateway config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.Environment != "development" && c.JWT.SecretKey == "your-secret-key-change-in-production" {
		return fmt.Errorf("JWT_SECRET_KEY must be changed from default value in %s environment", c.Environment)
	}
	if _, err := ParseCachePolicies(c.Cache.CachePoliciesRaw); err != nil {
		return err
	}
	return nil
}

// ParseCachePolicies parses "prefix=ttlSeconds,..." into a policy map.
// Prefixes are lowercased for case-insensitive matching.
func ParseCachePolicies(raw string) (map[string]int, error) {
	policies := make(map[string]int)
	if strings.TrimSpace(raw) == "" {
		return policies, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		prefix, ttlStr, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid cache policy entry %q", pair)
		}
		ttl, err := strconv.Atoi(strings.TrimSpace(ttlStr))
		if err != nil {
			return nil, fmt.Errorf("invalid cache policy TTL in %q: %w", pair, err)
		}
		policies[strings.ToLower(strings.TrimSpace(prefix))] = ttl
	}
	return policies, nil
}
