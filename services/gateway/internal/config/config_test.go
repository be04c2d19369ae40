package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "ecommerce-identity", cfg.JWT.Issuer)
	assert.Equal(t, 100, cfg.RateLimit.Default.PermitLimit)
	assert.Equal(t, 300, cfg.RateLimit.ProductAPI.PermitLimit)
	assert.Equal(t, 20, cfg.RateLimit.PaymentAPI.PermitLimit)
	assert.Equal(t, 5, cfg.RateLimit.PaymentAPI.QueueLimit)
	assert.Equal(t, 5*time.Second, cfg.Routing.RefreshInterval)
}

func TestLoad_EnvOverridesPolicyDefaults(t *testing.T) {
	t.Setenv("RATELIMIT_PRODUCT_PERMIT_LIMIT", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.RateLimit.ProductAPI.PermitLimit)
	// Untouched fields keep the compiled-in defaults.
	assert.Equal(t, 60, cfg.RateLimit.ProductAPI.WindowSeconds)
}

func TestValidate_RejectsDefaultSecretOutsideDevelopment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET_KEY")
}

func TestParseCachePolicies(t *testing.T) {
	policies, err := ParseCachePolicies("/Products=120, /orders=30")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"/products": 120, "/orders": 30}, policies)
}

func TestParseCachePolicies_Empty(t *testing.T) {
	policies, err := ParseCachePolicies("")
	require.NoError(t, err)
	assert.Empty(t, policies)
}

func TestParseCachePolicies_Malformed(t *testing.T) {
	_, err := ParseCachePolicies("/products")
	assert.Error(t, err)

	_, err = ParseCachePolicies("/products=abc")
	assert.Error(t, err)
}

func TestRateLimitPolicy_Window(t *testing.T) {
	p := RateLimitPolicy{WindowSeconds: 90}
	assert.Equal(t, 90*time.Second, p.Window())
}
