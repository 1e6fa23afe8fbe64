//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/weather-proxy/internal/cache"
	"github.com/kjstillabower/weather-proxy/internal/client"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey        string
	APIURL        string
	CacheBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips test if WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}

	apiURL := os.Getenv("WEATHER_API_URL")
	if apiURL == "" {
		apiURL = "http://api.weatherstack.com/current"
	}

	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}

	return IntegrationTestConfig{
		APIKey:        apiKey,
		APIURL:        apiURL,
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: memcachedAddr,
	}
}

// SetupIntegrationDeps builds the live client and cache for integration tests.
// Falls back to the in-memory cache when memcached is requested but unreachable.
func SetupIntegrationDeps(t *testing.T, cfg IntegrationTestConfig) (*client.WeatherstackClient, cache.Cache) {
	t.Helper()
	weatherClient, err := client.NewWeatherstackClient(cfg.APIKey, cfg.APIURL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewWeatherstackClient() error = %v", err)
	}

	if cfg.CacheBackend == "memcached" {
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err == nil {
			if pingErr := mc.Ping(); pingErr == nil {
				t.Cleanup(func() { _ = mc.Close() })
				t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
				return weatherClient, mc
			}
			_ = mc.Close()
		}
		t.Logf("Memcached not available, using in-memory cache")
	}
	return weatherClient, cache.NewInMemoryCache()
}
