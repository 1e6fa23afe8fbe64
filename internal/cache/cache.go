package cache

import (
	"context"
	"sync"

	"github.com/kjstillabower/weather-proxy/internal/models"
)

// Cache holds lookup results keyed by the exact requested city string.
// Entries carry no expiry; the whole cache is emptied by Clear.
type Cache interface {
	Get(ctx context.Context, key string) (models.WeatherResult, bool, error)
	Set(ctx context.Context, key string, value models.WeatherResult) error
	Clear(ctx context.Context) error
}

// InMemoryCache implements Cache using a map guarded by a RWMutex.
// It is unbounded between clears.
type InMemoryCache struct {
	mu   sync.RWMutex
	data map[string]models.WeatherResult
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]models.WeatherResult),
	}
}

// Get returns (value, true, nil) on hit and (zero, false, nil) on miss.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.WeatherResult, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok, nil
}

// Set stores value under key, replacing any previous entry.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.WeatherResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

// Clear removes every entry.
func (c *InMemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]models.WeatherResult)
	return nil
}

// Len returns the number of cached entries.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
