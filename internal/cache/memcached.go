package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/weather-proxy/internal/models"
)

const (
	keyPrefix  = "weather:"
	rawPrefix  = "r:"
	hashPrefix = "h:"
	// maxKeyLen is memcached's key length limit.
	maxKeyLen = 250
)

// MemcachedCache implements Cache using memcached. Clear flushes the whole server,
// so the memcached instance should be dedicated to this service.
type MemcachedCache struct {
	client *memcache.Client
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// key maps k to a memcached-safe key. Short keys without whitespace or control
// characters stay readable under "r:"; anything else is hashed under "h:". The two
// namespaces are disjoint, so distinct cities never share a key.
func (c *MemcachedCache) key(k string) string {
	safe := len(keyPrefix)+len(rawPrefix)+len(k) <= maxKeyLen
	for i := 0; safe && i < len(k); i++ {
		if k[i] <= ' ' || k[i] == 0x7f {
			safe = false
		}
	}
	if safe {
		return keyPrefix + rawPrefix + k
	}
	sum := sha256.Sum256([]byte(k))
	return keyPrefix + hashPrefix + hex.EncodeToString(sum[:])
}

// Get implements Cache.Get. Returns false, nil on cache miss; false, err on error.
func (c *MemcachedCache) Get(ctx context.Context, key string) (models.WeatherResult, bool, error) {
	if ctx.Err() != nil {
		return models.WeatherResult{}, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return models.WeatherResult{}, false, nil
		}
		return models.WeatherResult{}, false, err
	}
	var data models.WeatherResult
	if err := json.Unmarshal(item.Value, &data); err != nil {
		return models.WeatherResult{}, false, err
	}
	return data, true, nil
}

// Set implements Cache.Set. Items never expire on their own.
func (c *MemcachedCache) Set(ctx context.Context, key string, value models.WeatherResult) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(&memcache.Item{
		Key:   c.key(key),
		Value: raw,
	})
}

// Clear implements Cache.Clear via FlushAll.
func (c *MemcachedCache) Clear(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return c.client.FlushAll()
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
