package cache

import (
	"context"
	"strings"
	"time"

	"github.com/flexprice/residence-billing/internal/config"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/getsentry/sentry-go"
	goCache "github.com/patrickmn/go-cache"
)

// DefaultExpiration is used when the configuration carries no TTL
const DefaultExpiration = 5 * time.Minute

// DefaultCleanupInterval is how often expired items are removed from the cache
const DefaultCleanupInterval = 10 * time.Minute

// InMemoryCache implements Cache on top of github.com/patrickmn/go-cache.
// When caching is disabled every call is a no-op miss.
type InMemoryCache struct {
	cache   *goCache.Cache
	enabled bool
}

var _ Cache = (*InMemoryCache)(nil)

// NewInMemoryCache builds the process-local cache from configuration
func NewInMemoryCache(cfg *config.Configuration, log *logger.Logger) Cache {
	ttl := cfg.Cache.TTL
	if ttl <= 0 {
		ttl = DefaultExpiration
	}

	log.Infow("initializing in-memory cache",
		"enabled", cfg.Cache.Enabled,
		"ttl", ttl.String(),
	)

	return &InMemoryCache{
		cache:   goCache.New(ttl, DefaultCleanupInterval),
		enabled: cfg.Cache.Enabled,
	}
}

func (c *InMemoryCache) Get(ctx context.Context, key string) (interface{}, bool) {
	if !c.enabled {
		return nil, false
	}

	span := startSpan(ctx, "get", key)
	value, found := c.cache.Get(key)
	if span != nil {
		span.SetData("hit", found)
		span.Finish()
	}
	return value, found
}

func (c *InMemoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) {
	if !c.enabled {
		return
	}
	if expiration == 0 {
		expiration = goCache.DefaultExpiration
	}

	span := startSpan(ctx, "set", key)
	c.cache.Set(key, value, expiration)
	if span != nil {
		span.Finish()
	}
}

func (c *InMemoryCache) Delete(_ context.Context, key string) {
	if !c.enabled {
		return
	}
	c.cache.Delete(key)
}

func (c *InMemoryCache) DeleteByPrefix(_ context.Context, prefix string) {
	if !c.enabled {
		return
	}
	for k := range c.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			c.cache.Delete(k)
		}
	}
}

func (c *InMemoryCache) Flush(_ context.Context) {
	if !c.enabled {
		return
	}
	c.cache.Flush()
}

// startSpan opens a sentry span when the request carries a hub
func startSpan(ctx context.Context, operation, key string) *sentry.Span {
	if sentry.GetHubFromContext(ctx) == nil {
		return nil
	}
	span := sentry.StartSpan(ctx, "cache.inmemory."+operation)
	span.Op = "db.cache"
	span.Description = "cache.inmemory." + operation
	span.SetData("key", key)
	return span
}
