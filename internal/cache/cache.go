package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Cache defines the interface for caching operations
type Cache interface {
	// Get retrieves a value and reports whether the key was found
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value. A zero expiration uses the cache default TTL.
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)

	Delete(ctx context.Context, key string)

	// DeleteByPrefix removes all keys with the given prefix
	DeleteByPrefix(ctx context.Context, prefix string)

	Flush(ctx context.Context)
}

// Key prefixes. Bump the version when the cached shape changes.
const (
	PrefixProductReference = "product_ref"
	PrefixProduct          = "product:v1"
	PrefixRankingCategory  = "ranking_category:v1"
)

// GenerateKey joins the prefix and params with colons
func GenerateKey(prefix string, params ...interface{}) string {
	parts := make([]string, len(params)+1)
	parts[0] = prefix

	for i, param := range params {
		parts[i+1] = fmt.Sprintf("%v", param)
	}

	return strings.Join(parts, ":")
}
