package secrets

import (
	"context"
	"time"
)

// Resolver reads secrets through a Provider with a local TTL cache in
// front, so reconnects within the TTL window do not hit Secrets Manager
// again.
type Resolver struct {
	provider Provider
	cache    *Cache[map[string]string]
}

// NewResolver wraps provider with a cache using the given TTL.
func NewResolver(provider Provider, ttl time.Duration) *Resolver {
	return &Resolver{
		provider: provider,
		cache:    NewCache[map[string]string](ttl),
	}
}

// Resolve returns the secret map for key, serving from cache when fresh.
// Fetch errors are returned as-is and never cached.
func (r *Resolver) Resolve(ctx context.Context, key string) (map[string]string, error) {
	if m, ok := r.cache.Get(key); ok {
		return m, nil
	}

	m, err := r.provider.GetSecret(ctx, key)
	if err != nil {
		return nil, err
	}

	r.cache.Put(key, m)
	return m, nil
}

// Bust drops the cached entry for key (e.g. on secret rotation).
func (r *Resolver) Bust(key string) {
	r.cache.Bust(key)
}
