package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"attesta/pkg/domain"
	"attesta/pkg/requestcontext"
)

// Cache stores verification results for the default required-topic set.
// Entries carry a short TTL; mutations invalidate eagerly so a stale
// positive result never outlives the claim that produced it.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache wraps a redis client. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(address domain.Address) string {
	return fmt.Sprintf("attesta:verify:%s", address)
}

// Get returns the cached result for an address, or nil on miss.
func (c *Cache) Get(ctx context.Context, address domain.Address) (*Result, error) {
	if c == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, cacheKey(address)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("verification cache get: %w", err)
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("verification cache decode: %w", err)
	}
	// The redis TTL already bounds this, but request-scoped time can run
	// ahead of the wall clock the entry was written under.
	if res.Stale(requestcontext.Now(ctx)) {
		return nil, nil
	}
	return &res, nil
}

// Set stores a result for an address. The entry's TTL is capped at the
// verdict's validity horizon so a positive result never outlives the
// claim expiry that backs it; a verdict already at its horizon is not
// cached at all.
func (c *Cache) Set(ctx context.Context, address domain.Address, res *Result) error {
	if c == nil {
		return nil
	}
	ttl := entryTTL(c.ttl, res, requestcontext.Now(ctx))
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("verification cache encode: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(address), raw, ttl).Err(); err != nil {
		return fmt.Errorf("verification cache set: %w", err)
	}
	return nil
}

// entryTTL caps the configured TTL at the verdict's validity horizon.
func entryTTL(configured time.Duration, res *Result, now time.Time) time.Duration {
	if res.ValidUntil == nil {
		return configured
	}
	remaining := res.ValidUntil.Sub(now)
	if remaining < configured {
		return remaining
	}
	return configured
}

// Invalidate drops the cached result for an address.
func (c *Cache) Invalidate(ctx context.Context, address domain.Address) error {
	if c == nil {
		return nil
	}
	if err := c.client.Del(ctx, cacheKey(address)).Err(); err != nil {
		return fmt.Errorf("verification cache invalidate: %w", err)
	}
	return nil
}
