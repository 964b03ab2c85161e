package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cached is a read-through redis decorator over another Catalog. Catalog rows
// are read-only from the engine's side, so stale entries only last the TTL and
// never affect correctness of stored documents (base costs are resolved once
// and persisted at markup-enable time).
type Cached struct {
	next   Catalog
	client *redis.Client
	ttl    time.Duration
}

// NewCached wraps next with a redis cache.
func NewCached(next Catalog, client *redis.Client, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cached{next: next, client: client, ttl: ttl}
}

func cacheKey(kind string, id int64) string {
	return fmt.Sprintf("catalog:%s:%d", kind, id)
}

func getCached[T any](ctx context.Context, c *Cached, kind string, id int64, load func(context.Context, int64) (T, error)) (T, error) {
	var value T
	key := cacheKey(kind, id)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		if jsonErr := json.Unmarshal(raw, &value); jsonErr == nil {
			return value, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		// Cache trouble is not a lookup failure; fall through to the source.
		return load(ctx, id)
	}

	value, err = load(ctx, id)
	if err != nil {
		return value, err
	}
	if raw, jsonErr := json.Marshal(value); jsonErr == nil {
		c.client.Set(ctx, key, raw, c.ttl)
	}
	return value, nil
}

func (c *Cached) Part(ctx context.Context, id int64) (Part, error) {
	return getCached(ctx, c, "part", id, c.next.Part)
}

func (c *Cached) Labor(ctx context.Context, id int64) (Labor, error) {
	return getCached(ctx, c, "labor", id, c.next.Labor)
}

func (c *Cached) Misc(ctx context.Context, id int64) (Misc, error) {
	return getCached(ctx, c, "misc", id, c.next.Misc)
}

func (c *Cached) DiscountCode(ctx context.Context, id int64) (DiscountCode, error) {
	return getCached(ctx, c, "discount", id, c.next.DiscountCode)
}
