package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "link:"

// LinkCacheInterface is a read-through cache of link records keyed by slug.
// Get returns nil, nil on a miss.
type LinkCacheInterface interface {
	Get(ctx context.Context, slug string) (*CachedLink, error)
	Set(ctx context.Context, slug string, link *CachedLink, ttl time.Duration) error
	SetIfAbsent(ctx context.Context, slug string, link *CachedLink, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, slug string) error
}

type LinkCache struct {
	client *redis.Client
}

// CachedLink mirrors storage.ShortLink. NotFound marks a negative entry.
type CachedLink struct {
	ID        int64      `json:"id"`
	TargetURL string     `json:"target_url"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	NotFound  bool       `json:"not_found,omitempty"`
}

func NewLinkCache(client *redis.Client) *LinkCache {
	return &LinkCache{client: client}
}

func (c *LinkCache) Get(ctx context.Context, slug string) (*CachedLink, error) {
	val, err := c.client.Get(ctx, keyPrefix+slug).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cached CachedLink
	if err := json.Unmarshal(val, &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

func (c *LinkCache) Set(ctx context.Context, slug string, link *CachedLink, ttl time.Duration) error {
	data, err := json.Marshal(link)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+slug, data, ttl).Err()
}

// SetIfAbsent stores link only when slug has no entry yet.
func (c *LinkCache) SetIfAbsent(ctx context.Context, slug string, link *CachedLink, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(link)
	if err != nil {
		return false, err
	}
	return c.client.SetNX(ctx, keyPrefix+slug, data, ttl).Result()
}

func (c *LinkCache) Delete(ctx context.Context, slug string) error {
	return c.client.Del(ctx, keyPrefix+slug).Err()
}
