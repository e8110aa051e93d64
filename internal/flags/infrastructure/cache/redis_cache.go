package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
)

const (
	redisTrue  = "1"
	redisFalse = "0"

	// scanBatch is the COUNT hint for prefix scans.
	scanBatch = 500
)

// RedisDecisionCache shares decisions across instances. Expiry is enforced by
// Redis itself through SET EX.
type RedisDecisionCache struct {
	client redis.UniversalClient
}

// NewRedisDecisionCache wraps an existing client.
func NewRedisDecisionCache(client redis.UniversalClient) *RedisDecisionCache {
	return &RedisDecisionCache{client: client}
}

// NewRedisDecisionCacheFromURL parses a redis:// URL and verifies the server answers.
func NewRedisDecisionCacheFromURL(ctx context.Context, url string) (*RedisDecisionCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisDecisionCache(client), nil
}

// Get returns the stored decision. A missing key is a miss, not an error.
func (c *RedisDecisionCache) Get(ctx context.Context, key string) (bool, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to read decision %q: %w", key, err)
	}
	switch val {
	case redisTrue:
		return true, true, nil
	case redisFalse:
		return false, true, nil
	default:
		return false, false, fmt.Errorf("unexpected cached value %q for %q", val, key)
	}
}

// Set stores a decision with a server-side expiry.
func (c *RedisDecisionCache) Set(ctx context.Context, key string, decision bool, ttl time.Duration) error {
	val := redisFalse
	if decision {
		val = redisTrue
	}
	if err := c.client.Set(ctx, key, val, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write decision %q: %w", key, err)
	}
	return nil
}

// Delete removes a single entry.
func (c *RedisDecisionCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete decision %q: %w", key, err)
	}
	return nil
}

// DeleteByPrefix scans for keys under prefix and deletes them in batches.
// Keys written concurrently with the scan may survive until their TTL.
func (c *RedisDecisionCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, escapeGlob(prefix)+"*", scanBatch).Iterator()

	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("failed to delete decisions under %q: %w", prefix, err)
		}
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan decisions under %q: %w", prefix, err)
	}
	return flush()
}

// Ping checks the server.
func (c *RedisDecisionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client.
func (c *RedisDecisionCache) Close() error {
	return c.client.Close()
}

// escapeGlob quotes the characters SCAN MATCH treats as wildcards.
func escapeGlob(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var (
	_ domain.DecisionCache     = (*RedisDecisionCache)(nil)
	_ domain.PrefixInvalidator = (*RedisDecisionCache)(nil)
)
