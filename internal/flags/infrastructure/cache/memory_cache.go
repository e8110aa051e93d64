// Package cache implements decision caches for the evaluator.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
)

// MemoryDecisionCache keeps decisions in process. Hits never extend an entry's
// lifetime, so a decision is served for at most its TTL.
type MemoryDecisionCache struct {
	cache *ttlcache.Cache[string, bool]
}

// NewMemoryDecisionCache creates a cache bounded to capacity entries (0 means unbounded)
// and starts its expiry loop. Call Close to stop it.
func NewMemoryDecisionCache(capacity uint64) *MemoryDecisionCache {
	opts := []ttlcache.Option[string, bool]{
		ttlcache.WithTTL[string, bool](domain.DefaultDecisionTTL),
		ttlcache.WithDisableTouchOnHit[string, bool](),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, bool](capacity))
	}

	c := &MemoryDecisionCache{cache: ttlcache.New(opts...)}
	go c.cache.Start()
	return c
}

// Get returns an unexpired decision.
func (c *MemoryDecisionCache) Get(_ context.Context, key string) (bool, bool, error) {
	item := c.cache.Get(key)
	if item == nil || item.IsExpired() {
		return false, false, nil
	}
	return item.Value(), true, nil
}

// Set stores a decision for ttl.
func (c *MemoryDecisionCache) Set(_ context.Context, key string, decision bool, ttl time.Duration) error {
	c.cache.Set(key, decision, ttl)
	return nil
}

// Delete removes a single entry.
func (c *MemoryDecisionCache) Delete(_ context.Context, key string) error {
	c.cache.Delete(key)
	return nil
}

// DeleteByPrefix removes every entry whose key starts with prefix.
func (c *MemoryDecisionCache) DeleteByPrefix(_ context.Context, prefix string) error {
	for _, key := range c.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
		}
	}
	return nil
}

// Len reports the number of live entries.
func (c *MemoryDecisionCache) Len() int {
	return c.cache.Len()
}

// Ping always succeeds.
func (c *MemoryDecisionCache) Ping(context.Context) error {
	return nil
}

// Close stops the expiry loop.
func (c *MemoryDecisionCache) Close() error {
	c.cache.Stop()
	return nil
}

var (
	_ domain.DecisionCache     = (*MemoryDecisionCache)(nil)
	_ domain.PrefixInvalidator = (*MemoryDecisionCache)(nil)
)
