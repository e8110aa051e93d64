package domain

import (
	"context"
	"strconv"
	"time"
)

const (
	// DefaultDecisionTTL bounds how long a decision may be served from cache.
	DefaultDecisionTTL = 300 * time.Second

	cacheKeyPrefix = "flag:"
	globalSegment  = "g"
	subjectSegment = "s:"
)

// DecisionCache stores computed decisions with a per-entry expiry.
type DecisionCache interface {
	// Get returns the cached decision and whether one was present and unexpired.
	Get(ctx context.Context, key string) (decision bool, found bool, err error)

	// Set stores a decision for ttl.
	Set(ctx context.Context, key string, decision bool, ttl time.Duration) error

	// Delete removes a single entry.
	Delete(ctx context.Context, key string) error
}

// PrefixInvalidator is implemented by caches that can drop every key sharing a prefix.
type PrefixInvalidator interface {
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// DecisionKey builds the cache key for a flag and an optional subject.
// An empty subject addresses the global decision. Distinct (flag, subject) pairs
// always yield distinct keys: the name is length-prefixed and the global entry
// lives outside the subject namespace.
func DecisionKey(flagName, subjectID string) string {
	if subjectID == "" {
		return FlagKeyPrefix(flagName) + globalSegment
	}
	return FlagKeyPrefix(flagName) + subjectSegment + subjectID
}

// FlagKeyPrefix is the prefix shared by every decision cached for a flag and by
// no other flag's decisions.
func FlagKeyPrefix(flagName string) string {
	return cacheKeyPrefix + strconv.Itoa(len(flagName)) + ":" + flagName + ":"
}

// Invalidate drops cached decisions for a flag. Prefix-capable caches lose every
// subject entry; other caches lose only the global entry and subject entries age out
// within their TTL.
func Invalidate(ctx context.Context, cache DecisionCache, flagName string) error {
	if pi, ok := cache.(PrefixInvalidator); ok {
		return pi.DeleteByPrefix(ctx, FlagKeyPrefix(flagName))
	}
	return cache.Delete(ctx, DecisionKey(flagName, ""))
}
