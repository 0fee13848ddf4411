package ownership

import (
	"context"
	"fmt"

	"github.com/shazhou-ww/casfa-sub002/cache"
	"github.com/shazhou-ww/casfa-sub002/codec"
)

// present is the only value CachedIndex ever stores, since negative results
// are never cached — the cache.Cache contract carries strings, not booleans.
const present = "1"

// CachedIndex wraps an Index with a cache.Cache honoring the rule from
// spec.md §4.6 and §9: positive results are immutable and cached without
// TTL; negative results are never cached, since ownership can be granted
// at any later time.
type CachedIndex struct {
	inner Index
	cache cache.Cache
}

// NewCachedIndex decorates inner with cache.
func NewCachedIndex(inner Index, c cache.Cache) *CachedIndex {
	return &CachedIndex{inner: inner, cache: c}
}

func cacheKey(nodeHash codec.Key, delegateID string) string {
	return fmt.Sprintf("own:%x:%s", nodeHash, delegateID)
}

func (c *CachedIndex) AddOwnership(ctx context.Context, nodeHash codec.Key, chain []string, uploadedBy string, contentType string, size int64, kind codec.Kind) error {
	if err := c.inner.AddOwnership(ctx, nodeHash, chain, uploadedBy, contentType, size, kind); err != nil {
		return err
	}
	for _, subject := range chain {
		c.cache.Set(cacheKey(nodeHash, subject), present, 0)
	}
	return nil
}

func (c *CachedIndex) HasOwnership(ctx context.Context, nodeHash codec.Key, delegateID string) (bool, error) {
	if _, ok := c.cache.Get(cacheKey(nodeHash, delegateID)); ok {
		return true, nil // only positives are ever cached
	}
	ok, err := c.inner.HasOwnership(ctx, nodeHash, delegateID)
	if err != nil {
		return false, err
	}
	if ok {
		c.cache.Set(cacheKey(nodeHash, delegateID), present, 0)
	}
	return ok, nil
}

func (c *CachedIndex) HasAnyOwnership(ctx context.Context, nodeHash codec.Key) (bool, error) {
	return c.inner.HasAnyOwnership(ctx, nodeHash)
}

func (c *CachedIndex) ListOwners(ctx context.Context, nodeHash codec.Key) ([]string, error) {
	return c.inner.ListOwners(ctx, nodeHash)
}

func (c *CachedIndex) HasOwnershipBatch(ctx context.Context, nodeHash codec.Key, delegateIDs []string) (string, bool, error) {
	for _, id := range delegateIDs {
		if _, ok := c.cache.Get(cacheKey(nodeHash, id)); ok {
			return id, true, nil
		}
	}
	owner, ok, err := c.inner.HasOwnershipBatch(ctx, nodeHash, delegateIDs)
	if err != nil {
		return "", false, err
	}
	if ok {
		c.cache.Set(cacheKey(nodeHash, owner), present, 0)
	}
	return owner, ok, nil
}
