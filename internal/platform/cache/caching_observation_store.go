// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"stonk_db/internal/feature/ingestion/domain/entity"
	"stonk_db/internal/feature/ingestion/usecase"
)

// CachingObservationStore decorates an ObservationStore with a Redis cache for
// asset lookups. Assets are never modified once created, so cached entries need
// no invalidation. Observation reads and writes go straight to the inner store.
type CachingObservationStore struct {
	inner     usecase.ObservationStore
	rdb       *redis.Client
	ttl       time.Duration
	namespace string

	// pending holds assets created inside a transaction; they are cached after commit.
	pending *[]entity.Asset
}

var _ usecase.ObservationStore = (*CachingObservationStore)(nil)

// NewCachingObservationStore decorates an ObservationStore with Redis caching.
// If ttl is 0, it defaults to 24 hours. If namespace is empty, it uses "assets".
func NewCachingObservationStore(rdb *redis.Client, ttl time.Duration, inner usecase.ObservationStore, namespace string) *CachingObservationStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if namespace == "" {
		namespace = "assets"
	}
	return &CachingObservationStore{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// FindAsset checks the cache first, then falls back to the inner store.
// Misses (ErrAssetNotFound) are not cached.
func (c *CachingObservationStore) FindAsset(ctx context.Context, symbol string) (*entity.Asset, error) {
	// Bypass cache if Redis is not configured
	if c.rdb == nil {
		return c.inner.FindAsset(ctx, symbol)
	}

	key := c.cacheKey(symbol)

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var a entity.Asset
		if err := json.Unmarshal(b, &a); err == nil && a.ID != 0 {
			return &a, nil
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	a, err := c.inner.FindAsset(ctx, symbol)
	if err != nil {
		return nil, err
	}
	c.store(ctx, *a)
	return a, nil
}

// CreateAsset creates the asset in the inner store. Inside a transaction the
// cache write is deferred until commit.
func (c *CachingObservationStore) CreateAsset(ctx context.Context, info entity.AssetInfo) (*entity.Asset, error) {
	a, err := c.inner.CreateAsset(ctx, info)
	if err != nil {
		return nil, err
	}
	if c.pending != nil {
		*c.pending = append(*c.pending, *a)
	} else {
		c.store(ctx, *a)
	}
	return a, nil
}

func (c *CachingObservationStore) ExistingTimestamps(ctx context.Context, assetID uint) (entity.TimestampSet, error) {
	return c.inner.ExistingTimestamps(ctx, assetID)
}

func (c *CachingObservationStore) LatestObservation(ctx context.Context, assetID uint) (entity.Observation, bool, error) {
	return c.inner.LatestObservation(ctx, assetID)
}

func (c *CachingObservationStore) BulkInsert(ctx context.Context, assetID uint, observations []entity.Observation) (int64, error) {
	return c.inner.BulkInsert(ctx, assetID, observations)
}

// Transaction runs fn in an inner transaction. Assets created by fn are cached
// only if the transaction commits.
func (c *CachingObservationStore) Transaction(ctx context.Context, fn func(tx usecase.ObservationStore) error) error {
	var created []entity.Asset
	err := c.inner.Transaction(ctx, func(tx usecase.ObservationStore) error {
		return fn(&CachingObservationStore{
			inner:     tx,
			rdb:       c.rdb,
			ttl:       c.ttl,
			namespace: c.namespace,
			pending:   &created,
		})
	})
	if err != nil {
		return err
	}
	for _, a := range created {
		c.store(ctx, a)
	}
	return nil
}

// store writes the asset to the cache (best effort).
func (c *CachingObservationStore) store(ctx context.Context, a entity.Asset) {
	if c.rdb == nil {
		return
	}
	if b, err := json.Marshal(a); err == nil {
		_ = c.rdb.Set(ctx, c.cacheKey(a.Symbol), b, c.ttl).Err()
	}
}

// cacheKey generates a cache key for an asset symbol.
func (c *CachingObservationStore) cacheKey(symbol string) string {
	return fmt.Sprintf("%s:symbol:%s", c.namespace, safe(symbol))
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
