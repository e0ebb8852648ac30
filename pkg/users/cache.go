package users

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/researchportal/pubportal/pkg/auth"
	"github.com/researchportal/pubportal/pkg/observability"
	"github.com/researchportal/pubportal/pkg/policy"
)

const snapshotKey = "all"

// CacheConfig sizes the read-through caches in front of the store
type CacheConfig struct {
	AccountEntries int
	AccountTTL     time.Duration
	SnapshotTTL    time.Duration
}

// DefaultCacheConfig caches 1024 accounts for a minute and the uniqueness
// snapshot for 30 seconds
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{AccountEntries: 1024, AccountTTL: time.Minute, SnapshotTTL: 30 * time.Second}
}

// CachedStore puts expiring LRU caches in front of account lookups and the
// uniqueness snapshot. Every write through it purges both caches.
type CachedStore struct {
	*Store
	accounts  *lru.LRU[int64, *auth.Account]
	snapshots *lru.LRU[string, policy.Snapshot]
	metrics   *observability.Metrics
}

// NewCachedStore wraps store. metrics may be nil.
func NewCachedStore(store *Store, config CacheConfig, metrics *observability.Metrics) *CachedStore {
	if config.AccountEntries < 1 {
		config.AccountEntries = DefaultCacheConfig().AccountEntries
	}
	return &CachedStore{
		Store:     store,
		accounts:  lru.NewLRU[int64, *auth.Account](config.AccountEntries, nil, config.AccountTTL),
		snapshots: lru.NewLRU[string, policy.Snapshot](1, nil, config.SnapshotTTL),
		metrics:   metrics,
	}
}

// Invalidate drops every cached entry
func (c *CachedStore) Invalidate() {
	c.accounts.Purge()
	c.snapshots.Purge()
}

// AccountByID implements auth.AccountStore from the cache when it can
func (c *CachedStore) AccountByID(ctx context.Context, id int64) (*auth.Account, error) {
	if a, ok := c.accounts.Get(id); ok {
		c.metrics.RecordCache("accounts", true)
		return a, nil
	}
	c.metrics.RecordCache("accounts", false)

	a, err := c.Store.AccountByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.accounts.Add(id, a)
	return a, nil
}

// Snapshot returns the cached uniqueness snapshot, loading it when stale
func (c *CachedStore) Snapshot(ctx context.Context) (policy.Snapshot, error) {
	if snap, ok := c.snapshots.Get(snapshotKey); ok {
		c.metrics.RecordCache("snapshot", true)
		return snap, nil
	}
	c.metrics.RecordCache("snapshot", false)

	snap, err := c.Store.Snapshot(ctx)
	if err != nil {
		return policy.Snapshot{}, err
	}
	c.snapshots.Add(snapshotKey, snap)
	return snap, nil
}

// Create inserts u and purges the caches
func (c *CachedStore) Create(ctx context.Context, u *User) error {
	defer c.Invalidate()
	return c.Store.Create(ctx, u)
}

// Update writes u and purges the caches
func (c *CachedStore) Update(ctx context.Context, u *User) error {
	defer c.Invalidate()
	return c.Store.Update(ctx, u)
}

// UpdateSettings writes settings and purges the caches
func (c *CachedStore) UpdateSettings(ctx context.Context, id int64, name, phone string, ids policy.AuthorIDs) error {
	defer c.Invalidate()
	return c.Store.UpdateSettings(ctx, id, name, phone, ids)
}

// SetPasswordHash writes a new hash and purges the caches
func (c *CachedStore) SetPasswordHash(ctx context.Context, email, hash string) error {
	defer c.Invalidate()
	return c.Store.SetPasswordHash(ctx, email, hash)
}

// Delete removes the user and purges the caches
func (c *CachedStore) Delete(ctx context.Context, id int64) error {
	defer c.Invalidate()
	return c.Store.Delete(ctx, id)
}
