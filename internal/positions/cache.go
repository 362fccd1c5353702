package positions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"polytrader/internal/clob"
	"polytrader/internal/logger"
)

const (
	defaultFreshness = 5 * time.Second
	defaultDustValue = 1.0
)

// Fetcher is the slice of the exchange client the cache needs.
type Fetcher interface {
	Positions(ctx context.Context, owner string) ([]clob.Position, error)
}

// SnapshotRepo persists the cached snapshots so a restart does not start
// blind. Persistence failures are logged and tolerated.
type SnapshotRepo interface {
	LoadPositionsCache(ctx context.Context) (map[string]clob.Snapshot, error)
	SavePositionsCache(ctx context.Context, entries map[string]clob.Snapshot) error
}

// Cache is a time-bounded holdings cache with stale-on-error fallback.
// Entries are superseded wholesale on refresh, never merged. Concurrent
// gets for the same owner share one in-flight fetch.
type Cache struct {
	fetcher   Fetcher
	repo      SnapshotRepo
	freshness time.Duration
	dustValue float64
	nowFn     func() time.Time

	mu      sync.RWMutex
	entries map[string]clob.Snapshot
	group   singleflight.Group
}

type Option func(*Cache)

func WithFreshness(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.freshness = d
		}
	}
}

func WithDustValue(v float64) Option {
	return func(c *Cache) {
		if v >= 0 {
			c.dustValue = v
		}
	}
}

func WithNowFunc(fn func() time.Time) Option {
	return func(c *Cache) {
		if fn != nil {
			c.nowFn = fn
		}
	}
}

func NewCache(fetcher Fetcher, repo SnapshotRepo, opts ...Option) *Cache {
	c := &Cache{
		fetcher:   fetcher,
		repo:      repo,
		freshness: defaultFreshness,
		dustValue: defaultDustValue,
		nowFn:     time.Now,
		entries:   make(map[string]clob.Snapshot),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.restore()
	return c
}

func (c *Cache) restore() {
	if c.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entries, err := c.repo.LoadPositionsCache(ctx)
	if err != nil {
		logger.Warnf("positions: restoring cache failed: %v", err)
		return
	}
	if len(entries) > 0 {
		c.mu.Lock()
		c.entries = entries
		c.mu.Unlock()
	}
}

// Get returns the owner's holdings snapshot, fetching fresh data only when
// the cached entry is older than the freshness window. On fetch failure the
// most recent snapshot is returned regardless of age; the error surfaces
// only if no snapshot exists at all.
func (c *Cache) Get(ctx context.Context, owner string) (clob.Snapshot, error) {
	if c == nil || c.fetcher == nil {
		return clob.Snapshot{}, fmt.Errorf("positions cache not initialized")
	}

	c.mu.RLock()
	cached, ok := c.entries[owner]
	c.mu.RUnlock()
	if ok && c.nowFn().Sub(cached.FetchedAt) < c.freshness {
		return cached, nil
	}

	v, err, _ := c.group.Do(owner, func() (any, error) {
		return c.refresh(ctx, owner)
	})
	if err != nil {
		if ok {
			logger.Warnf("positions: fetch failed for %s, serving stale snapshot from %s: %v",
				owner, cached.FetchedAt.Format(time.RFC3339), err)
			return cached, nil
		}
		return clob.Snapshot{}, fmt.Errorf("fetching positions for %s: %w", owner, err)
	}
	return v.(clob.Snapshot), nil
}

// ForceRefresh drops the entry and fetches fresh data immediately.
func (c *Cache) ForceRefresh(ctx context.Context, owner string) (clob.Snapshot, error) {
	c.Invalidate(owner)
	return c.Get(ctx, owner)
}

// Invalidate drops the cached entry for an owner. Called after any action
// that changes holdings, e.g. a sell.
func (c *Cache) Invalidate(owner string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, owner)
	c.mu.Unlock()
	c.persist()
}

func (c *Cache) refresh(ctx context.Context, owner string) (clob.Snapshot, error) {
	raw, err := c.fetcher.Positions(ctx, owner)
	if err != nil {
		return clob.Snapshot{}, err
	}
	filtered := make([]clob.Position, 0, len(raw))
	for _, p := range raw {
		if p.Value < c.dustValue {
			continue
		}
		filtered = append(filtered, p)
	}
	snap := clob.Snapshot{
		Owner:     owner,
		Positions: filtered,
		FetchedAt: c.nowFn(),
	}
	c.mu.Lock()
	c.entries[owner] = snap
	c.mu.Unlock()
	c.persist()
	return snap, nil
}

func (c *Cache) persist() {
	if c.repo == nil {
		return
	}
	c.mu.RLock()
	copied := make(map[string]clob.Snapshot, len(c.entries))
	for k, v := range c.entries {
		copied[k] = v
	}
	c.mu.RUnlock()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.repo.SavePositionsCache(ctx, copied); err != nil {
		logger.Warnf("positions: persisting cache failed: %v", err)
	}
}

// HoldingsValue adapts the cache to the risk validator's ExposureSource for
// one fixed owner.
type HoldingsValue struct {
	Cache *Cache
	Owner string
}

func (h HoldingsValue) TotalHoldingsValue(ctx context.Context) (float64, error) {
	if h.Cache == nil {
		return 0, fmt.Errorf("positions cache unavailable")
	}
	snap, err := h.Cache.Get(ctx, h.Owner)
	if err != nil {
		return 0, err
	}
	return snap.TotalValue(), nil
}
